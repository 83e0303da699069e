package mcu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLine answers every command written to it, like the MCU firmware would.
// Conn writes one full command per Write call and reads the answer back.
type fakeLine struct {
	version    string
	gpioStatus byte
	wrongID    bool

	reqs [][]byte
	ans  bytes.Buffer
}

func (f *fakeLine) Write(p []byte) (int, error) {
	f.reqs = append(f.reqs, append([]byte(nil), p...))

	hdr, payload := p[:headerSize], p[headerSize:]
	var ans []byte
	switch hdr[1] {
	case OrderPing:
		ans = make([]byte, uniqueIDSize, pingAnsSize)
		ans = append(ans, f.version...)
	case OrderWriteGPIO:
		ans = []byte{f.gpioStatus}
	case OrderSPIAccess:
		ans = append([]byte(nil), payload...)
	}

	id := hdr[0]
	if f.wrongID {
		id++
	}
	f.ans.Write([]byte{id, hdr[1] | ackFlag, byte(len(ans) >> 8), byte(len(ans))})
	f.ans.Write(ans)
	return len(p), nil
}

func (f *fakeLine) Read(p []byte) (int, error) {
	return f.ans.Read(p)
}

func TestPing(t *testing.T) {
	line := &fakeLine{version: "R01.00.00"}
	c := NewConn(line)

	info, err := c.Ping()
	require.NoError(t, err)
	require.Equal(t, "R01.00.00", info.Version)
	require.Equal(t, [uniqueIDSize]byte{}, info.UniqueID)

	require.Len(t, line.reqs, 1)
	require.Equal(t, OrderPing, line.reqs[0][1])
	require.Equal(t, []byte{0, 0}, line.reqs[0][2:4])
}

func TestWriteGPIO(t *testing.T) {
	line := &fakeLine{}
	c := NewConn(line)

	require.NoError(t, c.WriteGPIO(0, 2, 1))
	require.Equal(t, []byte{0, 2, 1}, line.reqs[0][headerSize:])

	line.gpioStatus = 1
	require.ErrorIs(t, c.WriteGPIO(0, 2, 0), ErrGPIOStatus)
}

func TestSPIAccess(t *testing.T) {
	line := &fakeLine{}
	c := NewConn(line)

	frame := []byte{0, 0, 0x40, 0x42, 0x00, 0x00}
	ans, err := c.SPIAccess(frame)
	require.NoError(t, err)
	// the answer always mirrors the request frame length
	require.Len(t, ans, len(frame))
	require.Equal(t, frame, line.reqs[0][headerSize:])
}

func TestRequestIDsDeterministic(t *testing.T) {
	ids := func() []byte {
		line := &fakeLine{}
		c := NewConn(line)
		for i := 0; i < 5; i++ {
			_, err := c.SPIAccess([]byte{0, 0, 0, 0, 0})
			require.NoError(t, err)
		}
		var got []byte
		for _, req := range line.reqs {
			got = append(got, req[0])
		}
		return got
	}

	// a fresh Conn always produces the same id sequence
	require.Equal(t, ids(), ids())
}

func TestBadAnswerID(t *testing.T) {
	line := &fakeLine{wrongID: true}
	c := NewConn(line)

	_, err := c.SPIAccess([]byte{0, 0, 0, 0, 0})
	require.ErrorIs(t, err, ErrBadAnswer)
}
