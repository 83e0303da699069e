// Package mcu talks to the concentrator's companion microcontroller over a
// byte stream. The MCU relays every SPI and GPIO access to the SX1302, so
// this package is the only path to the radio front end from the host side.
package mcu

import (
	"errors"
	"fmt"
	"io"
	"math/rand"

	log "github.com/sirupsen/logrus"
)

// VersionString is the expected MCU firmware version. The first character of
// the version reported by a ping answer encodes the build type (release or
// debug) and is not part of the comparison.
const VersionString = "01.00.00"

// Command orders understood by the MCU firmware
const (
	OrderPing      byte = 0x00
	OrderGetStatus byte = 0x01
	OrderReset     byte = 0x03
	OrderWriteGPIO byte = 0x04
	OrderSPIAccess byte = 0x05
)

// ackFlag is set on the order byte of every answer header
const ackFlag byte = 0x40

// headerSize is the fixed size of a command or answer header:
// request id, order, payload size (big endian)
const headerSize = 4

const (
	uniqueIDSize = 12
	versionSize  = 9 // build type marker + "xx.yy.zz"
	pingAnsSize  = uniqueIDSize + versionSize
)

var (
	ErrBadAnswer  = errors.New("unexpected answer from MCU")
	ErrGPIOStatus = errors.New("MCU refused GPIO write")
)

// PingInfo holds the identity reported by the MCU in a ping answer.
type PingInfo struct {
	UniqueID [uniqueIDSize]byte
	// Version is the firmware version, e.g. "R01.00.00". The leading
	// character is the build type marker.
	Version string
}

// Conn frames commands toward the MCU over rw and decodes the answers.
// One command is always answered before the next one is sent, so Conn keeps
// no read buffer of its own.
//
// Request ids come from a generator seeded with a fixed value, which makes
// the id sequence predictable across runs. The ids only pair answers with
// commands on a point-to-point link; predictability is not a concern.
type Conn struct {
	rw  io.ReadWriter
	rng *rand.Rand
}

// NewConn returns a Conn exchanging commands over rw.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{rw: rw, rng: rand.New(rand.NewSource(0))}
}

func (c *Conn) nextID() byte {
	return byte(c.rng.Intn(256))
}

// exchange sends one command and reads its answer. The answer must echo the
// request id, acknowledge the order and carry exactly ansLen payload bytes.
func (c *Conn) exchange(order byte, payload []byte, ansLen int) ([]byte, error) {
	id := c.nextID()

	req := make([]byte, headerSize+len(payload))
	req[0] = id
	req[1] = order
	req[2] = byte(len(payload) >> 8)
	req[3] = byte(len(payload))
	copy(req[headerSize:], payload)

	log.Debugf("MCU cmd: %# x", req[:headerSize])
	if _, err := c.rw.Write(req); err != nil {
		return nil, err
	}

	hdr := make([]byte, headerSize)
	if _, err := io.ReadFull(c.rw, hdr); err != nil {
		return nil, err
	}
	log.Debugf("MCU ans: %# x", hdr)

	if hdr[0] != id {
		return nil, fmt.Errorf("%w: request id %#x echoed as %#x", ErrBadAnswer, id, hdr[0])
	}
	if hdr[1] != order|ackFlag {
		return nil, fmt.Errorf("%w: order %#x answered with %#x", ErrBadAnswer, order, hdr[1])
	}
	n := int(hdr[2])<<8 | int(hdr[3])
	if n != ansLen {
		return nil, fmt.Errorf("%w: answer size %d, expected %d", ErrBadAnswer, n, ansLen)
	}

	ans := make([]byte, n)
	if _, err := io.ReadFull(c.rw, ans); err != nil {
		return nil, err
	}
	return ans, nil
}

// Ping queries the MCU identity and firmware version.
func (c *Conn) Ping() (PingInfo, error) {
	var info PingInfo

	ans, err := c.exchange(OrderPing, nil, pingAnsSize)
	if err != nil {
		return info, err
	}

	copy(info.UniqueID[:], ans[:uniqueIDSize])
	info.Version = string(ans[uniqueIDSize:])
	return info, nil
}

// WriteGPIO drives a single MCU GPIO pin, addressed by bank and pin number.
func (c *Conn) WriteGPIO(bank, pin, level uint8) error {
	ans, err := c.exchange(OrderWriteGPIO, []byte{bank, pin, level}, 1)
	if err != nil {
		return err
	}
	if ans[0] != 0 {
		return fmt.Errorf("%w: bank %d pin %d status %#x", ErrGPIOStatus, bank, pin, ans[0])
	}
	return nil
}

// SPIAccess relays one SPI frame to the radio front end. The answer payload
// always has the same length as the request frame; for read frames the MCU
// fills in the register data at the positions the frame layout reserves.
func (c *Conn) SPIAccess(frame []byte) ([]byte, error) {
	return c.exchange(OrderSPIAccess, frame, len(frame))
}
