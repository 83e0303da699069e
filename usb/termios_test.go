package usb

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestRawTermios(t *testing.T) {
	// start from a deliberately "cooked" line
	tio := unix.Termios{
		Iflag: unix.IGNBRK | unix.IXON | unix.IXOFF | unix.IXANY | unix.ICRNL,
		Oflag: unix.IXON | unix.ICRNL,
		Cflag: unix.CBAUD | unix.CSIZE | unix.PARENB | unix.CSTOPB,
		Lflag: unix.ICANON | unix.ECHO | unix.ISIG,
	}
	tio.Cc[unix.VMIN] = 42
	tio.Cc[unix.VTIME] = 42

	rawTermios(&tio, unix.B115200)

	require.EqualValues(t, unix.B115200, tio.Ispeed)
	require.EqualValues(t, unix.B115200, tio.Ospeed)
	require.EqualValues(t, unix.B115200, tio.Cflag&unix.CBAUD)

	require.EqualValues(t, unix.CS8, tio.Cflag&unix.CSIZE)
	require.NotZero(t, tio.Cflag&unix.CLOCAL)
	require.NotZero(t, tio.Cflag&unix.CREAD)
	require.Zero(t, tio.Cflag&unix.PARENB)
	require.Zero(t, tio.Cflag&unix.CSTOPB)

	require.Zero(t, tio.Iflag&(unix.IGNBRK|unix.IXON|unix.IXOFF|unix.IXANY|unix.ICRNL))
	require.Zero(t, tio.Oflag&(unix.IXON|unix.IXOFF|unix.IXANY|unix.ICRNL))
	require.Zero(t, tio.Lflag)

	require.EqualValues(t, 0, tio.Cc[unix.VMIN])
	require.EqualValues(t, 50, tio.Cc[unix.VTIME])
}

func TestBlockingTermios(t *testing.T) {
	var tio unix.Termios
	rawTermios(&tio, unix.B115200)

	blocking := tio
	blockingTermios(&blocking, true)
	require.EqualValues(t, 1, blocking.Cc[unix.VMIN])
	require.EqualValues(t, 1, blocking.Cc[unix.VTIME])

	nonBlocking := tio
	blockingTermios(&nonBlocking, false)
	require.EqualValues(t, 0, nonBlocking.Cc[unix.VMIN])
	require.EqualValues(t, 1, nonBlocking.Cc[unix.VTIME])

	// the toggle must leave everything but VMIN/VTIME untouched
	blocking.Cc[unix.VMIN] = tio.Cc[unix.VMIN]
	blocking.Cc[unix.VTIME] = tio.Cc[unix.VTIME]
	require.Equal(t, tio, blocking)

	nonBlocking.Cc[unix.VMIN] = tio.Cc[unix.VMIN]
	nonBlocking.Cc[unix.VTIME] = tio.Cc[unix.VTIME]
	require.Equal(t, tio, nonBlocking)
}
