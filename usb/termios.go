package usb

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// serialBaud is the fixed line speed of the concentrator's USB CDC endpoint.
const serialBaud = unix.B115200

// serialPort is a raw file descriptor on a tty device node. It deliberately
// avoids os.File: the runtime poller would put the descriptor into
// non-blocking mode and defeat the VMIN/VTIME read semantics configured
// below. Linux only, like the hardware it drives.
type serialPort struct {
	fd   int
	path string
}

func openSerial(path string) (*serialPort, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOpen, path, err)
	}

	if err := setInterfaceAttribs(fd, serialBaud); err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := setBlocking(fd, true); err != nil {
		unix.Close(fd)
		return nil, err
	}

	log.Debugf("Opened serial port %s", path)
	return &serialPort{fd: fd, path: path}, nil
}

func (p *serialPort) Read(b []byte) (int, error) {
	for {
		n, err := unix.Read(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (p *serialPort) Write(b []byte) (int, error) {
	for {
		n, err := unix.Write(p.fd, b)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

func (p *serialPort) Close() error {
	return unix.Close(p.fd)
}

// rawTermios turns tio into the 8N1 raw state the MCU link needs: no parity,
// one stop bit, no flow control or CR/NL translation in either direction, no
// line discipline processing. Reads return after VTIME tenths of a second
// with whatever bytes arrived.
func rawTermios(tio *unix.Termios, speed uint32) {
	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= speed
	tio.Ispeed = speed
	tio.Ospeed = speed

	tio.Cflag = (tio.Cflag &^ unix.CSIZE) | unix.CS8
	tio.Cflag |= unix.CLOCAL | unix.CREAD
	tio.Cflag &^= unix.PARENB
	tio.Cflag &^= unix.CSTOPB

	tio.Iflag &^= unix.IGNBRK
	tio.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY | unix.ICRNL
	tio.Oflag &^= unix.IGNBRK
	tio.Oflag &^= unix.IXON | unix.IXOFF | unix.IXANY | unix.ICRNL

	tio.Lflag = 0

	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = 50
}

// blockingTermios toggles between fully blocking reads (wait for at least one
// byte) and short-timeout reads. All other attributes are left untouched.
func blockingTermios(tio *unix.Termios, blocking bool) {
	if blocking {
		tio.Cc[unix.VMIN] = 1
	} else {
		tio.Cc[unix.VMIN] = 0
	}
	tio.Cc[unix.VTIME] = 1
}

func setInterfaceAttribs(fd int, speed uint32) error {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("%w: tcgetattr: %v", ErrConfig, err)
	}

	rawTermios(tio, speed)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("%w: tcsetattr: %v", ErrConfig, err)
	}
	return nil
}

func setBlocking(fd int, blocking bool) error {
	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("%w: tcgetattr: %v", ErrConfig, err)
	}

	blockingTermios(tio, blocking)

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return fmt.Errorf("%w: tcsetattr: %v", ErrConfig, err)
	}
	return nil
}
