// Package usb is the transport layer of the SX1302 concentrator host driver.
// The radio front end is not directly addressable from the host: every
// register access is encoded as an SPI command frame and relayed through the
// concentrator's MCU over a serial/USB link (or a TCP bridge to one).
//
// A Device is meant for a single owner; the package does no internal locking
// and callers must not issue operations concurrently on the same Device.
package usb

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Mohanbandaru16/sx1302-hal/mcu"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOpen            = errors.New("failed to open COM port")
	ErrConfig          = errors.New("failed to configure COM port")
	ErrVersionMismatch = errors.New("MCU version mismatch")
	ErrReset           = errors.New("failed to reset SX1302")
	ErrTransfer        = errors.New("USB transfer failure")
	// ErrCloseWarn reports an OS-level close failure. The handle is torn
	// down and unusable either way; callers may treat this as a warning.
	ErrCloseWarn = errors.New("COM port failed to close")
)

// Relay is the MCU command surface the transport depends on. The production
// implementation is mcu.Conn; tests substitute stubs.
type Relay interface {
	// SPIAccess exchanges one SPI frame with the radio front end and
	// returns an answer of identical length.
	SPIAccess(frame []byte) ([]byte, error)
	Ping() (mcu.PingInfo, error)
	WriteGPIO(bank, pin, level uint8) error
}

// SessionState tracks the lifecycle of one open link.
type SessionState byte

const (
	StateClosed SessionState = iota
	StateOpening
	StateHandshaking
	StateResetting
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "Closed"
	case StateOpening:
		return "Opening"
	case StateHandshaking:
		return "Handshaking"
	case StateResetting:
		return "Resetting"
	case StateReady:
		return "Ready"
	case StateFailed:
		return "Failed"
	}
	return fmt.Sprintf("SessionState(%d)", byte(s))
}

// Device is one open link to the concentrator MCU. Create with NewDevice,
// establish with Connect, release with Close.
type Device struct {
	conn  io.ReadWriteCloser
	relay Relay
	state SessionState

	version string
}

// NewDevice returns a Device in the Closed state.
func NewDevice() *Device {
	return &Device{state: StateClosed}
}

func (d *Device) setState(s SessionState) {
	if d.state != s {
		log.Debugf("Session state: %v --> %v", d.state, s)
	}
	d.state = s
}

// State returns the current session state.
func (d *Device) State() SessionState {
	if d == nil {
		return StateClosed
	}
	return d.state
}

// Version returns the MCU firmware version learned during the handshake,
// e.g. "R01.00.00". Empty until a session reached the Ready state.
func (d *Device) Version() string {
	return d.version
}

// Connect opens the link, verifies the MCU identity and resets the SX1302.
// Use socket://[host]:[port] (or tcp://) for a serial-over-TCP bridge, or a
// plain device path for a direct serial connection. On any failure the
// partially opened handle is released before returning.
func (d *Device) Connect(link string) error {
	if d == nil {
		return ErrInvalidArgument
	}
	if d.state == StateReady {
		return fmt.Errorf("%w: already connected", ErrInvalidArgument)
	}
	d.setState(StateOpening)

	u, err := url.Parse(link)
	if err != nil {
		d.setState(StateFailed)
		return fmt.Errorf("%w: %q: %v", ErrOpen, link, err)
	}

	switch {
	case u.Scheme == "socket" || u.Scheme == "tcp":
		conn, err := net.Dial("tcp", u.Host)
		if err != nil {
			d.setState(StateFailed)
			return fmt.Errorf("%w: %s: %v", ErrOpen, u.Host, err)
		}
		conn.(*net.TCPConn).SetKeepAlive(true)
		conn.(*net.TCPConn).SetKeepAlivePeriod(30 * time.Second)
		d.conn = conn
	case u.Scheme == "" || u.Scheme == "file":
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == "" {
			path = link
		}
		port, err := openSerial(path)
		if err != nil {
			d.setState(StateFailed)
			return err
		}
		d.conn = port
	default:
		d.setState(StateFailed)
		return fmt.Errorf("%w: no valid connection string in %q", ErrOpen, link)
	}

	d.relay = mcu.NewConn(d.conn)

	if err := d.handshake(); err != nil {
		d.release()
		d.setState(StateFailed)
		return err
	}
	if err := d.resetTarget(); err != nil {
		d.release()
		d.setState(StateFailed)
		return err
	}

	d.setState(StateReady)
	return nil
}

// handshake pings the MCU and checks its firmware version. The first
// character of the reported version is the build type marker and is ignored
// in the comparison.
func (d *Device) handshake() error {
	d.setState(StateHandshaking)

	info, err := d.relay.Ping()
	if err != nil {
		return fmt.Errorf("%w: failed to ping the concentrator MCU: %v", ErrTransfer, err)
	}
	if len(info.Version) < 1 || !strings.HasPrefix(info.Version[1:], mcu.VersionString) {
		return fmt.Errorf("%w (expected:%s, got:%s)", ErrVersionMismatch, mcu.VersionString, info.Version)
	}

	log.Infof("Concentrator MCU version is %s", info.Version)
	d.version = info.Version
	return nil
}

// resetTarget power-cycles the radio front end: PA1 enables power, PA2
// pulses the SX1302 reset line.
func (d *Device) resetTarget() error {
	d.setState(StateResetting)

	err := d.relay.WriteGPIO(0, 1, 1)
	if err == nil {
		err = d.relay.WriteGPIO(0, 2, 1)
	}
	if err == nil {
		err = d.relay.WriteGPIO(0, 2, 0)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReset, err)
	}
	return nil
}

// release tears the handle down without reporting the close outcome. Used on
// failed open paths where the original error is the one worth returning.
func (d *Device) release() {
	if d.conn != nil {
		if err := d.conn.Close(); err != nil {
			log.Warnf("Error closing after failed connect: %v", err)
		}
	}
	d.conn = nil
	d.relay = nil
	d.version = ""
}

// Close releases the OS handle. The Device always returns to the Closed
// state and frees its resources; if the OS close itself failed, the error
// wraps ErrCloseWarn so callers can observe it without having to treat the
// handle as still alive.
func (d *Device) Close() error {
	if d == nil || d.conn == nil {
		return ErrInvalidArgument
	}

	err := d.conn.Close()
	d.conn = nil
	d.relay = nil
	d.version = ""
	d.setState(StateClosed)

	if err != nil {
		log.Warnf("USB port failed to close: %v", err)
		return fmt.Errorf("%w: %v", ErrCloseWarn, err)
	}
	log.Debug("USB port closed")
	return nil
}

// SetBlocking switches the serial line between fully blocking reads and
// short-timeout reads. It is a no-op for TCP bridged links.
func (d *Device) SetBlocking(blocking bool) error {
	if d == nil || d.conn == nil {
		return ErrInvalidArgument
	}
	port, ok := d.conn.(*serialPort)
	if !ok {
		return nil
	}
	return setBlocking(port.fd, blocking)
}
