package usb

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// ready gates every register operation on a usable handle.
func (d *Device) ready() error {
	if d == nil || d.relay == nil || d.state != StateReady {
		return fmt.Errorf("%w: device not ready", ErrInvalidArgument)
	}
	return nil
}

// WriteRegister writes a single byte to a register of the mux-selected
// target.
func (d *Device) WriteRegister(mux uint8, addr uint16, data uint8) error {
	if err := d.ready(); err != nil {
		return err
	}

	if _, err := d.relay.SPIAccess(writeFrame(mux, addr, data)); err != nil {
		log.Errorf("USB write failure: %v", err)
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	return nil
}

// ReadRegister reads a single register byte from the mux-selected target.
func (d *Device) ReadRegister(mux uint8, addr uint16) (uint8, error) {
	if err := d.ready(); err != nil {
		return 0, err
	}

	req := readFrame(mux, addr)
	ans, err := d.relay.SPIAccess(req)
	if err != nil {
		log.Errorf("USB read failure: %v", err)
		return 0, fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	if len(ans) != len(req) {
		return 0, fmt.Errorf("%w: answer length %d, expected %d", ErrTransfer, len(ans), len(req))
	}

	// the last byte carries the register value
	return ans[len(ans)-1], nil
}

// WriteBurst writes len(data) contiguous bytes starting at addr as a single
// frame. A zero-length burst still sends a well-formed header-only frame.
func (d *Device) WriteBurst(mux uint8, addr uint16, data []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: nil data", ErrInvalidArgument)
	}
	if len(data) > maxBurstSize {
		return fmt.Errorf("%w: burst size %d exceeds %d", ErrInvalidArgument, len(data), maxBurstSize)
	}

	if _, err := d.relay.SPIAccess(burstWriteFrame(mux, addr, data)); err != nil {
		log.Errorf("USB write burst failure: %v", err)
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	return nil
}

// ReadBurst reads len(data) contiguous bytes starting at addr into data.
func (d *Device) ReadBurst(mux uint8, addr uint16, data []byte) error {
	if err := d.ready(); err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("%w: nil data", ErrInvalidArgument)
	}
	if len(data) > maxBurstSize {
		return fmt.Errorf("%w: burst size %d exceeds %d", ErrInvalidArgument, len(data), maxBurstSize)
	}

	req := burstReadFrame(mux, addr, len(data))
	ans, err := d.relay.SPIAccess(req)
	if err != nil {
		log.Errorf("USB read burst failure: %v", err)
		return fmt.Errorf("%w: %v", ErrTransfer, err)
	}
	if len(ans) != len(req) {
		return fmt.Errorf("%w: answer length %d, expected %d", ErrTransfer, len(ans), len(req))
	}

	copy(data, ans[readHeaderSize:])
	return nil
}
