package usb

// SPI command frame layout, as relayed by the MCU to the SX1302:
//
//	byte 0   reserved, always 0
//	byte 1   SPI mux target
//	byte 2   read/write flag (bit 7) | address bits 14..8
//	byte 3   address bits 7..0
//	then     data bytes (write) or zero padding sized like the expected
//	         answer (read)
//
// The answer frame always has the same total length as the command frame.

const (
	writeHeaderSize = 4
	readHeaderSize  = 5

	writeFlag = 0x80

	// maxBurstSize bounds a single burst so a corrupted length can not
	// turn into an arbitrarily large frame allocation.
	maxBurstSize = 1024
)

func writeFrame(mux uint8, addr uint16, data uint8) []byte {
	return []byte{0, mux, writeFlag | uint8(addr>>8)&0x7F, uint8(addr), data}
}

func readFrame(mux uint8, addr uint16) []byte {
	return []byte{0, mux, uint8(addr>>8) & 0x7F, uint8(addr), 0x00, 0x00}
}

func burstWriteFrame(mux uint8, addr uint16, data []byte) []byte {
	b := make([]byte, 0, writeHeaderSize+len(data))
	b = append(b, 0, mux, writeFlag|uint8(addr>>8)&0x7F, uint8(addr))
	return append(b, data...)
}

func burstReadFrame(mux uint8, addr uint16, size int) []byte {
	b := make([]byte, readHeaderSize+size)
	b[1] = mux
	b[2] = uint8(addr>>8) & 0x7F
	b[3] = uint8(addr)
	return b
}

// parseHeader recovers mux target, register address and access direction
// from an encoded frame header.
func parseHeader(frame []byte) (mux uint8, addr uint16, write bool) {
	mux = frame[1]
	addr = uint16(frame[2]&0x7F)<<8 | uint16(frame[3])
	write = frame[2]&writeFlag != 0
	return mux, addr, write
}
