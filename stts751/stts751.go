// Package stts751 is a placeholder driver for the ST STTS751 temperature
// sensor found on the concentrator board. The sensor is not wired through
// the MCU relay yet; readings are a fixed ambient value so that code
// depending on a board temperature keeps working.
package stts751

// Default I2C address of the on-board sensor
const DefaultAddr = 0x39

// Register map, kept for the eventual real driver
const (
	RegTempH  = 0x00
	RegStatus = 0x01
	RegTempL  = 0x02
	RegConf   = 0x03
	RegRate   = 0x04

	RegProdID = 0xFD
	RegManID  = 0xFE
	RegRevID  = 0xFF

	ManID = 0x53
)

// Sensor represents one STTS751 on the concentrator board.
type Sensor struct {
	Addr uint8
}

// Configure prepares the sensor for conversions.
func (s *Sensor) Configure() error {
	return nil
}

// Temperature returns the board temperature in degrees Celsius.
func (s *Sensor) Temperature() (float32, error) {
	return 30, nil
}
