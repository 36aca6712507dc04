// Package config provides the human-named register access layer
// application code is expected to use day to day: a thin struct wrapping
// a transaction handle and one device identifier, exposing named
// Read<Field>/Write<Field> methods instead of raw address/width pairs.
// pkg/protocol stays the low-level codec this package is built on.
package config

import (
	"fmt"
	"time"

	"github.com/cds55xx/servobus"
	"github.com/cds55xx/servobus/pkg/bus"
	"github.com/cds55xx/servobus/pkg/protocol"
)

// defaultTimeout bounds how long a single register read or write waits
// for the servo's status reply.
const defaultTimeout = 50 * time.Millisecond

// Configurator reads and writes one servo's EEPROM and RAM registers
// over an already-initialized transaction engine.
type Configurator struct {
	engine  *bus.Engine
	id      byte
	timeout time.Duration
}

// NewConfigurator returns a Configurator for the servo at id, issuing
// requests through engine.
func NewConfigurator(engine *bus.Engine, id byte) *Configurator {
	return &Configurator{engine: engine, id: id, timeout: defaultTimeout}
}

// WithTimeout overrides the per-request timeout (default 50ms) and
// returns the receiver for chaining.
func (c *Configurator) WithTimeout(d time.Duration) *Configurator {
	c.timeout = d
	return c
}

// readField issues a READ for f and decodes the reply as an unsigned
// integer of f's declared width, along with the servo's decoded fault
// flags for this exchange.
func (c *Configurator) readField(f protocol.Field) (uint16, protocol.ErrorFlags, error) {
	frame := protocol.New(c.id).Read(f.Address, byte(f.Width))
	payload, errFlags, err := c.engine.SendAndWait(frame, c.timeout)
	if err != nil {
		return 0, errFlags, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if len(payload) < f.Width {
		return 0, errFlags, fmt.Errorf("read %s: %w: got %d bytes, want %d", f.Name, servobus.ErrTooShort, len(payload), f.Width)
	}
	if f.Width == 1 {
		return uint16(payload[0]), errFlags, nil
	}
	return uint16(protocol.WordToInt(payload[0], payload[1])), errFlags, nil
}

// writeField issues a WRITE for f and waits for the servo's status
// reply, returning its decoded fault flags. Callers never invoke this
// for a read-only field; the package's wrappers only expose
// Write<Field> for fields the register map marks read/write.
func (c *Configurator) writeField(f protocol.Field, value uint16) (protocol.ErrorFlags, error) {
	var data []byte
	if f.Width == 1 {
		data = []byte{byte(value)}
	} else {
		data = protocol.Word(value)
	}
	frame := protocol.New(c.id).Write(f.Address, data...)
	_, errFlags, err := c.engine.SendAndWait(frame, c.timeout)
	if err != nil {
		return errFlags, fmt.Errorf("write %s: %w", f.Name, err)
	}
	return errFlags, nil
}

// Ping sends a bare PING and reports whether the servo answered, along
// with any fault flags carried on its reply.
func (c *Configurator) Ping() (protocol.ErrorFlags, error) {
	_, errFlags, err := c.engine.SendAndWait(protocol.New(c.id).Ping(), c.timeout)
	return errFlags, err
}

// Reset issues the factory-reset instruction.
func (c *Configurator) Reset() (protocol.ErrorFlags, error) {
	_, errFlags, err := c.engine.SendAndWait(protocol.New(c.id).Reset(), c.timeout)
	return errFlags, err
}

// Action triggers any REG_WRITE instructions staged since the last
// Action or power-on.
func (c *Configurator) Action() error {
	ok, err := c.engine.SendNoWait(protocol.New(c.id).Action())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("action: %w", servobus.ErrProtocol)
	}
	return nil
}

// ReadModelNumber reads the EEPROM MODEL_NUMBER field.
func (c *Configurator) ReadModelNumber() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldModelNumber)
}

// ReadFirmwareVersion reads the EEPROM VERSION field.
func (c *Configurator) ReadFirmwareVersion() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldVersion)
}

// ReadID reads the servo's own configured identifier.
func (c *Configurator) ReadID() (uint16, protocol.ErrorFlags, error) { return c.readField(protocol.FieldID) }

// WriteID changes the servo's identifier; subsequent requests on this
// Configurator still address the old id until the caller builds a new
// one for the new id.
func (c *Configurator) WriteID(id byte) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldID, uint16(id))
}

// ReadBaudrate reads the EEPROM BAUDRATE code (see protocol.BaudCode).
func (c *Configurator) ReadBaudrate() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldBaudrate)
}

// WriteBaudrate sets the EEPROM baud-rate code directly. Prefer
// protocol.EEPROM.SetBaudrate to map a bits-per-second value through the
// baud table first.
func (c *Configurator) WriteBaudrate(code byte) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldBaudrate, uint16(code))
}

// ReadReturnDelay reads RETURN_DELAY_TIME, in 2us units.
func (c *Configurator) ReadReturnDelay() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldReturnDelayTime)
}

// WriteReturnDelay sets RETURN_DELAY_TIME, in 2us units.
func (c *Configurator) WriteReturnDelay(v byte) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldReturnDelayTime, uint16(v))
}

// ReadCWAngleLimit reads the clockwise angle-limit register.
func (c *Configurator) ReadCWAngleLimit() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldCWAngleLimit)
}

// ReadCCWAngleLimit reads the counter-clockwise angle-limit register.
func (c *Configurator) ReadCCWAngleLimit() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldCCWAngleLimit)
}

// ReadMaxTemperature reads the EEPROM temperature shutdown threshold, in
// degrees Celsius.
func (c *Configurator) ReadMaxTemperature() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldMaxTemperature)
}

// ReadVoltageRange reads MIN_VOLTAGE and MAX_VOLTAGE, each x10 volts.
func (c *Configurator) ReadVoltageRange() (min, max uint16, errFlags protocol.ErrorFlags, err error) {
	min, errFlags, err = c.readField(protocol.FieldMinVoltage)
	if err != nil {
		return 0, 0, errFlags, err
	}
	max, errFlags, err = c.readField(protocol.FieldMaxVoltage)
	return min, max, errFlags, err
}

// ReadMaxTorque reads the EEPROM torque ceiling, 0-1023.
func (c *Configurator) ReadMaxTorque() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldMaxTorque)
}

// ReadStatusReturnLevel reads the EEPROM reply policy.
func (c *Configurator) ReadStatusReturnLevel() (protocol.StatusReturnLevel, protocol.ErrorFlags, error) {
	v, errFlags, err := c.readField(protocol.FieldStatusReturnLevel)
	return protocol.StatusReturnLevel(v), errFlags, err
}

// ReadTorqueEnabled reads the RAM torque-enable flag.
func (c *Configurator) ReadTorqueEnabled() (bool, protocol.ErrorFlags, error) {
	v, errFlags, err := c.readField(protocol.FieldTorqueEnable)
	return v != 0, errFlags, err
}

// WriteTorqueEnabled enables or disables torque.
func (c *Configurator) WriteTorqueEnabled(enabled bool) (protocol.ErrorFlags, error) {
	v := uint16(0)
	if enabled {
		v = 1
	}
	return c.writeField(protocol.FieldTorqueEnable, v)
}

// ReadLEDEnabled reads the RAM status LED flag.
func (c *Configurator) ReadLEDEnabled() (bool, protocol.ErrorFlags, error) {
	v, errFlags, err := c.readField(protocol.FieldLED)
	return v != 0, errFlags, err
}

// WriteLEDEnabled turns the status LED on or off.
func (c *Configurator) WriteLEDEnabled(enabled bool) (protocol.ErrorFlags, error) {
	v := uint16(0)
	if enabled {
		v = 1
	}
	return c.writeField(protocol.FieldLED, v)
}

// WriteGoalPosition writes the raw 10-bit goal position register
// directly. Prefer protocol.Motor.MoveTo to convert from degrees first.
func (c *Configurator) WriteGoalPosition(register uint16) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldGoalPosition, register)
}

// ReadPresentPosition reads the live position register.
func (c *Configurator) ReadPresentPosition() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldPresentPosition)
}

// WriteMovingSpeed writes the raw moving-speed register directly.
func (c *Configurator) WriteMovingSpeed(register uint16) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldMovingSpeed, register)
}

// ReadPresentSpeed reads the live speed register. Its sign/mode
// interpretation depends on whether the servo is in joint or wheel mode
// (see protocol.ParseRAMBlock's doc comment); this method returns the raw
// register value undecoded.
func (c *Configurator) ReadPresentSpeed() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldPresentSpeed)
}

// ReadPresentLoad reads the live load register.
func (c *Configurator) ReadPresentLoad() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldPresentLoad)
}

// ReadPresentVoltage reads the live supply voltage, x10 volts.
func (c *Configurator) ReadPresentVoltage() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldPresentVoltage)
}

// ReadTemperature reads the live internal temperature, degrees Celsius.
func (c *Configurator) ReadTemperature() (uint16, protocol.ErrorFlags, error) {
	return c.readField(protocol.FieldTemperature)
}

// ReadMovingFlag reports whether the servo considers itself still in
// motion toward its goal position.
func (c *Configurator) ReadMovingFlag() (bool, protocol.ErrorFlags, error) {
	v, errFlags, err := c.readField(protocol.FieldMovingFlag)
	return v != 0, errFlags, err
}

// ReadLock reads the RAM EEPROM-write lock flag.
func (c *Configurator) ReadLock() (bool, protocol.ErrorFlags, error) {
	v, errFlags, err := c.readField(protocol.FieldLock)
	return v != 0, errFlags, err
}

// WriteLock sets the RAM EEPROM-write lock flag. Once set, most servos
// require a power cycle to clear it.
func (c *Configurator) WriteLock(locked bool) (protocol.ErrorFlags, error) {
	v := uint16(0)
	if locked {
		v = 1
	}
	return c.writeField(protocol.FieldLock, v)
}

// WriteAcceleration writes the RAM acceleration register directly.
func (c *Configurator) WriteAcceleration(v byte) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldAcceleration, uint16(v))
}

// WriteDeceleration writes the RAM deceleration register directly.
func (c *Configurator) WriteDeceleration(v byte) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldDeceleration, uint16(v))
}

// WriteMinPWM writes the RAM minimum-PWM register directly.
func (c *Configurator) WriteMinPWM(register uint16) (protocol.ErrorFlags, error) {
	return c.writeField(protocol.FieldMinPWM, register)
}

// ReadEEPROM reads the full EEPROM block in one request and decodes it,
// along with the servo's decoded fault flags for this exchange.
func (c *Configurator) ReadEEPROM() (protocol.EEPROMBlock, protocol.ErrorFlags, error) {
	span := fieldSpan(protocol.EEPROMFields)
	frame := protocol.New(c.id).Read(protocol.FieldModelNumber.Address, byte(span))
	payload, errFlags, err := c.engine.SendAndWait(frame, c.timeout)
	if err != nil {
		return protocol.EEPROMBlock{}, errFlags, fmt.Errorf("read eeprom: %w", err)
	}
	block, err := protocol.ParseEEPROMBlock(payload)
	return block, errFlags, err
}

// ReadRAM reads the full RAM block in one request and decodes it, along
// with the servo's decoded fault flags for this exchange.
func (c *Configurator) ReadRAM() (protocol.RAMBlock, protocol.ErrorFlags, error) {
	span := fieldSpan(protocol.RAMFields)
	frame := protocol.New(c.id).Read(protocol.FieldTorqueEnable.Address, byte(span))
	payload, errFlags, err := c.engine.SendAndWait(frame, c.timeout)
	if err != nil {
		return protocol.RAMBlock{}, errFlags, fmt.Errorf("read ram: %w", err)
	}
	block, err := protocol.ParseRAMBlock(payload)
	return block, errFlags, err
}

// fieldSpan sums the declared widths of fields, the number of bytes a
// READ must request to cover all of them in one round trip.
func fieldSpan(fields []protocol.Field) int {
	total := 0
	for _, f := range fields {
		total += f.Width
	}
	return total
}
