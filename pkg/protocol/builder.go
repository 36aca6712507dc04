package protocol

import (
	"fmt"

	"github.com/cds55xx/servobus"
)

// Protocol builds command packets addressed to a single servo id. It
// holds no I/O state; a Bus engine sends the bytes it produces. The
// EEPROM, RAM and Motor accessors return thin views over the same id
// that add typed, unit-aware setters on top of the raw Command builder.
type Protocol struct {
	id byte
}

// New returns a Protocol addressing the given servo id.
func New(id byte) Protocol {
	return Protocol{id: id}
}

// Broadcast returns a Protocol addressing every servo on the bus.
func Broadcast() Protocol {
	return Protocol{id: BroadcastID}
}

// ID returns the servo id this Protocol addresses.
func (p Protocol) ID() byte { return p.id }

// Command assembles a full command packet: header, id, length,
// instruction, optional address byte, parameters and checksum. address
// is nil for instructions that carry none (PING, ACTION, RESET,
// BOOTLOADER); callers building those pass nil.
func (p Protocol) Command(instr Instruction, address *byte, params []byte) []byte {
	var body []byte
	if instr.hasAddress() && address != nil {
		body = append(body, *address)
	}
	body = append(body, params...)

	length := byte(len(body) + 2) // instruction + params... + checksum byte itself
	checksumInput := make([]byte, 0, 2+len(body)+3)
	checksumInput = append(checksumInput, p.id, length, byte(instr))
	checksumInput = append(checksumInput, body...)

	frame := make([]byte, 0, 4+len(body)+1)
	frame = append(frame, header[0], header[1])
	frame = append(frame, checksumInput...)
	frame = append(frame, Checksum(checksumInput))
	return frame
}

// Ping builds a PING command packet.
func (p Protocol) Ping() []byte {
	return p.Command(InstructionPing, nil, nil)
}

// Reset builds a RESET command packet, restoring EEPROM to factory
// defaults.
func (p Protocol) Reset() []byte {
	return p.Command(InstructionReset, nil, nil)
}

// Action builds an ACTION command packet, committing queued REG_WRITE
// values. Action has no address byte.
func (p Protocol) Action() []byte {
	return p.Command(InstructionAction, nil, nil)
}

// ResetToBootloader builds the vendor-specific bootloader-entry command
// packet (see DESIGN.md for the instruction code).
func (p Protocol) ResetToBootloader() []byte {
	return p.Command(InstructionBootloader, nil, nil)
}

// Read builds a READ command packet requesting length bytes starting at
// addr.
func (p Protocol) Read(addr byte, length byte) []byte {
	return p.Command(InstructionRead, &addr, []byte{length})
}

// Write builds a WRITE command packet storing data at addr, applied
// immediately.
func (p Protocol) Write(addr byte, data ...byte) []byte {
	return p.Command(InstructionWrite, &addr, data)
}

// RegWrite builds a REG_WRITE command packet: data is staged at addr but
// only takes effect once an ACTION is broadcast.
func (p Protocol) RegWrite(addr byte, data ...byte) []byte {
	return p.Command(InstructionRegWrite, &addr, data)
}

// ServoBlock is one servo's parameter block within a SYNC_WRITE command:
// its id paired with exactly writeLength bytes of register data.
type ServoBlock struct {
	ID   byte
	Data []byte
}

// ShortPayload reports whether block's data is shorter than want, the
// condition SyncWrite rejects with servobus.ErrProtocol.
func ShortPayload(block ServoBlock, want int) bool {
	return len(block.Data) < want
}

// SyncWrite builds a single broadcast SYNC_WRITE packet writing
// writeLength bytes at address to every servo listed in blocks, each
// with its own data. Every block must carry exactly writeLength bytes.
func SyncWrite(address byte, writeLength int, blocks []ServoBlock) ([]byte, error) {
	params := make([]byte, 0, 2+len(blocks)*(1+writeLength))
	params = append(params, address, byte(writeLength))
	for _, b := range blocks {
		if ShortPayload(b, writeLength) || len(b.Data) > writeLength {
			return nil, fmt.Errorf("%w: sync write block for id %d has %d bytes, want %d", servobus.ErrProtocol, b.ID, len(b.Data), writeLength)
		}
		params = append(params, b.ID)
		params = append(params, b.Data...)
	}
	return Broadcast().Command(InstructionSyncWrite, nil, params), nil
}

// EEPROM returns a view providing typed accessors over this servo's
// EEPROM register block.
func (p Protocol) EEPROM() EEPROM { return EEPROM{p} }

// RAM returns a view providing typed accessors over this servo's RAM
// register block.
func (p Protocol) RAM() RAM { return RAM{p} }

// Motor returns a view providing typed motion commands built from the
// RAM register block's goal-position and speed registers.
func (p Protocol) Motor() Motor { return Motor{p} }

// EEPROM is a typed accessor view over a servo's EEPROM register block.
type EEPROM struct{ p Protocol }

// SetID builds a WRITE packet changing the servo's bus id.
func (e EEPROM) SetID(id byte) []byte {
	return e.p.Write(FieldID.Address, id)
}

// BaudCode maps a baud rate in bits per second to its register code, or
// ok=false if the rate has no entry in the table.
func BaudCode(bps int) (code byte, ok bool) {
	table := map[int]byte{
		1000000: 0x01,
		500000:  0x03,
		400000:  0x04,
		250000:  0x07,
		200000:  0x09,
		115200:  0x10,
		57600:   0x22,
		19200:   0x67,
		9600:    0xCF,
	}
	c, ok := table[bps]
	return c, ok
}

// SetBaudrate builds a WRITE packet setting the servo's baud rate,
// looked up from the fixed baud table. A rate with no table entry maps
// to code 0x01 (1 Mbaud).
func (e EEPROM) SetBaudrate(bps int) ([]byte, error) {
	code, ok := BaudCode(bps)
	if !ok {
		code = 0x01
	}
	return e.p.Write(FieldBaudrate.Address, code), nil
}

// SetAngleLimit builds the WRITE packet(s) configuring the CW and CCW
// angle limits, in degrees. Angle limits truncate rather than round when
// converted to registers (see DegreesToRegisterTruncated). Setting cw to
// 0 with a nonzero ccw is wheel-mode's "CCW-only" convention: only the
// CCW register is written. Fails with servobus.ErrOutOfRange if either
// angle falls outside 0-300 degrees or if cw is not less than ccw.
func (e EEPROM) SetAngleLimit(cwDegrees, ccwDegrees float64) ([]byte, error) {
	ccw, err := DegreesToRegisterTruncated(ccwDegrees)
	if err != nil {
		return nil, err
	}
	if cwDegrees == 0 {
		return e.p.Write(FieldCCWAngleLimit.Address, Word(ccw)...), nil
	}
	if cwDegrees >= ccwDegrees {
		return nil, fmt.Errorf("%w: cw angle limit %.2f must be less than ccw %.2f", servobus.ErrOutOfRange, cwDegrees, ccwDegrees)
	}
	cw, err := DegreesToRegisterTruncated(cwDegrees)
	if err != nil {
		return nil, err
	}
	data := append(Word(cw), Word(ccw)...)
	return e.p.Write(FieldCWAngleLimit.Address, data...), nil
}

// SetMaxTemperature builds a WRITE packet setting the shutdown
// temperature limit in raw degrees Celsius. Fails with
// servobus.ErrOutOfRange above the servo's 80 degree ceiling.
func (e EEPROM) SetMaxTemperature(celsius byte) ([]byte, error) {
	if celsius > maxTemperatureC {
		return nil, fmt.Errorf("%w: temperature %d exceeds %d degrees", servobus.ErrOutOfRange, celsius, maxTemperatureC)
	}
	return e.p.Write(FieldMaxTemperature.Address, celsius), nil
}

// SetVoltageRange builds a WRITE packet setting MIN_VOLTAGE and
// MAX_VOLTAGE together in a single two-byte write, in volts. Fails with
// servobus.ErrOutOfRange if either endpoint falls outside 6.0-10.0V.
func (e EEPROM) SetVoltageRange(minVolts, maxVolts float64) ([]byte, error) {
	minReg, err := VoltageToRegister(minVolts)
	if err != nil {
		return nil, err
	}
	maxReg, err := VoltageToRegister(maxVolts)
	if err != nil {
		return nil, err
	}
	return e.p.Write(FieldMinVoltage.Address, minReg, maxReg), nil
}

// SetReturnDelay builds a WRITE packet setting RETURN_DELAY_TIME, in 2us
// units. Fails with servobus.ErrOutOfRange above the register's 0-254
// domain; 255 is reserved.
func (e EEPROM) SetReturnDelay(raw byte) ([]byte, error) {
	if raw > maxReturnDelay {
		return nil, fmt.Errorf("%w: return delay %d exceeds %d", servobus.ErrOutOfRange, raw, maxReturnDelay)
	}
	return e.p.Write(FieldReturnDelayTime.Address, raw), nil
}

// SetMaxTorque builds a WRITE packet setting the raw 10-bit torque
// limit.
func (e EEPROM) SetMaxTorque(raw uint16) ([]byte, error) {
	if raw > maxAngleRegister {
		return nil, fmt.Errorf("%w: torque %d exceeds 10-bit range", servobus.ErrOutOfRange, raw)
	}
	return e.p.Write(FieldMaxTorque.Address, Word(raw)...), nil
}

// StatusReturnLevel selects which commands elicit a status packet.
type StatusReturnLevel byte

const (
	StatusReturnNone     StatusReturnLevel = 0
	StatusReturnReadOnly StatusReturnLevel = 1
	StatusReturnAll      StatusReturnLevel = 2
)

// SetStatusReturnLevel builds a WRITE packet selecting the servo's
// status-return policy.
func (e EEPROM) SetStatusReturnLevel(level StatusReturnLevel) []byte {
	return e.p.Write(FieldStatusReturnLevel.Address, byte(level))
}

// RAM is a typed accessor view over a servo's RAM register block.
type RAM struct{ p Protocol }

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SetTorqueEnabled builds a WRITE packet enabling or disabling torque.
func (r RAM) SetTorqueEnabled(enabled bool) []byte {
	return r.p.Write(FieldTorqueEnable.Address, boolByte(enabled))
}

// SetLEDEnabled builds a WRITE packet turning the status LED on or off.
func (r RAM) SetLEDEnabled(enabled bool) []byte {
	return r.p.Write(FieldLED.Address, boolByte(enabled))
}

// SetAccelerationDeceleration builds a WRITE packet setting the raw
// acceleration and deceleration registers together.
func (r RAM) SetAccelerationDeceleration(accel, decel byte) []byte {
	return r.p.Write(FieldAcceleration.Address, accel, decel)
}

// SetMinPWM builds a WRITE packet setting the raw 10-bit minimum PWM,
// little-endian. Fails with servobus.ErrOutOfRange above the 10-bit
// range.
func (r RAM) SetMinPWM(raw uint16) ([]byte, error) {
	if raw > maxAngleRegister {
		return nil, fmt.Errorf("%w: min pwm %d exceeds 10-bit range", servobus.ErrOutOfRange, raw)
	}
	return r.p.Write(FieldMinPWM.Address, Word(raw)...), nil
}

// SetLock builds a WRITE packet setting the EEPROM write-protect lock.
func (r RAM) SetLock(locked bool) []byte {
	return r.p.Write(FieldLock.Address, boolByte(locked))
}

// Motor issues motion commands built from the RAM goal-position and
// moving-speed registers.
type Motor struct{ p Protocol }

// MoveTo builds a WRITE packet moving the servo to the given angle in
// degrees, applied immediately. Fails with servobus.ErrOutOfRange
// outside 0-300 degrees.
func (m Motor) MoveTo(degrees float64) ([]byte, error) {
	reg, err := DegreesToRegister(degrees)
	if err != nil {
		return nil, err
	}
	return m.p.Write(FieldGoalPosition.Address, Word(reg)...), nil
}

// MoveToWithSpeed builds a single WRITE packet spanning GOAL_POSITION
// and MOVING_SPEED, moving to the given angle in degrees at the given
// speed in joint-mode RPM. Fails with servobus.ErrOutOfRange if degrees
// falls outside 0-300 or rpm outside (0, 62].
func (m Motor) MoveToWithSpeed(degrees, rpm float64) ([]byte, error) {
	posReg, err := DegreesToRegister(degrees)
	if err != nil {
		return nil, err
	}
	speedReg, err := RPMToServoRegister(rpm)
	if err != nil {
		return nil, err
	}
	data := append(Word(posReg), Word(speedReg)...)
	return m.p.Write(FieldGoalPosition.Address, data...), nil
}

// MoveToAsync builds a REG_WRITE packet (instead of WRITE) staging a
// move to the given angle, taking effect only once ACTION is broadcast.
// Fails with servobus.ErrOutOfRange outside 0-300 degrees.
func (m Motor) MoveToAsync(degrees float64) ([]byte, error) {
	reg, err := DegreesToRegister(degrees)
	if err != nil {
		return nil, err
	}
	return m.p.RegWrite(FieldGoalPosition.Address, Word(reg)...), nil
}

// SetWheelSpeed builds a WRITE packet driving the servo in continuous
// wheel mode at the given signed RPM. Fails with servobus.ErrOutOfRange
// outside [-62, 62] RPM.
func (m Motor) SetWheelSpeed(rpm float64) ([]byte, error) {
	reg, err := RPMToWheelRegister(rpm)
	if err != nil {
		return nil, err
	}
	return m.p.Write(FieldMovingSpeed.Address, Word(reg)...), nil
}
