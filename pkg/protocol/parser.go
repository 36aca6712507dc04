package protocol

import (
	"fmt"
	"strings"

	"github.com/cds55xx/servobus"
)

// ErrorFlags decodes the single status byte every response packet
// carries, one bit per alarm condition.
type ErrorFlags byte

const (
	ErrorInputVoltage  ErrorFlags = 1 << 0
	ErrorAngleLimit    ErrorFlags = 1 << 1
	ErrorOverheating   ErrorFlags = 1 << 2
	ErrorRange         ErrorFlags = 1 << 3
	ErrorChecksum      ErrorFlags = 1 << 4
	ErrorOverload      ErrorFlags = 1 << 5
	ErrorInstruction   ErrorFlags = 1 << 6
)

// None reports whether no error bit is set.
func (f ErrorFlags) None() bool { return f == 0 }

// Describe returns a fixed, stably ordered, comma-joined list of the
// names of every set error bit, for logging. An empty string means no
// error bit is set.
func (f ErrorFlags) Describe() string {
	var names []string
	bits := []struct {
		flag ErrorFlags
		name string
	}{
		{ErrorInputVoltage, "input voltage"},
		{ErrorAngleLimit, "angle limit"},
		{ErrorOverheating, "overheating"},
		{ErrorRange, "range"},
		{ErrorChecksum, "checksum"},
		{ErrorOverload, "overload"},
		{ErrorInstruction, "instruction"},
	}
	for _, b := range bits {
		if f&b.flag != 0 {
			names = append(names, b.name)
		}
	}
	return strings.Join(names, ", ")
}

// ValidateAndExtract checks that buf is a complete, checksum-valid
// status packet and returns its decoded fields. buf must begin exactly
// at the 0xFF 0xFF marker; callers resynchronize on the raw byte stream
// before calling this.
func ValidateAndExtract(buf []byte) (id byte, errFlags ErrorFlags, payload []byte, err error) {
	if len(buf) < 6 {
		return 0, 0, nil, fmt.Errorf("%w: frame too short (%d bytes)", servobus.ErrTooShort, len(buf))
	}
	if buf[0] != header[0] || buf[1] != header[1] {
		return 0, 0, nil, fmt.Errorf("%w: missing 0xFF 0xFF marker", servobus.ErrHeaderNotFound)
	}
	id = buf[2]
	length := int(buf[3])
	if length < 2 {
		return 0, 0, nil, fmt.Errorf("%w: length field %d below minimum of 2", servobus.ErrProtocol, length)
	}
	total := 4 + length
	if len(buf) < total {
		return 0, 0, nil, fmt.Errorf("%w: frame declares %d bytes, have %d", servobus.ErrTooShort, total, len(buf))
	}
	body := buf[2 : total-1]
	want := Checksum(body)
	got := buf[total-1]
	if want != got {
		return 0, 0, nil, fmt.Errorf("%w: computed 0x%02x, got 0x%02x", servobus.ErrBadChecksum, want, got)
	}
	errFlags = ErrorFlags(buf[4])
	payload = append([]byte(nil), buf[5:total-1]...)
	return id, errFlags, payload, nil
}

// ByteToInt interprets a single-byte parameter as an unsigned integer.
func ByteToInt(b byte) int { return int(b) }

// WordToInt interprets a little-endian two-byte parameter pair as an
// unsigned integer.
func WordToInt(lo, hi byte) int {
	return int(lo) | int(hi)<<8
}

// PositionToDegrees decodes a little-endian position register pair to
// degrees.
func PositionToDegrees(lo, hi byte) float64 {
	return RegisterToDegrees(uint16(WordToInt(lo, hi)))
}

// SpeedToServoRPM decodes a little-endian joint-mode speed register pair
// to RPM.
func SpeedToServoRPM(lo, hi byte) float64 {
	return ServoRegisterToRPM(uint16(WordToInt(lo, hi)))
}

// SpeedToWheelRPM decodes a little-endian wheel-mode speed register pair
// to a signed RPM value.
func SpeedToWheelRPM(lo, hi byte) float64 {
	return WheelRegisterToRPM(uint16(WordToInt(lo, hi)))
}

// EEPROMBlock holds every field of an EEPROM read decoded into
// engineering units.
type EEPROMBlock struct {
	ModelNumber       int
	Version           int
	ID                byte
	Baudrate          byte
	ReturnDelayTime   int
	CWAngleLimit      float64
	CCWAngleLimit     float64
	MaxTemperature    int
	MinVoltage        float64
	MaxVoltage        float64
	MaxTorque         int
	StatusReturnLevel StatusReturnLevel
	AlarmLED          byte
	AlarmShutdown     byte
}

// ParseEEPROMBlock decodes a contiguous read of the full EEPROM register
// range (addresses 0x00 through 0x12) into an EEPROMBlock. data must
// have exactly one byte per register address covered by EEPROMFields.
func ParseEEPROMBlock(data []byte) (EEPROMBlock, error) {
	want := fieldSpan(EEPROMFields)
	if len(data) != want {
		return EEPROMBlock{}, fmt.Errorf("%w: eeprom block is %d bytes, want %d", servobus.ErrTooShort, len(data), want)
	}
	var b EEPROMBlock
	b.ModelNumber = WordToInt(data[0], data[1])
	b.Version = ByteToInt(data[2])
	b.ID = data[3]
	b.Baudrate = data[4]
	b.ReturnDelayTime = ByteToInt(data[5])
	b.CWAngleLimit = RegisterToDegrees(uint16(WordToInt(data[6], data[7])))
	b.CCWAngleLimit = RegisterToDegrees(uint16(WordToInt(data[8], data[9])))
	b.MaxTemperature = ByteToInt(data[10])
	b.MinVoltage = RegisterToVoltage(data[11])
	b.MaxVoltage = RegisterToVoltage(data[12])
	b.MaxTorque = WordToInt(data[13], data[14])
	b.StatusReturnLevel = StatusReturnLevel(data[15])
	b.AlarmLED = data[16]
	b.AlarmShutdown = data[17]
	return b, nil
}

// RAMBlock holds every field of a RAM read decoded into engineering
// units.
type RAMBlock struct {
	TorqueEnable        bool
	LED                 bool
	CWComplianceMargin  byte
	CCWComplianceMargin byte
	CWComplianceSlope   byte
	CCWComplianceSlope  byte
	GoalPosition        float64
	MovingSpeedRaw      uint16
	Acceleration        byte
	Deceleration        byte
	PresentPosition     float64
	PresentSpeedRaw     uint16
	PresentLoad         int
	PresentVoltage      float64
	Temperature         int
	RegWriteFlag        bool
	MovingFlag          bool
	Lock                bool
	MinPWM              int
}

// ParseRAMBlock decodes a contiguous read of the full RAM register range
// (addresses 0x18 through 0x31) into a RAMBlock. data must have exactly
// one byte per register address covered by RAMFields.
//
// MovingSpeedRaw and PresentSpeedRaw are left undecoded: whether the
// register is a joint-mode or wheel-mode speed depends on the angle
// limit configuration, which this block does not carry. Callers use
// SpeedToServoRPM or SpeedToWheelRPM once mode is known.
func ParseRAMBlock(data []byte) (RAMBlock, error) {
	want := fieldSpan(RAMFields)
	if len(data) != want {
		return RAMBlock{}, fmt.Errorf("%w: ram block is %d bytes, want %d", servobus.ErrTooShort, len(data), want)
	}
	var b RAMBlock
	b.TorqueEnable = data[0] != 0
	b.LED = data[1] != 0
	b.CWComplianceMargin = data[2]
	b.CCWComplianceMargin = data[3]
	b.CWComplianceSlope = data[4]
	b.CCWComplianceSlope = data[5]
	b.GoalPosition = PositionToDegrees(data[6], data[7])
	b.MovingSpeedRaw = uint16(WordToInt(data[8], data[9]))
	b.Acceleration = data[10]
	b.Deceleration = data[11]
	b.PresentPosition = PositionToDegrees(data[12], data[13])
	b.PresentSpeedRaw = uint16(WordToInt(data[14], data[15]))
	b.PresentLoad = WordToInt(data[16], data[17])
	b.PresentVoltage = RegisterToVoltage(data[18])
	b.Temperature = ByteToInt(data[19])
	b.RegWriteFlag = data[20] != 0
	b.MovingFlag = data[21] != 0
	b.Lock = data[22] != 0
	b.MinPWM = WordToInt(data[23], data[24])
	return b, nil
}

func fieldSpan(fields []Field) int {
	n := 0
	for _, f := range fields {
		n += f.Width
	}
	return n
}
