package protocol

import (
	"fmt"
	"math"

	"github.com/cds55xx/servobus"
)

// Servo geometry and scale constants.
const (
	maxAngleDegrees   = 300.0
	maxAngleRegister  = 1023
	maxServoRPM       = 62.0
	maxWheelRPM       = 62.0
	wheelDirectionBit = 1 << 10
	voltageScale      = 10.0
	minVoltageVolts   = 6.0
	maxVoltageVolts   = 10.0
	maxTemperatureC   = 80
	maxReturnDelay    = 254
)

// DegreesToRegister converts a goal angle in degrees to a 10-bit position
// register value, rounding to the nearest register count. Every
// motion-issuing write (GOAL_POSITION and the position half of a
// move-with-speed command) rounds through this path; 150 degrees lands
// on register 512. Fails with servobus.ErrOutOfRange outside the servo's 0-300
// degree travel.
func DegreesToRegister(degrees float64) (uint16, error) {
	if degrees < 0 || degrees > maxAngleDegrees {
		return 0, fmt.Errorf("%w: angle %.2f outside 0-%.0f degrees", servobus.ErrOutOfRange, degrees, float64(maxAngleDegrees))
	}
	return uint16(math.Round(degrees / maxAngleDegrees * maxAngleRegister)), nil
}

// DegreesToRegisterTruncated converts a limit angle in degrees to a 10-bit
// register value, truncating towards zero instead of rounding. The
// EEPROM angle-limit setter uses this path: 150 degrees encodes as
// register 511, not the 512 that DegreesToRegister would produce. Fails
// with servobus.ErrOutOfRange outside the servo's 0-300 degree travel.
func DegreesToRegisterTruncated(degrees float64) (uint16, error) {
	if degrees < 0 || degrees > maxAngleDegrees {
		return 0, fmt.Errorf("%w: angle %.2f outside 0-%.0f degrees", servobus.ErrOutOfRange, degrees, float64(maxAngleDegrees))
	}
	return uint16(degrees / maxAngleDegrees * maxAngleRegister), nil
}

// RegisterToDegrees converts a 10-bit position register value back to
// degrees. Decoding is pure division; the round/truncate asymmetry only
// applies to encoding.
func RegisterToDegrees(reg uint16) float64 {
	return float64(reg) / maxAngleRegister * maxAngleDegrees
}

// RPMToServoRegister converts a rotational speed in RPM to the 10-bit
// speed register used in joint (servo) mode, where the register is an
// unsigned magnitude. Joint mode has no "stopped" register distinct from
// "minimum nonzero speed", so the domain excludes 0: valid input is
// (0, 62] RPM, and anything outside it fails with servobus.ErrOutOfRange.
func RPMToServoRegister(rpm float64) (uint16, error) {
	if rpm <= 0 || rpm > maxServoRPM {
		return 0, fmt.Errorf("%w: servo-mode speed %.2f outside (0, %.0f] rpm", servobus.ErrOutOfRange, rpm, float64(maxServoRPM))
	}
	return uint16(math.Round(rpm / maxServoRPM * maxAngleRegister)), nil
}

// RPMToWheelRegister converts a signed rotational speed in RPM to the
// 10-bit wheel (continuous rotation) mode speed register, where bit 10
// carries direction: 0 for counter-clockwise, 1 for clockwise, and the
// low 10 bits carry the unsigned magnitude. Fails with servobus.ErrOutOfRange
// outside [-62, 62] RPM.
func RPMToWheelRegister(rpm float64) (uint16, error) {
	if rpm < -maxWheelRPM || rpm > maxWheelRPM {
		return 0, fmt.Errorf("%w: wheel-mode speed %.2f outside [-%.0f, %.0f] rpm", servobus.ErrOutOfRange, rpm, float64(maxWheelRPM), float64(maxWheelRPM))
	}
	direction := uint16(0)
	magnitude := rpm
	if magnitude < 0 {
		magnitude = -magnitude
	} else if magnitude > 0 {
		direction = wheelDirectionBit
	}
	return direction | uint16(math.Round(magnitude/maxWheelRPM*maxAngleRegister)), nil
}

// ServoRegisterToRPM converts a joint-mode speed register back to RPM.
func ServoRegisterToRPM(reg uint16) float64 {
	return float64(reg) / maxAngleRegister * maxServoRPM
}

// WheelRegisterToRPM converts a wheel-mode speed register back to a
// signed RPM value using the direction bit.
func WheelRegisterToRPM(reg uint16) float64 {
	magnitude := reg &^ wheelDirectionBit
	rpm := float64(magnitude) / maxAngleRegister * maxWheelRPM
	if reg&wheelDirectionBit != 0 {
		return rpm
	}
	return -rpm
}

// VoltageToRegister converts a voltage in volts to the raw byte register
// used by MIN_VOLTAGE/MAX_VOLTAGE (tenths of a volt). Fails with
// servobus.ErrOutOfRange outside the servo's 6.0-10.0V supply band.
func VoltageToRegister(volts float64) (byte, error) {
	if volts < minVoltageVolts || volts > maxVoltageVolts {
		return 0, fmt.Errorf("%w: voltage %.2f outside %.1f-%.1f volts", servobus.ErrOutOfRange, volts, float64(minVoltageVolts), float64(maxVoltageVolts))
	}
	return byte(math.Round(volts * voltageScale)), nil
}

// RegisterToVoltage converts a MIN_VOLTAGE/MAX_VOLTAGE raw byte back to
// volts.
func RegisterToVoltage(reg byte) float64 {
	return float64(reg) / voltageScale
}
