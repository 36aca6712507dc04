package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cds55xx/servobus"
)

func TestChecksum(t *testing.T) {
	// id=1, len=2, instr=PING -> {0x01,0x02,0x01}, checksum 0xFB.
	got := Checksum([]byte{0x01, 0x02, byte(InstructionPing)})
	assert.Equal(t, byte(0xFB), got)
}

func TestPing(t *testing.T) {
	frame := New(1).Ping()
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x02, 0x01, 0xFB}, frame)
}

func TestSetID(t *testing.T) {
	// id=1 setting its own id to 0.
	frame := New(1).EEPROM().SetID(0x00)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x04, 0x03, 0x03, 0x00, 0xF4}, frame)
}

func TestSetBaudrate(t *testing.T) {
	frame, err := New(1).EEPROM().SetBaudrate(500000)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x04, 0x03, 0x04, 0x03, 0xF0}, frame)
}

func TestSetBaudrateUnsupported(t *testing.T) {
	// An unknown rate falls back to code 0x01 (1 Mbaud).
	frame, err := New(1).EEPROM().SetBaudrate(12345)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x01, 0x04, 0x03, 0x04, 0x01, 0xF2}, frame)
}

func TestSetAngleLimitCCWOnly(t *testing.T) {
	// cw=0 selects wheel mode's CCW-only write; 150 degrees truncates to 511.
	frame, err := New(0).EEPROM().SetAngleLimit(0, 150)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x05, 0x03, 0x08, 0xFF, 0x01, 0xEF}, frame)
}

func TestSetAngleLimitRejectsCWNotLessThanCCW(t *testing.T) {
	_, err := New(0).EEPROM().SetAngleLimit(150, 100)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetAngleLimitRejectsOutOfRangeDegrees(t *testing.T) {
	_, err := New(0).EEPROM().SetAngleLimit(10, 400)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetMaxTemperature(t *testing.T) {
	frame, err := New(0).EEPROM().SetMaxTemperature(0x50)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x04, 0x03, 0x0B, 0x50, 0x9D}, frame)
}

func TestSetMaxTemperatureOutOfRange(t *testing.T) {
	_, err := New(0).EEPROM().SetMaxTemperature(81)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetVoltageRange(t *testing.T) {
	frame, err := New(0).EEPROM().SetVoltageRange(6, 9)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x05, 0x03, 0x0C, 0x3C, 0x5A, 0x55}, frame)
}

func TestSetVoltageRangeOutOfRange(t *testing.T) {
	_, err := New(0).EEPROM().SetVoltageRange(5, 9)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetReturnDelay(t *testing.T) {
	frame, err := New(0).EEPROM().SetReturnDelay(254)
	require.NoError(t, err)
	assert.Equal(t, byte(254), frame[6])
}

func TestSetReturnDelayOutOfRange(t *testing.T) {
	_, err := New(0).EEPROM().SetReturnDelay(255)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetMaxTorque(t *testing.T) {
	frame, err := New(0).EEPROM().SetMaxTorque(511)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x05, 0x03, 0x0E, 0xFF, 0x01, 0xE9}, frame)
}

func TestSetMaxTorqueOutOfRange(t *testing.T) {
	_, err := New(0).EEPROM().SetMaxTorque(2000)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetStatusReturnLevel(t *testing.T) {
	frame := New(0).EEPROM().SetStatusReturnLevel(StatusReturnNone)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x04, 0x03, 0x10, 0x00, 0xE8}, frame)
}

func TestSetTorqueAndLEDDisabled(t *testing.T) {
	torque := New(0).RAM().SetTorqueEnabled(false)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x04, 0x03, 0x18, 0x00, 0xE0}, torque)

	led := New(0).RAM().SetLEDEnabled(false)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x04, 0x03, 0x19, 0x00, 0xDF}, led)
}

func TestMoveToWithSpeed(t *testing.T) {
	// 150 degrees rounds to position register 512; 31 RPM is exactly
	// half of the 62 RPM joint-mode ceiling, giving speed register 512.
	frame, err := New(0).Motor().MoveToWithSpeed(150.0, 31.0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x07, 0x03, 0x1E, 0x00, 0x02, 0x00, 0x02, 0xD3}, frame)
}

func TestMoveToWithSpeedRejectsZeroSpeed(t *testing.T) {
	_, err := New(0).Motor().MoveToWithSpeed(150.0, 0)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestMoveToRejectsOutOfRangeAngle(t *testing.T) {
	_, err := New(0).Motor().MoveTo(-1)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestSetAccelerationDeceleration(t *testing.T) {
	frame := New(0).RAM().SetAccelerationDeceleration(4, 6)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x05, 0x03, 0x22, 0x04, 0x06, 0xCB}, frame)
}

func TestMoveTo(t *testing.T) {
	// 150 degrees rounds to register 512, distinct from the truncated
	// 511 angle-limit encoding of the same 150 degrees.
	frame, err := New(0).Motor().MoveTo(150.0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x05, 0x03, 0x1E, 0x00, 0x02, 0xD7}, frame)
}

func TestSetMinPWM(t *testing.T) {
	frame, err := New(0).RAM().SetMinPWM(90)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x00, 0x05, 0x03, 0x30, 0x5A, 0x00, 0x6D}, frame)
}

func TestSetMinPWMOutOfRange(t *testing.T) {
	_, err := New(0).RAM().SetMinPWM(1024)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestActionBroadcastHasNoAddressByte(t *testing.T) {
	frame := Broadcast().Action()
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFE, 0x02, 0x05, 0xFA}, frame)
}

func TestSyncWrite(t *testing.T) {
	blocks := []ServoBlock{
		{ID: 1, Data: []byte{0x00, 0x02}},
		{ID: 2, Data: []byte{0xFF, 0x01}},
	}
	frame, err := SyncWrite(FieldGoalPosition.Address, 2, blocks)
	require.NoError(t, err)
	assert.Equal(t, byte(0xFE), frame[2])
	assert.Equal(t, InstructionSyncWrite, Instruction(frame[4]))
}

func TestSyncWriteMismatchedLength(t *testing.T) {
	blocks := []ServoBlock{{ID: 1, Data: []byte{0x00}}}
	_, err := SyncWrite(FieldGoalPosition.Address, 2, blocks)
	assert.ErrorIs(t, err, servobus.ErrProtocol)
}

func TestValidateAndExtractRoundTrip(t *testing.T) {
	// status packet from id 1, no errors, one param byte 0x20
	body := []byte{0x01, 0x03, 0x00, 0x20}
	frame := append([]byte{0xFF, 0xFF}, body...)
	frame = append(frame, Checksum(body))

	id, errFlags, payload, err := ValidateAndExtract(frame)
	require.NoError(t, err)
	assert.Equal(t, byte(1), id)
	assert.True(t, errFlags.None())
	assert.Equal(t, []byte{0x20}, payload)
}

func TestValidateAndExtractBadChecksum(t *testing.T) {
	frame := []byte{0xFF, 0xFF, 0x01, 0x03, 0x00, 0x20, 0x00}
	_, _, _, err := ValidateAndExtract(frame)
	assert.ErrorIs(t, err, servobus.ErrBadChecksum)
}

func TestValidateAndExtractTooShort(t *testing.T) {
	_, _, _, err := ValidateAndExtract([]byte{0xFF, 0xFF, 0x01})
	assert.ErrorIs(t, err, servobus.ErrTooShort)
}

func TestDegreesToRegisterRoundsUp(t *testing.T) {
	reg, err := DegreesToRegister(150.0)
	require.NoError(t, err)
	assert.Equal(t, uint16(512), reg)
}

func TestDegreesToRegisterOutOfRange(t *testing.T) {
	_, err := DegreesToRegister(301)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestDegreesToRegisterTruncatedDown(t *testing.T) {
	reg, err := DegreesToRegisterTruncated(150.0)
	require.NoError(t, err)
	assert.Equal(t, uint16(511), reg)
}

func TestRegisterToDegreesRoundTrip(t *testing.T) {
	assert.InDelta(t, 150.0, RegisterToDegrees(512), 0.2)
}

func TestWheelRegisterDirectionBit(t *testing.T) {
	reg, err := RPMToWheelRegister(-31.0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), reg&wheelDirectionBit)
	assert.InDelta(t, -31.0, WheelRegisterToRPM(reg), 0.2)

	reg, err = RPMToWheelRegister(31.0)
	require.NoError(t, err)
	assert.NotEqual(t, uint16(0), reg&wheelDirectionBit)
	assert.InDelta(t, 31.0, WheelRegisterToRPM(reg), 0.2)
}

func TestRPMToWheelRegisterOutOfRange(t *testing.T) {
	_, err := RPMToWheelRegister(63)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestRPMToServoRegisterRejectsZero(t *testing.T) {
	_, err := RPMToServoRegister(0)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestVoltageToRegisterOutOfRange(t *testing.T) {
	_, err := VoltageToRegister(11)
	assert.ErrorIs(t, err, servobus.ErrOutOfRange)
}

func TestErrorFlagsDescribe(t *testing.T) {
	f := ErrorOverheating | ErrorChecksum
	assert.Equal(t, "overheating, checksum", f.Describe())
}

func TestErrorFlagsDescribeNone(t *testing.T) {
	assert.Equal(t, "", ErrorFlags(0).Describe())
}

func TestParseEEPROMBlock(t *testing.T) {
	data := make([]byte, fieldSpan(EEPROMFields))
	data[3] = 7 // ID
	block, err := ParseEEPROMBlock(data)
	require.NoError(t, err)
	assert.Equal(t, byte(7), block.ID)
}

func TestParseEEPROMBlockWrongSize(t *testing.T) {
	_, err := ParseEEPROMBlock(make([]byte, 3))
	assert.ErrorIs(t, err, servobus.ErrTooShort)
}

func TestParseRAMBlock(t *testing.T) {
	data := make([]byte, fieldSpan(RAMFields))
	data[0] = 1 // torque enable
	block, err := ParseRAMBlock(data)
	require.NoError(t, err)
	assert.True(t, block.TorqueEnable)
}

func TestInstructionString(t *testing.T) {
	assert.Equal(t, "WRITE", InstructionWrite.String())
	assert.Equal(t, "INSTRUCTION(0x7f)", Instruction(0x7f).String())
}
