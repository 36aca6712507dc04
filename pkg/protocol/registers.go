package protocol

// Field describes one addressable byte or word in the EEPROM or RAM
// register map.
type Field struct {
	Name     string
	Address  byte
	Width    int // 1 or 2 bytes
	ReadOnly bool
}

// EEPROM register map, addresses 0x00-0x12.
var (
	FieldModelNumber       = Field{"MODEL_NUMBER", 0x00, 2, true}
	FieldVersion           = Field{"VERSION", 0x02, 1, true}
	FieldID                = Field{"ID", 0x03, 1, false}
	FieldBaudrate          = Field{"BAUDRATE", 0x04, 1, false}
	FieldReturnDelayTime   = Field{"RETURN_DELAY_TIME", 0x05, 1, false}
	FieldCWAngleLimit      = Field{"CW_ANGLE_LIMIT", 0x06, 2, false}
	FieldCCWAngleLimit     = Field{"CCW_ANGLE_LIMIT", 0x08, 2, false}
	FieldMaxTemperature    = Field{"MAX_TEMPERATURE", 0x0B, 1, false}
	FieldMinVoltage        = Field{"MIN_VOLTAGE", 0x0C, 1, false}
	FieldMaxVoltage        = Field{"MAX_VOLTAGE", 0x0D, 1, false}
	FieldMaxTorque         = Field{"MAX_TORQUE", 0x0E, 2, false}
	FieldStatusReturnLevel = Field{"STATUS_RETURN_LEVEL", 0x10, 1, false}
	FieldAlarmLED          = Field{"ALARM_LED", 0x11, 1, false}
	FieldAlarmShutdown     = Field{"ALARM_SHUTDOWN", 0x12, 1, false}
)

// EEPROMFields lists every EEPROM field in canonical (address) order, the
// order ParseEEPROMBlock walks a byte stream in.
var EEPROMFields = []Field{
	FieldModelNumber,
	FieldVersion,
	FieldID,
	FieldBaudrate,
	FieldReturnDelayTime,
	FieldCWAngleLimit,
	FieldCCWAngleLimit,
	FieldMaxTemperature,
	FieldMinVoltage,
	FieldMaxVoltage,
	FieldMaxTorque,
	FieldStatusReturnLevel,
	FieldAlarmLED,
	FieldAlarmShutdown,
}

// RAM register map, addresses 0x18-0x31.
var (
	FieldTorqueEnable         = Field{"TORQUE_ENABLE", 0x18, 1, false}
	FieldLED                  = Field{"LED", 0x19, 1, false}
	FieldCWComplianceMargin   = Field{"CW_COMPLIANCE_MARGIN", 0x1A, 1, false}
	FieldCCWComplianceMargin  = Field{"CCW_COMPLIANCE_MARGIN", 0x1B, 1, false}
	FieldCWComplianceSlope    = Field{"CW_COMPLIANCE_SLOPE", 0x1C, 1, false}
	FieldCCWComplianceSlope   = Field{"CCW_COMPLIANCE_SLOPE", 0x1D, 1, false}
	FieldGoalPosition         = Field{"GOAL_POSITION", 0x1E, 2, false}
	FieldMovingSpeed          = Field{"MOVING_SPEED", 0x20, 2, false}
	FieldAcceleration         = Field{"ACCELERATION", 0x22, 1, false}
	FieldDeceleration         = Field{"DECELERATION", 0x23, 1, false}
	FieldPresentPosition      = Field{"PRESENT_POSITION", 0x24, 2, true}
	FieldPresentSpeed         = Field{"PRESENT_SPEED", 0x26, 2, true}
	FieldPresentLoad          = Field{"PRESENT_LOAD", 0x28, 2, true}
	FieldPresentVoltage       = Field{"PRESENT_VOLTAGE", 0x2A, 1, true}
	FieldTemperature          = Field{"TEMPERATURE", 0x2B, 1, true}
	FieldRegWriteFlag         = Field{"REG_WRITE_FLAG", 0x2C, 1, true}
	FieldMovingFlag           = Field{"MOVING_FLAG", 0x2E, 1, true}
	FieldLock                 = Field{"LOCK", 0x2F, 1, false}
	FieldMinPWM               = Field{"MIN_PWM", 0x30, 2, false}
)

// RAMFields lists every RAM field in canonical (address) order.
var RAMFields = []Field{
	FieldTorqueEnable,
	FieldLED,
	FieldCWComplianceMargin,
	FieldCCWComplianceMargin,
	FieldCWComplianceSlope,
	FieldCCWComplianceSlope,
	FieldGoalPosition,
	FieldMovingSpeed,
	FieldAcceleration,
	FieldDeceleration,
	FieldPresentPosition,
	FieldPresentSpeed,
	FieldPresentLoad,
	FieldPresentVoltage,
	FieldTemperature,
	FieldRegWriteFlag,
	FieldMovingFlag,
	FieldLock,
	FieldMinPWM,
}
