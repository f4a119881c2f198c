package leads

// Stage is the position of a conversation within the collection workflow.
type Stage string

const (
	StageInitial              Stage = "INITIAL"
	StageCustomerTypeSelected Stage = "CUSTOMER_TYPE_SELECTED"
	StageNameRequest          Stage = "NAME_REQUEST"
	StageNameCollected        Stage = "NAME_COLLECTED"
	StagePhoneRequest         Stage = "PHONE_REQUEST"
	StagePhoneCollected       Stage = "PHONE_COLLECTED"
	StageOTPSent              Stage = "OTP_SENT"
	StageVerified             Stage = "VERIFIED"
	StageRequirementGathering Stage = "REQUIREMENT_GATHERING"

	// Error substates loop back to their collection stage on the next turn.
	StagePhoneInvalid Stage = "PHONE_INVALID"
	StageOTPInvalid   Stage = "OTP_INVALID"
)

var stageOrder = map[Stage]int{
	StageInitial:              0,
	StageCustomerTypeSelected: 1,
	StageNameRequest:          2,
	StageNameCollected:        3,
	StagePhoneRequest:         4,
	StagePhoneInvalid:         4,
	StagePhoneCollected:       5,
	StageOTPSent:              6,
	StageOTPInvalid:           6,
	StageVerified:             7,
	StageRequirementGathering: 8,
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageOrder[s]
	return ok
}

// CollectionStage maps error substates to the stage that re-requests the field.
func (s Stage) CollectionStage() Stage {
	switch s {
	case StagePhoneInvalid:
		return StagePhoneRequest
	case StageOTPInvalid:
		return StageOTPSent
	default:
		return s
	}
}

// CollectsName reports whether a name is still being asked for in this stage.
func (s Stage) CollectsName() bool {
	return s == StageCustomerTypeSelected || s == StageNameRequest
}

// IsError reports whether s is an error substate.
func (s Stage) IsError() bool {
	return s == StagePhoneInvalid || s == StageOTPInvalid
}

// Before reports whether s precedes other in the workflow. Error substates
// share the rank of their collection stage.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

func (s Stage) String() string {
	return string(s)
}
