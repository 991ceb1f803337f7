package enums

import "fmt"

// ActionType distinguishes the payment flows a blink can trigger.
type ActionType string

const (
	ActionTypeTransfer ActionType = "TRANSFER"
	ActionTypePhysical ActionType = "PHYSICAL"
	ActionTypeSPLToken ActionType = "SPL_TOKEN"
)

var validActionTypes = []ActionType{
	ActionTypeTransfer,
	ActionTypePhysical,
	ActionTypeSPLToken,
}

// String implements fmt.Stringer.
func (a ActionType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActionType.
func (a ActionType) IsValid() bool {
	for _, candidate := range validActionTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// RequiresShipping reports whether the flow collects shipping details.
func (a ActionType) RequiresShipping() bool {
	return a == ActionTypePhysical
}

// ParseActionType converts raw input into an ActionType.
func ParseActionType(value string) (ActionType, error) {
	for _, candidate := range validActionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid action type %q", value)
}
