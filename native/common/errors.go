package common

import "errors"

// Kind classifies ledger errors so transports can map them without knowing
// every module's sentinel values.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindInvalidAmount
	KindInvalidAddress
	KindDeadlineExpired
	KindInsufficientBalance
	KindInsufficientToWithdraw
	KindInsufficientReceived
	KindInvalidOutput
	KindInactiveLP
	KindActiveLP
	KindPortalNotRegistered
	KindTokenExists
	KindTokenNotCreated
	KindEmptyAccount
	KindNotOwner
	KindOwnerNotExpired
	KindOwnerRevoked
	KindNativeTokenNotAllowed
	KindDivisionByZero
	KindMathOverflow
	KindDurationLocked
	KindModulePaused
	KindNotFound
	KindState
)

var kindNames = map[Kind]string{
	KindUnknown:                "Unknown",
	KindInvalidAmount:          "InvalidAmount",
	KindInvalidAddress:         "InvalidAddress",
	KindDeadlineExpired:        "DeadlineExpired",
	KindInsufficientBalance:    "InsufficientBalance",
	KindInsufficientToWithdraw: "InsufficientToWithdraw",
	KindInsufficientReceived:   "InsufficientReceived",
	KindInvalidOutput:          "InvalidOutput",
	KindInactiveLP:             "InactiveLP",
	KindActiveLP:               "ActiveLP",
	KindPortalNotRegistered:    "PortalNotRegistered",
	KindTokenExists:            "TokenExists",
	KindTokenNotCreated:        "TokenNotCreated",
	KindEmptyAccount:           "EmptyAccount",
	KindNotOwner:               "NotOwner",
	KindOwnerNotExpired:        "OwnerNotExpired",
	KindOwnerRevoked:           "OwnerRevoked",
	KindNativeTokenNotAllowed:  "NativeTokenNotAllowed",
	KindDivisionByZero:         "DivisionByZero",
	KindMathOverflow:           "MathOverflow",
	KindDurationLocked:         "DurationLocked",
	KindModulePaused:           "ModulePaused",
	KindNotFound:               "NotFound",
	KindState:                  "State",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Error is a classified sentinel error. Values are compared by identity so
// errors.Is works against the package-level sentinels.
type Error struct {
	kind Kind
	msg  string
}

// NewError returns a classified error.
func NewError(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

func (e *Error) Error() string { return e.msg }

// Kind returns the error classification.
func (e *Error) Kind() Kind {
	if e == nil {
		return KindUnknown
	}
	return e.kind
}

// KindOf extracts the classification from an error chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind()
	}
	return KindUnknown
}

// IsKind reports whether the error chain carries the supplied kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
