package model

// KeypadType selects which reader variant drives a Keypad.
type KeypadType string

const (
	KeypadDSC     KeypadType = "DSC"
	KeypadWiegand KeypadType = "WIEGAND"
	KeypadMock    KeypadType = "MOCK"
)

// Keypad is one logical reader.
type Keypad struct {
	ID      int
	Deleted bool
	Enabled bool
	Type    KeypadType
}
