package domain

import "fmt"

// Method is a supported third-party processing method.
//
// This is a closed set: code selecting behavior per method switches over it
// exhaustively and maps anything else to ErrUnsupportedMethod.
type Method string

const (
	MethodSuite2p Method = "suite2p"

	// Declared, storable, but has no loader implementation.
	// Keys selecting it stay pending with ErrUnsupportedMethod.
	MethodCaiman Method = "caiman"
)

func (m Method) String() string {
	return string(m)
}

// Methods lists every declared method, implemented or not.
// Seeded as lookup rows at schema initialization.
func Methods() []Method {
	return []Method{MethodSuite2p, MethodCaiman}
}

func AsMethod(s string) (Method, error) {
	switch s {
	case string(MethodSuite2p):
		return MethodSuite2p, nil
	case string(MethodCaiman):
		return MethodCaiman, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMethod, s)
	}
}
