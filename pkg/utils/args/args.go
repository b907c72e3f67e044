// Package args adapts parse functions into flag.Value implementations,
// so typed command line flags can share the domain's own parsers.
package args

// Adapter satisfies flag.Value for any type with a String method.
type Adapter[T interface{ String() string }] struct {
	parse func(string) (T, error)
	value T
	isSet bool
}

// Parser wraps parse into a flag.Value. Pass the result to flag.Var.
func Parser[T interface{ String() string }](parse func(string) (T, error)) *Adapter[T] {
	return &Adapter[T]{parse: parse}
}

func (a *Adapter[T]) Set(raw string) error {
	v, err := a.parse(raw)
	if err != nil {
		return err
	}
	a.value, a.isSet = v, true
	return nil
}

func (a *Adapter[T]) String() string {
	if !a.isSet {
		return ""
	}
	return a.value.String()
}

// Value is the parsed flag value, or the zero value when the flag is unset.
func (a Adapter[T]) Value() T { return a.value }

// IsSet reports whether the flag appeared on the command line.
func (a Adapter[T]) IsSet() bool { return a.isSet }
