package cmp

// EqEq is == as a predicate function, for the *With comparator variants.
func EqEq[T comparable](a, b T) bool {
	return a == b
}
