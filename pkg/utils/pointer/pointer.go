package pointer

// Ref returns a pointer to t. Useful for optional struct fields and
// literals, which cannot be addressed directly.
func Ref[T any](t T) *T {
	return &t
}
