// Package utils holds small helpers shared across layers.
package utils

func ToPtr[T any](v T) *T {
	return &v
}

// IsTrue treats a nil *bool as false.
func IsTrue(b *bool) bool {
	return b != nil && *b
}
