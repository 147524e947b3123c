//go:build !linux

package clock

// Monotonic is only available on linux.
type Monotonic struct{ System }

// NewMonotonic always fails outside linux.
func NewMonotonic() (*Monotonic, error) {
	return nil, ErrUnsupported
}
