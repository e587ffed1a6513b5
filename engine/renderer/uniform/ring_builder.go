package uniform

// RingBuilderOption is a functional option applied to a ring during construction.
type RingBuilderOption func(*ring)

// WithBindingFactory sets the function that builds each slot's descriptor set.
//
// Parameters:
//   - fn: the factory
//
// Returns:
//   - RingBuilderOption: option function to apply
func WithBindingFactory(fn BindingFactory) RingBuilderOption {
	return func(r *ring) {
		r.binding = fn
	}
}

// WithPackWorkers sets how many goroutines pack instance groups in parallel,
// DefaultPackWorkers when not given. Values below 2 pack on the calling goroutine.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - RingBuilderOption: option function to apply
func WithPackWorkers(n int) RingBuilderOption {
	return func(r *ring) {
		r.packWorkers = n
	}
}
