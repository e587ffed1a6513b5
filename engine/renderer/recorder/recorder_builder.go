package recorder

// RecorderBuilderOption is a functional option applied to a recorder during construction.
type RecorderBuilderOption func(*recorder)

// WithFlipY makes SetViewport emit viewports with a negative height so clip-space +Y points up.
//
// Parameters:
//   - flip: whether to flip
//
// Returns:
//   - RecorderBuilderOption: option function to apply
func WithFlipY(flip bool) RecorderBuilderOption {
	return func(r *recorder) {
		r.flipY = flip
	}
}
