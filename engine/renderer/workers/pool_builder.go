package workers

import "github.com/Carmen-Shannon/oxy-frame/engine/renderer/recorder"

// PoolBuilderOption is a functional option applied to a pool during construction.
type PoolBuilderOption func(*pool)

// WithRecorderOptions sets the options every worker's recorder is created with.
//
// Parameters:
//   - options: recorder options, e.g. recorder.WithFlipY
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithRecorderOptions(options ...recorder.RecorderBuilderOption) PoolBuilderOption {
	return func(p *pool) {
		p.recOptions = append(p.recOptions, options...)
	}
}
