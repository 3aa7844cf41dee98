package resampler

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Rate is a streaming mono sample-rate converter. The zero value is
// unconfigured and passes data through; call Configure before use when
// conversion may be needed. Rate is not safe for concurrent use.
type Rate struct {
	srcRate int
	dstRate int
	rs      resampling.Resampler
}

// Configure prepares the converter for srcRate -> dstRate. Equal rates
// put the converter in bypass mode. Reconfiguring discards any filter
// state from the previous configuration.
func (r *Rate) Configure(srcRate, dstRate int) error {
	r.srcRate = srcRate
	r.dstRate = dstRate
	r.rs = nil
	if srcRate == dstRate {
		return nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("resampler: configure %d->%d: %w", srcRate, dstRate, err)
	}
	r.rs = rs
	return nil
}

// Bypassed reports whether Process returns its input untouched.
func (r *Rate) Bypassed() bool {
	return r.rs == nil
}

// Process converts one block of mono samples. In bypass mode the input
// slice is returned as-is. The amount returned per call may differ from
// the rate ratio while the filter fills; totals converge over a stream.
func (r *Rate) Process(in []int16) ([]int16, error) {
	if r.rs == nil {
		return in, nil
	}

	input := make([]float64, len(in))
	for i, s := range in {
		input[i] = float64(s) / 32768.0
	}
	output, err := r.rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampler: process %d->%d: %w", r.srcRate, r.dstRate, err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		switch {
		case s >= 1.0:
			out[i] = 32767
		case s <= -1.0:
			out[i] = -32768
		default:
			out[i] = int16(s * 32767.0)
		}
	}
	return out, nil
}
