package models

// Sample is one reading across every channel. Its length always equals the session's channel count.
type Sample []float64

// NewSample pads values with zeros, or truncates them, so the result has exactly n entries.
func NewSample(values []float64, n int) Sample {
	sample := make(Sample, n)
	copy(sample, values)
	return sample
}

// Value returns the value for channel i, or 0 if the sample is short.
func (s Sample) Value(i int) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return s[i]
}
