package timeseries

// RollingMean returns the trailing moving average of values over the given
// window. The window is truncated at the head of the slice, so every output
// position averages at least one sample. Returns nil when window < 1 or
// values is empty.
func RollingMean(values []float64, window int) []float64 {
	if window < 1 || len(values) == 0 {
		return nil
	}

	out := make([]float64, len(values))

	var sum float64

	for i, v := range values {
		sum += v

		if i >= window {
			sum -= values[i-window]
		}

		width := min(i+1, window)
		out[i] = sum / float64(width)
	}

	return out
}
