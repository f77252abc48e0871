package voice

// Downsample folds raw level samples into a fixed number of waveform
// buckets, each the average of its span, normalized to 0..1 against the
// loudest bucket. Fewer samples than buckets yields one bucket per sample.
func Downsample(samples []float64, buckets int) []float64 {
	if len(samples) == 0 || buckets <= 0 {
		return nil
	}
	if buckets > len(samples) {
		buckets = len(samples)
	}

	out := make([]float64, buckets)
	span := float64(len(samples)) / float64(buckets)
	for i := 0; i < buckets; i++ {
		start := int(float64(i) * span)
		end := int(float64(i+1) * span)
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}
		sum := 0.0
		for _, s := range samples[start:end] {
			sum += s
		}
		out[i] = sum / float64(end-start)
	}

	peak := 0.0
	for _, v := range out {
		if v > peak {
			peak = v
		}
	}
	if peak > 0 {
		for i := range out {
			out[i] /= peak
		}
	}
	return out
}
