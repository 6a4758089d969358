package modem

// Int32ToFloat64 maps full scale int32 PCM onto [-1, 1].
func Int32ToFloat64(input []int32) []float64 {
	output := make([]float64, len(input))
	for i, v := range input {
		output[i] = float64(v) / 0x7fffffff
	}
	return output
}

// Float64ToInt32 saturates samples outside [-1, 1].
func Float64ToInt32(input []float64) []int32 {
	output := make([]int32, len(input))
	for i, v := range input {
		v = max(-1, min(1, v))
		output[i] = int32(v * 0x7fffffff)
	}
	return output
}

func Float32ToFloat64(input []float32) []float64 {
	output := make([]float64, len(input))
	for i, v := range input {
		output[i] = float64(v)
	}
	return output
}
