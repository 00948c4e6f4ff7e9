package indicators

import "math"

// EMA is the recursive exponential moving average seeded with the first value:
// ema[0] = x[0], ema[t] = a*x[t] + (1-a)*ema[t-1], a = 2/(span+1).
func EMA(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	a := 2 / (float64(span) + 1)
	out[0] = x[0]
	for t := 1; t < len(x); t++ {
		out[t] = a*x[t] + (1-a)*out[t-1]
	}
	return out
}

// Diff returns x[t] - x[t-1]; the first element is NaN.
func Diff(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	out[0] = math.NaN()
	for t := 1; t < len(x); t++ {
		out[t] = x[t] - x[t-1]
	}
	return out
}

// RollingMean is the trailing window mean; NaN until the window is full or when it holds a NaN.
func RollingMean(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window <= 0 {
		return out
	}
	for t := window - 1; t < len(x); t++ {
		s := 0.0
		for _, v := range x[t-window+1 : t+1] {
			s += v
		}
		out[t] = s / float64(window)
	}
	return out
}

// RollingStd is the trailing sample standard deviation (n-1 denominator).
func RollingStd(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window < 2 {
		return out
	}
	for t := window - 1; t < len(x); t++ {
		w := x[t-window+1 : t+1]
		m := 0.0
		for _, v := range w {
			m += v
		}
		m /= float64(window)
		ss := 0.0
		for _, v := range w {
			ss += (v - m) * (v - m)
		}
		out[t] = math.Sqrt(ss / float64(window-1))
	}
	return out
}

// Shift moves values by k positions; positive k looks back, negative k looks ahead. Gaps are NaN.
func Shift(x []float64, k int) []float64 {
	out := nanSlice(len(x))
	for t := range x {
		s := t - k
		if s >= 0 && s < len(x) {
			out[t] = x[s]
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
