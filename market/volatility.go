package market

import (
	"errors"
	"math"
)

// ErrInsufficientData is returned when fewer than two candles are available.
var ErrInsufficientData = errors.New("insufficient kline data")

// HistoricalVolatility returns the sample standard deviation of per-period log
// returns ln(close_i / close_{i-1}). The result is a single-period (e.g. hourly)
// volatility, not annualized.
//
// Fewer than two klines yields (0, ErrInsufficientData). A return series whose
// deviation is undefined (a single return, or NaN/Inf from non-positive closes)
// yields 0.
func HistoricalVolatility(ks []Kline) (float64, error) {
	if len(ks) < 2 {
		return 0, ErrInsufficientData
	}
	returns := LogReturns(Closes(ks))
	vol := SampleStdDev(returns)
	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0, nil
	}
	return vol, nil
}

// LogReturns 计算相邻价格的对数收益率，长度为 len(prices)-1。
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// SampleStdDev uses the n-1 denominator; fewer than two samples is NaN.
func SampleStdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)

	sumSquaredDiff := 0.0
	for _, x := range xs {
		diff := x - mean
		sumSquaredDiff += diff * diff
	}
	return math.Sqrt(sumSquaredDiff / float64(n-1))
}
