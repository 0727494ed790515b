package market

import (
	"sort"
	"time"
)

// Kline represents OHLC data for one historical period.
type Kline struct {
	Open  float64
	High  float64
	Low   float64
	Close float64
	Ts    time.Time
}

// SortKlines 按时间升序排列（交易所返回的顺序不保证）。
func SortKlines(ks []Kline) {
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].Ts.Before(ks[j].Ts) })
}

// Closes extracts close prices in order.
func Closes(ks []Kline) []float64 {
	out := make([]float64, len(ks))
	for i, k := range ks {
		out[i] = k.Close
	}
	return out
}
