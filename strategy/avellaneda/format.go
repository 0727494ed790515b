package avellaneda

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

func formatFixed(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// formatPercent renders 0.0005 as "0.0500%".
func formatPercent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64) + "%"
	}
	return decimal.NewFromFloat(v).Shift(2).StringFixed(4) + "%"
}
