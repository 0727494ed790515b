package market

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func klinesFromCloses(closes ...float64) []Kline {
	base := time.Unix(1700000000, 0).UTC()
	ks := make([]Kline, len(closes))
	for i, c := range closes {
		ks[i] = Kline{Open: c, High: c, Low: c, Close: c, Ts: base.Add(time.Duration(i) * time.Hour)}
	}
	return ks
}

func TestHistoricalVolatility_ConstantCloses(t *testing.T) {
	vol, err := HistoricalVolatility(klinesFromCloses(100, 100, 100))
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestHistoricalVolatility_KnownSeries(t *testing.T) {
	vol, err := HistoricalVolatility(klinesFromCloses(100, 110, 100))
	require.NoError(t, err)

	r1 := math.Log(1.1)
	r2 := math.Log(100.0 / 110.0)
	mean := (r1 + r2) / 2
	want := math.Sqrt(((r1-mean)*(r1-mean) + (r2-mean)*(r2-mean)) / 1)

	assert.InDelta(t, want, vol, 1e-12)
	assert.Greater(t, vol, 0.0)
	assert.InDelta(t, 0.1347889, vol, 1e-6)
}

func TestHistoricalVolatility_InsufficientData(t *testing.T) {
	for _, ks := range [][]Kline{nil, klinesFromCloses(100)} {
		vol, err := HistoricalVolatility(ks)
		assert.True(t, errors.Is(err, ErrInsufficientData))
		assert.Equal(t, 0.0, vol)
	}
}

func TestHistoricalVolatility_SingleReturnIsUndefined(t *testing.T) {
	vol, err := HistoricalVolatility(klinesFromCloses(100, 105))
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestHistoricalVolatility_DegenerateCloses(t *testing.T) {
	// 零价格产生 Inf/NaN 收益率
	vol, err := HistoricalVolatility(klinesFromCloses(0, 100, 0, 100))
	require.NoError(t, err)
	assert.Equal(t, 0.0, vol)
}

func TestHistoricalVolatility_OrderMatters(t *testing.T) {
	ks := klinesFromCloses(100, 101, 99, 102, 98)
	vol, err := HistoricalVolatility(ks)
	require.NoError(t, err)
	assert.Greater(t, vol, 0.0)
	assert.False(t, math.IsNaN(vol))
}

func TestSampleStdDev(t *testing.T) {
	assert.True(t, math.IsNaN(SampleStdDev(nil)))
	assert.True(t, math.IsNaN(SampleStdDev([]float64{1})))
	assert.InDelta(t, math.Sqrt(2), SampleStdDev([]float64{1, 3}), 1e-12)
}
