package avellaneda

import (
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"avellaneda-grid-go/infrastructure/monitor"
)

func mustParams(t *testing.T, gamma, eta, sigma, tEnd float64) ModelParameters {
	t.Helper()
	p, err := NewModelParameters(gamma, eta, sigma, tEnd)
	require.NoError(t, err)
	return p
}

func mustEngine(t *testing.T, p ModelParameters) *QuoteEngine {
	t.Helper()
	e, err := NewQuoteEngine(p, 0.0006, zap.NewNop())
	require.NoError(t, err)
	return e
}

func TestComputeQuote_EndToEndScenario(t *testing.T) {
	e := mustEngine(t, mustParams(t, 1.0, 100.0, 0.005, 1))

	q := e.ComputeQuote(0.5, 0)

	wantDelta := 0.5*1*0.005*0.005 + math.Log(1+1.0/100)
	assert.Equal(t, 0.5, q.ReservePrice)
	assert.InDelta(t, wantDelta, q.Delta, 1e-15)
	assert.InDelta(t, 0.00996, q.Delta, 1e-5)
	assert.InDelta(t, 0.49004, q.BestBid, 1e-5)
	assert.InDelta(t, 0.50996, q.BestAsk, 1e-5)
	assert.False(t, q.Fallback)

	last, ok := e.LastQuote()
	require.True(t, ok)
	assert.Equal(t, q, last)
}

func TestReservePrice_InventorySkew(t *testing.T) {
	p := mustParams(t, 1.0, 100, 0.02, 1)
	base := p.ReservePrice(100, 0)
	assert.Equal(t, 100.0, base)

	for _, inv := range []float64{0.1, 1, 10, 500} {
		assert.Less(t, p.ReservePrice(100, inv), base, "long inventory %v", inv)
		assert.Greater(t, p.ReservePrice(100, -inv), base, "short inventory %v", inv)
	}
}

func TestComputeDelta_MonotoneInSigma(t *testing.T) {
	prev := -1.0
	for _, sigma := range []float64{0, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5} {
		d := mustParams(t, 1.0, 100, sigma, 1).ComputeDelta()
		require.Equal(t, DeltaModel, d.Kind)
		assert.GreaterOrEqual(t, d.Value, prev, "sigma %v", sigma)
		prev = d.Value
	}
}

func TestComputeDelta_MonotoneInGammaWhenRiskTermDominates(t *testing.T) {
	// sigma^2*T 足够大时，0.5*gamma*sigma^2*T 主导
	prev := -1.0
	for _, gamma := range []float64{0.1, 0.5, 1, 2, 5, 10} {
		d := mustParams(t, gamma, 100, 0.5, 10).ComputeDelta()
		require.Equal(t, DeltaModel, d.Kind)
		assert.GreaterOrEqual(t, d.Value, prev, "gamma %v", gamma)
		prev = d.Value
	}
}

func TestComputeDelta_Fallbacks(t *testing.T) {
	testCases := []struct {
		name string
		eta  float64
		want error
	}{
		{name: "eta 为零", eta: 0, want: ErrZeroEta},
		{name: "log 参数为负", eta: -0.5, want: ErrLogDomain},
		{name: "log 参数为零", eta: -1, want: ErrLogDomain},
		{name: "结果为负", eta: -100, want: ErrNegativeDelta},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := ModelParameters{Gamma: 1, Eta: tc.eta, Sigma: 0.005, TEnd: 1}.ComputeDelta()
			assert.Equal(t, DeltaFallback, d.Kind)
			assert.True(t, errors.Is(d.Err, tc.want), "got %v", d.Err)
		})
	}
}

func TestComputeQuote_FallbackDelta(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mon := monitor.New(monitor.DefaultConfig())
	e, err := NewQuoteEngine(ModelParameters{Gamma: 1, Eta: 0, Sigma: 0.005, TEnd: 1}, 0.0006, zap.New(core), WithMonitor(mon))
	require.NoError(t, err)

	q := e.ComputeQuote(2.0, 0)

	assert.True(t, q.Fallback)
	assert.InDelta(t, 0.0006*2.0*0.5, q.Delta, 1e-15)
	assert.InDelta(t, 2.0-0.0006, q.BestBid, 1e-12)
	assert.InDelta(t, 2.0+0.0006, q.BestAsk, 1e-12)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())

	rec := httptest.NewRecorder()
	mon.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "ag_grid_delta_fallbacks_total 1")
}

func TestComputeQuote_ClampKeepsOrdering(t *testing.T) {
	e := mustEngine(t, mustParams(t, 1.0, 100, 0.1, 1))

	// 巨大多头库存把公允价格压到负值
	q := e.ComputeQuote(0.5, 1000)
	assert.Less(t, q.ReservePrice, 0.0)
	assert.Equal(t, 0.0, q.BestBid)
	assert.GreaterOrEqual(t, q.BestAsk, q.ReservePrice)
	assert.LessOrEqual(t, q.BestBid, q.BestAsk)

	q = e.ComputeQuote(0.5, 2)
	assert.LessOrEqual(t, q.BestBid, q.ReservePrice)
	assert.LessOrEqual(t, q.ReservePrice, q.BestAsk)
}

func TestComputeQuote_BidAskBracketReserveSweep(t *testing.T) {
	for _, sigma := range []float64{0, 0.001, 0.01} {
		for _, inv := range []float64{-50, -1, 0, 1, 50} {
			e := mustEngine(t, mustParams(t, 0.5, 200, sigma, 2))
			q := e.ComputeQuote(3.2, inv)
			if q.BestBid > 0 {
				assert.LessOrEqual(t, q.BestBid, q.ReservePrice)
			}
			assert.GreaterOrEqual(t, q.BestAsk, q.ReservePrice)
			assert.GreaterOrEqual(t, q.Delta, 0.0)
		}
	}
}

func TestNewQuoteEngine_Validation(t *testing.T) {
	_, err := NewQuoteEngine(ModelParameters{Gamma: 0, Eta: 1, Sigma: 0.1, TEnd: 1}, 0.001, nil)
	assert.Error(t, err)
	_, err = NewQuoteEngine(ModelParameters{Gamma: 1, Eta: 1, Sigma: -0.1, TEnd: 1}, 0.001, nil)
	assert.Error(t, err)
	_, err = NewQuoteEngine(ModelParameters{Gamma: 1, Eta: 1, Sigma: 0.1, TEnd: 0}, 0.001, nil)
	assert.Error(t, err)
	_, err = NewQuoteEngine(ModelParameters{Gamma: 1, Eta: 1, Sigma: 0.1, TEnd: 1}, 0, nil)
	assert.Error(t, err)
	_, err = NewQuoteEngine(ModelParameters{Gamma: 1, Eta: math.NaN(), Sigma: 0.1, TEnd: 1}, 0.001, nil)
	assert.Error(t, err)
}
