package avellaneda

import (
	"errors"
	"fmt"
	"math"
)

// ModelParameters are fixed for the process lifetime: Gamma and TEnd come from
// the operator, Sigma and Eta from one calibration at startup. Pass by value.
type ModelParameters struct {
	Gamma float64 // 风险厌恶系数
	Eta   float64 // 交易成本系数
	Sigma float64 // 单周期波动率
	TEnd  float64 // 时间周期（小时）
}

var errInvalidParams = errors.New("invalid model parameters")

// NewModelParameters validates and builds the parameter set. Eta is not
// range-checked; a degenerate eta is resolved by the delta fallback.
func NewModelParameters(gamma, eta, sigma, tEnd float64) (ModelParameters, error) {
	p := ModelParameters{Gamma: gamma, Eta: eta, Sigma: sigma, TEnd: tEnd}
	if err := p.Validate(); err != nil {
		return ModelParameters{}, err
	}
	return p, nil
}

// Validate checks gamma > 0, sigma >= 0, tEnd > 0 and finiteness.
func (p ModelParameters) Validate() error {
	for name, v := range map[string]float64{"gamma": p.Gamma, "eta": p.Eta, "sigma": p.Sigma, "tEnd": p.TEnd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is not finite", errInvalidParams, name)
		}
	}
	if p.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be > 0, got %v", errInvalidParams, p.Gamma)
	}
	if p.Sigma < 0 {
		return fmt.Errorf("%w: sigma must be >= 0, got %v", errInvalidParams, p.Sigma)
	}
	if p.TEnd <= 0 {
		return fmt.Errorf("%w: tEnd must be > 0, got %v", errInvalidParams, p.TEnd)
	}
	return nil
}

// inventoryRisk is gamma * sigma^2 * T, shared by the reserve price and spread.
func (p ModelParameters) inventoryRisk() float64 {
	return p.Gamma * p.Sigma * p.Sigma * p.TEnd
}

// ReservePrice R = S - q * gamma * sigma^2 * T.
func (p ModelParameters) ReservePrice(marketPrice, inventory float64) float64 {
	return marketPrice - inventory*p.inventoryRisk()
}
