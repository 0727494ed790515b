package risk

import "time"

// CooldownGate 是网格调整的唯一风控门：持仓阈值 + 下单冷却。
// 状态（持仓、上次下单时间）由基础引擎持有，这里只读判断。
type CooldownGate struct {
	PositionThreshold float64
	Cooldown          time.Duration
	Clock             Clock
}

// AboveThreshold reports whether a leg exceeds the position threshold.
func (g CooldownGate) AboveThreshold(position float64) bool {
	return position > g.PositionThreshold
}

// Blocked is true when the leg is above threshold and its last order is
// younger than the cooldown. A zero lastOrder never blocks.
func (g CooldownGate) Blocked(position float64, lastOrder time.Time) bool {
	if !g.AboveThreshold(position) || lastOrder.IsZero() {
		return false
	}
	return g.now().Sub(lastOrder) < g.Cooldown
}

// Remaining returns how long a blocked leg still has to wait.
func (g CooldownGate) Remaining(lastOrder time.Time) time.Duration {
	if lastOrder.IsZero() {
		return 0
	}
	left := g.Cooldown - g.now().Sub(lastOrder)
	if left < 0 {
		return 0
	}
	return left
}

func (g CooldownGate) now() time.Time {
	if g.Clock == nil {
		return NowUTC.Now()
	}
	return g.Clock.Now()
}
