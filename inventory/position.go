package inventory

import (
	"sync"

	"avellaneda-grid-go/strategy"
)

// leg 单侧持仓
type leg struct {
	qty  float64
	cost float64
}

// Tracker 维护对冲模式下多/空两侧的持仓（均为非负数量）。
type Tracker struct {
	mu    sync.RWMutex
	long  leg
	short leg
}

// Open 增加 tag 一侧的持仓，按加权平均更新成本。
func (t *Tracker) Open(tag strategy.PositionSide, qty, price float64) {
	if qty <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.leg(tag)
	totalValue := l.cost*l.qty + price*qty
	l.qty += qty
	l.cost = totalValue / l.qty
}

// Close 减少 tag 一侧的持仓，返回实际平掉的数量（不会减到负数）。
func (t *Tracker) Close(tag strategy.PositionSide, qty float64) float64 {
	if qty <= 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	l := t.leg(tag)
	if qty > l.qty {
		qty = l.qty
	}
	l.qty -= qty
	if l.qty == 0 {
		l.cost = 0
	}
	return qty
}

// Position 返回单侧持仓数量。
func (t *Tracker) Position(tag strategy.PositionSide) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tag == strategy.Long {
		return t.long.qty
	}
	return t.short.qty
}

// NetExposure 多头减空头。
func (t *Tracker) NetExposure() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.long.qty - t.short.qty
}

// AvgCost 返回单侧平均成本。
func (t *Tracker) AvgCost(tag strategy.PositionSide) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if tag == strategy.Long {
		return t.long.cost
	}
	return t.short.cost
}

// 调用方需持有写锁
func (t *Tracker) leg(tag strategy.PositionSide) *leg {
	if tag == strategy.Long {
		return &t.long
	}
	return &t.short
}
