package inventory

// Valuation 基于当前价格计算两侧合计的未实现盈亏。
func (t *Tracker) Valuation(mid float64) (net float64, pnl float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	net = t.long.qty - t.short.qty
	pnl = (mid-t.long.cost)*t.long.qty + (t.short.cost-mid)*t.short.qty
	return
}
