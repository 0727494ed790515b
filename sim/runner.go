package sim

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/logger"
)

// Runner 把行情价格流接到纸面引擎上（撮合挂单、刷新最新价）。
type Runner struct {
	Engine *PaperEngine
	Prices <-chan float64
	Logger *logger.Logger
}

// Run 阻塞直到 ctx 结束或价格流关闭。
func (r *Runner) Run(ctx context.Context) error {
	if r.Engine == nil || r.Prices == nil {
		return errors.New("runner not initialized")
	}
	log := r.Logger
	if log == nil {
		log = logger.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case price, ok := <-r.Prices:
			if !ok {
				log.Info("price stream closed")
				return nil
			}
			if price <= 0 {
				log.Warn("ignoring non-positive price", zap.Float64("price", price))
				continue
			}
			if fills := r.Engine.OnPrice(price); len(fills) > 0 {
				log.Debug("paper fills", zap.Int("count", len(fills)), zap.Float64("price", price))
			}
		}
	}
}
