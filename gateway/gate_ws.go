package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"avellaneda-grid-go/infrastructure/monitor"
)

const GateSpotWSEndpoint = "wss://api.gateio.ws/ws/v4/"

// GateTickerFeed 订阅 spot.tickers，把最新成交价推给下游；断线后自动重连。
type GateTickerFeed struct {
	Endpoint       string
	Pair           string
	Dialer         *websocket.Dialer
	ReadTimeout    time.Duration
	ReconnectDelay time.Duration
	Logger         *zap.Logger
	Monitor        *monitor.Monitor
}

func NewGateTickerFeed(endpoint, pair string, log *zap.Logger, mon *monitor.Monitor) *GateTickerFeed {
	if endpoint == "" {
		endpoint = GateSpotWSEndpoint
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &GateTickerFeed{
		Endpoint:       endpoint,
		Pair:           pair,
		Dialer:         websocket.DefaultDialer,
		ReadTimeout:    30 * time.Second,
		ReconnectDelay: 3 * time.Second,
		Logger:         log,
		Monitor:        mon,
	}
}

// Run 阻塞直到 ctx 结束，返回 ctx.Err()。
func (f *GateTickerFeed) Run(ctx context.Context, out chan<- float64) error {
	if f.Pair == "" {
		return errors.New("currency pair required")
	}
	for {
		err := f.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.Logger.Warn("ticker feed disconnected, reconnecting",
			zap.String("pair", f.Pair),
			zap.Duration("delay", f.ReconnectDelay),
			zap.Error(err))
		f.Monitor.RecordWSReconnect()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.ReconnectDelay):
		}
	}
}

func (f *GateTickerFeed) session(ctx context.Context, out chan<- float64) error {
	conn, _, err := f.Dialer.DialContext(ctx, f.Endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// ctx 结束时关闭连接以打断阻塞读
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	if err := conn.WriteJSON(NewTickerSubscribe(time.Now().Unix(), f.Pair)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.Logger.Info("ticker feed subscribed", zap.String("pair", f.Pair), zap.String("endpoint", f.Endpoint))

	for {
		if f.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		t, ok, err := ParseTicker(raw)
		if err != nil {
			f.Logger.Warn("parse ticker failed", zap.Error(err), zap.ByteString("raw", raw))
			continue
		}
		if !ok || t.CurrencyPair != f.Pair || t.Last <= 0 {
			continue
		}
		select {
		case out <- t.Last:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
