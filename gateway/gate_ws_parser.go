package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const tickerChannel = "spot.tickers"

// WSRequest Gate.io v4 websocket 请求
type WSRequest struct {
	Time    int64    `json:"time"`
	Channel string   `json:"channel"`
	Event   string   `json:"event"`
	Payload []string `json:"payload"`
}

// NewTickerSubscribe 构造 spot.tickers 订阅请求。
func NewTickerSubscribe(unixSec int64, pairs ...string) WSRequest {
	return WSRequest{Time: unixSec, Channel: tickerChannel, Event: "subscribe", Payload: pairs}
}

// wsMessage 服务端推送的外层包装
type wsMessage struct {
	Time    int64           `json:"time"`
	Channel string          `json:"channel"`
	Event   string          `json:"event"`
	Error   *wsError        `json:"error"`
	Result  json.RawMessage `json:"result"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Ticker 只保留报价需要的字段
type Ticker struct {
	CurrencyPair string
	Last         float64
}

// ParseTicker 解析 spot.tickers 推送；非 update 消息（订阅确认等）返回 ok=false。
func ParseTicker(raw []byte) (t Ticker, ok bool, err error) {
	var msg wsMessage
	if err = json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Error != nil {
		err = fmt.Errorf("ws error %d: %s", msg.Error.Code, msg.Error.Message)
		return
	}
	if msg.Channel != tickerChannel || msg.Event != "update" {
		return
	}
	var res struct {
		CurrencyPair string `json:"currency_pair"`
		Last         string `json:"last"`
	}
	if err = json.Unmarshal(msg.Result, &res); err != nil {
		return
	}
	last, err := decimal.NewFromString(strings.TrimSpace(res.Last))
	if err != nil {
		return t, false, fmt.Errorf("bad last price %q: %w", res.Last, err)
	}
	return Ticker{CurrencyPair: res.CurrencyPair, Last: last.InexactFloat64()}, true, nil
}
