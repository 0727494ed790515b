package risk

import "time"

// Clock 抽象时间便于测试。
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// NowUTC 默认使用系统时间。
var NowUTC Clock = realClock{}

// ManualClock 手动推进的时钟，供回放/测试使用。
type ManualClock struct {
	T time.Time
}

func (c *ManualClock) Now() time.Time { return c.T }

// Advance 向前推进 d。
func (c *ManualClock) Advance(d time.Duration) { c.T = c.T.Add(d) }
