package order

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"avellaneda-grid-go/strategy"
)

var (
	ErrUnknownOrder = errors.New("unknown order")
	ErrInvalidOrder = errors.New("invalid order")
)

// Book 记录挂单；订单进入终态后即从簿中移除。
type Book struct {
	mu     sync.RWMutex
	orders map[string]Order
	now    func() time.Time
}

func NewBook() *Book {
	return &Book{orders: make(map[string]Order), now: time.Now}
}

// Add 登记一张新挂单并分配 ID。
func (b *Book) Add(o Order) (Order, error) {
	if o.Price <= 0 || o.Quantity <= 0 {
		return Order{}, fmt.Errorf("%w: price=%v qty=%v", ErrInvalidOrder, o.Price, o.Quantity)
	}
	if o.Tag != strategy.Long && o.Tag != strategy.Short {
		return Order{}, fmt.Errorf("%w: unknown position side %q", ErrInvalidOrder, o.Tag)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = StatusNew
	b.mu.Lock()
	defer b.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = b.now()
	}
	b.orders[o.ID] = o
	return o, nil
}

func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

// Transition 推进订单状态，终态订单会被移出簿。
func (b *Book) Transition(id string, to Status) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if err := ValidateTransition(o.Status, to); err != nil {
		return o, err
	}
	o.Status = to
	if IsFinalState(to) {
		delete(b.orders, id)
	} else {
		b.orders[id] = o
	}
	return o, nil
}

// CancelSide 把某一侧的全部挂单转为 CANCELED 并移出簿，返回被撤的订单。
func (b *Book) CancelSide(tag strategy.PositionSide) []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	var canceled []Order
	for id, o := range b.orders {
		if o.Tag != tag || ValidateTransition(o.Status, StatusCanceled) != nil {
			continue
		}
		o.Status = StatusCanceled
		delete(b.orders, id)
		canceled = append(canceled, o)
	}
	sort.Slice(canceled, func(i, j int) bool { return canceled[i].ID < canceled[j].ID })
	return canceled
}

// CountTakeProfit 返回某一侧挂着的止盈单数量。
func (b *Book) CountTakeProfit(tag strategy.PositionSide) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, o := range b.orders {
		if o.Tag == tag && o.TakeProfit {
			n++
		}
	}
	return n
}

// List 返回全部挂单（拷贝），按创建时间排序。
func (b *Book) List() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	res := make([]Order, 0, len(b.orders))
	for _, o := range b.orders {
		res = append(res, o)
	}
	sort.SliceStable(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID < res[j].ID
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res
}

// Len 挂单数量
func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}
