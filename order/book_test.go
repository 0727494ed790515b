package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avellaneda-grid-go/strategy"
)

func TestBookAddGetList(t *testing.T) {
	b := NewBook()
	base := time.Unix(1700000000, 0)
	first, err := b.Add(Order{Symbol: "XRP", Side: strategy.Buy, Tag: strategy.Long, Price: 0.49, Quantity: 1, CreatedAt: base})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, StatusNew, first.Status)

	_, err = b.Add(Order{Symbol: "XRP", Side: strategy.Sell, Tag: strategy.Long, Price: 0.51, Quantity: 2, TakeProfit: true, CreatedAt: base.Add(time.Second)})
	require.NoError(t, err)

	got, ok := b.Get(first.ID)
	require.True(t, ok)
	assert.Equal(t, 0.49, got.Price)

	list := b.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, 1, b.CountTakeProfit(strategy.Long))
	assert.Equal(t, 0, b.CountTakeProfit(strategy.Short))
}

func TestBookRejectsInvalid(t *testing.T) {
	b := NewBook()
	testCases := []struct {
		name string
		o    Order
	}{
		{name: "价格为零", o: Order{Tag: strategy.Long, Price: 0, Quantity: 1}},
		{name: "数量为负", o: Order{Tag: strategy.Long, Price: 1, Quantity: -1}},
		{name: "未知方向", o: Order{Tag: "both", Price: 1, Quantity: 1}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := b.Add(tc.o)
			assert.ErrorIs(t, err, ErrInvalidOrder)
		})
	}
	assert.Equal(t, 0, b.Len())
}

func TestBookTransitionAndCancelSide(t *testing.T) {
	b := NewBook()
	long, _ := b.Add(Order{Tag: strategy.Long, Side: strategy.Buy, Price: 1, Quantity: 1})
	_, _ = b.Add(Order{Tag: strategy.Long, Side: strategy.Sell, Price: 2, Quantity: 1, TakeProfit: true})
	_, _ = b.Add(Order{Tag: strategy.Short, Side: strategy.Sell, Price: 2, Quantity: 1})

	filled, err := b.Transition(long.ID, StatusFilled)
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, filled.Status)
	_, ok := b.Get(long.ID)
	assert.False(t, ok, "final orders leave the book")

	_, err = b.Transition(long.ID, StatusCanceled)
	assert.ErrorIs(t, err, ErrUnknownOrder)

	canceled := b.CancelSide(strategy.Long)
	require.Len(t, canceled, 1)
	assert.Equal(t, StatusCanceled, canceled[0].Status)
	assert.True(t, canceled[0].TakeProfit)
	assert.Equal(t, 1, b.Len())
	assert.Empty(t, b.CancelSide(strategy.Long))

	_, err = b.Transition(canceled[0].ID, StatusFilled)
	assert.ErrorIs(t, err, ErrUnknownOrder, "canceled orders cannot fill")
}

func TestOrderCrossed(t *testing.T) {
	buy := Order{Side: strategy.Buy, Price: 1.0}
	sell := Order{Side: strategy.Sell, Price: 1.0}
	assert.True(t, buy.Crossed(0.99))
	assert.True(t, buy.Crossed(1.0))
	assert.False(t, buy.Crossed(1.01))
	assert.True(t, sell.Crossed(1.01))
	assert.False(t, sell.Crossed(0.99))
	assert.True(t, Order{TakeProfit: true}.Closes())
	assert.False(t, Order{}.Closes())
}
