package exchange

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wachawo/trading-bot/internal/model"
)

var btc = model.Asset{ID: "bitcoin", Symbol: "BTC"}

func TestPaperExchange_OpenAndClose(t *testing.T) {
	p := NewPaperExchange(0)
	ctx := context.Background()

	result, err := p.PlaceOrder(ctx, Order{
		Asset: btc,
		Side:  SideBuy,
		Size:  decimal.NewFromFloat(0.5),
		Price: decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	assert.Equal(t, "PAPER-1", result.OrderID)
	assert.Equal(t, SideBuy, result.Side)
	assert.True(t, result.FillSize.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, result.FillPrice.Equal(decimal.NewFromInt(50000)), "no slippage configured")

	closed, err := p.ClosePosition(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", closed.AssetID)
	assert.False(t, closed.ClosedAt.IsZero())
}

func TestPaperExchange_RejectsInvalidOrders(t *testing.T) {
	p := NewPaperExchange(0)
	ctx := context.Background()

	_, err := p.PlaceOrder(ctx, Order{Asset: btc, Side: SideBuy, Size: decimal.Zero})
	require.Error(t, err, "zero size")

	_, err = p.PlaceOrder(ctx, Order{Asset: btc, Side: SideBuy, Size: decimal.NewFromInt(-1)})
	require.Error(t, err, "negative size")

	_, err = p.PlaceOrder(ctx, Order{Asset: btc, Side: SideBuy, Size: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = p.PlaceOrder(ctx, Order{Asset: btc, Side: SideBuy, Size: decimal.NewFromInt(1)})
	require.Error(t, err, "double open")
}

func TestPaperExchange_CloseWithoutPosition(t *testing.T) {
	p := NewPaperExchange(0)
	_, err := p.ClosePosition(context.Background(), "bitcoin")
	require.Error(t, err)
}

func TestPaperExchange_Slippage(t *testing.T) {
	p := NewPaperExchange(10) // 0.10%
	ctx := context.Background()

	buy, err := p.PlaceOrder(ctx, Order{
		Asset: btc,
		Side:  SideBuy,
		Size:  decimal.NewFromInt(1),
		Price: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	assert.True(t, buy.FillPrice.Equal(decimal.NewFromInt(10010)),
		"buys fill above the quoted price, got %s", buy.FillPrice)

	sell, err := p.PlaceOrder(ctx, Order{
		Asset: model.Asset{ID: "ethereum", Symbol: "ETH"},
		Side:  SideSell,
		Size:  decimal.NewFromInt(1),
		Price: decimal.NewFromInt(10000),
	})
	require.NoError(t, err)
	assert.True(t, sell.FillPrice.Equal(decimal.NewFromInt(9990)),
		"sells fill below the quoted price, got %s", sell.FillPrice)
}

func TestPaperExchange_Fills(t *testing.T) {
	p := NewPaperExchange(0)
	ctx := context.Background()

	_, err := p.PlaceOrder(ctx, Order{Asset: btc, Side: SideBuy, Size: decimal.NewFromInt(1)})
	require.NoError(t, err)
	_, err = p.ClosePosition(ctx, "bitcoin")
	require.NoError(t, err)
	_, err = p.PlaceOrder(ctx, Order{Asset: btc, Side: SideBuy, Size: decimal.NewFromInt(2)})
	require.NoError(t, err)

	fills := p.Fills()
	require.Len(t, fills, 2)
	assert.Equal(t, "PAPER-1", fills[0].OrderID)
	assert.Equal(t, "PAPER-2", fills[1].OrderID)
}
