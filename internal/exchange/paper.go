package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PaperExchange simulates order execution without venue calls. Fills are
// recorded in memory with configurable slippage so operator commands can
// be exercised end to end before the real venue client lands.
type PaperExchange struct {
	mu          sync.Mutex
	orderSeq    int64
	positions   map[string]OrderResult // open position per asset ID
	fills       []OrderResult
	slippageBps int64 // basis points applied against the order
}

// NewPaperExchange creates a simulated exchange. slippageBps shifts fill
// prices against the order direction (e.g. 5 = 0.05%).
func NewPaperExchange(slippageBps int64) *PaperExchange {
	return &PaperExchange{
		positions:   make(map[string]OrderResult),
		slippageBps: slippageBps,
	}
}

func (p *PaperExchange) PlaceOrder(_ context.Context, order Order) (OrderResult, error) {
	if order.Size.LessThanOrEqual(decimal.Zero) {
		return OrderResult{}, fmt.Errorf("paper: order size must be positive, got %s", order.Size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, open := p.positions[order.Asset.ID]; open {
		return OrderResult{}, fmt.Errorf("paper: position already open for %s", order.Asset.Symbol)
	}

	p.orderSeq++
	fillPrice := order.Price
	if !fillPrice.IsZero() && p.slippageBps > 0 {
		slip := fillPrice.Mul(decimal.NewFromInt(p.slippageBps)).Div(decimal.NewFromInt(10000))
		if order.Side == SideBuy {
			fillPrice = fillPrice.Add(slip)
		} else {
			fillPrice = fillPrice.Sub(slip)
		}
	}

	result := OrderResult{
		OrderID:   fmt.Sprintf("PAPER-%d", p.orderSeq),
		Asset:     order.Asset,
		Side:      order.Side,
		FillPrice: fillPrice,
		FillSize:  order.Size,
		FilledAt:  time.Now().UTC(),
	}
	p.positions[order.Asset.ID] = result
	p.fills = append(p.fills, result)

	log.Info().
		Str("order_id", result.OrderID).
		Str("asset", order.Asset.Symbol).
		Str("side", string(order.Side)).
		Str("size", order.Size.String()).
		Msg("paper order filled")
	return result, nil
}

func (p *PaperExchange) ClosePosition(_ context.Context, assetID string) (CloseResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, open := p.positions[assetID]; !open {
		return CloseResult{}, fmt.Errorf("paper: no open position for %s", assetID)
	}
	delete(p.positions, assetID)

	result := CloseResult{AssetID: assetID, ClosedAt: time.Now().UTC()}
	log.Info().Str("asset_id", assetID).Msg("paper position closed")
	return result, nil
}

// Fills returns a snapshot of all simulated fills.
func (p *PaperExchange) Fills() []OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]OrderResult, len(p.fills))
	copy(out, p.fills)
	return out
}
