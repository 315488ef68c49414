// Package exchange defines the order-placement boundary toward the
// perpetuals venue. Only a simulated implementation exists today; the
// interface is what future evaluator decisions will drive.
package exchange

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wachawo/trading-bot/internal/model"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a request to open a position.
type Order struct {
	Asset model.Asset
	Side  Side
	Size  decimal.Decimal
	Price decimal.Decimal // zero means market order
}

// OrderResult reports a placed order.
type OrderResult struct {
	OrderID   string
	Asset     model.Asset
	Side      Side
	FillPrice decimal.Decimal
	FillSize  decimal.Decimal
	FilledAt  time.Time
}

// CloseResult reports a closed position.
type CloseResult struct {
	AssetID  string
	ClosedAt time.Time
}

// Exchange is the trading venue collaborator.
type Exchange interface {
	PlaceOrder(ctx context.Context, order Order) (OrderResult, error)
	ClosePosition(ctx context.Context, assetID string) (CloseResult, error)
}
