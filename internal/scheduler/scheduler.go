// Package scheduler drives the unified periodic market check: for every
// tracked asset it refreshes history, computes RSI, evaluates the alert
// state machine, and dispatches alerts. Per-asset failures are contained
// so one bad fetch never aborts the rest of a tick, and a stuck tick never
// blocks the next one from being scheduled.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/wachawo/trading-bot/internal/dispatcher"
	"github.com/wachawo/trading-bot/internal/evaluator"
	"github.com/wachawo/trading-bot/internal/exchange"
	"github.com/wachawo/trading-bot/internal/indicator"
	"github.com/wachawo/trading-bot/internal/marketdata"
	"github.com/wachawo/trading-bot/internal/model"
	"github.com/wachawo/trading-bot/internal/notifier"
	"github.com/wachawo/trading-bot/internal/store"
)

// Options configures a Scheduler.
type Options struct {
	Assets       []model.Asset
	Window       int
	LookbackDays int
	Thresholds   evaluator.Thresholds
	Interval     time.Duration
	AssetTimeout time.Duration // per-asset deadline within a tick
	PersistState bool
}

// Scheduler owns the tick loop and the per-asset alert-state map.
type Scheduler struct {
	cron     *cron.Cron
	client   *marketdata.Client
	store    store.Store
	dispatch *dispatcher.Dispatcher
	venue    exchange.Exchange
	opts     Options
	ctx      context.Context

	mu           sync.Mutex
	states       map[string]model.AlertState
	lastReadings map[string]model.RSIReading
}

// New creates a Scheduler. When persistence is enabled, previously saved
// alert states are restored so a redeploy does not re-fire alerts for
// assets that are still in the oversold band.
func New(ctx context.Context, client *marketdata.Client, st store.Store,
	d *dispatcher.Dispatcher, venue exchange.Exchange, opts Options) (*Scheduler, error) {

	if err := opts.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("scheduler: interval must be positive")
	}
	if opts.AssetTimeout <= 0 {
		opts.AssetTimeout = 2 * time.Minute
	}

	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		client:       client,
		store:        st,
		dispatch:     d,
		venue:        venue,
		opts:         opts,
		ctx:          ctx,
		states:       make(map[string]model.AlertState),
		lastReadings: make(map[string]model.RSIReading),
	}

	if opts.PersistState {
		saved, err := st.LoadAlertStates()
		if err != nil {
			return nil, fmt.Errorf("restore alert states: %w", err)
		}
		s.states = saved
		log.Info().Int("count", len(saved)).Msg("alert states restored")
	}
	return s, nil
}

// Register adds the market-check tick at the configured interval.
func (s *Scheduler) Register() error {
	spec := fmt.Sprintf("@every %s", s.opts.Interval)
	if _, err := s.cron.AddFunc(spec, s.RunTick); err != nil {
		return fmt.Errorf("register market check: %w", err)
	}
	return nil
}

// Start begins scheduling ticks.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Dur("interval", s.opts.Interval).Msg("scheduler started")
}

// Stop halts scheduling and waits for an in-flight tick to finish its
// current asset. Cancellation is cooperative: the tick observes the
// context at per-asset boundaries, so no fetch is aborted in a way that
// could leave AlertState half-updated.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(s.opts.AssetTimeout):
		log.Warn().Msg("timed out waiting for in-flight tick")
	}
	log.Info().Msg("scheduler stopped")
}

// RunTick executes one full fetch→compute→evaluate→alert cycle. Exported
// for RUN_ON_START and the manual operator trigger.
func (s *Scheduler) RunTick() {
	if s.ctx.Err() != nil {
		return
	}
	started := time.Now()
	log.Info().Int("assets", len(s.opts.Assets)).Msg("market check started")

	// One batched quote call covers every asset for this tick. Losing it
	// degrades the tick to stored history only.
	current, err := s.client.FetchCurrent(s.ctx, s.opts.Assets)
	if err != nil {
		log.Warn().Err(err).Msg("batched price fetch failed, using stored history only")
		current = nil
	}

	for _, asset := range s.opts.Assets {
		if s.ctx.Err() != nil {
			log.Info().Msg("shutdown requested, stopping tick")
			return
		}
		s.processAsset(asset, current[asset.ID])
	}

	log.Info().Dur("elapsed", time.Since(started)).Msg("market check complete")
}

// processAsset runs the pipeline for one asset. Every failure is recorded
// and contained here; nothing propagates to the tick loop.
func (s *Scheduler) processAsset(asset model.Asset, currentPrice float64) {
	ctx, cancel := context.WithTimeout(s.ctx, s.opts.AssetTimeout)
	defer cancel()

	if err := s.refreshHistory(ctx, asset); err != nil {
		var fe *marketdata.FetchError
		if errors.As(err, &fe) {
			log.Warn().Str("asset", asset.Symbol).Err(err).Msg("fetch failed, skipping asset this tick")
		} else {
			log.Error().Str("asset", asset.Symbol).Err(err).Msg("history refresh failed, skipping asset")
		}
		return
	}

	points, err := s.store.Prices(asset.ID)
	if err != nil {
		log.Error().Str("asset", asset.Symbol).Err(err).Msg("read history failed, skipping asset")
		return
	}
	if currentPrice > 0 {
		points = append(points, model.PricePoint{Time: time.Now().UTC(), Close: currentPrice})
	}

	series := model.PriceSeries{
		Asset:     asset,
		Points:    marketdata.Normalize(points),
		FetchedAt: time.Now(),
	}

	reading, err := indicator.RSI(series, s.opts.Window)
	if err != nil {
		if errors.Is(err, indicator.ErrInsufficientData) {
			log.Debug().Str("asset", asset.Symbol).Err(err).Msg("not enough history yet, skipping asset")
		} else {
			log.Error().Str("asset", asset.Symbol).Err(err).Msg("rsi computation failed")
		}
		return
	}
	log.Debug().Str("asset", asset.Symbol).Float64("rsi", reading.Value).Msg("rsi computed")

	decision, next := evaluator.Evaluate(reading, s.state(asset.ID), s.opts.Thresholds)
	s.setState(next, reading)

	switch decision {
	case evaluator.DecisionAlert:
		alert := model.Alert{
			Asset:       asset,
			Signal:      model.SignalOversold,
			RSI:         reading.Value,
			GeneratedAt: reading.Time,
		}
		if err := s.dispatch.Dispatch(ctx, alert); err != nil {
			// Degraded service, not a crash: the alert is lost but the
			// cycle continues.
			log.Error().Str("asset", asset.Symbol).Err(err).Msg("alert delivery failed")
		}
	case evaluator.DecisionSuppress:
		log.Debug().Str("asset", asset.Symbol).Float64("rsi", reading.Value).
			Msg("still oversold, alert suppressed")
	}
}

// refreshHistory tops up stored daily closes, fetching only the days
// elapsed since the newest stored point.
func (s *Scheduler) refreshHistory(ctx context.Context, asset model.Asset) error {
	last, err := s.store.LatestTimestamp(asset.ID)
	if err != nil {
		return err
	}

	days := s.opts.LookbackDays
	if !last.IsZero() {
		elapsed := int(time.Since(last).Hours() / 24)
		if elapsed <= 0 {
			return nil // already up to date
		}
		days = elapsed
	}

	series, err := s.client.FetchHistory(ctx, asset, days)
	if err != nil {
		return err
	}
	inserted, err := s.store.UpsertPrices(asset, series.Points)
	if err != nil {
		return err
	}
	if inserted > 0 {
		log.Debug().Str("asset", asset.Symbol).Int("points", inserted).Msg("history refreshed")
	}
	return nil
}

func (s *Scheduler) state(assetID string) model.AlertState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[assetID]; ok {
		return st
	}
	return model.NewAlertState(assetID)
}

func (s *Scheduler) setState(st model.AlertState, reading model.RSIReading) {
	s.mu.Lock()
	s.states[st.AssetID] = st
	s.lastReadings[st.AssetID] = reading
	s.mu.Unlock()

	if s.opts.PersistState {
		if err := s.store.SaveAlertState(st); err != nil {
			log.Error().Str("asset_id", st.AssetID).Err(err).Msg("persist alert state failed")
		}
	}
}

// States returns a copy of the per-asset alert states.
func (s *Scheduler) States() map[string]model.AlertState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.AlertState, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

// HandleCommand routes an operator command from the control channel and
// returns the reply text. Order commands go to the venue boundary.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	switch fields[0] {
	case "/check":
		go s.RunTick()
		return "Market check started."
	case "/status":
		return notifier.FormatStatus(s.States(), s.opts.Assets)
	case "/rsi":
		s.mu.Lock()
		readings := make([]model.RSIReading, 0, len(s.lastReadings))
		for _, r := range s.lastReadings {
			readings = append(readings, r)
		}
		s.mu.Unlock()
		return notifier.FormatReadings(readings)
	case "/assets":
		return notifier.FormatAssets(s.opts.Assets)
	case "/open":
		return s.handleOpen(fields[1:])
	case "/close":
		return s.handleClose(fields[1:])
	default:
		return "Commands:\n• /check — run a market check now\n• /status — alert states\n" +
			"• /rsi — latest readings\n• /assets — tracked assets\n" +
			"• /open SYMBOL SIZE — open a paper position\n• /close SYMBOL — close a paper position"
	}
}

func (s *Scheduler) handleOpen(args []string) string {
	if len(args) < 2 {
		return "Usage: /open SYMBOL SIZE"
	}
	asset, ok := s.findAsset(args[0])
	if !ok {
		return fmt.Sprintf("Unknown asset %q.", args[0])
	}
	size, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Sprintf("Bad size %q.", args[1])
	}
	result, err := s.venue.PlaceOrder(s.ctx, exchange.Order{
		Asset: asset,
		Side:  exchange.SideBuy,
		Size:  size,
	})
	if err != nil {
		return fmt.Sprintf("Order failed: %v", err)
	}
	return fmt.Sprintf("Order %s filled: %s %s %s", result.OrderID, result.Side, result.FillSize, asset.Symbol)
}

func (s *Scheduler) handleClose(args []string) string {
	if len(args) < 1 {
		return "Usage: /close SYMBOL"
	}
	asset, ok := s.findAsset(args[0])
	if !ok {
		return fmt.Sprintf("Unknown asset %q.", args[0])
	}
	result, err := s.venue.ClosePosition(s.ctx, asset.ID)
	if err != nil {
		return fmt.Sprintf("Close failed: %v", err)
	}
	return fmt.Sprintf("Position on %s closed at %s.", asset.Symbol, result.ClosedAt.Format("15:04:05"))
}

func (s *Scheduler) findAsset(symbol string) (model.Asset, bool) {
	for _, a := range s.opts.Assets {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return model.Asset{}, false
}
