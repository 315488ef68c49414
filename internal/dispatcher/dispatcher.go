// Package dispatcher formats alert events and delivers them through the
// external messaging collaborator. A lost alert is degraded service, not a
// crash: delivery failures are retried a bounded number of times and then
// logged.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wachawo/trading-bot/internal/model"
)

// Notifier is the external messaging collaborator's send operation.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Config bounds delivery behavior.
type Config struct {
	MaxAttempts int           // total delivery tries per alert
	Timeout     time.Duration // hard deadline for one alert's delivery, retries included
	Cooldown    time.Duration // minimum gap between alerts for one asset; 0 disables
}

// Dispatcher deduplicates and delivers alerts.
type Dispatcher struct {
	notifier Notifier
	cfg      Config

	mu       sync.Mutex
	lastSent map[string]time.Time // per asset ID
}

func New(notifier Notifier, cfg Config) *Dispatcher {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		cfg:      cfg,
		lastSent: make(map[string]time.Time),
	}
}

// Dispatch formats and delivers one alert. Alerts inside the per-asset
// cooldown window are dropped silently (the hysteresis machine already
// debounces; the cooldown guards against restart races). The returned
// error reports delivery failure after all retries; callers treat it as
// non-fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, alert model.Alert) error {
	if d.suppressed(alert) {
		log.Debug().
			Str("asset", alert.Asset.Symbol).
			Msg("alert inside cooldown window, dropped")
		return nil
	}

	text := FormatAlert(alert)

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < d.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			log.Warn().
				Str("asset", alert.Asset.Symbol).
				Int("attempt", attempt+1).
				Int("max", d.cfg.MaxAttempts).
				Err(lastErr).
				Msg("alert delivery failed, retrying")
			select {
			case <-ctx.Done():
				return fmt.Errorf("dispatch %s: %w", alert.Asset.Symbol, ctx.Err())
			case <-time.After(backoff):
			}
		}
		if lastErr = d.notifier.Send(ctx, text); lastErr == nil {
			d.markSent(alert)
			log.Info().
				Str("asset", alert.Asset.Symbol).
				Float64("rsi", alert.RSI).
				Msg("alert dispatched")
			return nil
		}
	}
	return fmt.Errorf("dispatch %s: all %d attempts failed: %w",
		alert.Asset.Symbol, d.cfg.MaxAttempts, lastErr)
}

func (d *Dispatcher) suppressed(alert model.Alert) bool {
	if d.cfg.Cooldown <= 0 {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastSent[alert.Asset.ID]
	return ok && alert.GeneratedAt.Sub(last) < d.cfg.Cooldown
}

func (d *Dispatcher) markSent(alert model.Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSent[alert.Asset.ID] = alert.GeneratedAt
}

// FormatAlert renders the operator-facing message for one alert.
func FormatAlert(alert model.Alert) string {
	return fmt.Sprintf(
		"🚨 <b>Oversold alert</b> | %s\n\n"+
			"Token: %s\n"+
			"RSI: %.2f\n"+
			"Time: %s\n\n"+
			"Potential buy opportunity — RSI is below the oversold threshold.",
		alert.Asset.Symbol,
		alert.Asset.Symbol,
		alert.RSI,
		alert.GeneratedAt.UTC().Format("2006-01-02 15:04 MST"),
	)
}
