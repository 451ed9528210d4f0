// Package notify subscribes to the marketplace's change stream and turns
// push notifications into targeted refreshes. Events carry no document
// payloads; they only say what changed, and the listener re-fetches the
// authoritative state through the same read paths everything else uses.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"agrimarket/internal/core"
	"agrimarket/pkg/concurrency"
	apperrors "agrimarket/pkg/errors"
	"agrimarket/pkg/retry"
	"agrimarket/pkg/websocket"
)

// Event types published on the notify stream.
const (
	EventListingUpdated   = "listing.updated"
	EventListingCancelled = "listing.cancelled"
	EventBidCreated       = "bid.created"
	EventBidUpdated       = "bid.updated"
)

// Event is one change notification. The stream never carries document
// bodies, only pointers to what must be re-fetched.
type Event struct {
	Type      string `json:"type"`
	ListingID string `json:"listing_id"`
}

// Syncer is the slice of the lifecycle controller the listener needs.
type Syncer interface {
	Load(ctx context.Context) error
	LoadBids(ctx context.Context, listingID string) error
	Refresh(ctx context.Context) error
}

// Listener owns the stream subscription and dispatches refreshes onto a
// bounded worker pool so a burst of events cannot pile up goroutines.
type Listener struct {
	syncer Syncer
	pool   *concurrency.WorkerPool
	stream *websocket.Client
	logger core.ILogger
	policy retry.Policy

	ctx    context.Context
	cancel context.CancelFunc
}

// Config holds listener settings.
type Config struct {
	URL            string
	ReconnectDelay time.Duration
	PoolSize       int
	PoolBuffer     int
}

// NewListener wires the stream client, worker pool, and syncer together.
// Call Start to begin receiving.
func NewListener(cfg Config, syncer Syncer, logger core.ILogger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())

	l := &Listener{
		syncer: syncer,
		logger: logger.WithField("component", "notify_listener"),
		policy: retry.DefaultPolicy,
		ctx:    ctx,
		cancel: cancel,
	}

	l.pool = concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "notify-refresh",
		MaxWorkers:  cfg.PoolSize,
		MaxCapacity: cfg.PoolBuffer,
		NonBlocking: true,
	}, logger)

	l.stream = websocket.NewClient(cfg.URL, l.handleFrame, logger)
	if cfg.ReconnectDelay > 0 {
		l.stream.SetReconnectWait(cfg.ReconnectDelay)
	}
	// Events published while the link was down are lost, so every
	// (re)connect is followed by a full resync.
	l.stream.SetOnConnected(l.resync)

	return l
}

// Start begins the subscription in the background.
func (l *Listener) Start() {
	l.stream.Start()
}

// Healthy returns an error while the stream is disconnected. Used as a
// health check; a disconnected stream means events are being missed.
func (l *Listener) Healthy() error {
	if !l.stream.Connected() {
		return fmt.Errorf("notify stream disconnected")
	}
	return nil
}

// Stop tears down the subscription and drains queued refreshes.
func (l *Listener) Stop() {
	l.cancel()
	l.stream.Stop()
	l.pool.Stop()
}

func (l *Listener) resync() {
	if err := l.pool.Submit(func() {
		err := retry.Do(l.ctx, l.policy, isTransient, func() error {
			return l.syncer.Refresh(l.ctx)
		})
		if err != nil {
			l.logger.Error("Post-connect resync failed", "error", err)
		}
	}); err != nil {
		l.logger.Warn("Refresh pool full, dropping resync", "error", err)
	}
}

func (l *Listener) handleFrame(message []byte) {
	var ev Event
	if err := json.Unmarshal(message, &ev); err != nil {
		l.logger.Warn("Discarding malformed notify frame", "error", err)
		return
	}

	switch ev.Type {
	case EventListingUpdated, EventListingCancelled:
		l.dispatch(func() error {
			if err := l.syncer.Load(l.ctx); err != nil {
				return err
			}
			if ev.ListingID == "" {
				return nil
			}
			err := l.syncer.LoadBids(l.ctx, ev.ListingID)
			if errors.Is(err, apperrors.ErrUnknownListing) {
				// Cancelled listings drop out of the snapshot; their
				// bids are gone with them.
				return nil
			}
			return err
		})
	case EventBidCreated, EventBidUpdated:
		if ev.ListingID == "" {
			l.logger.Warn("Bid event without listing id", "type", ev.Type)
			return
		}
		l.dispatch(func() error {
			err := l.syncer.LoadBids(l.ctx, ev.ListingID)
			if errors.Is(err, apperrors.ErrUnknownListing) {
				// A bid on a listing we have not seen yet; pick the
				// listing up first.
				if err := l.syncer.Load(l.ctx); err != nil {
					return err
				}
				err = l.syncer.LoadBids(l.ctx, ev.ListingID)
			}
			return err
		})
	default:
		l.logger.Debug("Ignoring notify event", "type", ev.Type)
	}
}

func (l *Listener) dispatch(fn func() error) {
	if err := l.pool.Submit(func() {
		if err := retry.Do(l.ctx, l.policy, isTransient, fn); err != nil {
			l.logger.Error("Notify refresh failed", "error", err)
		}
	}); err != nil {
		l.logger.Warn("Refresh pool full, dropping event", "error", err)
	}
}

// isTransient treats fetch failures as retryable; validation and
// integrity errors are not going to resolve themselves by waiting.
func isTransient(err error) bool {
	return errors.Is(err, apperrors.ErrFetchFailed) || errors.Is(err, apperrors.ErrNetwork)
}
