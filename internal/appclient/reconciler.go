// internal/appclient/reconciler.go
package appclient

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"fitbridge-service/internal/domain/handoff"

	"go.uber.org/zap"
)

// Status is the observable outcome of a reconciliation trigger, surfaced to
// the app shell so it can decide what to render.
type Status string

const (
	// StatusPending: no login in progress for this device; poller went idle.
	StatusPending Status = "handoff_pending"
	// StatusComplete: a pending session was consumed and an app session issued.
	StatusComplete Status = "handoff_complete"
	// StatusNoop: another trigger path already completed this handoff.
	StatusNoop Status = "handoff_noop"
	// StatusExpired: the record outlived its TTL; the user must sign in again.
	StatusExpired Status = "handoff_expired"
	// StatusError: unrecoverable for this attempt; show the login screen.
	StatusError Status = "handoff_error"
)

// Result carries the outcome of a trigger. AppSession is set only for
// StatusComplete.
type Result struct {
	Status     Status
	AppSession *handoff.AppSession
	Err        error
}

// Client is the subset of the REST transport the reconciler needs; faked in
// tests.
type Client interface {
	LookupPending(ctx context.Context, deviceID string) (*handoff.LookupResponse, error)
	ConsumePending(ctx context.Context, handle string) (*handoff.ConsumeResponse, error)
}

// Config bounds the foreground poll loop. Sleep is injectable so tests run
// without wall-clock delay.
type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

const (
	defaultMaxAttempts = 6
	defaultDelay       = 2 * time.Second
)

func (c *Config) applyDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.Delay <= 0 {
		c.Delay = defaultDelay
	}
	if c.Sleep == nil {
		c.Sleep = func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		}
	}
}

// Reconciler drives the client side of the session handoff. Both trigger
// paths, the OS-delivered launch URL and the foreground poll loop, converge
// on a single guarded materialize call; the server's atomic consume decides
// the winner when they race.
type Reconciler struct {
	client   Client
	guard    *Guard
	deviceID string
	cfg      Config
	logger   *zap.Logger

	// generation invalidates in-flight poll sequences: each foreground
	// event bumps it, and a sequence that observes a newer generation stops
	// scheduling further attempts instead of stacking on the fresh one.
	generation atomic.Uint64
}

func NewReconciler(client Client, storage Storage, cfg Config, logger *zap.Logger) (*Reconciler, error) {
	deviceID, err := EnsureDeviceID(storage)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &Reconciler{
		client:   client,
		guard:    NewGuard(storage),
		deviceID: deviceID,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// DeviceID returns the install-stable device identifier.
func (r *Reconciler) DeviceID() string {
	return r.deviceID
}

// HandleLaunchURL processes an OS-delivered launch URL. Unrelated URLs and
// already-processed handles are ignored quietly; the OS redelivers the last
// launch URL on every relaunch until a new link replaces it.
func (r *Reconciler) HandleLaunchURL(ctx context.Context, raw string) Result {
	req, ok := ParseLaunchURL(raw)
	if !ok {
		return Result{Status: StatusNoop}
	}

	r.logger.Debug("launch URL carries session handle",
		zap.Int64("identity_id", req.IdentityID),
	)
	return r.materialize(ctx, req.SessionHandle)
}

// OnForeground runs one bounded lookup sequence. It covers the case where
// the browser's OAuth callback finishes after the app has already resumed,
// so no fresh deep link is ever delivered to this instance. Exhausting the
// attempt budget is not an error; it means no login is in progress.
func (r *Reconciler) OnForeground(ctx context.Context) Result {
	gen := r.generation.Add(1)

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.cfg.Sleep(ctx, r.cfg.Delay); err != nil {
				return Result{Status: StatusPending}
			}
		}
		if r.generation.Load() != gen {
			// A newer foreground event owns the polling now.
			return Result{Status: StatusPending}
		}

		resp, err := r.client.LookupPending(ctx, r.deviceID)
		if err != nil {
			// Timeouts and transient failures count as "not found this
			// attempt" against the retry budget.
			r.logger.Debug("pending lookup failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		if !resp.Found {
			continue
		}
		return r.materialize(ctx, resp.SessionHandle)
	}

	return Result{Status: StatusPending}
}

// materialize is the single funnel for both trigger paths: guard check,
// mark, then one consume call. The guard keeps duplicates off the network;
// the server's conditional update is what actually enforces at-most-once.
func (r *Reconciler) materialize(ctx context.Context, handle string) Result {
	process, err := r.guard.ShouldProcess(handle)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}
	if !process {
		r.logger.Debug("session handle already processed on this device")
		return Result{Status: StatusNoop}
	}

	if err := r.guard.MarkProcessing(handle); err != nil {
		return Result{Status: StatusError, Err: err}
	}

	resp, err := r.client.ConsumePending(ctx, handle)
	if err != nil {
		return Result{Status: StatusError, Err: err}
	}

	switch resp.Status {
	case handoff.StatusOK:
		r.logger.Info("session handoff complete",
			zap.Int64("identity_id", resp.AppSession.IdentityID),
		)
		return Result{Status: StatusComplete, AppSession: resp.AppSession}
	case handoff.StatusAlreadyConsumed:
		// The other trigger path won the race. Not a failure.
		r.logger.Debug("pending session already consumed")
		return Result{Status: StatusNoop}
	case handoff.StatusExpired:
		return Result{Status: StatusExpired}
	case handoff.StatusNotFound:
		// A forged or corrupted handle; worth a loud log, then fall back to
		// the login screen.
		r.logger.Warn("pending session handle unknown to the server")
		return Result{Status: StatusError, Err: errors.New("unknown session handle")}
	default:
		return Result{Status: StatusError, Err: errors.New("unexpected consume status " + string(resp.Status))}
	}
}

// OnLogout clears the idempotency marker so the next login's handle is
// processable. Session expiry never clears it.
func (r *Reconciler) OnLogout() error {
	return r.guard.Clear()
}
