package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

const (
	DefaultInterval      = 3 * time.Second
	DefaultMaxErrors     = 5
	DefaultFetchLimit    = 50
	DefaultPreviewLength = 80
)

type Options struct {
	// UserID is the session owner; their own messages are never surfaced.
	UserID        string
	Interval      time.Duration
	MaxErrors     int
	FetchLimit    int
	PreviewLength int
	Policy        VisibilityPolicy
}

// Reconciler polls the recent-messages window and surfaces every message
// from another participant at least once, diffing against a watermark.
type Reconciler struct {
	fetcher Fetcher
	sink    Sink
	opts    Options
	logger  zerolog.Logger

	inFlight atomic.Bool

	mu                sync.Mutex
	lastSeen          string
	seeded            bool
	consecutiveErrors int
	authFailed        bool
	generation        uint64

	wg     sync.WaitGroup
	cancel context.CancelFunc
	done   chan struct{}
}

func New(fetcher Fetcher, sink Sink, opts Options) *Reconciler {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	if opts.FetchLimit <= 0 {
		opts.FetchLimit = DefaultFetchLimit
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}
	if opts.Policy == nil {
		opts.Policy = neverEscalate{}
	}
	return &Reconciler{
		fetcher: fetcher,
		sink:    sink,
		opts:    opts,
		logger:  log.Component("reconciler").With().Str(log.FieldUserID, opts.UserID).Logger(),
	}
}

// Start ticks immediately and then on every interval until ctx is done or
// Stop is called. A tick that fires while the previous one is still in
// flight is skipped.
func (r *Reconciler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()

		r.dispatch(ctx)
		for {
			select {
			case <-ctx.Done():
				r.wg.Wait()
				return
			case <-ticker.C:
				r.dispatch(ctx)
			}
		}
	}()
}

func (r *Reconciler) dispatch(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		err := r.Tick(ctx)
		switch {
		case err == nil, errors.Is(err, ErrCircuitOpen), errors.Is(err, context.Canceled):
		case errors.Is(err, ErrTickInFlight):
			r.logger.Debug().Msg("previous tick still running, skipped")
		default:
			r.logger.Debug().Err(err).Msg("tick failed")
		}
	}()
}

// Stop cancels the poller and waits for an in-flight tick to finish.
func (r *Reconciler) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// Done is closed once the poller has fully stopped.
func (r *Reconciler) Done() <-chan struct{} {
	return r.done
}

// Tick runs one reconciliation pass.
func (r *Reconciler) Tick(ctx context.Context) error {
	if !r.inFlight.CompareAndSwap(false, true) {
		return ErrTickInFlight
	}
	defer r.inFlight.Store(false)

	r.mu.Lock()
	if r.openLocked() {
		r.mu.Unlock()
		return ErrCircuitOpen
	}
	gen := r.generation
	r.mu.Unlock()

	messages, err := r.fetcher.FetchRecent(ctx, r.opts.FetchLimit)

	r.mu.Lock()
	if gen != r.generation {
		// Reset ran while fetching; the result belongs to the old session.
		r.mu.Unlock()
		return nil
	}
	if err != nil && ctx.Err() != nil {
		r.mu.Unlock()
		return ctx.Err()
	}
	if err != nil {
		opened := r.recordFailureLocked(err)
		r.mu.Unlock()
		if opened {
			r.sink.Unavailable(err)
		}
		return fmt.Errorf("fetch recent messages: %w", err)
	}
	r.consecutiveErrors = 0

	others := lo.Filter(messages, func(m Message, _ int) bool {
		return m.SenderID != r.opts.UserID
	})

	if !r.seeded {
		r.seeded = true
		if len(others) > 0 {
			r.lastSeen = others[0].ID
		}
		watermark := r.lastSeen
		r.mu.Unlock()
		r.logger.Debug().Str("watermark", watermark).Int("window", len(others)).Msg("watermark seeded")
		return nil
	}

	fresh := newerThan(others, r.lastSeen)
	if len(fresh) > 0 {
		r.lastSeen = others[0].ID
	}
	r.mu.Unlock()

	escalate := r.opts.Policy.ShouldEscalate()
	for _, m := range lo.Reverse(fresh) {
		r.sink.Notify(Notification{
			MessageID:  m.ID,
			ChatID:     m.ChatID,
			SenderID:   m.SenderID,
			SenderName: senderName(m),
			Preview:    preview(m.Content, r.opts.PreviewLength),
			CreatedAt:  m.CreatedAt,
			Escalate:   escalate,
		})
	}
	if len(fresh) > 0 {
		r.logger.Debug().Int("count", len(fresh)).Msg("notifications emitted")
	}
	return nil
}

// newerThan returns the prefix of a newest-first window that precedes the
// watermark. A watermark outside the window surfaces the whole window.
func newerThan(window []Message, watermark string) []Message {
	_, idx, found := lo.FindIndexOf(window, func(m Message) bool {
		return m.ID == watermark
	})
	if !found {
		return window
	}
	return window[:idx]
}

// recordFailureLocked reports whether this failure opened the circuit.
func (r *Reconciler) recordFailureLocked(err error) bool {
	if errors.Is(err, ErrUnauthenticated) {
		r.authFailed = true
		r.logger.Warn().Err(err).Msg("authentication rejected, polling stopped until reset")
		return true
	}
	r.consecutiveErrors++
	if r.consecutiveErrors >= r.opts.MaxErrors {
		r.logger.Warn().Err(err).Int("errors", r.consecutiveErrors).Msg("too many consecutive failures, polling stopped until reset")
		return true
	}
	return false
}

func (r *Reconciler) openLocked() bool {
	return r.authFailed || r.consecutiveErrors >= r.opts.MaxErrors
}

// Reset closes the circuit and reinitializes the session: the next
// successful tick seeds a fresh watermark.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation++
	r.lastSeen = ""
	r.seeded = false
	r.consecutiveErrors = 0
	r.authFailed = false
	r.logger.Info().Msg("reconciler reset")
}

// State is a point-in-time view for diagnostics and tests.
type State struct {
	LastSeen          string
	Seeded            bool
	ConsecutiveErrors int
	AuthFailed        bool
	Open              bool
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{
		LastSeen:          r.lastSeen,
		Seeded:            r.seeded,
		ConsecutiveErrors: r.consecutiveErrors,
		AuthFailed:        r.authFailed,
		Open:              r.openLocked(),
	}
}
