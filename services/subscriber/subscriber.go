// Package subscriber tracks a single build to its terminal state. Updates
// arrive over the bus when one is connected; a bounded-interval poll covers
// deployments without push and fills gaps when push messages are missed.
package subscriber

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"web2desk/services/orchestrator"
)

// Update is one observed change of a watched build. Build is set for
// pushed row changes, Result for poll results; Status is always set.
type Update struct {
	Status string
	Build  *orchestrator.Build
	Result *orchestrator.StatusResult
}

// PushSource delivers build updates published on the bus.
type PushSource interface {
	Subscribe(ctx context.Context, subject, durable string, handler func(context.Context, []byte) error) (io.Closer, error)
}

// StatusChecker reconciles a build against remote state.
type StatusChecker interface {
	Reconcile(ctx context.Context, id uuid.UUID) (*orchestrator.StatusResult, error)
}

// Subscriber watches builds until they reach a terminal state.
type Subscriber struct {
	push     PushSource
	checker  StatusChecker
	interval time.Duration
	log      zerolog.Logger
}

// New builds a Subscriber. push may be nil; watching then relies on the
// poll interval alone.
func New(push PushSource, checker StatusChecker, interval time.Duration, log zerolog.Logger) *Subscriber {
	if interval <= 0 {
		interval = 12 * time.Second
	}
	return &Subscriber{
		push:     push,
		checker:  checker,
		interval: interval,
		log:      log.With().Str("component", "subscriber").Logger(),
	}
}

// Watch delivers updates for the build to fn until the build reaches a
// terminal state (returns nil) or ctx is cancelled (returns ctx.Err()).
// fn is never called concurrently.
func (s *Subscriber) Watch(ctx context.Context, buildID uuid.UUID, fn func(Update)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		once sync.Once
		done = make(chan struct{})
	)
	deliver := func(u Update) {
		mu.Lock()
		fn(u)
		mu.Unlock()
		if orchestrator.Terminal(u.Status) {
			once.Do(func() { close(done) })
		}
	}

	if s.push != nil {
		closer, err := s.push.Subscribe(ctx, orchestrator.UpdatesSubject(buildID), "", func(_ context.Context, data []byte) error {
			var b orchestrator.Build
			if err := json.Unmarshal(data, &b); err != nil {
				return err
			}
			deliver(Update{Status: b.Status, Build: &b})
			return nil
		})
		if err != nil {
			s.log.Warn().Err(err).Stringer("build_id", buildID).Msg("push subscription failed, polling only")
		} else {
			defer closer.Close()
		}
	}

	poll := func() {
		res, err := s.checker.Reconcile(ctx, buildID)
		if err != nil {
			s.log.Debug().Err(err).Stringer("build_id", buildID).Msg("poll failed")
			return
		}
		deliver(Update{Status: res.Status, Result: res})
	}
	poll()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			return nil
		case <-ticker.C:
			poll()
		}
	}
}
