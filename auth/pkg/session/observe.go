package session

import (
	"context"
	"time"

	"github.com/phoenixfitness/phoenix-stack/common/logging"
	"github.com/phoenixfitness/phoenix-stack/common/messaging"
	"github.com/phoenixfitness/phoenix-stack/common/middleware"
)

// Subscribe returns a channel that receives the current snapshot immediately
// and every change after it. Slow receivers only ever see the latest state.
// The returned function stops the subscription and closes the channel.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snap.clone()
	m.subMu.Unlock()
	m.mu.Unlock()

	return ch, func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
}

// notify delivers snap to every subscriber without blocking.
func (m *Manager) notify(snap Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subs {
		select {
		case ch <- snap:
		default:
			// drop the stale value so the newest one fits
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// publish emits a lifecycle event when a publisher is configured.
func (m *Manager) publish(ctx context.Context, event string, snap Snapshot, reason string) {
	if m.opts.Publisher == nil {
		return
	}

	payload := messaging.SessionEvent{
		Event:     event,
		State:     snap.State.String(),
		Reason:    reason,
		Timestamp: m.now().UTC(),
	}
	if snap.User != nil {
		payload.Email = snap.User.Email
		payload.Role = string(snap.Role())
	}

	var opts []messaging.PublishOption
	if id := middleware.GetRequestID(ctx); id != "" {
		opts = append(opts, messaging.WithHeader(messaging.HeaderRequestID, id))
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()

	subject := messaging.SessionSubject(m.opts.SubjectPrefix, event)
	if err := messaging.PublishJSON(pctx, m.opts.Publisher, subject, payload, opts...); err != nil {
		m.logger.WarnContext(ctx, "failed to publish session event",
			"subject", subject, logging.Error(err))
	}
}
