// Package consumer implements the Event Consumer (C6) and Result
// Aggregator (C7): the read side of an Event Queue, terminal-event
// detection, and the three fold modes the Request Handler drives against
// the Task Manager. Grounded on the select/context-cancellation loop of the
// teacher's pkg/sse.Client.SubscribeWithContext, generalized from an SSE
// byte stream with reconnect to an in-process a2a.Event channel with no
// reconnection (the producer is the Event Queue, which is never
// transient).
package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/theapemachine/a2a-engine/internal/taskmanager"
	"github.com/theapemachine/a2a-engine/pkg/a2a"
)

// ErrNoResponse is surfaced by ConsumeOne when the stream closes before
// producing any event, or (§5 "Cancellation and timeouts") when
// pollTimeout elapses before one arrives (§4.4).
var ErrNoResponse = errors.New("consumer: stream ended with no event")

// Consumer reads events off an Event Queue's subscriber channel.
type Consumer struct {
	events      <-chan a2a.Event
	err         error
	pollTimeout time.Duration
}

// New wraps an Event Queue subscriber channel, as returned by
// eventqueue.Queue.Subscribe. pollTimeout bounds how long ConsumeOne waits
// for a single event (§6's consumer.pollTimeout, default 500ms); zero
// disables the bound and lets ConsumeOne block until ctx is done.
func New(events <-chan a2a.Event, pollTimeout time.Duration) *Consumer {
	return &Consumer{events: events, pollTimeout: pollTimeout}
}

// SetExecutorErr records an agent executor failure so it surfaces once the
// already-buffered events drain, per §7's "Executor failures" policy.
func (c *Consumer) SetExecutorErr(err error) {
	c.err = err
}

// ConsumeOne yields the first event off the stream. It fails with
// ErrNoResponse if the stream closes before producing one, or if
// pollTimeout elapses first (§5).
func (c *Consumer) ConsumeOne(ctx context.Context) (a2a.Event, error) {
	if c.pollTimeout <= 0 {
		select {
		case event, ok := <-c.events:
			if !ok {
				return a2a.Event{}, ErrNoResponse
			}
			return event, nil
		case <-ctx.Done():
			return a2a.Event{}, ctx.Err()
		}
	}

	timer := time.NewTimer(c.pollTimeout)
	defer timer.Stop()

	select {
	case event, ok := <-c.events:
		if !ok {
			return a2a.Event{}, ErrNoResponse
		}
		return event, nil
	case <-ctx.Done():
		return a2a.Event{}, ctx.Err()
	case <-timer.C:
		return a2a.Event{}, ErrNoResponse
	}
}

// ConsumeAll relays events to fn until a terminal event is observed (fn is
// called for the terminal event too), then returns. A recorded executor
// error surfaces only after the stream fully drains.
func (c *Consumer) ConsumeAll(ctx context.Context, fn func(a2a.Event) error) error {
	for {
		select {
		case event, ok := <-c.events:
			if !ok {
				return c.err
			}
			if err := fn(event); err != nil {
				return err
			}
			if event.Terminal() {
				return c.err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Aggregator drives a Consumer against a Task Manager, implementing the
// three Result Aggregator modes of §4.4.
type Aggregator struct {
	manager *taskmanager.Manager
}

func NewAggregator(manager *taskmanager.Manager) *Aggregator {
	return &Aggregator{manager: manager}
}

// ConsumeAndEmit folds every event through the Task Manager, then re-emits
// it via emit — the streaming request path (message/stream,
// tasks/resubscribe). pinnedTaskID is the task id this stream is bound to;
// see Manager.Process.
func (a *Aggregator) ConsumeAndEmit(ctx context.Context, c *Consumer, pinnedTaskID string, emit func(a2a.Event) error) error {
	return c.ConsumeAll(ctx, func(event a2a.Event) error {
		if _, err := a.manager.Process(ctx, pinnedTaskID, event); err != nil {
			return err
		}
		return emit(event)
	})
}

// ConsumeAll folds the full stream and returns the final Task or Message
// observed, per §4.4's blocking-fold mode. If the stream produces no
// events at all, the given current Task snapshot is returned unchanged.
func (a *Aggregator) ConsumeAll(
	ctx context.Context, c *Consumer, current *a2a.Task,
) (task *a2a.Task, message *a2a.Message, err error) {
	task = current

	foldErr := c.ConsumeAll(ctx, func(event a2a.Event) error {
		if event.Kind == a2a.EventKindMessage {
			message = event.Message
			return nil
		}

		processed, procErr := a.manager.Process(ctx, current.ID, event)
		if procErr != nil {
			return procErr
		}
		if processed != nil {
			task = processed
		}
		return nil
	})
	if foldErr != nil {
		return nil, nil, foldErr
	}

	if message != nil {
		return nil, message, nil
	}
	return task, nil, nil
}

// ConsumeAndBreakOnInterrupt folds events until a terminal event or an
// auth-required interruption (§4.4 mode 3). On interruption it returns
// immediately with interrupted=true, and continues draining the remainder
// of the stream on a background worker (decoupled from the caller's
// context, which a client disconnect would otherwise cancel) so the Task
// Store stays consistent with the executor's full output.
//
// ErrNoResponse propagates rather than being swallowed: a stream that
// closes having folded zero events means the Agent Executor returned
// without ever enqueuing the terminal event §4.9 requires, which the
// caller must see as a failure (mapped to InvalidAgentResponse by
// internal/server), not a silent success against the pre-execution task.
func (a *Aggregator) ConsumeAndBreakOnInterrupt(
	ctx context.Context, c *Consumer, current *a2a.Task,
) (task *a2a.Task, message *a2a.Message, interrupted bool, err error) {
	task = current

	for {
		event, consumeErr := c.ConsumeOne(ctx)
		if consumeErr != nil {
			return task, nil, false, consumeErr
		}

		if event.Kind == a2a.EventKindMessage {
			return task, event.Message, false, nil
		}

		processed, procErr := a.manager.Process(ctx, current.ID, event)
		if procErr != nil {
			return task, nil, false, procErr
		}
		if processed != nil {
			task = processed
		}

		if event.Interruption() {
			go a.drainBackground(c, current.ID)
			return task, nil, true, nil
		}

		if event.Terminal() {
			return task, nil, false, nil
		}
	}
}

func (a *Aggregator) drainBackground(c *Consumer, pinnedTaskID string) {
	_ = c.ConsumeAll(context.Background(), func(event a2a.Event) error {
		_, err := a.manager.Process(context.Background(), pinnedTaskID, event)
		return err
	})
}
