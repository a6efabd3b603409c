package bus

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

type EventHandler[T any] = func(context.Context, T)

func MergeHandlers[T any](handlers ...EventHandler[T]) EventHandler[T] {
	return func(ctx context.Context, event T) {
		for _, handler := range handlers {
			handler(ctx, event)
		}
	}
}

// Listen drives one receive loop: every event on sub whose payload is a T is
// passed to handler. Payloads of any other type, and handlers that panic, are
// counted as dispatch failures and skipped. Listen returns nil when sub is
// closed and ctx.Err() once ctx is done.
func Listen[T any](ctx context.Context, sub *Subscription, handler EventHandler[T]) error {
	r := sub.router
	for {
		ev, err := sub.next(ctx, &r.inFlight)
		if err != nil {
			if errors.Is(err, ErrSubscriptionClosed) {
				return nil
			}
			return err
		}

		r.dispatchCount.Add(1)

		payload, ok := ev.Payload.(T)
		if !ok {
			r.inFlight.Add(-1)
			r.dispatchFails.Add(1)
			r.logger.Warn("dispatch failed",
				zap.String("topic", ev.Topic),
				zap.Uint64("seq", ev.Seq),
				zap.String("payload_type", fmt.Sprintf("%T", ev.Payload)))
			continue
		}

		dispatch(ctx, r, ev, payload, handler)
	}
}

func dispatch[T any](ctx context.Context, r *Router, ev Event, payload T, handler EventHandler[T]) {
	defer func() {
		r.inFlight.Add(-1)
		if v := recover(); v != nil {
			r.dispatchFails.Add(1)
			r.logger.Error("handler panicked",
				zap.String("topic", ev.Topic),
				zap.Uint64("seq", ev.Seq),
				zap.Any("panic", v),
				zap.StackSkip("stack", 1))
		}
	}()

	handler(ctx, payload)
}

// SubscribeAndListen subscribes before returning the loop, so events published
// after the call are never missed even if the loop starts later.
func SubscribeAndListen[T any](r *Router, topic string, handler EventHandler[T]) func(context.Context) error {
	sub := r.Subscribe(topic)
	return func(ctx context.Context) error {
		defer sub.Close()
		return Listen(ctx, sub, handler)
	}
}
