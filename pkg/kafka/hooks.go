package kafka

import (
    "context"

    "github.com/segmentio/kafka-go"
)

// ConsumerHook observes message handling. Returning an error from
// BeforeHandle skips the handler and sends the message down the failure path
// (OnError, DLQ, commit).
type ConsumerHook interface {
    BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error)
    AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
    OnError(ctx context.Context, topic string, km kafka.Message, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message) (context.Context, error) {
    return ctx, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, error) {}

// HookFuncs adapts plain functions to ConsumerHook. Nil functions are no-ops.
type HookFuncs struct {
    Before func(context.Context, string, kafka.Message) (context.Context, error)
    After  func(context.Context, string, kafka.Message, error)
    Err    func(context.Context, string, kafka.Message, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message) (context.Context, error) {
    if h.Before == nil {
        return ctx, nil
    }
    return h.Before(ctx, topic, km)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
    if h.After != nil {
        h.After(ctx, topic, km, err)
    }
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, err error) {
    if h.Err != nil {
        h.Err(ctx, topic, km, err)
    }
}
