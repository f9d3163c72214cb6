package domain

import (
	"context"
	"time"
)

// AttemptEvent describes one strategy attempt inside a decide call.
type AttemptEvent struct {
	Timestamp   time.Time     `json:"timestamp"`
	EpisodeID   string        `json:"episodeId"`
	Strategy    string        `json:"strategy"`
	Goal        string        `json:"goal"`
	Attempt     int           `json:"attempt"`
	MaxAttempts int           `json:"maxAttempts"`
	Decided     bool          `json:"decided"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"`
}

// DecisionHooks defines callbacks for decision observability.
type DecisionHooks struct {
	OnAttempt   func(context.Context, *AttemptEvent)
	OnDecision  func(context.Context, *Decision)
	OnExhausted func(context.Context, *AttemptEvent)
}

// CombineHooks fans each callback out to every non-nil hook in order.
func CombineHooks(hooks ...DecisionHooks) DecisionHooks {
	return DecisionHooks{
		OnAttempt: func(ctx context.Context, e *AttemptEvent) {
			for _, h := range hooks {
				if h.OnAttempt != nil {
					h.OnAttempt(ctx, e)
				}
			}
		},
		OnDecision: func(ctx context.Context, d *Decision) {
			for _, h := range hooks {
				if h.OnDecision != nil {
					h.OnDecision(ctx, d)
				}
			}
		},
		OnExhausted: func(ctx context.Context, e *AttemptEvent) {
			for _, h := range hooks {
				if h.OnExhausted != nil {
					h.OnExhausted(ctx, e)
				}
			}
		},
	}
}
