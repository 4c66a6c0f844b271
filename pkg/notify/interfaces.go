// Package notify pkg/notify/interfaces.go
package notify

import "context"

//go:generate mockgen -destination=mock_notify.go -package=notify github.com/carverauto/siteradar/pkg/notify Notifier

// Notifier tells subscribers that persisted state changed.
type Notifier interface {
	Notify(ctx context.Context, updated bool)
}

// Nop is a Notifier that does nothing.
type Nop struct{}

func (Nop) Notify(context.Context, bool) {}

// Func adapts a function to a Notifier.
type Func func(ctx context.Context, updated bool)

func (f Func) Notify(ctx context.Context, updated bool) {
	f(ctx, updated)
}
