// Package analyze turns scraped page text into derived artifacts: a
// chronological timeline, a media-linked timeline, and a prose summary,
// via batched calls to an external model.
package analyze

import "context"

// Invoker sends one prompt to the model and returns its text response.
// Implementations return typed pipeline errors so the retry policy can
// separate throttling and credential hiccups from permanent failures.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, prompt string) (string, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
