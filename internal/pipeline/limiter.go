package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"

	"formsmith/internal/llm"
)

// limitedClient bounds concurrent completion calls across all stages of an
// invocation with a weighted semaphore. Stages never talk to providers
// directly; every call funnels through this wrapper.
type limitedClient struct {
	inner llm.Client
	sem   *semaphore.Weighted
}

// LimitClient wraps a client so at most n completions run at once.
func LimitClient(c llm.Client, n int) llm.Client {
	if n < 1 {
		n = 1
	}
	return &limitedClient{inner: c, sem: semaphore.NewWeighted(int64(n))}
}

func (l *limitedClient) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer l.sem.Release(1)
	return l.inner.Complete(ctx, req)
}
