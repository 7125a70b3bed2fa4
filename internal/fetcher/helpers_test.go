package fetcher_test

import (
	"context"
	"sync"
	"time"

	"github.com/angeloszaimis/authguard/internal/transport"
)

type step struct {
	resp *transport.Response
	err  error
}

// scriptedClient replays steps in order and repeats the last one.
type scriptedClient struct {
	mu    sync.Mutex
	steps []step
	calls int
	// onGet runs before each reply.
	onGet func()
}

func (c *scriptedClient) Get(_ context.Context, _ string) (*transport.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	if i >= len(c.steps) {
		i = len(c.steps) - 1
	}
	c.calls++
	if c.onGet != nil {
		c.onGet()
	}
	return c.steps[i].resp, c.steps[i].err
}

func (c *scriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func ok(body string) step {
	return step{resp: &transport.Response{StatusCode: 200, Body: []byte(body)}}
}

func status(code int) step {
	return step{resp: &transport.Response{StatusCode: code, Body: []byte(`{"message":"nope"}`)}}
}

func failed(err error) step {
	return step{err: err}
}

type countingRecorder struct {
	served           map[string]int
	failed           map[string]int
	attempts         map[string]int
	rejections       int
	cacheWriteErrors int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		served:   map[string]int{},
		failed:   map[string]int{},
		attempts: map[string]int{},
	}
}

func (r *countingRecorder) FetchServed(source string) { r.served[source]++ }
func (r *countingRecorder) FetchFailed(kind string) { r.failed[kind]++ }
func (r *countingRecorder) AttemptFinished(outcome string, _ time.Duration) { r.attempts[outcome]++ }
func (r *countingRecorder) BreakerRejected() { r.rejections++ }
func (r *countingRecorder) CacheWriteFailed() { r.cacheWriteErrors++ }
