package batch

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// fakeClock advances its notion of now by every duration it is asked to wait.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 4, 23, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.waits = append(c.waits, d)
	now := c.now
	c.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

func (c *fakeClock) Elapsed(since time.Time) time.Duration {
	return c.Now().Sub(since)
}

// scriptedProvider returns statuses in order, repeating the last one.
type scriptedProvider struct {
	statuses []string
	errAt    int // 1-based GetBatch call that fails; 0 never
	err      error
	calls    int
}

func (p *scriptedProvider) UploadBatchFile(context.Context, string, []byte) (string, error) {
	return "file-in", nil
}

func (p *scriptedProvider) CreateBatch(_ context.Context, fileID, endpoint, window string) (*Job, error) {
	return &Job{ID: "batch_1", Status: "validating", InputFileID: fileID, Endpoint: endpoint, CompletionWindow: window}, nil
}

func (p *scriptedProvider) GetBatch(_ context.Context, batchID string) (*Job, error) {
	p.calls++
	if p.errAt != 0 && p.calls == p.errAt {
		return nil, p.err
	}
	idx := p.calls - 1
	if idx >= len(p.statuses) {
		idx = len(p.statuses) - 1
	}
	return &Job{ID: batchID, Status: p.statuses[idx]}, nil
}

func (p *scriptedProvider) DownloadFile(_ context.Context, fileID string) ([]byte, error) {
	return nil, fmt.Errorf("unexpected download of %s", fileID)
}
