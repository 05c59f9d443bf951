package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tazhate/onlinebot/internal/domain"
)

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type fakeNotifier struct {
	mu      sync.Mutex
	armErr  error
	pending map[string]domain.Notification
	armed   int
	cancels int
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{pending: map[string]domain.Notification{}}
}

func (f *fakeNotifier) Arm(_ context.Context, n domain.Notification) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return "", f.armErr
	}
	f.armed++
	f.pending[n.ID] = n
	return n.ID, nil
}

func (f *fakeNotifier) Cancel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	delete(f.pending, id)
	return nil
}

func (f *fakeNotifier) ListPending(_ context.Context, chatID int64) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Notification
	for _, n := range f.pending {
		if chatID == 0 || n.ChatID == chatID {
			n := n
			out = append(out, &n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FireAt.Before(out[j].FireAt) })
	return out, nil
}

type fakeSource struct {
	events []domain.Event
	err    error
	calls  int
}

func (f *fakeSource) Fetch(context.Context) ([]domain.Event, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

type fakeCareerSource struct {
	careers []domain.Career
	err     error
	calls   int
}

func (f *fakeCareerSource) FetchCareers(context.Context) ([]domain.Career, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.careers, nil
}
