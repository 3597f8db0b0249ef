package order_test

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	dominv "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/outbox"
)

// fakeInventory is an in-process inventory service that counts every call.
type fakeInventory struct {
	mu         sync.Mutex
	stock      map[int64]int
	getErr     map[int64]error
	reserveErr map[int64]error
	releaseErr error
	hang       map[int64]bool
	getHang    map[int64]bool

	getCalls     atomic.Int64
	reserveCalls atomic.Int64
	releaseCalls atomic.Int64
}

// newFakeInventory copies stock so callers can keep the initial levels for assertions.
func newFakeInventory(stock map[int64]int) *fakeInventory {
	initial := make(map[int64]int, len(stock))
	maps.Copy(initial, stock)
	return &fakeInventory{
		stock:      initial,
		getErr:     map[int64]error{},
		reserveErr: map[int64]error{},
		hang:       map[int64]bool{},
		getHang:    map[int64]bool{},
	}
}

func (f *fakeInventory) GetProduct(ctx context.Context, id int64) (*dominv.Product, error) {
	f.getCalls.Add(1)
	f.mu.Lock()
	hang := f.getHang[id]
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.getErr[id]; err != nil {
		return nil, err
	}
	qty, ok := f.stock[id]
	if !ok {
		return nil, dominv.NotFoundError(id)
	}
	return &dominv.Product{ID: id, Name: fmt.Sprintf("p-%d", id), AvailableQuantity: qty}, nil
}

func (f *fakeInventory) Reserve(ctx context.Context, id int64, units int) (int, error) {
	f.reserveCalls.Add(1)
	f.mu.Lock()
	hang := f.hang[id]
	f.mu.Unlock()
	if hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.reserveErr[id]; err != nil {
		return 0, err
	}
	qty, ok := f.stock[id]
	if !ok {
		return 0, dominv.NotFoundError(id)
	}
	if units > qty {
		return qty, dominv.ErrInsufficientStock
	}
	f.stock[id] = qty - units
	return f.stock[id], nil
}

func (f *fakeInventory) Release(ctx context.Context, id int64, units int) (int, error) {
	f.releaseCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return 0, f.releaseErr
	}
	f.stock[id] += units
	return f.stock[id], nil
}

func (f *fakeInventory) available(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stock[id]
}

type seqIDs struct {
	prefix string
	n      atomic.Int64
}

func (s *seqIDs) NewID() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventName())
	}
	return out
}

// faultyRepo fails selected writes and delegates the rest.
type faultyRepo struct {
	domain.Repository
	insertErr error
	updateErr error
	deleteErr error
}

func (r *faultyRepo) Insert(ctx context.Context, o *domain.Order) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	return r.Repository.Insert(ctx, o)
}

func (r *faultyRepo) Update(ctx context.Context, o *domain.Order) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.Repository.Update(ctx, o)
}

func (r *faultyRepo) Delete(ctx context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	return r.Repository.Delete(ctx, id)
}

type fakeLocker struct {
	held     bool
	err      error
	locked   int
	unlocked int
}

func (l *fakeLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	l.locked++
	return func(context.Context) error {
		l.unlocked++
		return nil
	}, true, nil
}
