package nutrition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/noot-app/recipebox/internal/config"
	"github.com/noot-app/recipebox/internal/types"
)

// fakeLookup answers from a fixed table. A gated name blocks until its gate is
// released, so tests control completion order.
type fakeLookup struct {
	mu      sync.Mutex
	records map[string]types.NutritionRecord
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   map[string]int
}

func newFakeLookup(records map[string]types.NutritionRecord) *fakeLookup {
	return &fakeLookup{
		records: records,
		errs:    make(map[string]error),
		gates:   make(map[string]chan struct{}),
		calls:   make(map[string]int),
	}
}

func (f *fakeLookup) gate(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gates[name] = make(chan struct{})
}

func (f *fakeLookup) release(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.gates[name])
}

func (f *fakeLookup) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeLookup) LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error) {
	f.mu.Lock()
	f.calls[name]++
	gate := f.gates[name]
	rec, ok := f.records[name]
	err := f.errs[name]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

type fakeCreator struct {
	mu      sync.Mutex
	created []types.ManualIngredient
	err     error
}

func (f *fakeCreator) CreateIngredient(ctx context.Context, entry types.ManualIngredient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, entry)
	return nil
}

func (f *fakeCreator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

var errTransport = errors.New("connection refused")

func testLogger() *slog.Logger {
	return config.NewTestLogger(io.Discard, "debug")
}
