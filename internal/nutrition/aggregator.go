package nutrition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/noot-app/recipebox/internal/types"
	"golang.org/x/sync/semaphore"
)

// IngredientResolver is the part of Resolver the aggregator depends on
type IngredientResolver interface {
	Resolve(ctx context.Context, name string) Result
}

type entryState int

const (
	statePending entryState = iota
	stateApplied
	stateNotFound
)

// entry is one occurrence of an ingredient in the active list. Repeated names
// get independent entries.
type entry struct {
	id     uint64
	name   string
	state  entryState
	record types.NutritionRecord
}

// Aggregator keeps the running nutrition total of the active ingredient list.
// Resolutions complete in any order; a completion is applied only if the
// generation it was issued under is still current and its entry is still in
// the list.
type Aggregator struct {
	resolver IngredientResolver
	log      *slog.Logger

	mu         sync.Mutex
	entries    []*entry
	totals     *types.NutritionRecord
	generation uint64
	nextID     uint64
	onNotFound func(name string)

	// inflight counts started resolutions; idle is signalled when it drops to zero
	inflight int
	idle     *sync.Cond
	// sem bounds concurrent lookups; nil means unbounded
	sem *semaphore.Weighted
}

// NewAggregator creates an aggregator. concurrency bounds the number of
// lookups in flight; zero or less means unbounded. Callers never block on
// the bound: queued resolutions wait in their own goroutines.
func NewAggregator(resolver IngredientResolver, concurrency int, logger *slog.Logger) *Aggregator {
	a := &Aggregator{
		resolver: resolver,
		log:      logger,
	}
	a.idle = sync.NewCond(&a.mu)
	if concurrency > 0 {
		a.sem = semaphore.NewWeighted(int64(concurrency))
	}
	return a
}

// OnNotFound registers fn to be called once per entry whose resolution ends
// NotFound. fn runs outside the aggregator lock.
func (a *Aggregator) OnNotFound(fn func(name string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onNotFound = fn
}

// Reset replaces the active list with names and recomputes from scratch.
// Completions of earlier generations are discarded. It returns the new generation.
func (a *Aggregator) Reset(ctx context.Context, names []string) uint64 {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.entries = make([]*entry, 0, len(names))
	for _, name := range names {
		a.entries = append(a.entries, a.newEntryLocked(name))
	}
	if len(a.entries) == 0 {
		a.totals = nil
	} else {
		a.totals = &types.NutritionRecord{}
	}
	for _, e := range a.entries {
		a.resolveLocked(ctx, gen, e)
	}
	a.mu.Unlock()

	a.log.Debug("Aggregator reset", "generation", gen, "ingredients", len(names))
	return gen
}

// Add appends one occurrence of name and starts its resolution
func (a *Aggregator) Add(ctx context.Context, name string) {
	a.mu.Lock()
	e := a.newEntryLocked(name)
	a.entries = append(a.entries, e)
	if a.totals == nil {
		a.totals = &types.NutritionRecord{}
	}
	a.resolveLocked(ctx, a.generation, e)
	a.mu.Unlock()
}

// RemoveAt drops the occurrence at index. An applied record is subtracted; a
// pending resolution for it will be ignored when it completes.
func (a *Aggregator) RemoveAt(index int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if index < 0 || index >= len(a.entries) {
		return fmt.Errorf("ingredient index %d out of range [0,%d)", index, len(a.entries))
	}

	removed := a.entries[index]
	a.entries = append(a.entries[:index], a.entries[index+1:]...)

	if removed.state == stateApplied && a.totals != nil {
		next := a.totals.Minus(removed.record)
		a.totals = &next
	}
	if len(a.entries) == 0 {
		a.totals = nil
	}

	a.log.Debug("Ingredient removed from totals", "name", removed.name, "was_applied", removed.state == stateApplied)
	return nil
}

// ApplyManual applies record to every occurrence of name still waiting for
// manual entry, without another lookup. It returns how many were applied.
func (a *Aggregator) ApplyManual(name string, record types.NutritionRecord) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := Key(name)
	applied := 0
	for _, e := range a.entries {
		if e.state != stateNotFound || Key(e.name) != key {
			continue
		}
		a.applyLocked(e, record)
		applied++
	}
	return applied
}

// Totals returns a copy of the running totals, nil when the list is empty
func (a *Aggregator) Totals() types.Totals {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.totals == nil {
		return nil
	}
	t := *a.totals
	return &t
}

// Unresolved returns the distinct names waiting for manual entry, in list order
func (a *Aggregator) Unresolved() []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	seen := make(map[string]bool)
	var names []string
	for _, e := range a.entries {
		if e.state != stateNotFound || seen[Key(e.name)] {
			continue
		}
		seen[Key(e.name)] = true
		names = append(names, e.name)
	}
	return names
}

// Pending returns how many occurrences are still waiting for a resolution
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, e := range a.entries {
		if e.state == statePending {
			n++
		}
	}
	return n
}

// Generation returns the current generation
func (a *Aggregator) Generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation
}

// Wait blocks until no resolution is in flight. Resolutions started by other
// callers while waiting are waited for too.
func (a *Aggregator) Wait() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.inflight > 0 {
		a.idle.Wait()
	}
}

func (a *Aggregator) newEntryLocked(name string) *entry {
	a.nextID++
	return &entry{id: a.nextID, name: name}
}

func (a *Aggregator) applyLocked(e *entry, record types.NutritionRecord) {
	e.state = stateApplied
	e.record = record
	if a.totals == nil {
		a.totals = &types.NutritionRecord{}
	}
	next := a.totals.Plus(record)
	a.totals = &next
}

// resolveLocked starts the lookup for e in its own goroutine
func (a *Aggregator) resolveLocked(ctx context.Context, gen uint64, e *entry) {
	// Lookups outlive the request that triggered them.
	ctx = context.WithoutCancel(ctx)
	name := e.name
	id := e.id
	a.inflight++
	go func() {
		defer a.finish()
		if a.sem != nil {
			// never fails: ctx cannot be cancelled
			_ = a.sem.Acquire(ctx, 1)
			defer a.sem.Release(1)
		}
		res := a.resolver.Resolve(ctx, name)
		a.complete(gen, id, res)
	}()
}

func (a *Aggregator) finish() {
	a.mu.Lock()
	a.inflight--
	if a.inflight == 0 {
		a.idle.Broadcast()
	}
	a.mu.Unlock()
}

func (a *Aggregator) complete(gen, id uint64, res Result) {
	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		a.log.Debug("Discarding stale resolution", "name", res.Name, "generation", gen)
		return
	}

	var target *entry
	for _, e := range a.entries {
		if e.id == id {
			target = e
			break
		}
	}
	if target == nil || target.state != statePending {
		a.mu.Unlock()
		a.log.Debug("Discarding resolution for removed ingredient", "name", res.Name)
		return
	}

	if res.Outcome == Resolved {
		a.applyLocked(target, res.Record)
		a.mu.Unlock()
		return
	}

	target.state = stateNotFound
	hook := a.onNotFound
	a.mu.Unlock()

	if hook != nil {
		hook(target.name)
	}
}
