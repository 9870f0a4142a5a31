package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/noot-app/recipebox/internal/nutrition"
	"github.com/noot-app/recipebox/internal/session"
	"github.com/noot-app/recipebox/internal/types"
)

const (
	lookupScopeName  = "github.com/noot-app/recipebox/lookup"
	backendScopeName = "github.com/noot-app/recipebox/backend"
)

// instruments is the span and metric set shared by the wrappers
type instruments struct {
	prefix string
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

func newInstruments(scope, prefix string) instruments {
	m := Meter(scope)
	ops, _ := m.Int64Counter(prefix+".operations",
		metric.WithDescription("Total operations executed"),
	)
	dur, _ := m.Float64Histogram(prefix+".operation.duration",
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter(prefix+".errors",
		metric.WithDescription("Total operation errors"),
	)
	return instruments{prefix: prefix, tracer: Tracer(scope), ops: ops, dur: dur, errs: errs}
}

func (in instruments) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("recipebox.operation", name)}, attrs...)
	ctx, span := in.tracer.Start(ctx, in.prefix+"."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	in.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

func (in instruments) done(ctx context.Context, span trace.Span, start time.Time, err error, name string) {
	attrs := metric.WithAttributes(attribute.String("recipebox.operation", name))
	in.dur.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		in.errs.Add(ctx, 1, attrs)
	}
	span.End()
}

// InstrumentedLookup wraps a nutrition lookup with spans and counters
type InstrumentedLookup struct {
	inner  nutrition.Lookup
	in     instruments
	misses metric.Int64Counter
}

// WrapLookup returns l decorated with instrumentation, or l itself when
// telemetry is disabled
func WrapLookup(l nutrition.Lookup) nutrition.Lookup {
	if !Enabled() {
		return l
	}
	in := newInstruments(lookupScopeName, "recipebox.lookup")
	misses, _ := Meter(lookupScopeName).Int64Counter("recipebox.lookup.misses",
		metric.WithDescription("Lookups that found no nutrition data"),
	)
	return &InstrumentedLookup{inner: l, in: in, misses: misses}
}

// LookupIngredient resolves name through the wrapped lookup
func (l *InstrumentedLookup) LookupIngredient(ctx context.Context, name string) (*types.NutritionRecord, error) {
	ctx, span, t := l.in.op(ctx, "LookupIngredient", attribute.String("recipebox.ingredient", name))
	rec, err := l.inner.LookupIngredient(ctx, name)
	if err == nil && rec == nil {
		l.misses.Add(ctx, 1)
	}
	l.in.done(ctx, span, t, err, "LookupIngredient")
	return rec, err
}

// InstrumentedBackend wraps the recipe backend with spans and counters
type InstrumentedBackend struct {
	inner session.Backend
	in    instruments
}

// WrapBackend returns b decorated with instrumentation, or b itself when
// telemetry is disabled
func WrapBackend(b session.Backend) session.Backend {
	if !Enabled() {
		return b
	}
	return &InstrumentedBackend{inner: b, in: newInstruments(backendScopeName, "recipebox.backend")}
}

func (b *InstrumentedBackend) ListRecipes(ctx context.Context) ([]types.BackendRecipe, error) {
	ctx, span, t := b.in.op(ctx, "ListRecipes")
	v, err := b.inner.ListRecipes(ctx)
	b.in.done(ctx, span, t, err, "ListRecipes")
	return v, err
}

func (b *InstrumentedBackend) CreateRecipe(ctx context.Context, payload types.RecipePayload) (*types.BackendRecipe, error) {
	ctx, span, t := b.in.op(ctx, "CreateRecipe", attribute.Int("recipebox.ingredient.count", len(payload.Ingredients)))
	v, err := b.inner.CreateRecipe(ctx, payload)
	b.in.done(ctx, span, t, err, "CreateRecipe")
	return v, err
}

func (b *InstrumentedBackend) UpdateRecipe(ctx context.Context, id int64, payload types.RecipePayload) (*types.BackendRecipe, error) {
	ctx, span, t := b.in.op(ctx, "UpdateRecipe", attribute.Int64("recipebox.recipe.id", id))
	v, err := b.inner.UpdateRecipe(ctx, id, payload)
	b.in.done(ctx, span, t, err, "UpdateRecipe")
	return v, err
}

func (b *InstrumentedBackend) DeleteRecipe(ctx context.Context, id int64) error {
	ctx, span, t := b.in.op(ctx, "DeleteRecipe", attribute.Int64("recipebox.recipe.id", id))
	err := b.inner.DeleteRecipe(ctx, id)
	b.in.done(ctx, span, t, err, "DeleteRecipe")
	return err
}

func (b *InstrumentedBackend) CreateIngredient(ctx context.Context, entry types.ManualIngredient) error {
	ctx, span, t := b.in.op(ctx, "CreateIngredient", attribute.String("recipebox.ingredient", entry.Name))
	err := b.inner.CreateIngredient(ctx, entry)
	b.in.done(ctx, span, t, err, "CreateIngredient")
	return err
}

func (b *InstrumentedBackend) GetRecipe(ctx context.Context, id int64) (*types.BackendRecipe, error) {
	ctx, span, t := b.in.op(ctx, "GetRecipe", attribute.Int64("recipebox.recipe.id", id))
	v, err := b.inner.GetRecipe(ctx, id)
	b.in.done(ctx, span, t, err, "GetRecipe")
	return v, err
}

func (b *InstrumentedBackend) ListIngredients(ctx context.Context) ([]types.ManualIngredient, error) {
	ctx, span, t := b.in.op(ctx, "ListIngredients")
	v, err := b.inner.ListIngredients(ctx)
	b.in.done(ctx, span, t, err, "ListIngredients")
	return v, err
}
