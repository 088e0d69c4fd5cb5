package resolve

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/dag"
	"github.com/matzehuels/postroc/pkg/env"
	"github.com/matzehuels/postroc/pkg/fetch"
	"github.com/matzehuels/postroc/pkg/httputil"
	"github.com/matzehuels/postroc/pkg/observability"
	"github.com/matzehuels/postroc/pkg/synth"
	"github.com/matzehuels/postroc/pkg/transform"
)

// Defaults for fetch retries: one attempt plus two retries, waiting 1s then 2s.
const (
	DefaultAttempts = 3
	DefaultBackoff  = time.Second
)

// Resolver turns nodes into concrete JSON data.
type Resolver struct {
	synth       *synth.Synthesizer
	fetcher     fetch.Fetcher
	logger      *log.Logger
	attempts    int
	backoff     httputil.Backoff
	concurrency int
}

// Option configures a [Resolver].
type Option func(*Resolver)

// WithSynthesizer sets the value synthesizer. Seed it for reproducible output.
func WithSynthesizer(s *synth.Synthesizer) Option {
	return func(r *Resolver) { r.synth = s }
}

// WithFetcher sets the fetcher used for api-fetch fields. A nil fetcher
// makes every fetch field fall back to a synthesized value.
func WithFetcher(f fetch.Fetcher) Option {
	return func(r *Resolver) { r.fetcher = f }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithRetry sets how many times a fetch is attempted and the wait between
// attempts.
func WithRetry(attempts int, backoff httputil.Backoff) Option {
	return func(r *Resolver) {
		r.attempts = max(attempts, 1)
		r.backoff = backoff
	}
}

// WithConcurrency sets how many top-level fields of one node are resolved
// at once. Values above 1 make seeded output depend on scheduling.
func WithConcurrency(n int) Option {
	return func(r *Resolver) { r.concurrency = max(n, 1) }
}

// New returns a resolver with a randomly seeded synthesizer, an
// [fetch.HTTPFetcher] and sequential field resolution.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		fetcher:     fetch.NewHTTPFetcher(nil),
		attempts:    DefaultAttempts,
		backoff:     httputil.Linear(DefaultBackoff),
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.synth == nil {
		r.synth = synth.New(0)
	}
	if r.logger == nil {
		r.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	if r.backoff == nil {
		r.backoff = httputil.Linear(DefaultBackoff)
	}
	return r
}

// ResolveNode resolves every exported field of n. Field failures never
// abort the node: the field becomes nil (or a synthesized value for fetch
// fields) and a "<key>: <message>" warning is recorded, in field order.
func (r *Resolver) ResolveNode(ctx context.Context, n custom.Node, rc Context) *Output {
	start := time.Now()
	hooks := observability.Resolve()
	hooks.OnNodeStart(ctx, n.ID)

	fields := exported(n.Fields)
	values := make([]any, len(fields))
	warnings := make([][]string, len(fields))
	vars := literalVars(n.Fields)

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for i, f := range fields {
		g.Go(func() error {
			w := &walker{r: r, rc: rc, nodeID: n.ID, vars: vars}
			values[i] = w.value(ctx, f, f.Key)
			warnings[i] = w.warnings
			return nil
		})
	}
	_ = g.Wait()

	raw := make(map[string]any, len(fields))
	for i, f := range fields {
		raw[f.Key] = values[i]
	}
	out := &Output{
		NodeID:     n.ID,
		NodeName:   n.Name,
		Raw:        raw,
		Exported:   transform.Apply(raw, n.Export),
		ExportType: exportType(n.Export),
		Warnings:   slices.Concat(warnings...),
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}

	took := time.Since(start)
	hooks.OnNodeComplete(ctx, n.ID, len(out.Warnings), took)
	r.logger.Debug("resolved node", "node", n.DisplayName(), "fields", len(fields), "warnings", len(out.Warnings), "took", took)
	return out
}

// ResolveAll resolves every node in dependency-first order and returns the
// outputs keyed by node id. A reference cycle aborts before any node is
// resolved with a [*dag.CyclicDependencyError]. Cancellation is checked
// before each node; on cancel ctx.Err() is returned and no outputs are. A
// run whose last node completed is returned even if ctx was cancelled
// meanwhile.
func (r *Resolver) ResolveAll(ctx context.Context, nodes []custom.Node, e *env.Environment) (map[string]*Output, error) {
	ordered, err := dag.ResolutionOrder(nodes)
	if err != nil {
		return nil, err
	}

	table := NewTable()
	rc := Context{Resolved: table, Environment: e}
	for _, n := range ordered {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := table.Put(r.ResolveNode(ctx, n, rc)); err != nil {
			return nil, err
		}
	}
	r.logger.Info("resolved nodes", "count", table.Len())
	return table.Outputs(), nil
}

// Preview renders n without touching other nodes or the network:
// references become {"_ref": id}, fetch fields {"_fetch": endpoint}, and
// everything else is generated as usual.
func (r *Resolver) Preview(n custom.Node) map[string]any {
	ctx := context.Background()
	w := &walker{r: r, nodeID: n.ID, vars: literalVars(n.Fields), preview: true}
	out := make(map[string]any, len(n.Fields))
	for _, f := range exported(n.Fields) {
		out[f.Key] = w.value(ctx, f, f.Key)
	}
	return out
}

// GenerateMultiple resolves f count times, ignoring its literal, and
// returns the independent values.
func (r *Resolver) GenerateMultiple(ctx context.Context, f custom.Field, count int, rc Context) []any {
	f.Literal = ""
	out := make([]any, 0, max(count, 0))
	for range count {
		w := &walker{r: r, rc: rc, vars: map[string]any{}}
		out = append(out, w.value(ctx, f, f.Key))
	}
	return out
}

func exported(fields []custom.Field) []custom.Field {
	out := make([]custom.Field, 0, len(fields))
	for _, f := range fields {
		if f.Exported {
			out = append(out, f)
		}
	}
	return out
}

// literalVars collects the node's primitive literals for {{key}}
// substitution in fetch endpoints.
func literalVars(fields []custom.Field) map[string]any {
	vars := make(map[string]any)
	for _, f := range fields {
		if _, ok := f.Kind.(custom.Primitive); !ok || !f.HasLiteral() {
			continue
		}
		if v, err := custom.ParseLiteral(f.Kind, f.Literal); err == nil {
			vars[f.Key] = v
		}
	}
	return vars
}

func exportType(cfg custom.ExportConfig) string {
	if cfg == nil {
		return custom.ExportFull{}.TypeName()
	}
	return cfg.TypeName()
}
