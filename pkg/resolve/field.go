package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/env"
	"github.com/matzehuels/postroc/pkg/fetch"
	"github.com/matzehuels/postroc/pkg/httputil"
	"github.com/matzehuels/postroc/pkg/observability"
	"github.com/matzehuels/postroc/pkg/transform"
)

// ErrReferenceNotFound is reported when a reference targets a node that has
// no recorded output.
var ErrReferenceNotFound = errors.New("reference not found")

// walker resolves one top-level field and everything nested below it.
// It is confined to a single goroutine.
type walker struct {
	r        *Resolver
	rc       Context
	nodeID   string
	vars     map[string]any
	preview  bool
	warnings []string
}

func (w *walker) warn(ctx context.Context, path string, kind custom.Kind, err error) {
	w.warnings = append(w.warnings, path+": "+err.Error())
	name := "unknown"
	if kind != nil {
		name = kind.TypeName()
	}
	observability.Resolve().OnFieldWarning(ctx, w.nodeID, name)
	w.r.logger.Warn("field unresolved", "node", w.nodeID, "field", path, "err", err)
}

func (w *walker) value(ctx context.Context, f custom.Field, path string) any {
	switch k := f.Kind.(type) {
	case custom.Reference:
		return w.reference(ctx, k, path)
	case custom.Fetch:
		return w.fetch(ctx, f, k, path)
	default:
		return w.template(ctx, f, path)
	}
}

// template handles everything that can be produced offline: literals,
// object and array templates, and synthesized values.
func (w *walker) template(ctx context.Context, f custom.Field, path string) any {
	if f.HasLiteral() {
		v, err := custom.ParseLiteral(f.Kind, f.Literal)
		if err != nil {
			w.warn(ctx, path, f.Kind, err)
			return nil
		}
		return v
	}
	switch k := f.Kind.(type) {
	case custom.Object, custom.Fetch:
		if f.HasChildren() {
			return w.object(ctx, f.Children, path)
		}
	case custom.Array:
		if f.HasChildren() {
			return w.array(ctx, f, k, path)
		}
	}
	return w.r.synth.Generate(f.Kind, f.Key)
}

func (w *walker) object(ctx context.Context, children []custom.Field, path string) map[string]any {
	out := make(map[string]any, len(children))
	for _, c := range children {
		if !c.Exported {
			continue
		}
		out[c.Key] = w.value(ctx, c, path+"."+c.Key)
	}
	return out
}

// array resolves an array field that carries child templates. Mixed arrays
// map children to items one to one; other arrays repeat the template for
// every slot so each item gets fresh values.
func (w *walker) array(ctx context.Context, f custom.Field, k custom.Array, path string) []any {
	if k.Item == custom.ItemMixed {
		items := make([]any, 0, len(f.Children))
		for i, c := range f.Children {
			if !c.Exported {
				continue
			}
			items = append(items, w.value(ctx, c, fmt.Sprintf("%s[%d]", path, i)))
		}
		return items
	}

	n := k.Count
	if n <= 0 {
		n = w.r.synth.Int(1, 5)
	}
	_, primitive := k.Item.Primitive()
	items := make([]any, n)
	for i := range items {
		slot := fmt.Sprintf("%s[%d]", path, i)
		if primitive && len(f.Children) == 1 {
			items[i] = w.value(ctx, f.Children[0], slot)
		} else {
			items[i] = w.object(ctx, f.Children, slot)
		}
	}
	return items
}

func (w *walker) reference(ctx context.Context, k custom.Reference, path string) any {
	if w.preview {
		return map[string]any{"_ref": k.TargetID}
	}
	if k.TargetID == "" {
		return nil
	}
	out, ok := w.rc.Resolved.Get(k.TargetID)
	if !ok {
		w.warn(ctx, path, k, fmt.Errorf("%w: %s", ErrReferenceNotFound, k.TargetID))
		return nil
	}
	switch {
	case k.KeyPath != "":
		return transform.ExtractField(out.Raw, k.KeyPath)
	case !out.fullExport():
		return out.Exported
	default:
		return out.Raw
	}
}

// fetch prefers a cached template over the network. Without an endpoint,
// environment or fetcher it quietly synthesizes a string; a request that
// still fails after retries is reported and synthesized too. Every failure
// is retried unless the fetcher marks it permanent.
func (w *walker) fetch(ctx context.Context, f custom.Field, k custom.Fetch, path string) any {
	if w.preview {
		return map[string]any{"_fetch": k.Endpoint}
	}
	if f.HasLiteral() || f.HasChildren() {
		return w.template(ctx, f, path)
	}
	if k.Endpoint == "" || w.rc.Environment == nil || w.r.fetcher == nil {
		return w.r.synth.Primitive(custom.String, f.Key)
	}

	endpoint := env.ReplacePathVariables(k.Endpoint, w.vars)
	var body any
	err := httputil.RetryAll(ctx, w.r.attempts, w.r.backoff, func() error {
		resp, err := w.r.fetcher.Fetch(ctx, endpoint, w.rc.Environment)
		if err = failure(resp, err); err != nil {
			return err
		}
		body = resp.Body
		return nil
	})
	if err != nil {
		w.warn(ctx, path, k, err)
		return w.r.synth.Primitive(custom.String, f.Key)
	}
	return body
}

// failure reports whether a fetch outcome is unusable: an error, no
// response, an error recorded on the response or a non-2xx status.
func failure(resp *fetch.Response, err error) error {
	switch {
	case err != nil:
		return err
	case resp == nil:
		return errors.New("empty response")
	case resp.Error != "":
		return errors.New(resp.Error)
	case !resp.OK():
		return &fetch.StatusError{Status: resp.Status, StatusText: resp.StatusText}
	}
	return nil
}
