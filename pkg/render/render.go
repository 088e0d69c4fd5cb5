package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/dag"
)

// Options configures DOT output.
type Options struct {
	// Detailed adds the field count and export type to node labels.
	Detailed bool
}

// DOT converts the reference graph of nodes to Graphviz DOT. Edges point
// from the referencing node to its target. Targets that are not among
// nodes are drawn dashed.
func DOT(nodes []custom.Node, opts Options) string {
	g := make(dag.Graph, len(nodes))
	byID := make(map[string]custom.Node, len(nodes))
	for _, n := range nodes {
		g[n.ID] = dag.ReferenceTargets(n)
		byID[n.ID] = n
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	ids := make([]string, 0, len(g))
	for id := range g {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var dangling []string
	for _, id := range ids {
		fmt.Fprintf(&buf, "  %q [label=%q];\n", id, label(byID[id], opts.Detailed))
		for _, dep := range g[id] {
			if _, ok := g[dep]; !ok && !slices.Contains(dangling, dep) {
				dangling = append(dangling, dep)
			}
		}
	}
	slices.Sort(dangling)
	for _, id := range dangling {
		fmt.Fprintf(&buf, "  %q [label=%q, style=\"rounded,dashed\", fontcolor=grey];\n", id, id)
	}

	buf.WriteString("\n")
	for _, id := range ids {
		for _, dep := range dag.Dependencies(id, g) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", id, dep)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func label(n custom.Node, detailed bool) string {
	name := n.DisplayName()
	if !detailed {
		return name
	}
	export := "full"
	if n.Export != nil {
		export = n.Export.TypeName()
	}
	return strings.Join([]string{
		name,
		"id: " + n.ID,
		"fields: " + strconv.Itoa(len(n.Fields)),
		"export: " + export,
	}, "\n")
}

// SVG renders a DOT graph to SVG using Graphviz.
func SVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the drawing scales from
// the origin at its natural size.
func normalizeViewBox(svg []byte) []byte {
	m := viewBoxRe.FindSubmatch(svg)
	if m == nil {
		return svg
	}
	w, _ := strconv.ParseFloat(string(m[3]), 64)
	h, _ := strconv.ParseFloat(string(m[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}
	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`, w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(root))
}
