// Package render draws the reference graph between nodes.
//
// [DOT] produces Graphviz source with one box per node and an arrow from
// each node to every node it references. [SVG] lays that source out with
// the embedded Graphviz build, so no external binaries are needed.
//
//	dot := render.DOT(nodes, render.Options{Detailed: true})
//	svg, err := render.SVG(ctx, dot)
package render
