// Package pkg provides the core libraries for postroc data templates.
//
// # Overview
//
// postroc turns user-defined node templates into concrete JSON documents.
// A node's fields are literals, generated values, references to other nodes
// or live API fetches. The pkg directory is organized into these areas:
//
//  1. Model: [custom] (nodes, fields, export configs) and [env] (target
//     base URLs, auth and headers)
//  2. Engine: [dag] (reference graph, ordering, cycles), [resolve]
//     (resolution), [synth] (generated values) and [transform] (exports)
//  3. Network: [fetch] (GET with response caching), [httputil] (retry),
//     [cache] (file, redis and null backends) and [populate] (templates
//     from sample responses)
//  4. Persistence and output: [store] (file and MongoDB snapshots) and
//     [render] (DOT/SVG graphs)
//  5. Support: [errors], [observability] and [buildinfo]
//
// # Architecture
//
// The typical data flow:
//
//	Snapshot (JSON/YAML file or MongoDB)
//	         ↓
//	    [custom] documents → validated nodes
//	         ↓
//	    [dag] reference graph → resolution order
//	         ↓
//	    [resolve] walks fields ([synth], [fetch], references)
//	         ↓
//	    [transform] applies each node's export
//	         ↓
//	    JSON output
//
// # Quick Start
//
//	import (
//	    "github.com/matzehuels/postroc/pkg/resolve"
//	    "github.com/matzehuels/postroc/pkg/store"
//	    "github.com/matzehuels/postroc/pkg/synth"
//	)
//
//	snap, _ := store.NewFileSource("shop.yaml").Load(ctx)
//	nodes, _ := snap.NodeList()
//	e, _ := snap.Environment.Resolve(nil)
//
//	r := resolve.New(resolve.WithSynthesizer(synth.New(42)))
//	outputs, _ := r.ResolveAll(ctx, nodes, e)
//	fmt.Println(outputs["order"].Exported)
//
// Resolution never fails because of a single field: unresolvable
// references, failed fetches and bad literals become warnings on the
// node's output. Only structural problems (invalid nodes, reference
// cycles) abort a run.
//
// [custom]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/custom
// [env]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/env
// [dag]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/dag
// [resolve]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/resolve
// [synth]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/synth
// [transform]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/transform
// [fetch]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/fetch
// [httputil]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/httputil
// [cache]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/cache
// [populate]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/populate
// [store]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/store
// [render]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/render
// [errors]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/observability
// [buildinfo]: https://pkg.go.dev/github.com/matzehuels/postroc/pkg/buildinfo
package pkg
