// Package resolve turns nodes into concrete JSON data.
//
// [Resolver.ResolveAll] builds the reference graph, rejects cycles, and
// resolves nodes dependency-first so that every reference field finds its
// target in the [Table]. Each exported field is resolved independently:
//
//   - literals are parsed by the field's declared kind and always win
//   - object fields assemble their exported children
//   - array fields repeat their child template per slot, map mixed children
//     one to one, or synthesize primitive items
//   - reference fields embed the target's raw data, its exported form when
//     the target has a non-full export, or the value at a key path
//   - fetch fields reuse a cached template when one exists, otherwise GET
//     the endpoint with retries and fall back to a synthesized string
//
// Field failures become warnings on the [Output]; only a reference cycle or
// cancellation fails the whole call.
//
// # Reproducibility
//
// Seed the [synth.Synthesizer] passed with [WithSynthesizer] and keep the
// default concurrency of 1 to get identical output for identical input.
package resolve
