// Package synth generates plausible placeholder values for unfilled fields.
//
// The generator looks at the field key for a semantic hint ("email",
// "city", "price", "id", ...) and falls back to a generic value for the
// declared kind. Values come from gofakeit and are reproducible when the
// [Synthesizer] is seeded:
//
//	s := synth.New(42)
//	s.Generate(custom.Primitive{Type: custom.String}, "userEmail") // an email
//	s.Generate(custom.Primitive{Type: custom.Number}, "orderId")   // 1..10000
package synth
