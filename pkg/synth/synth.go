package synth

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/matzehuels/postroc/pkg/custom"
)

// Synthesizer invents plausible placeholder values. It is safe for
// concurrent use; calls are serialized so a seeded sequence stays
// reproducible as long as callers draw in the same order.
type Synthesizer struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

// New returns a synthesizer seeded with seed. A zero seed picks a random one.
func New(seed int64) *Synthesizer {
	return &Synthesizer{faker: gofakeit.New(seed)}
}

// SetSeed restarts the pseudo-random sequence from seed.
func (s *Synthesizer) SetSeed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faker = gofakeit.New(seed)
}

// ResetSeed switches back to a randomly seeded sequence.
func (s *Synthesizer) ResetSeed() {
	s.SetSeed(0)
}

// Int returns a uniformly chosen integer in [min, max].
func (s *Synthesizer) Int(min, max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faker.Number(min, max)
}

// Generate produces a value for a field of the given kind, using key as a
// semantic hint. Arrays get Count items (1-5 when Count is zero), objects
// come back empty, references and fetches yield nil.
func (s *Synthesizer) Generate(kind custom.Kind, key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch k := kind.(type) {
	case nil:
		return s.primitive(custom.String, key)
	case custom.Primitive:
		return s.primitive(k.Type, key)
	case custom.Array:
		return s.array(k, key)
	case custom.Object:
		return map[string]any{}
	case custom.Reference, custom.Fetch:
		return nil
	default:
		panic(fmt.Sprintf("synth: unreachable field kind %T", k))
	}
}

// Primitive produces a single scalar of type t for key.
func (s *Synthesizer) Primitive(t custom.PrimitiveType, key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.primitive(t, key)
}

func (s *Synthesizer) primitive(t custom.PrimitiveType, key string) any {
	if v, ok := s.hinted(t, strings.ToLower(key)); ok {
		return v
	}
	switch t {
	case custom.Number:
		return s.faker.Number(1, 1000)
	case custom.Boolean:
		return s.faker.Bool()
	default:
		return s.faker.Word()
	}
}

// hint maps a key substring to a generator. Hints are tried in order and the
// first match wins, so "username" must be checked before "name" falls
// through.
type hint struct {
	match func(key string) bool
	kinds []custom.PrimitiveType
	gen   func(f *gofakeit.Faker, t custom.PrimitiveType) any
}

func contains(subs ...string) func(string) bool {
	return func(key string) bool {
		for _, sub := range subs {
			if strings.Contains(key, sub) {
				return true
			}
		}
		return false
	}
}

var (
	stringOnly  = []custom.PrimitiveType{custom.String}
	stringOrNum = []custom.PrimitiveType{custom.String, custom.Number}
)

var hints = []hint{
	{contains("email"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Email() }},
	{
		func(k string) bool { return strings.Contains(k, "name") && !strings.Contains(k, "username") },
		stringOnly,
		func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Name() },
	},
	{contains("username"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Username() }},
	{contains("phone"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Phone() }},
	{contains("address"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Street() }},
	{contains("city"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.City() }},
	{contains("country"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Country() }},
	{contains("zip", "postal"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Zip() }},
	{contains("url", "website"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.URL() }},
	{contains("avatar", "image"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.ImageURL(200, 200) }},
	{
		contains("date", "created", "updated"),
		stringOnly,
		func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Date().UTC().Format(time.RFC3339) },
	},
	{
		contains("description", "bio"),
		stringOnly,
		func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Paragraph(1, 3, 12, " ") },
	},
	{contains("title"), stringOnly, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Sentence(5) }},
	{contains("price", "amount", "cost"), stringOrNum, func(f *gofakeit.Faker, _ custom.PrimitiveType) any { return f.Price(1, 1000) }},
	{
		contains("id"),
		stringOrNum,
		func(f *gofakeit.Faker, t custom.PrimitiveType) any {
			if t == custom.Number {
				return f.Number(1, 10000)
			}
			return f.UUID()
		},
	},
}

func (s *Synthesizer) hinted(t custom.PrimitiveType, key string) (any, bool) {
	for _, h := range hints {
		if !h.match(key) {
			continue
		}
		for _, k := range h.kinds {
			if k == t {
				return h.gen(s.faker, t), true
			}
		}
	}
	return nil, false
}

func (s *Synthesizer) array(a custom.Array, key string) []any {
	n := a.Count
	if n <= 0 {
		n = s.faker.Number(1, 5)
	}
	key = strings.ToLower(key)
	items := make([]any, n)
	for i := range items {
		switch t, ok := a.Item.Primitive(); {
		case ok && t != custom.String:
			items[i] = s.primitive(t, key)
		case a.Item == custom.ItemObject:
			items[i] = map[string]any{}
		default:
			items[i] = s.arrayString(key)
		}
	}
	return items
}

func (s *Synthesizer) arrayString(key string) string {
	switch {
	case strings.Contains(key, "tag"):
		return s.faker.Word()
	case strings.Contains(key, "email"):
		return s.faker.Email()
	case strings.Contains(key, "name"):
		return s.faker.Name()
	case strings.Contains(key, "id"):
		return s.faker.UUID()
	default:
		return s.faker.Word()
	}
}
