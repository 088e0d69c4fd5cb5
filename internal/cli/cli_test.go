package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/store"
)

func init() {
	statusOut = io.Discard
}

// testEnv is a temp directory holding a config file with caching disabled.
type testEnv struct {
	t      *testing.T
	dir    string
	config string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(cfg, []byte("[cache]\nbackend = \"none\"\n\n[engine]\nbackoff = \"1ms\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &testEnv{t: t, dir: dir, config: cfg}
}

func (te *testEnv) snapshot(name string, s *store.Snapshot) string {
	te.t.Helper()
	path := filepath.Join(te.dir, name)
	if err := store.NewFileSource(path).Save(context.Background(), s); err != nil {
		te.t.Fatal(err)
	}
	return path
}

func (te *testEnv) run(args ...string) (string, error) {
	te.t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--config", te.config))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (te *testEnv) runJSON(v any, args ...string) {
	te.t.Helper()
	out, err := te.run(args...)
	if err != nil {
		te.t.Fatalf("%v: %v", args, err)
	}
	if err := json.Unmarshal([]byte(out), v); err != nil {
		te.t.Fatalf("%v output %q: %v", args, out, err)
	}
}

func doc(id string, fields ...custom.Field) custom.Document {
	return custom.NewDocument(custom.Node{ID: id, Name: strings.ToUpper(id[:1]) + id[1:], Fields: fields})
}

func lit(key string, t custom.PrimitiveType, v string) custom.Field {
	return custom.Field{Key: key, Kind: custom.Primitive{Type: t}, Exported: true, Literal: v}
}

func ref(key, target, path string) custom.Field {
	return custom.Field{Key: key, Kind: custom.Reference{TargetID: target, KeyPath: path}, Exported: true}
}

func shop() *store.Snapshot {
	order := doc("order", ref("buyer", "user", "name"))
	order.ExportConfig = &custom.ExportDocument{Type: "field", FieldPath: "buyer"}
	return &store.Snapshot{
		Name: "shop",
		Nodes: []custom.Document{
			doc("user", lit("name", custom.String, "Ada"), lit("age", custom.Number, "36")),
			order,
		},
	}
}

func TestResolveCommand(t *testing.T) {
	te := newTestEnv(t)
	path := te.snapshot("shop.json", shop())

	var got map[string]any
	te.runJSON(&got, "resolve", path, "--exported", "--offline")
	want := map[string]any{
		"user":  map[string]any{"name": "Ada", "age": float64(36)},
		"order": "Ada",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolve --exported mismatch (-want +got):\n%s", diff)
	}

	var one struct {
		NodeID     string         `json:"nodeId"`
		Raw        map[string]any `json:"rawData"`
		ExportType string         `json:"exportType"`
	}
	te.runJSON(&one, "resolve", path, "--id", "order", "--offline")
	if one.NodeID != "order" || one.Raw["buyer"] != "Ada" || one.ExportType != "field" {
		t.Errorf("resolve --id order = %+v", one)
	}

	if _, err := te.run("resolve", path, "--id", "nope"); !perrors.Is(err, perrors.ErrCodeNodeNotFound) {
		t.Errorf("resolve --id nope error = %v, want NODE_NOT_FOUND", err)
	}
	if _, err := te.run("resolve", filepath.Join(te.dir, "missing.json")); !perrors.Is(err, perrors.ErrCodeFileNotFound) {
		t.Errorf("resolve missing error = %v, want FILE_NOT_FOUND", err)
	}
}

func TestResolveCommandOutputFile(t *testing.T) {
	te := newTestEnv(t)
	path := te.snapshot("shop.yaml", shop())
	out := filepath.Join(te.dir, "out.json")

	stdout, err := te.run("resolve", path, "--exported", "--offline", "--id", "order", "-o", out)
	if err != nil {
		t.Fatal(err)
	}
	if stdout != "" {
		t.Errorf("stdout = %q, want empty with -o", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) != `"Ada"` {
		t.Errorf("output file = %s", data)
	}
}

func TestResolveCommandFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/ada" || r.Header.Get("X-Team") != "core" {
			http.Error(w, "unexpected request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"login": "ada"}`))
	}))
	defer srv.Close()

	te := newTestEnv(t)
	s := &store.Snapshot{
		Environment: &env.Config{Environments: []env.Target{{Name: "local", BaseURL: srv.URL}}},
		Nodes: []custom.Document{doc("user",
			lit("handle", custom.String, "ada"),
			custom.Field{Key: "profile", Kind: custom.Fetch{Endpoint: "/users/{{handle}}"}, Exported: true},
		)},
	}
	path := te.snapshot("fetch.json", s)

	var got map[string]any
	te.runJSON(&got, "resolve", path, "--exported", "--id", "user", "-H", "X-Team=core")
	want := map[string]any{"handle": "ada", "profile": map[string]any{"login": "ada"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("resolve with fetch mismatch (-want +got):\n%s", diff)
	}

	var offline map[string]any
	te.runJSON(&offline, "resolve", path, "--exported", "--id", "user", "--offline")
	if _, ok := offline["profile"].(string); !ok {
		t.Errorf("offline profile = %#v, want a generated string", offline["profile"])
	}

	if _, err := te.run("resolve", path, "-H", "broken"); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
		t.Errorf("resolve -H broken error = %v, want INVALID_INPUT", err)
	}
	if _, err := te.run("resolve", path, "--env", "prod"); !perrors.Is(err, perrors.ErrCodeNotFound) {
		t.Errorf("resolve --env prod error = %v, want NOT_FOUND", err)
	}
}

func TestPreviewAndGenerate(t *testing.T) {
	te := newTestEnv(t)
	path := te.snapshot("shop.json", shop())

	var preview map[string]any
	te.runJSON(&preview, "preview", path, "--id", "order")
	if diff := cmp.Diff(map[string]any{"buyer": map[string]any{"_ref": "user"}}, preview); diff != "" {
		t.Errorf("preview mismatch (-want +got):\n%s", diff)
	}

	var values []any
	te.runJSON(&values, "generate", path, "--id", "user", "--field", "name", "-n", "3", "--seed", "9")
	if len(values) != 3 {
		t.Fatalf("generate returned %d values, want 3", len(values))
	}
	for _, v := range values {
		if _, ok := v.(string); !ok {
			t.Errorf("generated %#v, want a string", v)
		}
	}

	var buyers []any
	te.runJSON(&buyers, "generate", path, "--id", "order", "--field", "buyer", "-n", "2", "--offline")
	if diff := cmp.Diff([]any{"Ada", "Ada"}, buyers); diff != "" {
		t.Errorf("generate reference mismatch (-want +got):\n%s", diff)
	}

	if _, err := te.run("generate", path, "--id", "user", "--field", "nope"); !perrors.Is(err, perrors.ErrCodeNotFound) {
		t.Errorf("generate unknown field error = %v, want NOT_FOUND", err)
	}
}

func TestGraphCommands(t *testing.T) {
	te := newTestEnv(t)
	path := te.snapshot("shop.json", shop())

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"graph", "order", path}, "user\norder\n"},
		{[]string{"graph", "deps", path, "order"}, "user\n"},
		{[]string{"graph", "dependents", path, "user"}, "order\n"},
		{[]string{"graph", "would-cycle", path, "user", "order"}, "true\n"},
		{[]string{"graph", "would-cycle", path, "order", "user"}, "false\n"},
		{[]string{"graph", "check", path}, ""},
	}
	for _, tt := range tests {
		got, err := te.run(tt.args...)
		if err != nil {
			t.Errorf("%v error = %v", tt.args, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%v = %q, want %q", tt.args, got, tt.want)
		}
	}

	dot, err := te.run("graph", "dot", path)
	if err != nil || !strings.Contains(dot, `"order" -> "user";`) {
		t.Errorf("graph dot = %q, %v", dot, err)
	}

	cyclic := te.snapshot("cyclic.json", &store.Snapshot{Nodes: []custom.Document{
		doc("a", ref("b", "b", "")),
		doc("b", ref("a", "a", "")),
	}})
	if _, err := te.run("graph", "check", cyclic); !perrors.Is(err, perrors.ErrCodeCyclicDependency) {
		t.Errorf("graph check cyclic error = %v, want CYCLIC_DEPENDENCY", err)
	}
	if _, err := te.run("resolve", cyclic, "--offline"); !perrors.Is(err, perrors.ErrCodeCyclicDependency) {
		t.Errorf("resolve cyclic error = %v, want CYCLIC_DEPENDENCY", err)
	}
	if _, err := te.run("graph", "deps", path, "ghost"); !perrors.Is(err, perrors.ErrCodeNodeNotFound) {
		t.Errorf("graph deps ghost error = %v, want NODE_NOT_FOUND", err)
	}
}

func TestTransformCommands(t *testing.T) {
	te := newTestEnv(t)
	path := te.snapshot("shop.json", shop())

	if _, err := te.run("transform", "validate", "upper(data.name)"); err != nil {
		t.Errorf("transform validate error = %v", err)
	}
	if _, err := te.run("transform", "validate", "nope.name"); !perrors.Is(err, perrors.ErrCodeInvalidExpression) {
		t.Errorf("transform validate bad error = %v, want INVALID_EXPRESSION", err)
	}

	var got any
	te.runJSON(&got, "transform", "apply", path, "--id", "user", "--expr", "upper(data.name)", "--offline")
	if got != "ADA" {
		t.Errorf("transform apply --expr = %v, want ADA", got)
	}
	te.runJSON(&got, "transform", "apply", path, "--id", "order", "--offline")
	if got != "Ada" {
		t.Errorf("transform apply = %v, want Ada", got)
	}

	fns, err := te.run("transform", "functions")
	if err != nil || !strings.Contains(fns, "upper\n") {
		t.Errorf("transform functions = %q, %v", fns, err)
	}
}

func TestPopulateCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"login": "ada", "id": 7}}`))
	}))
	defer srv.Close()

	te := newTestEnv(t)
	s := &store.Snapshot{
		Environment: &env.Config{Environments: []env.Target{{Name: "local", BaseURL: srv.URL}}},
		Nodes: []custom.Document{doc("user",
			custom.Field{Key: "profile", Kind: custom.Fetch{Endpoint: "/me"}, Exported: true},
		)},
	}
	path := te.snapshot("populate.yaml", s)

	if _, err := te.run("populate", path, "--id", "user"); !perrors.Is(err, perrors.ErrCodeInvalidInput) {
		t.Errorf("populate without --field/--endpoint error = %v, want INVALID_INPUT", err)
	}
	if _, err := te.run("populate", path, "--id", "user", "--field", "profile"); err != nil {
		t.Fatalf("populate --field error = %v", err)
	}

	saved, err := store.NewFileSource(path).Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	nodes, err := saved.NodeList()
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, c := range nodes[0].Fields[0].Children {
		keys = append(keys, c.Key)
	}
	if diff := cmp.Diff([]string{"id", "login"}, keys); diff != "" {
		t.Errorf("captured children mismatch (-want +got):\n%s", diff)
	}
	if saved.Environment == nil || saved.Environment.Environments[0].BaseURL != srv.URL {
		t.Error("populate must keep the snapshot environment")
	}

	var dry custom.Document
	te.runJSON(&dry, "populate", path, "--id", "user", "--endpoint", "/me", "--dry-run")
	if len(dry.Fields) != 3 {
		t.Errorf("populate --endpoint --dry-run fields = %+v", dry.Fields)
	}
}

func TestHousekeepingCommands(t *testing.T) {
	te := newTestEnv(t)

	if out, err := te.run("cache", "path"); err != nil || out != "disabled\n" {
		t.Errorf("cache path = %q, %v", out, err)
	}
	if _, err := te.run("cache", "clear"); err != nil {
		t.Errorf("cache clear error = %v", err)
	}
	if out, err := te.run("config", "path"); err != nil || out != te.config+"\n" {
		t.Errorf("config path = %q, %v", out, err)
	}
	out, err := te.run("config", "show")
	if err != nil || !strings.Contains(out, `backend = "none"`) || !strings.Contains(out, `backoff = "1ms"`) {
		t.Errorf("config show = %q, %v", out, err)
	}
	if out, err := te.run("completion", "bash"); err != nil || !strings.Contains(out, "postroc") {
		t.Errorf("completion bash error = %v", err)
	}
}

func TestParseHeaders(t *testing.T) {
	got, err := parseHeaders([]string{"X-A=1", " X-B =a=b"})
	if err != nil {
		t.Fatal(err)
	}
	want := []env.Header{{Key: "X-A", Value: "1"}, {Key: "X-B", Value: "a=b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parseHeaders() mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseHeaders([]string{bad}); err == nil {
			t.Errorf("parseHeaders(%q) should fail", bad)
		}
	}
}

func TestDependencyClosure(t *testing.T) {
	nodes := []custom.Node{
		{ID: "a", Fields: []custom.Field{ref("b", "b", "")}},
		{ID: "b", Fields: []custom.Field{ref("c", "c", "")}},
		{ID: "c"},
		{ID: "d"},
	}
	got, err := dependencyClosure(nodes, "a")
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, n := range got {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"b", "c"}, ids); diff != "" {
		t.Errorf("dependencyClosure() mismatch (-want +got):\n%s", diff)
	}
}
