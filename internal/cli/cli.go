// Package cli implements the postroc command-line interface.
//
// Commands read snapshots (JSON/YAML files or "mongo:<name>" documents),
// resolve them and print JSON to stdout. Status lines and warnings go to
// stderr so output can be piped.
//
// # Commands
//
//   - resolve: resolve every node of a snapshot
//   - preview: render one node without references or network access
//   - generate: draw several independent values for one field
//   - populate: capture an API response into a node's fields
//   - graph: inspect the reference graph (order, deps, check, dot, svg)
//   - transform: validate or apply export transforms
//   - serve: run the HTTP API
//   - cache, config: housekeeping
package cli

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/postroc/internal/config"
	"github.com/matzehuels/postroc/pkg/buildinfo"
	"github.com/matzehuels/postroc/pkg/cache"
	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/env"
	perrors "github.com/matzehuels/postroc/pkg/errors"
	"github.com/matzehuels/postroc/pkg/fetch"
	"github.com/matzehuels/postroc/pkg/httputil"
	"github.com/matzehuels/postroc/pkg/resolve"
	"github.com/matzehuels/postroc/pkg/store"
	"github.com/matzehuels/postroc/pkg/synth"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger     *log.Logger
	configPath string
	cfg        config.Config
}

// New creates a CLI logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level, false), cfg: config.Default()}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	var jsonLogs bool
	root := &cobra.Command{
		Use:          "postroc",
		Short:        "Resolve linked data templates into JSON",
		Long:         `postroc turns node templates (literals, generated values, references to other nodes and live API fetches) into concrete JSON documents.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if jsonLogs {
				c.Logger.SetFormatter(log.JSONFormatter)
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}
	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/postroc/config.toml)")
	root.PersistentFlags().BoolVar(&jsonLogs, "log-json", false, "write logs as JSON")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.generateCommand())
	root.AddCommand(c.populateCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.transformCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// engineFlags are shared by every command that resolves nodes.
type engineFlags struct {
	seed    int64
	envName string
	headers []string
	offline bool
	refresh bool
}

func (f *engineFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "seed for generated values (0 uses [engine] seed, else random)")
	cmd.Flags().StringVarP(&f.envName, "env", "e", "", "environment to fetch against")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "extra request header as Key=Value (repeatable)")
	cmd.Flags().BoolVar(&f.offline, "offline", false, "never call APIs; fetch fields are generated")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "bypass cached API responses")
}

// loaded is an opened snapshot.
type loaded struct {
	src   store.Source
	snap  *store.Snapshot
	nodes []custom.Node
}

func (c *CLI) load(ctx context.Context, ref string) (*loaded, error) {
	src, err := store.Open(ctx, ref, c.cfg.Store.Mongo())
	if err != nil {
		return nil, err
	}
	snap, err := src.Load(ctx)
	if err != nil {
		store.Close(ctx, src)
		return nil, err
	}
	nodes, err := snap.NodeList()
	if err != nil {
		store.Close(ctx, src)
		return nil, err
	}
	return &loaded{src: src, snap: snap, nodes: nodes}, nil
}

func (l *loaded) close(ctx context.Context) { store.Close(ctx, l.src) }

func (l *loaded) node(id string) (custom.Node, error) {
	for _, n := range l.nodes {
		if n.ID == id {
			return n, nil
		}
	}
	return custom.Node{}, perrors.New(perrors.ErrCodeNodeNotFound, "node %q not found", id)
}

// environment resolves the snapshot's environment, falling back to the
// config file's. An empty result means fetch fields have no base URL.
func (c *CLI) environment(snap *store.Snapshot, f *engineFlags) (*env.Environment, error) {
	cfg := c.cfg.Environment
	if snap != nil && snap.Environment != nil {
		cfg = *snap.Environment
	}
	if f.envName != "" {
		cfg.Active = f.envName
	}
	extra, err := parseHeaders(f.headers)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve(extra)
}

func parseHeaders(raw []string) ([]env.Header, error) {
	out := make([]env.Header, 0, len(raw))
	for _, h := range raw {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, perrors.New(perrors.ErrCodeInvalidInput, "header %q is not Key=Value", h)
		}
		out = append(out, env.Header{Key: strings.TrimSpace(k), Value: v})
	}
	return out, nil
}

// resolverOptions builds resolver options from config and flags. The
// returned func releases the response cache.
func (c *CLI) resolverOptions(ctx context.Context, f *engineFlags) ([]resolve.Option, func()) {
	seed := c.cfg.Engine.Seed
	if f != nil && f.seed != 0 {
		seed = f.seed
	}
	opts := []resolve.Option{
		resolve.WithLogger(c.Logger),
		resolve.WithSynthesizer(synth.New(seed)),
		resolve.WithRetry(c.cfg.Engine.Retries, httputil.Linear(c.cfg.Engine.Backoff.Duration)),
		resolve.WithConcurrency(c.cfg.Engine.Concurrency),
	}
	if f != nil && f.offline {
		return append(opts, resolve.WithFetcher(nil)), func() {}
	}
	fr, closeCache := c.fetcher(ctx, f != nil && f.refresh)
	return append(opts, resolve.WithFetcher(fr)), closeCache
}

// fetcher returns an HTTP fetcher behind the configured response cache.
// A cache that cannot be opened is logged and skipped.
func (c *CLI) fetcher(ctx context.Context, refresh bool) (fetch.Fetcher, func()) {
	var fr fetch.Fetcher = fetch.NewHTTPFetcher(nil)
	rc, err := c.cfg.Cache.Open(ctx)
	if err != nil {
		c.Logger.Warn("response cache disabled", "backend", c.cfg.Cache.Backend, "err", err)
		return fr, func() {}
	}
	if _, ok := rc.(*cache.NullCache); ok {
		return fr, func() {}
	}
	fr = fetch.NewCachedFetcher(fr, rc, fetch.WithTTL(c.cfg.Cache.TTL.Duration), fetch.WithRefresh(refresh))
	return fr, func() { rc.Close() }
}
