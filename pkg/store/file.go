package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// Format is a snapshot encoding.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// FormatOf picks the format from a file extension; anything that is not
// .yaml or .yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// Read decodes a snapshot from r. The nodes are not validated; call
// [Snapshot.NodeList] for that.
func Read(r io.Reader, f Format) (*Snapshot, error) {
	var s Snapshot
	var err error
	switch f {
	case YAML:
		err = yaml.NewDecoder(r).Decode(&s)
	default:
		err = json.NewDecoder(r).Decode(&s)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, perrors.Wrap(perrors.ErrCodeInvalidFormat, err, "decode %s snapshot", f)
	}
	return &s, nil
}

// Write encodes s to w, indented for humans.
func Write(w io.Writer, s *Snapshot, f Format) error {
	if s.Version == "" {
		c := *s
		c.Version = Version
		s = &c
	}
	switch f {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}

// FileSource stores a snapshot in a single JSON or YAML file.
type FileSource struct {
	Path   string
	Format Format
}

// NewFileSource returns a source for path, choosing the format from its
// extension.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path, Format: FormatOf(path)}
}

// Load reads the file. A missing file is reported as FILE_NOT_FOUND.
func (f *FileSource) Load(context.Context) (*Snapshot, error) {
	file, err := os.Open(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, perrors.Wrap(perrors.ErrCodeFileNotFound, err, "snapshot %s", f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer file.Close()

	s, err := Read(file, f.Format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	return s, nil
}

// Save writes the file through a temp file and rename so readers never see
// a partial snapshot.
func (f *FileSource) Save(_ context.Context, s *Snapshot) error {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, s, f.Format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

var _ Source = (*FileSource)(nil)
