package resolve

import (
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/matzehuels/postroc/pkg/custom"
	"github.com/matzehuels/postroc/pkg/env"
)

// ErrSlotWritten is returned when an output is recorded twice for one node.
var ErrSlotWritten = errors.New("output already recorded")

// Output is the result of resolving one node.
type Output struct {
	NodeID   string         `json:"nodeId"`
	NodeName string         `json:"nodeName"`
	Raw      map[string]any `json:"rawData"`
	Exported any            `json:"exportedData"`
	// ExportType is the node's export config type name ("full", "field",
	// "array" or "transform"). References to a non-full node embed Exported.
	ExportType string   `json:"exportType"`
	Warnings   []string `json:"warnings"`
}

func (o *Output) fullExport() bool {
	return o.ExportType == "" || o.ExportType == custom.ExportFull{}.TypeName()
}

// Table holds the outputs of the nodes resolved so far. Each slot is
// written once and read many times; it is safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	outputs map[string]*Output
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{outputs: make(map[string]*Output)}
}

// Get returns the output recorded for id. A nil table is empty.
func (t *Table) Get(id string) (*Output, bool) {
	if t == nil {
		return nil, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.outputs[id]
	return o, ok
}

// Put records o under o.NodeID.
func (t *Table) Put(o *Output) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.outputs[o.NodeID]; ok {
		return fmt.Errorf("node %q: %w", o.NodeID, ErrSlotWritten)
	}
	t.outputs[o.NodeID] = o
	return nil
}

// Len returns the number of recorded outputs.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.outputs)
}

// Outputs returns a copy of the table keyed by node id.
func (t *Table) Outputs() map[string]*Output {
	if t == nil {
		return map[string]*Output{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return maps.Clone(t.outputs)
}

// Context is what a node resolution may consult: the outputs of the nodes
// resolved before it and the environment used for fetch fields.
type Context struct {
	Resolved    *Table
	Environment *env.Environment
}
