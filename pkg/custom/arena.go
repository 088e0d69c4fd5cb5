package custom

import (
	"errors"
	"slices"

	"github.com/google/uuid"

	perrors "github.com/matzehuels/postroc/pkg/errors"
)

var (
	// ErrFieldNotFound is returned by [Arena] operations addressing an id
	// that is not in the arena.
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidParent is returned when a field is attached to a parent that
	// cannot hold children (anything but objects, arrays and fetch templates),
	// or when a move would make a field its own ancestor.
	ErrInvalidParent = errors.New("invalid parent field")
)

// Arena stores a node's field tree flat, keyed by field id, with explicit
// parent/child links. Editors address nested fields by id instead of
// walking id paths through the tree, so lookups are O(1) and edits are
// O(depth). The zero value is not usable; use [NewArena].
//
// Arena is not safe for concurrent use.
type Arena struct {
	entries map[string]*arenaEntry
	roots   []string
}

type arenaEntry struct {
	field    Field // Children is always nil here; see children
	parent   string
	children []string
}

// NewArena indexes fields into a new arena. Fields without an id are
// assigned a fresh UUID; duplicate ids are replaced as well so every entry
// stays addressable.
func NewArena(fields []Field) *Arena {
	a := &Arena{entries: make(map[string]*arenaEntry)}
	for _, f := range fields {
		a.roots = append(a.roots, a.insert("", f))
	}
	return a
}

func (a *Arena) insert(parent string, f Field) string {
	id := f.ID
	if _, taken := a.entries[id]; id == "" || taken {
		id = uuid.NewString()
	}
	children := f.Children
	f.ID = id
	f.Children = nil
	e := &arenaEntry{field: f, parent: parent}
	a.entries[id] = e
	for _, c := range children {
		e.children = append(e.children, a.insert(id, c))
	}
	return id
}

// Len returns the number of fields in the arena, nested ones included.
func (a *Arena) Len() int { return len(a.entries) }

// Get returns the field with the given id, including its subtree.
func (a *Arena) Get(id string) (Field, bool) {
	if _, ok := a.entries[id]; !ok {
		return Field{}, false
	}
	return a.build(id), true
}

// Lookup returns the id of the child of parentID ("" for the top level)
// whose key is key.
func (a *Arena) Lookup(parentID, key string) (string, bool) {
	ids := a.roots
	if parentID != "" {
		p, ok := a.entries[parentID]
		if !ok {
			return "", false
		}
		ids = p.children
	}
	for _, id := range ids {
		if a.entries[id].field.Key == key {
			return id, true
		}
	}
	return "", false
}

// Parent returns the parent id of a field, or "" for top-level fields.
func (a *Arena) Parent(id string) (string, bool) {
	e, ok := a.entries[id]
	if !ok {
		return "", false
	}
	return e.parent, true
}

// Path returns the ids from the top-level ancestor down to id, inclusive.
func (a *Arena) Path(id string) ([]string, error) {
	if _, ok := a.entries[id]; !ok {
		return nil, ErrFieldNotFound
	}
	var path []string
	for cur := id; cur != ""; cur = a.entries[cur].parent {
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path, nil
}

// Add attaches f (and its subtree) under parentID, or at the top level when
// parentID is empty. It returns the id assigned to f.
func (a *Arena) Add(parentID string, f Field) (string, error) {
	if parentID != "" {
		p, ok := a.entries[parentID]
		if !ok {
			return "", ErrFieldNotFound
		}
		if !canHoldChildren(p.field.Kind) {
			return "", ErrInvalidParent
		}
	} else if err := perrors.ValidateFieldKey(f.Key); err != nil {
		return "", err
	}

	id := a.insert(parentID, f)
	if parentID == "" {
		a.roots = append(a.roots, id)
	} else {
		a.entries[parentID].children = append(a.entries[parentID].children, id)
	}
	return id, nil
}

// Update applies fn to a copy of the field and stores the result. The
// field's id and children are owned by the arena; changes fn makes to them
// are ignored. Changing a parent's kind to one that cannot hold children
// while it still has children is rejected.
func (a *Arena) Update(id string, fn func(*Field)) error {
	e, ok := a.entries[id]
	if !ok {
		return ErrFieldNotFound
	}
	f := e.field
	fn(&f)
	f.ID = id
	f.Children = nil
	if len(e.children) > 0 && !canHoldChildren(f.Kind) {
		return ErrInvalidParent
	}
	e.field = f
	return nil
}

// Remove deletes a field and its whole subtree.
func (a *Arena) Remove(id string) error {
	e, ok := a.entries[id]
	if !ok {
		return ErrFieldNotFound
	}
	a.detach(id, e.parent)
	a.drop(id)
	return nil
}

func (a *Arena) drop(id string) {
	for _, c := range a.entries[id].children {
		a.drop(c)
	}
	delete(a.entries, id)
}

func (a *Arena) detach(id, parent string) {
	isID := func(s string) bool { return s == id }
	if parent == "" {
		a.roots = slices.DeleteFunc(a.roots, isID)
		return
	}
	p := a.entries[parent]
	p.children = slices.DeleteFunc(p.children, isID)
}

// Move re-attaches a field under newParent ("" for top level) at position
// index. An index outside the sibling range appends.
func (a *Arena) Move(id, newParent string, index int) error {
	e, ok := a.entries[id]
	if !ok {
		return ErrFieldNotFound
	}
	if newParent != "" {
		p, ok := a.entries[newParent]
		if !ok {
			return ErrFieldNotFound
		}
		if !canHoldChildren(p.field.Kind) {
			return ErrInvalidParent
		}
		for cur := newParent; cur != ""; cur = a.entries[cur].parent {
			if cur == id {
				return ErrInvalidParent
			}
		}
	}

	a.detach(id, e.parent)
	e.parent = newParent
	if newParent == "" {
		a.roots = insertAt(a.roots, index, id)
	} else {
		p := a.entries[newParent]
		p.children = insertAt(p.children, index, id)
	}
	return nil
}

// Fields rebuilds the ordered field tree.
func (a *Arena) Fields() []Field {
	fields := make([]Field, 0, len(a.roots))
	for _, id := range a.roots {
		fields = append(fields, a.build(id))
	}
	return fields
}

func (a *Arena) build(id string) Field {
	e := a.entries[id]
	f := e.field
	for _, c := range e.children {
		f.Children = append(f.Children, a.build(c))
	}
	return f
}

func insertAt(ids []string, index int, id string) []string {
	if index < 0 || index >= len(ids) {
		return append(ids, id)
	}
	return slices.Insert(ids, index, id)
}

func canHoldChildren(k Kind) bool {
	switch k.(type) {
	case Object, Array, Fetch:
		return true
	}
	return false
}
