package custom

import "strings"

// PrimitiveType is the declared type of a scalar field.
type PrimitiveType string

const (
	String  PrimitiveType = "string"
	Number  PrimitiveType = "number"
	Boolean PrimitiveType = "boolean"
)

// ItemKind is the declared kind of an array field's items.
type ItemKind string

const (
	ItemString  ItemKind = "string"
	ItemNumber  ItemKind = "number"
	ItemBoolean ItemKind = "boolean"
	ItemObject  ItemKind = "object"
	// ItemMixed marks an array whose children are independent item
	// templates that do not share a shape.
	ItemMixed ItemKind = "mixed"
)

// Primitive reports the scalar type for primitive item kinds.
// It returns false for object and mixed items.
func (k ItemKind) Primitive() (PrimitiveType, bool) {
	switch k {
	case ItemString:
		return String, true
	case ItemNumber:
		return Number, true
	case ItemBoolean:
		return Boolean, true
	}
	return "", false
}

// Kind is the variant part of a [Field]. The set of implementations is
// closed: [Primitive], [Array], [Object], [Reference] and [Fetch].
type Kind interface {
	// TypeName returns the persisted discriminator for the kind.
	TypeName() string
	sealed()
}

// Primitive is a string, number or boolean field.
type Primitive struct {
	Type PrimitiveType
}

// Array is a list field. Count is the target length when items are
// generated; zero means "pick a small random length".
type Array struct {
	Item  ItemKind
	Count int
}

// Object is a field whose children are its properties.
type Object struct{}

// Reference embeds another node's resolved output. When KeyPath is set only
// the value at that dotted path of the target's raw data is embedded.
type Reference struct {
	TargetID string
	KeyPath  string
}

// Fetch is a field whose value comes from a GET against Endpoint.
// Once a fetch has been captured as a template (children or a literal on the
// field) the template is used instead of the network.
type Fetch struct {
	Endpoint string
}

// Persisted discriminators, compatible with exported workspace files.
const (
	TypeString    = "string"
	TypeNumber    = "number"
	TypeBoolean   = "boolean"
	TypeArray     = "array"
	TypeObject    = "object"
	TypeReference = "reference"
	TypeFetch     = "api-fetch"
)

func (p Primitive) TypeName() string { return string(p.Type) }
func (Array) TypeName() string       { return TypeArray }
func (Object) TypeName() string      { return TypeObject }
func (Reference) TypeName() string   { return TypeReference }
func (Fetch) TypeName() string       { return TypeFetch }

func (Primitive) sealed() {}
func (Array) sealed()     {}
func (Object) sealed()    {}
func (Reference) sealed() {}
func (Fetch) sealed()     {}

// Field is one named slot of a [Node].
type Field struct {
	ID          string // Stable identifier, unique within a node
	Key         string // Output property name (positional placeholder for array items)
	Kind        Kind
	Exported    bool   // Unexported fields are skipped during resolution
	Literal     string // Explicit value; wins over generation when non-empty
	Children    []Field
	Description string
}

// HasLiteral reports whether the field carries an explicit value.
func (f Field) HasLiteral() bool { return f.Literal != "" }

// HasChildren reports whether the field carries nested field templates.
func (f Field) HasChildren() bool { return len(f.Children) > 0 }

// Node is a named, user-defined data template ("Custom") producing one JSON
// document when resolved.
type Node struct {
	ID     string
	Name   string
	Fields []Field
	Export ExportConfig // nil means ExportFull
}

// DisplayName returns the node name, falling back to its id.
func (n Node) DisplayName() string {
	if strings.TrimSpace(n.Name) == "" {
		return n.ID
	}
	return n.Name
}

// ExportConfig describes how a node's raw data is reshaped before it is
// handed to consumers. The implementations are [ExportFull], [ExportField],
// [ExportArray] and [ExportTransform]; a nil config means full export.
type ExportConfig interface {
	// TypeName returns the persisted discriminator for the config.
	TypeName() string
	sealedExport()
}

// ExportFull hands the raw data out unchanged.
type ExportFull struct{}

// ExportField picks the value at a dotted path.
type ExportField struct {
	Path string
}

// ExportArray picks one key from every element of an array. Path is
// "<array path>.<leaf key>", or just "<leaf key>" to use the first
// top-level array.
type ExportArray struct {
	Path string
}

// ExportTransform evaluates a single expression with the raw data bound
// to the variable "data".
type ExportTransform struct {
	Expression string
}

func (ExportFull) TypeName() string      { return "full" }
func (ExportField) TypeName() string     { return "field" }
func (ExportArray) TypeName() string     { return "array" }
func (ExportTransform) TypeName() string { return "transform" }

func (ExportFull) sealedExport()      {}
func (ExportField) sealedExport()     {}
func (ExportArray) sealedExport()     {}
func (ExportTransform) sealedExport() {}

// IsFull reports whether cfg leaves the data unchanged.
func IsFull(cfg ExportConfig) bool {
	if cfg == nil {
		return true
	}
	_, ok := cfg.(ExportFull)
	return ok
}
