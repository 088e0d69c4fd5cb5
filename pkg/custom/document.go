package custom

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// Document is the flat, persisted form of a [Node]. It mirrors the layout
// of exported workspace files and is what snapshot sources decode into.
type Document struct {
	ID           string          `json:"id" yaml:"id" bson:"id"`
	Name         string          `json:"name" yaml:"name" bson:"name"`
	Fields       []FieldDocument `json:"fields" yaml:"fields" bson:"fields"`
	ExportConfig *ExportDocument `json:"exportConfig,omitempty" yaml:"exportConfig,omitempty" bson:"exportConfig,omitempty"`
}

// FieldDocument is the flat form of a [Field]. Type is one of the Type*
// discriminators; the remaining attributes apply depending on it.
type FieldDocument struct {
	ID               string          `json:"id,omitempty" yaml:"id,omitempty" bson:"id,omitempty"`
	Key              string          `json:"key" yaml:"key" bson:"key"`
	Type             string          `json:"type" yaml:"type" bson:"type"`
	Value            any             `json:"value,omitempty" yaml:"value,omitempty" bson:"value,omitempty"`
	IsExported       *bool           `json:"isExported,omitempty" yaml:"isExported,omitempty" bson:"isExported,omitempty"`
	Children         []FieldDocument `json:"children,omitempty" yaml:"children,omitempty" bson:"children,omitempty"`
	ItemType         string          `json:"itemType,omitempty" yaml:"itemType,omitempty" bson:"itemType,omitempty"`
	ItemCount        int             `json:"itemCount,omitempty" yaml:"itemCount,omitempty" bson:"itemCount,omitempty"`
	ReferenceID      string          `json:"referenceId,omitempty" yaml:"referenceId,omitempty" bson:"referenceId,omitempty"`
	ReferenceKeyPath string          `json:"referenceKeyPath,omitempty" yaml:"referenceKeyPath,omitempty" bson:"referenceKeyPath,omitempty"`
	APIEndpoint      string          `json:"apiEndpoint,omitempty" yaml:"apiEndpoint,omitempty" bson:"apiEndpoint,omitempty"`
	Description      string          `json:"description,omitempty" yaml:"description,omitempty" bson:"description,omitempty"`
}

// ExportDocument is the flat form of an [ExportConfig].
type ExportDocument struct {
	Type          string `json:"type" yaml:"type" bson:"type"`
	FieldPath     string `json:"fieldPath,omitempty" yaml:"fieldPath,omitempty" bson:"fieldPath,omitempty"`
	ArrayField    string `json:"arrayField,omitempty" yaml:"arrayField,omitempty" bson:"arrayField,omitempty"`
	TransformCode string `json:"transformCode,omitempty" yaml:"transformCode,omitempty" bson:"transformCode,omitempty"`
}

// Node validates the document and converts it into a [Node].
func (d Document) Node() (Node, error) {
	if err := perrors.ValidateID(d.ID); err != nil {
		return Node{}, perrors.Wrap(perrors.ErrCodeInvalidNode, err, "node %q", d.Name)
	}
	fields, err := convertFields(d.Fields, false)
	if err != nil {
		return Node{}, perrors.Wrap(perrors.ErrCodeInvalidNode, err, "node %q", d.ID)
	}
	export, err := d.ExportConfig.Config()
	if err != nil {
		return Node{}, perrors.Wrap(perrors.ErrCodeInvalidNode, err, "node %q", d.ID)
	}
	return Node{ID: d.ID, Name: d.Name, Fields: fields, Export: export}, nil
}

// NewDocument converts a node into its flat form.
func NewDocument(n Node) Document {
	return Document{
		ID:           n.ID,
		Name:         n.Name,
		Fields:       fieldDocuments(n.Fields),
		ExportConfig: exportDocument(n.Export),
	}
}

// Nodes converts a batch of documents, stopping at the first invalid one.
func Nodes(docs []Document) ([]Node, error) {
	nodes := make([]Node, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		n, err := d.Node()
		if err != nil {
			return nil, err
		}
		if seen[n.ID] {
			return nil, perrors.New(perrors.ErrCodeInvalidNode, "duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// MarshalJSON encodes the node in its document form.
func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal(NewDocument(n))
}

// UnmarshalJSON decodes and validates a node from its document form.
func (n *Node) UnmarshalJSON(data []byte) error {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	node, err := d.Node()
	if err != nil {
		return err
	}
	*n = node
	return nil
}

func convertFields(docs []FieldDocument, arrayItems bool) ([]Field, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	fields := make([]Field, 0, len(docs))
	for i, fd := range docs {
		f, err := fd.field(arrayItems)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %w", i, fd.Key, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (fd FieldDocument) field(arrayItem bool) (Field, error) {
	if fd.Key == "" && !arrayItem {
		return Field{}, perrors.New(perrors.ErrCodeInvalidField, "field key cannot be empty")
	}
	literal, err := literalString(fd.Value)
	if err != nil {
		return Field{}, err
	}
	f := Field{
		ID:          fd.ID,
		Key:         fd.Key,
		Exported:    fd.IsExported == nil || *fd.IsExported,
		Literal:     literal,
		Description: fd.Description,
	}

	switch fd.Type {
	case TypeString, TypeNumber, TypeBoolean:
		f.Kind = Primitive{Type: PrimitiveType(fd.Type)}
	case TypeObject:
		f.Kind = Object{}
	case TypeArray:
		item, err := itemKind(fd)
		if err != nil {
			return Field{}, err
		}
		if fd.ItemCount < 0 {
			return Field{}, perrors.New(perrors.ErrCodeInvalidField, "itemCount cannot be negative")
		}
		f.Kind = Array{Item: item, Count: fd.ItemCount}
	case TypeReference:
		if err := perrors.ValidateKeyPath(fd.ReferenceKeyPath); err != nil {
			return Field{}, err
		}
		f.Kind = Reference{TargetID: fd.ReferenceID, KeyPath: fd.ReferenceKeyPath}
	case TypeFetch:
		if fd.APIEndpoint != "" {
			if err := perrors.ValidateEndpoint(fd.APIEndpoint); err != nil {
				return Field{}, err
			}
		}
		f.Kind = Fetch{Endpoint: fd.APIEndpoint}
	default:
		return Field{}, perrors.New(perrors.ErrCodeInvalidField, "unknown field type %q", fd.Type)
	}

	f.Children, err = convertFields(fd.Children, fd.Type == TypeArray)
	if err != nil {
		return Field{}, err
	}
	return f, nil
}

// itemKind returns the declared item kind, inferring it from the children
// when the document predates explicit item kinds: a single primitive child
// is a per-item template, anything else is an object template.
func itemKind(fd FieldDocument) (ItemKind, error) {
	switch ItemKind(fd.ItemType) {
	case ItemString, ItemNumber, ItemBoolean, ItemObject, ItemMixed:
		return ItemKind(fd.ItemType), nil
	case "":
	default:
		return "", perrors.New(perrors.ErrCodeInvalidField, "unknown item type %q", fd.ItemType)
	}
	if len(fd.Children) == 0 {
		return ItemString, nil
	}
	if len(fd.Children) == 1 {
		switch fd.Children[0].Type {
		case TypeString, TypeNumber, TypeBoolean:
			return ItemKind(fd.Children[0].Type), nil
		}
	}
	return ItemObject, nil
}

// literalString normalises a persisted value into the literal string form.
// Scalars are formatted, lists of scalars are comma-joined.
func literalString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprint(val), nil
	case json.Number:
		return val.String(), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		parts := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			s, err := literalString(rv.Index(i).Interface())
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), nil
	}
	return "", perrors.New(perrors.ErrCodeInvalidField, "unsupported literal value of type %T", v)
}

// Config validates the document and converts it. A nil document is a nil
// (full) config.
func (ed *ExportDocument) Config() (ExportConfig, error) {
	if ed == nil {
		return nil, nil
	}
	switch ed.Type {
	case "", "full":
		return ExportFull{}, nil
	case "field":
		if err := perrors.ValidateKeyPath(ed.FieldPath); err != nil {
			return nil, err
		}
		return ExportField{Path: ed.FieldPath}, nil
	case "array":
		if err := perrors.ValidateKeyPath(ed.ArrayField); err != nil {
			return nil, err
		}
		return ExportArray{Path: ed.ArrayField}, nil
	case "transform":
		return ExportTransform{Expression: ed.TransformCode}, nil
	}
	return nil, perrors.New(perrors.ErrCodeInvalidNode, "unknown export type %q", ed.Type)
}

func fieldDocuments(fields []Field) []FieldDocument {
	if len(fields) == 0 {
		return nil
	}
	docs := make([]FieldDocument, 0, len(fields))
	for _, f := range fields {
		exported := f.Exported
		fd := FieldDocument{
			ID:          f.ID,
			Key:         f.Key,
			IsExported:  &exported,
			Children:    fieldDocuments(f.Children),
			Description: f.Description,
		}
		if f.Literal != "" {
			fd.Value = f.Literal
		}
		switch k := f.Kind.(type) {
		case Primitive:
			fd.Type = string(k.Type)
		case Object:
			fd.Type = TypeObject
		case Array:
			fd.Type = TypeArray
			fd.ItemType = string(k.Item)
			fd.ItemCount = k.Count
		case Reference:
			fd.Type = TypeReference
			fd.ReferenceID = k.TargetID
			fd.ReferenceKeyPath = k.KeyPath
		case Fetch:
			fd.Type = TypeFetch
			fd.APIEndpoint = k.Endpoint
		case nil:
			fd.Type = TypeString
		default:
			panic(fmt.Sprintf("custom: unreachable field kind %T", k))
		}
		docs = append(docs, fd)
	}
	return docs
}

func exportDocument(cfg ExportConfig) *ExportDocument {
	switch c := cfg.(type) {
	case nil:
		return nil
	case ExportFull:
		return &ExportDocument{Type: c.TypeName()}
	case ExportField:
		return &ExportDocument{Type: c.TypeName(), FieldPath: c.Path}
	case ExportArray:
		return &ExportDocument{Type: c.TypeName(), ArrayField: c.Path}
	case ExportTransform:
		return &ExportDocument{Type: c.TypeName(), TransformCode: c.Expression}
	default:
		panic(fmt.Sprintf("custom: unreachable export config %T", c))
	}
}
