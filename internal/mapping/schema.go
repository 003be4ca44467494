package mapping

import (
	"fmt"
)

// TypeKind classifies a resolved TypeDescriptor.
type TypeKind string

const (
	TypeString  TypeKind = "string"
	TypeInteger TypeKind = "integer"
	TypeNumber  TypeKind = "number"
	TypeBoolean TypeKind = "boolean"
	TypeArray   TypeKind = "array"
	TypeObject  TypeKind = "object"
	TypeEnum    TypeKind = "enum"
	TypeUnion   TypeKind = "union"

	// TypeReference is a back-reference marker emitted when a reference is
	// hit while its own resolution is still in progress. It carries only
	// Ref and stands in for the fully resolved descriptor, keeping the
	// descriptor graph cycle-free.
	TypeReference TypeKind = "reference"
)

// TypeDescriptor is the resolved, cycle-free semantic type produced from a
// SchemaNode. Descriptors are immutable once produced and shared per
// reference identifier.
type TypeDescriptor struct {
	Kind TypeKind

	// Ref is the name of the named schema this descriptor was resolved
	// from, empty for inline schemas. For TypeReference markers it names
	// the target.
	Ref string

	// Format is the declared primitive format, carried for diagnostics.
	// Unrecognized formats do not change the kind.
	Format string

	// Elem is the element type of a TypeArray.
	Elem *TypeDescriptor

	// Fields are the resolved fields of a TypeObject, ordered by name.
	Fields []FieldDescriptor

	// EnumBase and EnumValues describe a TypeEnum.
	EnumBase   TypeKind
	EnumValues []string

	// Branches are the deduplicated alternatives of a TypeUnion.
	Branches []*TypeDescriptor

	// SelfRecursive marks a named type whose resolution hit itself; some
	// descendant holds a TypeReference marker back to it.
	SelfRecursive bool

	Description string
}

// FieldDescriptor is one resolved field of an object descriptor.
type FieldDescriptor struct {
	Name     string
	Type     *TypeDescriptor
	Required bool
	Default  any
}

// String renders the descriptor for diagnostics, e.g. "array of Pet".
func (t *TypeDescriptor) String() string {
	if t == nil {
		return "void"
	}
	if t.Ref != "" {
		return t.Ref
	}
	switch t.Kind {
	case TypeArray:
		return "array of " + t.Elem.String()
	case TypeEnum:
		return fmt.Sprintf("%s enum", t.EnumBase)
	case TypeUnion:
		return fmt.Sprintf("union of %d", len(t.Branches))
	default:
		return string(t.Kind)
	}
}

// Equal reports structural equality. Descriptors are cycle-free (cycles
// terminate at TypeReference markers), so plain recursion terminates.
func (t *TypeDescriptor) Equal(o *TypeDescriptor) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.Kind != o.Kind || t.Ref != o.Ref {
		return false
	}
	switch t.Kind {
	case TypeArray:
		return t.Elem.Equal(o.Elem)
	case TypeObject:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			a, b := t.Fields[i], o.Fields[i]
			if a.Name != b.Name || a.Required != b.Required || !a.Type.Equal(b.Type) {
				return false
			}
		}
		return true
	case TypeEnum:
		if t.EnumBase != o.EnumBase || len(t.EnumValues) != len(o.EnumValues) {
			return false
		}
		for i := range t.EnumValues {
			if t.EnumValues[i] != o.EnumValues[i] {
				return false
			}
		}
		return true
	case TypeUnion:
		if len(t.Branches) != len(o.Branches) {
			return false
		}
		for i := range t.Branches {
			if !t.Branches[i].Equal(o.Branches[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Resolver converts SchemaNodes into TypeDescriptors. It keeps a per-run
// cache keyed by reference identifier so repeated references share one
// descriptor, and an in-progress set that turns reference cycles into
// back-reference markers instead of unbounded expansion.
type Resolver struct {
	schemas    map[string]*SchemaNode
	cache      map[string]*TypeDescriptor
	inProgress map[string]bool
	recursive  map[string]bool
}

// NewResolver creates a resolver over the document's named schemas. Each
// mapping run starts from a fresh resolver.
func NewResolver(schemas map[string]*SchemaNode) *Resolver {
	return &Resolver{
		schemas:    schemas,
		cache:      make(map[string]*TypeDescriptor),
		inProgress: make(map[string]bool),
		recursive:  make(map[string]bool),
	}
}

// Resolve converts one schema node. path locates the node in the schema
// graph for diagnostics.
func (r *Resolver) Resolve(node *SchemaNode, path string) (*TypeDescriptor, error) {
	if node == nil {
		return nil, &SchemaResolutionError{Path: path, Msg: "missing schema"}
	}

	switch {
	case node.Ref != "":
		return r.resolveRef(node.Ref, path)
	case len(node.Enum) > 0:
		return resolveEnum(node, path)
	case len(node.OneOf) > 0:
		return r.resolveUnion(node.OneOf, node, path+".oneOf")
	case len(node.AnyOf) > 0:
		return r.resolveUnion(node.AnyOf, node, path+".anyOf")
	case len(node.AllOf) > 0:
		return r.resolveAllOf(node, path)
	case node.Items != nil:
		elem, err := r.Resolve(node.Items, path+".items")
		if err != nil {
			return nil, err
		}
		return &TypeDescriptor{Kind: TypeArray, Elem: elem, Description: node.Description}, nil
	case len(node.Fields) > 0:
		return r.resolveObject(node, path)
	case node.Primitive != "":
		return resolvePrimitive(node), nil
	default:
		// A bare schema with no constraints maps to an open object.
		return &TypeDescriptor{Kind: TypeObject, Description: node.Description}, nil
	}
}

func (r *Resolver) resolveRef(name, path string) (*TypeDescriptor, error) {
	if d, ok := r.cache[name]; ok {
		return d, nil
	}
	if r.inProgress[name] {
		r.recursive[name] = true
		return &TypeDescriptor{Kind: TypeReference, Ref: name}, nil
	}
	target, ok := r.schemas[name]
	if !ok {
		return nil, &SchemaResolutionError{Path: path, Msg: fmt.Sprintf("unresolvable reference %q", name)}
	}

	r.inProgress[name] = true
	d, err := r.Resolve(target, name)
	delete(r.inProgress, name)
	if err != nil {
		return nil, err
	}

	if d.Ref == "" {
		d.Ref = name
	}
	if r.recursive[name] {
		d.SelfRecursive = true
	}
	r.cache[name] = d
	return d, nil
}

func (r *Resolver) resolveObject(node *SchemaNode, path string) (*TypeDescriptor, error) {
	required := make(map[string]bool, len(node.Required))
	for _, name := range node.Required {
		required[name] = true
	}

	fields := make([]FieldDescriptor, 0, len(node.Fields))
	for _, f := range node.Fields {
		ft, err := r.Resolve(f.Schema, path+"."+f.Name)
		if err != nil {
			return nil, err
		}
		var def any
		if f.Schema != nil {
			def = f.Schema.Default
		}
		fields = append(fields, FieldDescriptor{
			Name:     f.Name,
			Type:     ft,
			Required: required[f.Name],
			Default:  def,
		})
	}

	return &TypeDescriptor{Kind: TypeObject, Fields: fields, Description: node.Description}, nil
}

func (r *Resolver) resolveUnion(branches []*SchemaNode, node *SchemaNode, path string) (*TypeDescriptor, error) {
	resolved := make([]*TypeDescriptor, 0, len(branches))
	for i, branch := range branches {
		d, err := r.Resolve(branch, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if !containsType(resolved, d) {
			resolved = append(resolved, d)
		}
	}
	if len(resolved) == 1 {
		return resolved[0], nil
	}
	return &TypeDescriptor{Kind: TypeUnion, Branches: resolved, Description: node.Description}, nil
}

func (r *Resolver) resolveAllOf(node *SchemaNode, path string) (*TypeDescriptor, error) {
	var fields []FieldDescriptor
	index := make(map[string]int)

	for i, branch := range node.AllOf {
		branchPath := fmt.Sprintf("%s.allOf[%d]", path, i)
		d, err := r.Resolve(branch, branchPath)
		if err != nil {
			return nil, err
		}
		if d.Kind != TypeObject {
			return nil, &SchemaResolutionError{
				Path: branchPath,
				Msg:  fmt.Sprintf("allOf branch resolves to %s, only objects can be merged", d.Kind),
			}
		}
		for _, f := range d.Fields {
			if at, ok := index[f.Name]; ok {
				if !fields[at].Type.Equal(f.Type) {
					return nil, &SchemaResolutionError{
						Path: branchPath,
						Msg:  fmt.Sprintf("allOf merges field %q with incompatible types %s and %s", f.Name, fields[at].Type, f.Type),
					}
				}
				fields[at].Required = fields[at].Required || f.Required
				continue
			}
			index[f.Name] = len(fields)
			fields = append(fields, f)
		}
	}

	return &TypeDescriptor{Kind: TypeObject, Fields: fields, Description: node.Description}, nil
}

func resolvePrimitive(node *SchemaNode) *TypeDescriptor {
	var kind TypeKind
	switch node.Primitive {
	case PrimitiveInteger:
		kind = TypeInteger
	case PrimitiveNumber:
		kind = TypeNumber
	case PrimitiveBoolean:
		kind = TypeBoolean
	default:
		// Unrecognized primitive subtypes fall back to plain string.
		kind = TypeString
	}
	return &TypeDescriptor{Kind: kind, Format: node.Format, Description: node.Description}
}

func resolveEnum(node *SchemaNode, path string) (*TypeDescriptor, error) {
	base := TypeKind("")
	values := make([]string, 0, len(node.Enum))

	for _, v := range node.Enum {
		k, ok := literalKind(v)
		if !ok {
			return nil, &SchemaResolutionError{Path: path, Msg: fmt.Sprintf("enum value %v is not a primitive literal", v)}
		}
		switch {
		case base == "":
			base = k
		case base == k:
		case base == TypeInteger && k == TypeNumber, base == TypeNumber && k == TypeInteger:
			base = TypeNumber
		default:
			return nil, &SchemaResolutionError{
				Path: path,
				Msg:  fmt.Sprintf("enum mixes %s and %s values", base, k),
			}
		}
		values = append(values, fmt.Sprintf("%v", v))
	}

	return &TypeDescriptor{Kind: TypeEnum, EnumBase: base, EnumValues: values, Description: node.Description}, nil
}

func literalKind(v any) (TypeKind, bool) {
	switch n := v.(type) {
	case string:
		return TypeString, true
	case bool:
		return TypeBoolean, true
	case int, int32, int64:
		return TypeInteger, true
	case float32:
		return numericKind(float64(n)), true
	case float64:
		return numericKind(n), true
	default:
		return "", false
	}
}

// numericKind classifies a JSON number: decoders hand integer literals over
// as float64, so integral values count as integers.
func numericKind(f float64) TypeKind {
	if f == float64(int64(f)) {
		return TypeInteger
	}
	return TypeNumber
}

func containsType(list []*TypeDescriptor, d *TypeDescriptor) bool {
	for _, have := range list {
		if have.Equal(d) {
			return true
		}
	}
	return false
}
