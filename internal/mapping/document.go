// Package mapping derives MCP resources and tools from a parsed API
// description. The entry point is Build, which turns a Document into an
// immutable MappingTable; everything else in the package supports that
// single pass.
package mapping

// Location identifies where a parameter travels on the wire.
type Location string

const (
	LocationPath   Location = "path"
	LocationQuery  Location = "query"
	LocationHeader Location = "header"
	LocationBody   Location = "body"
)

// Hint is an explicit per-operation classification override. It always wins
// over the verb-based default, except that an operation with a request body
// can never become a resource.
type Hint string

const (
	HintNone     Hint = ""
	HintResource Hint = "resource"
	HintTool     Hint = "tool"
)

// PrimitiveType is the base type of a primitive schema.
type PrimitiveType string

const (
	PrimitiveString  PrimitiveType = "string"
	PrimitiveInteger PrimitiveType = "integer"
	PrimitiveNumber  PrimitiveType = "number"
	PrimitiveBoolean PrimitiveType = "boolean"
)

// SchemaNode is one node of the raw schema graph handed to the engine by
// the spec loader. It is treated as read-only input.
type SchemaNode struct {
	// Ref names another schema in Document.Schemas. When set, every other
	// field is ignored.
	Ref string

	Primitive PrimitiveType
	Format    string

	// Items marks the node as an array of Items.
	Items *SchemaNode

	// Fields marks the node as an object. Required lists the names of
	// required fields; fields not listed are optional.
	Fields   []SchemaField
	Required []string

	// Enum marks the node as a closed set of literal values.
	Enum []any

	// OneOf/AnyOf mark the node as a union, AllOf as a structural merge.
	OneOf []*SchemaNode
	AnyOf []*SchemaNode
	AllOf []*SchemaNode

	Default     any
	Description string
}

// SchemaField is one named field of an object schema, in declaration order.
type SchemaField struct {
	Name   string
	Schema *SchemaNode
}

// Parameter is one declared operation parameter, before binding.
type Parameter struct {
	Name        string
	In          Location
	Schema      *SchemaNode
	Required    bool
	Default     any
	Description string
}

// RequestBody is the declared request body of an operation.
type RequestBody struct {
	Schema      *SchemaNode
	Required    bool
	Description string
}

// Operation is one endpoint (verb + path) of the source description,
// produced by the spec loader and treated as read-only input.
type Operation struct {
	// ID is the operation identifier from the description, possibly empty.
	ID     string
	Method string
	Path   string

	Parameters []Parameter
	Body       *RequestBody

	// Response is the schema of the primary success response, nil when the
	// operation returns nothing.
	Response *SchemaNode

	// Hint is the explicit classification override, HintNone when absent.
	Hint Hint

	// NameOverride replaces the derived candidate name when set. It still
	// goes through conflict resolution.
	NameOverride string

	Description string
}

// Key identifies the operation in diagnostics: the operation id when
// present, otherwise verb plus path.
func (op *Operation) Key() string {
	if op.ID != "" {
		return op.ID
	}
	return op.Method + " " + op.Path
}

// Document is the full mapping input: the operation set in its stable
// order plus all named schemas referenced from it.
type Document struct {
	Title   string
	Version string
	Servers []string

	Operations []*Operation
	Schemas    map[string]*SchemaNode
}
