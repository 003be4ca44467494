// Package spec loads OpenAPI descriptions and extracts the read-only
// document graph consumed by the mapping engine.
package spec

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/openapi-mcp/openapi-mcp/internal/mapping"
)

// Parser loads and validates an OpenAPI document.
type Parser struct {
	doc *openapi3.T
}

// NewParser creates a new OpenAPI parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseFile parses an OpenAPI 3.x document from a file (JSON or YAML).
func (p *Parser) ParseFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return p.Parse(data)
}

// ParseFileV2 parses an OpenAPI 2.0 document from a file and converts it.
func (p *Parser) ParseFileV2(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return p.ParseV2(data)
}

// ParseURL fetches and parses an OpenAPI document from an HTTP(S) URL.
func (p *Parser) ParseURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid specification URL %q", rawURL)
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	doc, err := loader.LoadFromURI(u)
	if err != nil {
		return fmt.Errorf("failed to load OpenAPI document from %s: %w", rawURL, err)
	}

	p.doc = doc
	return nil
}

// Parse parses an OpenAPI document from bytes. The loader handles both
// JSON and YAML.
func (p *Parser) Parse(data []byte) error {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	p.doc = doc
	return nil
}

// ParseV2 parses an OpenAPI 2.0 document from bytes and converts it to 3.x.
func (p *Parser) ParseV2(data []byte) error {
	var doc2 openapi2.T
	if err := doc2.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return fmt.Errorf("failed to convert OpenAPI document: %w", err)
	}

	p.doc = doc3
	return nil
}

// Validate checks the structural properties the engine assumes: a 3.x
// version marker, an info section with title and version, and a paths
// section.
func (p *Parser) Validate() error {
	if p.doc == nil {
		return fmt.Errorf("no specification loaded")
	}
	if !strings.HasPrefix(p.doc.OpenAPI, "3.0") && !strings.HasPrefix(p.doc.OpenAPI, "3.1") {
		return fmt.Errorf("unsupported OpenAPI version %q, expected 3.0.x or 3.1.x", p.doc.OpenAPI)
	}
	if p.doc.Info == nil || p.doc.Info.Title == "" || p.doc.Info.Version == "" {
		return fmt.Errorf("invalid info section: title and version are required")
	}
	if p.doc.Paths == nil {
		return fmt.Errorf("missing paths section")
	}
	return nil
}

// methodOrder fixes the verb component of the document's stable operation
// order.
var methodOrder = []string{"GET", "PUT", "POST", "DELETE", "OPTIONS", "HEAD", "PATCH", "TRACE"}

// Document extracts the mapping engine's input graph. Paths are ordered
// lexicographically and verbs by methodOrder, which is the declaration
// order every downstream ordering guarantee refers to.
func (p *Parser) Document() (*mapping.Document, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	doc := &mapping.Document{
		Title:   p.doc.Info.Title,
		Version: p.doc.Info.Version,
		Schemas: make(map[string]*mapping.SchemaNode),
	}

	for _, server := range p.doc.Servers {
		doc.Servers = append(doc.Servers, server.URL)
	}

	if p.doc.Components != nil {
		for name, ref := range p.doc.Components.Schemas {
			doc.Schemas[name] = convertSchema(ref)
		}
	}

	pathMap := p.doc.Paths.Map()
	paths := make([]string, 0, len(pathMap))
	for path := range pathMap {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		pathItem := pathMap[path]
		ops := operationsByMethod(pathItem)
		for _, method := range methodOrder {
			op := ops[method]
			if op == nil {
				continue
			}
			converted, err := convertOperation(path, method, pathItem, op)
			if err != nil {
				return nil, err
			}
			doc.Operations = append(doc.Operations, converted)
		}
	}

	return doc, nil
}

func operationsByMethod(pathItem *openapi3.PathItem) map[string]*openapi3.Operation {
	return map[string]*openapi3.Operation{
		"GET":     pathItem.Get,
		"PUT":     pathItem.Put,
		"POST":    pathItem.Post,
		"DELETE":  pathItem.Delete,
		"OPTIONS": pathItem.Options,
		"HEAD":    pathItem.Head,
		"PATCH":   pathItem.Patch,
		"TRACE":   pathItem.Trace,
	}
}

func convertOperation(path, method string, pathItem *openapi3.PathItem, op *openapi3.Operation) (*mapping.Operation, error) {
	converted := &mapping.Operation{
		ID:          op.OperationID,
		Method:      method,
		Path:        path,
		Hint:        operationHint(op),
		Description: operationDescription(op),
	}

	// Path-level parameters apply to every operation on the path and come
	// before the operation's own.
	for _, ref := range append(append(openapi3.Parameters{}, pathItem.Parameters...), op.Parameters...) {
		param := ref.Value
		if param == nil {
			continue
		}
		converted.Parameters = append(converted.Parameters, convertParameter(param))
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		body := op.RequestBody.Value
		if schema := bodySchema(body.Content); schema != nil {
			converted.Body = &mapping.RequestBody{
				Schema:      schema,
				Required:    body.Required,
				Description: body.Description,
			}
		}
	}

	converted.Response = successResponse(op)

	return converted, nil
}

func convertParameter(param *openapi3.Parameter) mapping.Parameter {
	p := mapping.Parameter{
		Name:        param.Name,
		In:          mapping.Location(param.In),
		Schema:      convertSchema(param.Schema),
		Required:    param.Required,
		Description: param.Description,
	}
	if param.Schema != nil && param.Schema.Value != nil {
		p.Default = param.Schema.Value.Default
	}
	return p
}

// operationHint reads the explicit classification override, if any.
func operationHint(op *openapi3.Operation) mapping.Hint {
	v, ok := op.Extensions["x-mcp-kind"].(string)
	if !ok {
		return mapping.HintNone
	}
	switch v {
	case "resource":
		return mapping.HintResource
	case "tool":
		return mapping.HintTool
	}
	return mapping.HintNone
}

func operationDescription(op *openapi3.Operation) string {
	var parts []string

	if op.Summary != "" {
		parts = append(parts, op.Summary)
	}
	if op.Description != "" {
		parts = append(parts, op.Description)
	}
	if op.Deprecated {
		parts = append(parts, "WARNING: This operation is deprecated.")
	}

	return strings.Join(parts, "\n\n")
}

// bodySchema picks the request body schema, preferring application/json.
func bodySchema(content openapi3.Content) *mapping.SchemaNode {
	if mt := content.Get("application/json"); mt != nil && mt.Schema != nil {
		return convertSchema(mt.Schema)
	}

	types := make([]string, 0, len(content))
	for contentType := range content {
		types = append(types, contentType)
	}
	sort.Strings(types)
	for _, contentType := range types {
		mt := content[contentType]
		if mt != nil && mt.Schema != nil {
			return convertSchema(mt.Schema)
		}
	}
	return nil
}

// successResponse picks the schema of the lowest 2xx response, nil when the
// operation declares none.
func successResponse(op *openapi3.Operation) *mapping.SchemaNode {
	if op.Responses == nil {
		return nil
	}

	respMap := op.Responses.Map()
	codes := make([]string, 0, len(respMap))
	for code := range respMap {
		if len(code) == 3 && code[0] == '2' {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)

	for _, code := range codes {
		ref := respMap[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		if schema := bodySchema(ref.Value.Content); schema != nil {
			return schema
		}
	}
	return nil
}

// convertSchema maps a kin-openapi schema onto the engine's SchemaNode
// graph. References stay references; the engine resolves them itself so it
// can detect cycles and share descriptors.
func convertSchema(ref *openapi3.SchemaRef) *mapping.SchemaNode {
	if ref == nil {
		return nil
	}
	if ref.Ref != "" {
		return &mapping.SchemaNode{Ref: refName(ref.Ref)}
	}

	s := ref.Value
	if s == nil {
		return nil
	}

	node := &mapping.SchemaNode{
		Format:      s.Format,
		Default:     s.Default,
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
	}

	for _, branch := range s.OneOf {
		node.OneOf = append(node.OneOf, convertSchema(branch))
	}
	for _, branch := range s.AnyOf {
		node.AnyOf = append(node.AnyOf, convertSchema(branch))
	}
	for _, branch := range s.AllOf {
		node.AllOf = append(node.AllOf, convertSchema(branch))
	}

	switch {
	case s.Type.Is("array"):
		node.Items = convertSchema(s.Items)
	case s.Type.Is("object") || len(s.Properties) > 0:
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			node.Fields = append(node.Fields, mapping.SchemaField{
				Name:   name,
				Schema: convertSchema(s.Properties[name]),
			})
		}
	case s.Type.Is("string"):
		node.Primitive = mapping.PrimitiveString
	case s.Type.Is("integer"):
		node.Primitive = mapping.PrimitiveInteger
	case s.Type.Is("number"):
		node.Primitive = mapping.PrimitiveNumber
	case s.Type.Is("boolean"):
		node.Primitive = mapping.PrimitiveBoolean
	}

	return node
}

func refName(ref string) string {
	if i := strings.LastIndexByte(ref, '/'); i >= 0 {
		return ref[i+1:]
	}
	return ref
}
