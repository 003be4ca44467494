// Package mcpserver turns a mapping table into a servable MCP server:
// tools become MCP tools with typed argument schemas, resources become MCP
// resource templates, and every entry gets a handler that invokes the
// upstream HTTP API.
package mcpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/openapi-mcp/openapi-mcp/internal/mapping"
)

// Auth holds the credentials injected into upstream requests.
type Auth struct {
	BearerToken  string
	Username     string
	Password     string
	APIKeyHeader string
	APIKey       string
}

// Options configures the emitted server.
type Options struct {
	Name    string
	Version string

	// BaseURL is the upstream API address resource URIs and tool calls
	// resolve against.
	BaseURL string

	// Prefix is prepended to every tool and resource name.
	Prefix string

	Auth   Auth
	Client *http.Client
}

// New builds an MCP server from the mapping table. The table is consumed
// as read-only data; the server keeps no handle back into the engine.
func New(table *mapping.MappingTable, opts Options) (*server.MCPServer, error) {
	if opts.Client == nil {
		opts.Client = http.DefaultClient
	}

	s := server.NewMCPServer(
		opts.Name,
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
	)

	inv := &invoker{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		auth:    opts.Auth,
		client:  opts.Client,
	}

	for _, tool := range table.Tools() {
		s.AddTool(buildTool(opts.Prefix, tool), inv.toolHandler(tool))
		log.Debug().Str("run_id", table.RunID).Str("tool", opts.Prefix+tool.Name).Msg("registered tool")
	}

	for _, res := range table.Resources() {
		s.AddResourceTemplate(buildResourceTemplate(inv.baseURL, opts.Prefix, res), inv.resourceHandler(res))
		log.Debug().Str("run_id", table.RunID).Str("resource", opts.Prefix+res.Name).Msg("registered resource")
	}

	log.Info().
		Str("run_id", table.RunID).
		Int("tools", len(table.Tools())).
		Int("resources", len(table.Resources())).
		Msg("mcp server built")

	return s, nil
}

// buildTool converts a mapped tool into an MCP tool definition.
func buildTool(prefix string, t *mapping.Tool) mcp.Tool {
	args := make([]mcp.ToolOption, 0, len(t.Signature)+1)
	args = append(args, mcp.WithDescription(entryDescription(t.Description, t.Returns)))

	for _, p := range t.Signature {
		args = append(args, toolOption(p))
	}

	return mcp.NewTool(prefix+t.Name, args...)
}

// buildResourceTemplate converts a mapped resource into an MCP resource
// template addressed by URI template.
func buildResourceTemplate(baseURL, prefix string, r *mapping.Resource) mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(
		baseURL+r.URITemplate,
		prefix+r.Name,
		mcp.WithTemplateDescription(entryDescription(r.Description, r.Returns)),
		mcp.WithTemplateMIMEType("application/json"),
	)
}

func entryDescription(desc string, returns *mapping.TypeDescriptor) string {
	ret := "Returns: " + returns.String()
	if desc == "" {
		return ret
	}
	return desc + "\n\n" + ret
}

// toolOption creates the argument option for one bound parameter, keyed by
// the descriptor kind.
func toolOption(p mapping.ParameterSpec) mcp.ToolOption {
	options := []mcp.PropertyOption{}
	if p.Description != "" {
		options = append(options, mcp.Description(p.Description))
	}
	if p.Required {
		options = append(options, mcp.Required())
	}

	kind := p.Type.Kind
	if kind == mapping.TypeEnum {
		options = append(options, mcp.Enum(p.Type.EnumValues...))
		kind = enumArgKind(p.Type.EnumBase)
	}
	if p.Default != nil {
		options = append(options, defaultOption(kind, p.Default)...)
	}

	switch kind {
	case mapping.TypeInteger, mapping.TypeNumber:
		return mcp.WithNumber(p.Name, options...)
	case mapping.TypeBoolean:
		return mcp.WithBoolean(p.Name, options...)
	case mapping.TypeArray:
		options = append(options, mcp.Items(schemaMap(p.Type.Elem)))
		return mcp.WithArray(p.Name, options...)
	case mapping.TypeObject, mapping.TypeUnion, mapping.TypeReference:
		options = append(options, mcp.Properties(propertiesMap(p.Type)))
		return mcp.WithObject(p.Name, options...)
	default:
		return mcp.WithString(p.Name, options...)
	}
}

// enumArgKind maps an enum's base type onto the argument kind carrying it.
func enumArgKind(base mapping.TypeKind) mapping.TypeKind {
	switch base {
	case mapping.TypeInteger, mapping.TypeNumber, mapping.TypeBoolean:
		return base
	default:
		return mapping.TypeString
	}
}

func defaultOption(kind mapping.TypeKind, def any) []mcp.PropertyOption {
	switch kind {
	case mapping.TypeInteger, mapping.TypeNumber:
		if f, ok := toFloat(def); ok {
			return []mcp.PropertyOption{mcp.DefaultNumber(f)}
		}
	case mapping.TypeBoolean:
		if b, ok := def.(bool); ok {
			return []mcp.PropertyOption{mcp.DefaultBool(b)}
		}
	case mapping.TypeString:
		return []mcp.PropertyOption{mcp.DefaultString(fmt.Sprintf("%v", def))}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func propertiesMap(t *mapping.TypeDescriptor) map[string]any {
	props := make(map[string]any, len(t.Fields))
	for _, f := range t.Fields {
		props[f.Name] = schemaMap(f.Type)
	}
	return props
}

// schemaMap renders a descriptor as a JSON-schema fragment for nested
// argument types.
func schemaMap(t *mapping.TypeDescriptor) map[string]any {
	if t == nil {
		return map[string]any{"type": "object"}
	}

	out := make(map[string]any)
	if t.Description != "" {
		out["description"] = t.Description
	}

	switch t.Kind {
	case mapping.TypeArray:
		out["type"] = "array"
		out["items"] = schemaMap(t.Elem)
	case mapping.TypeObject:
		out["type"] = "object"
		if len(t.Fields) > 0 {
			out["properties"] = propertiesMap(t)
		}
		var required []string
		for _, f := range t.Fields {
			if f.Required {
				required = append(required, f.Name)
			}
		}
		if len(required) > 0 {
			out["required"] = required
		}
	case mapping.TypeEnum:
		out["type"] = string(enumArgKind(t.EnumBase))
		out["enum"] = t.EnumValues
	case mapping.TypeUnion:
		branches := make([]any, 0, len(t.Branches))
		for _, b := range t.Branches {
			branches = append(branches, schemaMap(b))
		}
		out["oneOf"] = branches
	case mapping.TypeReference:
		// Back-reference marker: the full shape is the named type itself.
		out["type"] = "object"
		out["description"] = "recursive reference to " + t.Ref
	default:
		out["type"] = string(t.Kind)
		if t.Format != "" {
			out["format"] = t.Format
		}
	}

	return out
}
