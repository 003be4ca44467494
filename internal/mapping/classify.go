package mapping

import (
	"fmt"
	"strings"

	"github.com/phuslu/log"
	"github.com/yosida95/uritemplate/v3"
)

// EntryKind distinguishes the two mapping entry variants.
type EntryKind string

const (
	EntryResource EntryKind = "resource"
	EntryTool     EntryKind = "tool"
)

// MappingEntry is one derived primitive: either a Resource or a Tool. The
// back-reference to the source operation exists for diagnostics only.
type MappingEntry interface {
	EntryName() string
	EntryKind() EntryKind
	SourceOp() *Operation

	rename(name string)
}

// Resource is a read-only, addressable mapping entry exposed by URI
// template. Its parameter list is restricted to path and query.
type Resource struct {
	Name        string
	URITemplate string
	Params      []ParameterSpec
	Returns     *TypeDescriptor
	Description string
	Source      *Operation
}

func (r *Resource) EntryName() string    { return r.Name }
func (r *Resource) EntryKind() EntryKind { return EntryResource }
func (r *Resource) SourceOp() *Operation { return r.Source }
func (r *Resource) rename(name string)   { r.Name = name }

// Tool is an invocable mapping entry with a typed argument signature and
// possible side effects.
type Tool struct {
	Name        string
	Signature   []ParameterSpec
	Returns     *TypeDescriptor
	Description string
	Source      *Operation
}

func (t *Tool) EntryName() string    { return t.Name }
func (t *Tool) EntryKind() EntryKind { return EntryTool }
func (t *Tool) SourceOp() *Operation { return t.Source }
func (t *Tool) rename(name string)   { t.Name = name }

var readVerbs = map[string]bool{"GET": true, "HEAD": true}

// classify decides the mapping variant for one operation. An explicit hint
// wins over the verb-based default, but an operation with a request body
// (or header parameters, which a URI template cannot carry) is always a
// tool.
func classify(op *Operation, params []ParameterSpec, returns *TypeDescriptor) (MappingEntry, error) {
	if wantsResource(op, params) {
		return newResource(op, params, returns)
	}
	return newTool(op, params, returns), nil
}

func wantsResource(op *Operation, params []ParameterSpec) bool {
	cause := ""
	if op.Body != nil {
		cause = "request body"
	} else {
		for _, p := range params {
			if p.Location == LocationHeader {
				cause = "header parameter " + p.Name
				break
			}
		}
	}
	if cause != "" {
		if op.Hint == HintResource {
			log.Debug().Str("operation", op.Key()).Str("cause", cause).Msg("resource hint demoted to tool")
		}
		return false
	}
	switch op.Hint {
	case HintResource:
		return true
	case HintTool:
		return false
	}
	return readVerbs[op.Method]
}

func newResource(op *Operation, params []ParameterSpec, returns *TypeDescriptor) (*Resource, error) {
	declared := make(map[string]bool)
	var query []string
	for _, p := range params {
		switch p.Location {
		case LocationPath:
			declared[p.Name] = true
		case LocationQuery:
			query = append(query, p.Name)
		}
	}

	for _, placeholder := range pathPlaceholders(op.Path) {
		if !declared[placeholder] {
			return nil, &ClassificationError{
				Operation: op.Key(),
				Msg:       fmt.Sprintf("path placeholder {%s} has no declared path parameter", placeholder),
			}
		}
	}

	template := op.Path
	if len(query) > 0 {
		template += "{?" + strings.Join(query, ",") + "}"
	}
	if _, err := uritemplate.New(template); err != nil {
		return nil, &ClassificationError{
			Operation: op.Key(),
			Msg:       fmt.Sprintf("invalid URI template %q: %v", template, err),
		}
	}

	return &Resource{
		Name:        candidateName(op),
		URITemplate: template,
		Params:      params,
		Returns:     returns,
		Description: op.Description,
		Source:      op,
	}, nil
}

func newTool(op *Operation, params []ParameterSpec, returns *TypeDescriptor) *Tool {
	// Signature order: path, query, header, then body fields, preserving
	// declaration order within each location.
	sig := make([]ParameterSpec, 0, len(params))
	for _, loc := range []Location{LocationPath, LocationQuery, LocationHeader, LocationBody} {
		for _, p := range params {
			if p.Location == loc {
				sig = append(sig, p)
			}
		}
	}

	return &Tool{
		Name:        candidateName(op),
		Signature:   sig,
		Returns:     returns,
		Description: op.Description,
		Source:      op,
	}
}

func pathPlaceholders(path string) []string {
	var names []string
	rest := path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			return names
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return names
		}
		names = append(names, rest[open+1:open+end])
		rest = rest[open+end+1:]
	}
}
