package mapping

import "fmt"

// The four error kinds below are all run-fatal: Build never returns a
// partial table, since a server generated from an incomplete mapping would
// silently misrepresent the source API.

// SchemaResolutionError reports a schema that cannot be resolved to a
// TypeDescriptor: a dangling reference, incompatible enum member types, or
// an incompatible allOf merge.
type SchemaResolutionError struct {
	// Path locates the failing node in the schema graph, e.g.
	// "Pet.tags.items".
	Path string
	Msg  string
}

func (e *SchemaResolutionError) Error() string {
	if e.Path == "" {
		return "schema resolution: " + e.Msg
	}
	return fmt.Sprintf("schema resolution at %s: %s", e.Path, e.Msg)
}

// ParameterBindingError reports a parameter set that cannot be bound into
// an unambiguous invocation signature.
type ParameterBindingError struct {
	Operation string
	Parameter string
	Msg       string
}

func (e *ParameterBindingError) Error() string {
	return fmt.Sprintf("operation %s: parameter %q: %s", e.Operation, e.Parameter, e.Msg)
}

// ClassificationError reports a resource candidate whose path template
// cannot be satisfied by its declared parameters.
type ClassificationError struct {
	Operation string
	Msg       string
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("operation %s: %s", e.Operation, e.Msg)
}

// NamingConflictError reports two operations whose derived names still
// collide after disambiguation. This is an authoring defect in the source
// description, not something the engine papers over.
type NamingConflictError struct {
	Name   string
	First  string
	Second string
}

func (e *NamingConflictError) Error() string {
	return fmt.Sprintf("name %q derived from both operation %s and operation %s", e.Name, e.First, e.Second)
}
