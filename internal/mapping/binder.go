package mapping

import (
	"strings"
)

// ParameterSpec is one bound, typed input of a derived resource or tool.
type ParameterSpec struct {
	Name        string
	Location    Location
	Type        *TypeDescriptor
	Required    bool
	Default     any
	Description string

	// Synthetic marks the parameter carrying a non-object request body
	// whole. It is the only reliable way to tell that parameter apart from
	// a declared body field that happens to be named "body".
	Synthetic bool
}

// BodyParamName names the single synthetic parameter that carries a
// non-object request body as a whole.
const BodyParamName = "body"

// Binder combines an operation's declared parameters and request body into
// an ordered, collision-checked list of ParameterSpecs.
type Binder struct {
	resolver *Resolver
}

// NewBinder creates a binder resolving schemas through r.
func NewBinder(r *Resolver) *Binder {
	return &Binder{resolver: r}
}

// Bind produces the operation's ParameterSpecs: path, query and header
// parameters first in declaration order, then request-body fields. A name
// collision across locations after normalization is an error, never a
// silent rename — ambiguity in the wire mapping must be visible to the
// author of the description.
func (b *Binder) Bind(op *Operation) ([]ParameterSpec, error) {
	specs := make([]ParameterSpec, 0, len(op.Parameters))
	seen := make(map[string]string)

	for _, p := range op.Parameters {
		switch p.In {
		case LocationPath, LocationQuery, LocationHeader:
		default:
			return nil, &ParameterBindingError{
				Operation: op.Key(),
				Parameter: p.Name,
				Msg:       "unsupported parameter location " + string(p.In),
			}
		}

		if err := claimName(seen, op, p.Name); err != nil {
			return nil, err
		}

		t, err := b.resolver.Resolve(p.Schema, op.Key()+"."+p.Name)
		if err != nil {
			return nil, err
		}
		specs = append(specs, ParameterSpec{
			Name:        p.Name,
			Location:    p.In,
			Type:        t,
			Required:    p.Required,
			Default:     p.Default,
			Description: p.Description,
		})
	}

	if op.Body == nil {
		return specs, nil
	}

	body, err := b.resolver.Resolve(op.Body.Schema, op.Key()+".requestBody")
	if err != nil {
		return nil, err
	}

	if body.Kind != TypeObject {
		// Non-object bodies travel whole through one synthetic parameter.
		if err := claimName(seen, op, BodyParamName); err != nil {
			return nil, err
		}
		specs = append(specs, ParameterSpec{
			Name:        BodyParamName,
			Location:    LocationBody,
			Type:        body,
			Required:    op.Body.Required,
			Description: op.Body.Description,
			Synthetic:   true,
		})
		return specs, nil
	}

	for _, f := range body.Fields {
		if err := claimName(seen, op, f.Name); err != nil {
			return nil, err
		}
		specs = append(specs, ParameterSpec{
			Name:        f.Name,
			Location:    LocationBody,
			Type:        f.Type,
			Required:    f.Required,
			Default:     f.Default,
			Description: f.Type.Description,
		})
	}

	return specs, nil
}

func claimName(seen map[string]string, op *Operation, name string) error {
	key := normalizeName(name)
	if prev, ok := seen[key]; ok {
		return &ParameterBindingError{
			Operation: op.Key(),
			Parameter: name,
			Msg:       "collides with parameter " + prev + " after normalization",
		}
	}
	seen[key] = name
	return nil
}

// normalizeName folds case and separators so that petId, pet-id and pet_id
// all claim the same slot.
func normalizeName(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		if r == '-' || r == '_' || r == '.' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
