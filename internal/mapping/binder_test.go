package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBinder(schemas map[string]*SchemaNode) *Binder {
	return NewBinder(NewResolver(schemas))
}

func TestBindDeclarationOrder(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "search",
		Method: "GET",
		Path:   "/search/{scope}",
		Parameters: []Parameter{
			{Name: "scope", In: LocationPath, Schema: strSchema(), Required: true},
			{Name: "q", In: LocationQuery, Schema: strSchema()},
			{Name: "X-Trace", In: LocationHeader, Schema: strSchema()},
		},
	}

	specs, err := b.Bind(op)
	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, "scope", specs[0].Name)
	assert.Equal(t, LocationPath, specs[0].Location)
	assert.Equal(t, "q", specs[1].Name)
	assert.Equal(t, "X-Trace", specs[2].Name)
}

func TestBindObjectBodyFieldsBecomeParameters(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "createPet",
		Method: "POST",
		Path:   "/pets",
		Body: &RequestBody{
			Schema: &SchemaNode{
				Fields: []SchemaField{
					{Name: "name", Schema: strSchema()},
					{Name: "tag", Schema: strSchema()},
				},
				Required: []string{"name"},
			},
			Required: true,
		},
	}

	specs, err := b.Bind(op)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "name", specs[0].Name)
	assert.Equal(t, LocationBody, specs[0].Location)
	assert.True(t, specs[0].Required)
	assert.Equal(t, "tag", specs[1].Name)
	assert.False(t, specs[1].Required)
}

func TestBindNonObjectBodyBecomesSyntheticParameter(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "uploadNames",
		Method: "POST",
		Path:   "/names",
		Body: &RequestBody{
			Schema:   &SchemaNode{Items: strSchema()},
			Required: true,
		},
	}

	specs, err := b.Bind(op)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, BodyParamName, specs[0].Name)
	assert.Equal(t, LocationBody, specs[0].Location)
	assert.Equal(t, TypeArray, specs[0].Type.Kind)
	assert.True(t, specs[0].Required)
	assert.True(t, specs[0].Synthetic)
}

func TestBindDeclaredBodyFieldIsNotSynthetic(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "createMessage",
		Method: "POST",
		Path:   "/messages",
		Body: &RequestBody{
			Schema: &SchemaNode{
				Fields: []SchemaField{
					{Name: "body", Schema: strSchema()},
					{Name: "subject", Schema: strSchema()},
				},
				Required: []string{"body"},
			},
			Required: true,
		},
	}

	specs, err := b.Bind(op)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "body", specs[0].Name)
	assert.False(t, specs[0].Synthetic)
	assert.False(t, specs[1].Synthetic)
}

func TestBindCrossLocationCollisionFails(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "updatePet",
		Method: "PUT",
		Path:   "/pets/{petId}",
		Parameters: []Parameter{
			{Name: "petId", In: LocationPath, Schema: intSchema(), Required: true},
		},
		Body: &RequestBody{
			Schema: &SchemaNode{
				Fields: []SchemaField{{Name: "pet_id", Schema: intSchema()}},
			},
		},
	}

	_, err := b.Bind(op)
	var bindErr *ParameterBindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Equal(t, "updatePet", bindErr.Operation)
	assert.Contains(t, bindErr.Error(), "petId")
}

func TestBindSameLocationCollisionFails(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "list",
		Method: "GET",
		Path:   "/items",
		Parameters: []Parameter{
			{Name: "sort-by", In: LocationQuery, Schema: strSchema()},
			{Name: "sortBy", In: LocationQuery, Schema: strSchema()},
		},
	}

	_, err := b.Bind(op)
	var bindErr *ParameterBindingError
	require.ErrorAs(t, err, &bindErr)
}

func TestBindUnsupportedLocationFails(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "withCookie",
		Method: "GET",
		Path:   "/session",
		Parameters: []Parameter{
			{Name: "session", In: Location("cookie"), Schema: strSchema()},
		},
	}

	_, err := b.Bind(op)
	var bindErr *ParameterBindingError
	require.ErrorAs(t, err, &bindErr)
	assert.Contains(t, bindErr.Error(), "cookie")
}

func TestBindCopiesDefaultsVerbatim(t *testing.T) {
	b := newTestBinder(nil)

	op := &Operation{
		ID:     "listPets",
		Method: "GET",
		Path:   "/pets",
		Parameters: []Parameter{
			{Name: "limit", In: LocationQuery, Schema: intSchema(), Default: float64(20)},
		},
		Body: &RequestBody{
			Schema: &SchemaNode{
				Fields: []SchemaField{
					{Name: "verbose", Schema: &SchemaNode{Primitive: PrimitiveBoolean, Default: false}},
				},
			},
		},
	}

	specs, err := b.Bind(op)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, float64(20), specs[0].Default)
	assert.Equal(t, false, specs[1].Default)
}

func TestBindResolvesThroughReferences(t *testing.T) {
	schemas := map[string]*SchemaNode{
		"NewPet": {
			Fields: []SchemaField{
				{Name: "name", Schema: strSchema()},
			},
			Required: []string{"name"},
		},
	}
	b := newTestBinder(schemas)

	op := &Operation{
		ID:     "createPet",
		Method: "POST",
		Path:   "/pets",
		Body:   &RequestBody{Schema: &SchemaNode{Ref: "NewPet"}, Required: true},
	}

	specs, err := b.Bind(op)
	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "name", specs[0].Name)
	assert.True(t, specs[0].Required)
}
