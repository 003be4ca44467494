package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openapi-mcp/openapi-mcp/internal/mapping"
)

func TestBindArgumentsRoutesByLocation(t *testing.T) {
	signature := []mapping.ParameterSpec{
		{Name: "petId", Location: mapping.LocationPath, Type: intType(), Required: true},
		{Name: "verbose", Location: mapping.LocationQuery, Type: boolType()},
		{Name: "X-Trace", Location: mapping.LocationHeader, Type: strType()},
		{Name: "name", Location: mapping.LocationBody, Type: strType(), Required: true},
	}

	call, err := bindArguments(signature, map[string]any{
		"petId":   float64(7),
		"verbose": true,
		"X-Trace": "abc",
		"name":    "rex",
	})
	require.NoError(t, err)

	assert.Equal(t, "7", call.path["petId"])
	assert.Equal(t, "true", call.query.Get("verbose"))
	assert.Equal(t, "abc", call.headers["X-Trace"])
	assert.Equal(t, map[string]any{"name": "rex"}, call.body)
}

func TestBindArgumentsMissingRequired(t *testing.T) {
	signature := []mapping.ParameterSpec{
		{Name: "petId", Location: mapping.LocationPath, Type: intType(), Required: true},
	}

	_, err := bindArguments(signature, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "petId")
}

func TestBindArgumentsAppliesDefaults(t *testing.T) {
	signature := []mapping.ParameterSpec{
		{Name: "limit", Location: mapping.LocationQuery, Type: intType(), Default: float64(20)},
	}

	call, err := bindArguments(signature, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "20", call.query.Get("limit"))
}

func TestBindArgumentsWholeBody(t *testing.T) {
	signature := []mapping.ParameterSpec{
		{
			Name:      mapping.BodyParamName,
			Location:  mapping.LocationBody,
			Type:      &mapping.TypeDescriptor{Kind: mapping.TypeArray, Elem: strType()},
			Required:  true,
			Synthetic: true,
		},
	}

	call, err := bindArguments(signature, map[string]any{"body": []any{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, call.body)
}

func TestBindArgumentsBodyFieldNamedBody(t *testing.T) {
	// A declared field named "body" travels inside the body object; only
	// the synthetic whole-body parameter replaces it.
	signature := []mapping.ParameterSpec{
		{Name: "body", Location: mapping.LocationBody, Type: strType(), Required: true},
		{Name: "subject", Location: mapping.LocationBody, Type: strType()},
	}

	call, err := bindArguments(signature, map[string]any{
		"body":    "hello",
		"subject": "greeting",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"body": "hello", "subject": "greeting"}, call.body)
}

func TestToolHandlerInvokesUpstream(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	var gotBody map[string]any

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 1}`))
	}))
	defer upstream.Close()

	tool := &mapping.Tool{
		Name: "create_pet",
		Signature: []mapping.ParameterSpec{
			{Name: "shelter", Location: mapping.LocationPath, Type: strType(), Required: true},
			{Name: "notify", Location: mapping.LocationQuery, Type: boolType()},
			{Name: "name", Location: mapping.LocationBody, Type: strType(), Required: true},
		},
		Source: &mapping.Operation{ID: "createPet", Method: "POST", Path: "/shelters/{shelter}/pets"},
	}

	inv := &invoker{
		baseURL: upstream.URL,
		auth:    Auth{BearerToken: "secret"},
		client:  upstream.Client(),
	}

	result, err := inv.toolHandler(tool)(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name: "create_pet",
			Arguments: map[string]any{
				"shelter": "north",
				"notify":  true,
				"name":    "rex",
			},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)

	assert.Equal(t, "/shelters/north/pets", gotPath)
	assert.Equal(t, "notify=true", gotQuery)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, map[string]any{"name": "rex"}, gotBody)
}

func TestToolHandlerMissingArgumentIsToolError(t *testing.T) {
	tool := &mapping.Tool{
		Name: "get_pet",
		Signature: []mapping.ParameterSpec{
			{Name: "petId", Location: mapping.LocationPath, Type: intType(), Required: true},
		},
		Source: &mapping.Operation{ID: "getPet", Method: "GET", Path: "/pets/{petId}"},
	}

	inv := &invoker{baseURL: "http://unreachable.invalid", client: http.DefaultClient}

	result, err := inv.toolHandler(tool)(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestResourceHandlerReadsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pets/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": 7, "name": "rex"}`))
	}))
	defer upstream.Close()

	res := &mapping.Resource{
		Name:        "get_pet_by_id",
		URITemplate: "/pets/{petId}",
		Source:      &mapping.Operation{ID: "getPetById", Method: "GET", Path: "/pets/{petId}"},
	}

	inv := &invoker{baseURL: upstream.URL, client: upstream.Client()}

	contents, err := inv.resourceHandler(res)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: upstream.URL + "/pets/7"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcp.TextResourceContents)
	require.True(t, ok)
	assert.JSONEq(t, `{"id": 7, "name": "rex"}`, text.Text)
	assert.Equal(t, "application/json", text.MIMEType)
}

func TestResourceHandlerUpstreamErrorFails(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer upstream.Close()

	res := &mapping.Resource{
		Name:   "get_pet_by_id",
		Source: &mapping.Operation{ID: "getPetById", Method: "GET", Path: "/pets/{petId}"},
	}

	inv := &invoker{baseURL: upstream.URL, client: upstream.Client()}

	_, err := inv.resourceHandler(res)(context.Background(), mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{URI: upstream.URL + "/pets/404"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
