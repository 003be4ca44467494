package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/phuslu/log"

	"github.com/openapi-mcp/openapi-mcp/internal/mapping"
)

// invoker executes mapped operations against the upstream API.
type invoker struct {
	baseURL string
	auth    Auth
	client  *http.Client
}

// toolHandler returns the handler invoking one mapped tool: arguments are
// routed by their bound location, the request is issued with the caller's
// context, and the raw upstream response is returned as text.
func (v *invoker) toolHandler(t *mapping.Tool) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		call, err := bindArguments(t.Signature, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		reqURL, err := v.buildURL(t.Source.Path, call)
		if err != nil {
			return nil, err
		}

		var reqBody io.Reader
		if call.body != nil {
			data, err := json.Marshal(call.body)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal request body: %w", err)
			}
			reqBody = bytes.NewReader(data)
		}

		httpReq, err := http.NewRequestWithContext(ctx, t.Source.Method, reqURL, reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP request: %w", err)
		}
		for name, value := range call.headers {
			httpReq.Header.Set(name, value)
		}
		if call.body != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		v.authorize(httpReq)

		resp, err := v.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		result, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response error: %w", err)
		}

		log.Debug().Str("tool", t.Name).Str("url", reqURL).Int("status", resp.StatusCode).Msg("tool invoked")

		return mcp.NewToolResultText(fmt.Sprintf("status code: %d\nresponse body: %s", resp.StatusCode, result)), nil
	}
}

// resourceHandler returns the handler reading one mapped resource. The
// client expands the URI template itself, so the request URI is already
// the concrete upstream address.
func (v *invoker) resourceHandler(r *mapping.Resource) server.ResourceTemplateHandlerFunc {
	return func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		fetchURL := request.Params.URI
		if !strings.Contains(fetchURL, "://") {
			fetchURL = v.baseURL + fetchURL
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP request: %w", err)
		}
		v.authorize(httpReq)

		resp, err := v.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response error: %w", err)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, fmt.Errorf("resource %s: upstream returned status %d", r.Name, resp.StatusCode)
		}

		log.Debug().Str("resource", r.Name).Str("url", fetchURL).Int("status", resp.StatusCode).Msg("resource read")

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(body),
			},
		}, nil
	}
}

func (v *invoker) authorize(req *http.Request) {
	switch {
	case v.auth.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+v.auth.BearerToken)
	case v.auth.Username != "" && v.auth.Password != "":
		req.SetBasicAuth(v.auth.Username, v.auth.Password)
	case v.auth.APIKey != "":
		header := v.auth.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		req.Header.Set(header, v.auth.APIKey)
	}
}

// boundCall is one tool invocation's arguments split by wire location.
type boundCall struct {
	path    map[string]string
	query   url.Values
	headers map[string]string
	body    any
}

// bindArguments routes the caller's arguments according to the tool
// signature, applying declared defaults and checking required parameters.
func bindArguments(signature []mapping.ParameterSpec, args map[string]any) (*boundCall, error) {
	call := &boundCall{
		path:    make(map[string]string),
		query:   url.Values{},
		headers: make(map[string]string),
	}
	bodyFields := make(map[string]any)
	hasBodyFields := false

	for _, p := range signature {
		value, ok := args[p.Name]
		if !ok || value == nil {
			if p.Default != nil {
				value = p.Default
			} else if p.Required {
				return nil, fmt.Errorf("missing required argument %q", p.Name)
			} else {
				continue
			}
		}

		switch p.Location {
		case mapping.LocationPath:
			call.path[p.Name] = fmt.Sprintf("%v", value)
		case mapping.LocationQuery:
			call.query.Add(p.Name, fmt.Sprintf("%v", value))
		case mapping.LocationHeader:
			call.headers[p.Name] = fmt.Sprintf("%v", value)
		case mapping.LocationBody:
			if p.Synthetic {
				call.body = value
				continue
			}
			bodyFields[p.Name] = value
			hasBodyFields = true
		}
	}

	if hasBodyFields {
		call.body = bodyFields
	}
	return call, nil
}

func (v *invoker) buildURL(pathTemplate string, call *boundCall) (string, error) {
	finalPath := pathTemplate
	for name, value := range call.path {
		finalPath = strings.ReplaceAll(finalPath, "{"+name+"}", url.PathEscape(value))
	}

	fullURL := v.baseURL + finalPath
	parsed, err := url.Parse(fullURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL %s: %w", fullURL, err)
	}

	if len(call.query) > 0 {
		q := parsed.Query()
		for key, values := range call.query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		parsed.RawQuery = q.Encode()
	}

	return parsed.String(), nil
}
