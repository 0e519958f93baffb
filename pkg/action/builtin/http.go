// Package builtin implements the concrete Action for each node kind the
// engine ships with.
package builtin

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wflowhq/engine/pkg/action"
	"github.com/wflowhq/engine/pkg/action/config"
)

// HTTPAction executes an httpRequest node. A missing or
// undecryptable credentialId degrades gracefully to an unauthenticated
// request.
type HTTPAction struct {
	*action.BaseAction
	client *http.Client
}

func NewHTTPAction() *HTTPAction {
	return &HTTPAction{
		BaseAction: action.NewBaseAction("httpRequest"),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (a *HTTPAction) Execute(ctx context.Context, services action.Services, cfg map[string]interface{}, input interface{}) action.Result {
	c, err := config.ParseConfig[config.HTTPConfig](cfg)
	if err != nil {
		return action.Result{Error: err.Error()}
	}
	if err := c.Validate(); err != nil {
		return action.Result{Error: err.Error()}
	}

	var body io.Reader
	if c.Body != nil {
		bodyData, err := encodeBody(c.Body)
		if err != nil {
			return action.Result{Error: err.Error()}
		}
		body = bytes.NewReader(bodyData)
	}

	req, err := http.NewRequestWithContext(ctx, c.Method, c.URL, body)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to create request: %v", err)}
	}

	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Content-Type") == "" && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.CredentialID != "" {
		if cred, ok := services.GetCredential(ctx, c.CredentialID); ok {
			applyHTTPAuth(req, cred)
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return action.Result{Error: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode >= 400 {
		return action.Result{Error: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(respBody))}
	}

	result := map[string]interface{}{
		"status":       resp.StatusCode,
		"headers":      flattenHeaders(resp.Header),
		"content_type": resp.Header.Get("Content-Type"),
	}

	if isBinaryContentType(resp.Header.Get("Content-Type")) {
		result["body"] = nil
		result["body_base64"] = base64.StdEncoding.EncodeToString(respBody)
	} else {
		var parsed interface{}
		if len(respBody) > 0 {
			if err := json.Unmarshal(respBody, &parsed); err != nil {
				parsed = string(respBody)
			}
		}
		result["body"] = parsed
	}

	return action.Result{Success: true, Output: result}
}

func (a *HTTPAction) Validate(cfg map[string]interface{}) error {
	c, err := config.ParseConfig[config.HTTPConfig](cfg)
	if err != nil {
		return err
	}
	return c.Validate()
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		return data, nil
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// applyHTTPAuth applies a decrypted credential to the outgoing request. The
// credential payload's "type" field selects the scheme: "bearer" sets an
// Authorization header, "basic" sets HTTP basic auth, "header" injects an
// arbitrary named header (e.g. X-Api-Key).
func applyHTTPAuth(req *http.Request, cred map[string]interface{}) {
	switch cred["type"] {
	case "bearer":
		if token, ok := cred["token"].(string); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	case "basic":
		username, _ := cred["username"].(string)
		password, _ := cred["password"].(string)
		req.SetBasicAuth(username, password)
	case "header":
		name, _ := cred["header"].(string)
		value, _ := cred["value"].(string)
		if name != "" {
			req.Header.Set(name, value)
		}
	}
}

func isBinaryContentType(contentType string) bool {
	prefixes := []string{"image/", "audio/", "video/", "application/octet-stream", "application/pdf", "application/zip", "application/gzip"}
	for _, p := range prefixes {
		if len(contentType) >= len(p) && contentType[:len(p)] == p {
			return true
		}
	}
	return false
}
