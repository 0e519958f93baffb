package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wflowhq/engine/pkg/action"
)

type stubServices struct {
	creds map[string]map[string]interface{}
}

func (s stubServices) GetCredential(ctx context.Context, credentialID string) (map[string]interface{}, bool) {
	c, ok := s.creds[credentialID]
	return c, ok
}

func TestHTTPAction_SuccessJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	a := NewHTTPAction()
	cfg := map[string]interface{}{"method": "GET", "url": srv.URL}

	result := a.Execute(context.Background(), stubServices{}, cfg, nil)
	require.True(t, result.Success)

	out := result.Output.(map[string]interface{})
	assert.Equal(t, 200, out["status"])
	assert.Equal(t, map[string]interface{}{"ok": true}, out["body"])
}

func TestHTTPAction_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	a := NewHTTPAction()
	cfg := map[string]interface{}{"method": "GET", "url": srv.URL}

	result := a.Execute(context.Background(), stubServices{}, cfg, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "HTTP 500")
}

func TestHTTPAction_BearerCredential(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(200)
	}))
	defer srv.Close()

	a := NewHTTPAction()
	cfg := map[string]interface{}{"method": "GET", "url": srv.URL, "credentialId": "cred-1"}
	services := stubServices{creds: map[string]map[string]interface{}{
		"cred-1": {"type": "bearer", "token": "secret-token"},
	}}

	result := a.Execute(context.Background(), services, cfg, nil)
	require.True(t, result.Success)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}

func TestHTTPAction_MissingCredentialDegradesGracefully(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	a := NewHTTPAction()
	cfg := map[string]interface{}{"method": "GET", "url": srv.URL, "credentialId": "missing"}

	result := a.Execute(context.Background(), stubServices{}, cfg, nil)
	assert.True(t, result.Success)
}

func TestHTTPAction_Validate(t *testing.T) {
	a := NewHTTPAction()
	assert.Error(t, a.Validate(map[string]interface{}{}))
	assert.Error(t, a.Validate(map[string]interface{}{"method": "GET"}))
	assert.NoError(t, a.Validate(map[string]interface{}{"method": "GET", "url": "https://x"}))
}

var _ action.Action = (*HTTPAction)(nil)
