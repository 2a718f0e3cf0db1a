package rbac

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*RBAC, *httptest.Server) {
	t.Helper()
	r := newTestRBAC(t)
	router := chi.NewRouter()
	Routes(router, NewHandle(r))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return r, srv
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestHandleCreateTenant(t *testing.T) {
	_, srv := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/tenants", map[string]any{
		"name":     "Acme",
		"isActive": true,
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "acme", created["slug"])
	assert.NotEmpty(t, created["id"])
}

func TestHandleAuthorizeFlow(t *testing.T) {
	r, srv := newTestServer(t)
	acme := seed(t, r)

	resp := doJSON(t, http.MethodPost,
		srv.URL+"/tenants/"+acme.ID+"/users/u1/roles",
		map[string]any{"role": "auditor"})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err := http.Get(srv.URL + "/tenants/" + acme.ID + "/users/u1/authorize?permission=read:invoice")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, true, out["authorized"])
}

func TestHandleErrorMapping(t *testing.T) {
	_, srv := newTestServer(t)

	// unknown tenant -> 404 with the structured code
	resp, err := http.Get(srv.URL + "/tenants/ghost")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "NOT_EXIST", out["code"])

	// missing body field -> 400
	resp = doJSON(t, http.MethodPost, srv.URL+"/tenants", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
