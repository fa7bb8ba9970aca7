package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/http/middleware/auth"
	"palmshell-dispatch/internal/logx"
)

var (
	mitra  = domain.Actor{ID: 10, Role: domain.RoleMitra}
	admin  = domain.Actor{ID: 1, Role: domain.RoleAdmin}
	driver = domain.Actor{ID: 20, Role: domain.RoleDriver}
)

func testLogger() logx.Logger { return logx.Nop() }

type errorBody struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details"`
}

// newRequest builds a request as the router would hand it over: actor set by
// the auth middleware and url params filled by chi.
func newRequest(method, target, body string, a *domain.Actor, params map[string]string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	ctx := req.Context()
	if a != nil {
		ctx = auth.WithActor(ctx, *a)
	}
	if len(params) > 0 {
		rc := chi.NewRouteContext()
		for k, v := range params {
			rc.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rc)
	}
	return req.WithContext(ctx)
}

func id(v string) map[string]string { return map[string]string{"id": v} }

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}
