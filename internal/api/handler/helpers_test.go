package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"
)

// newRequest builds a JSON request. A nil body sends an empty one.
func newRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			panic(err)
		}
	}
	return newRequestRaw(method, target, buf.String())
}

func newRequestRaw(method, target, body string) *http.Request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

// withChiURLParam sets a route parameter the way the router would.
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorResponse returns the {"error": ...} body of a failed call.
func decodeErrorResponse(rec *httptest.ResponseRecorder) map[string]string {
	body := map[string]string{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return body
}
