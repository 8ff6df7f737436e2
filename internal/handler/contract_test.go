package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/kegstock/kegstock/internal/metrics"
	"github.com/kegstock/kegstock/internal/service"
	"github.com/kegstock/kegstock/internal/testutil/memstore"
)

var openAPIPath = filepath.Join("..", "..", "docs", "api", "openapi.yaml")

func loadOpenAPI(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(openAPIPath)
	if err != nil {
		t.Fatalf("load %s: %v", openAPIPath, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("OpenAPI document is invalid: %v", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		t.Fatalf("build router from OpenAPI document: %v", err)
	}
	return doc, router
}

func TestContract_DocumentedPaths(t *testing.T) {
	doc, _ := loadOpenAPI(t)

	for _, path := range []string{
		"/",
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/beer-types",
		"/api/beer-types/{id}",
		"/api/beer-types/{id}/add-kegs",
		"/api/beer-types/{id}/remove-kegs",
		"/api/beer-types/{id}/keg-count",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("path %s is not documented", path)
		}
	}
}

// TestContract_Responses drives the full router and checks every response
// against the documented status codes and schemas.
func TestContract_Responses(t *testing.T) {
	_, specRouter := loadOpenAPI(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()
	recorder := metrics.NewInMemory()
	svc := service.NewBeerTypeService(store, nil, recorder, logger)

	app := NewRouter(RouterConfig{
		Logger:        logger,
		Health:        NewHealthHandler(&stubPinger{}, nil, logger),
		Metrics:       NewMetricsHandler(recorder),
		BeerTypes:     NewBeerTypeHandler(svc, logger),
		IsDevelopment: true,
		MaxBodySize:   1024,
	})

	steps := []struct {
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/api/beer-types", "", http.StatusOK},
		{http.MethodPost, "/api/beer-types", `{"name":"IPA","kegCount":10}`, http.StatusCreated},
		{http.MethodPost, "/api/beer-types", `{"name":"IPA"}`, http.StatusConflict},
		{http.MethodPost, "/api/beer-types", `{"name":"","kegCount":-1}`, http.StatusBadRequest},
		{http.MethodGet, "/api/beer-types", "", http.StatusOK},
		{http.MethodGet, "/api/beer-types/1", "", http.StatusOK},
		{http.MethodPost, "/api/beer-types/1/remove-kegs", `{"amount":15}`, http.StatusBadRequest},
		{http.MethodPost, "/api/beer-types/1/add-kegs", `{"amount":5}`, http.StatusOK},
		{http.MethodPost, "/api/beer-types/1/remove-kegs", `{"amount":2}`, http.StatusOK},
		{http.MethodPut, "/api/beer-types/1/keg-count", `{"kegCount":40}`, http.StatusOK},
		{http.MethodPost, "/api/beer-types/1/add-kegs", `{"amount":"5"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/beer-types/1/add-kegs", `{"amount":"` + string(bytes.Repeat([]byte("9"), 2048)) + `"}`, http.StatusRequestEntityTooLarge},
		{http.MethodDelete, "/api/beer-types/1", "", http.StatusNoContent},
		{http.MethodGet, "/api/beer-types/1", "", http.StatusNotFound},
		{http.MethodDelete, "/api/beer-types/1", "", http.StatusNotFound},
		{http.MethodPost, "/api/beer-types/7/add-kegs", `{"amount":1}`, http.StatusNotFound},
	}

	for _, step := range steps {
		name := step.method + " " + step.path
		if len(name) > 60 {
			name = name[:60]
		}

		rec := do(t, app, step.method, step.path, step.body)
		if rec.Code != step.wantStatus {
			t.Errorf("%s: status %d, want %d: %s", name, rec.Code, step.wantStatus, rec.Body)
			continue
		}

		req := httptest.NewRequest(step.method, step.path, nil)
		route, pathParams, err := specRouter.FindRoute(req)
		if err != nil {
			t.Errorf("%s: not found in OpenAPI document: %v", name, err)
			continue
		}

		input := &openapi3filter.ResponseValidationInput{
			RequestValidationInput: &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: pathParams,
				Route:      route,
			},
			Status:  rec.Code,
			Header:  rec.Header(),
			Body:    io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
			Options: &openapi3filter.Options{IncludeResponseStatus: true},
		}
		if err := openapi3filter.ValidateResponse(context.Background(), input); err != nil {
			t.Errorf("%s: response does not match the OpenAPI document: %v", name, err)
		}
	}
}
