package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func TestLogger_LogsRequestFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	e := echo.New()
	e.Use(Logger(logger))
	e.GET("/patients", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/patients", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	out := buf.String()
	for _, want := range []string{`"method":"GET"`, `"path":"/patients"`, `"status":200`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestRecovery_PanicReturns500Envelope(t *testing.T) {
	e := echo.New()
	e.Use(Recovery(zerolog.Nop()))
	e.GET("/boom", func(c echo.Context) error {
		panic("unreachable row")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "serverError") {
		t.Errorf("expected error envelope, got %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "unreachable row") {
		t.Error("panic message must not leak to the client")
	}
}

func TestBodyLimit_RejectsOversizedBody(t *testing.T) {
	e := echo.New()
	e.Use(BodyLimit(10, 100))
	e.POST("/api/v1/notes", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", strings.NewReader(strings.Repeat("x", 50)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestBodyLimit_UploadPathGetsLargerLimit(t *testing.T) {
	e := echo.New()
	e.Use(BodyLimit(10, 100))
	e.POST("/api/v1/uploads", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads", strings.NewReader(strings.Repeat("x", 50)))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for upload within upload limit, got %d", rec.Code)
	}
}
