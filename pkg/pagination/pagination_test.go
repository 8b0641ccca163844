package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/patients"+query, nil)
	rec := httptest.NewRecorder()
	return FromContext(e.NewContext(req, rec))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContext_Explicit(t *testing.T) {
	p := paramsFor(t, "?limit=50&offset=100")
	if p.Limit != 50 || p.Offset != 100 {
		t.Errorf("expected 50/100, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_ClampsLimit(t *testing.T) {
	p := paramsFor(t, "?limit=5000")
	if p.Limit != MaxLimit {
		t.Errorf("expected limit clamped to %d, got %d", MaxLimit, p.Limit)
	}
}

func TestNewResponse_HasMore(t *testing.T) {
	r := NewResponse([]int{1, 2, 3}, 10, 3, 0)
	if !r.HasMore {
		t.Error("expected has_more for partial page")
	}

	r = NewResponse([]int{1}, 1, 20, 0)
	if r.HasMore {
		t.Error("expected no has_more for complete result")
	}
}

func TestParams_SQL(t *testing.T) {
	p := Params{Limit: 20, Offset: 40}
	if got := p.SQL(); got != "LIMIT 20 OFFSET 40" {
		t.Errorf("unexpected SQL clause: %s", got)
	}
}
