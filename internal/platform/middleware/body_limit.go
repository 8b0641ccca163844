package middleware

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
)

// BodyLimit caps request body size. uploadLimit applies to the resumable
// upload endpoints, defaultLimit everywhere else. Both are byte counts.
func BodyLimit(defaultLimit, uploadLimit int64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Body == nil || c.Request().Body == http.NoBody {
				return next(c)
			}

			limit := defaultLimit
			if isUploadPath(c.Request().URL.Path) {
				limit = uploadLimit
			}

			if c.Request().ContentLength > limit {
				return payloadTooLarge(c)
			}

			// Enforce even when Content-Length is missing or wrong.
			c.Request().Body = &limitedReadCloser{
				ReadCloser: c.Request().Body,
				remaining:  limit,
			}

			return next(c)
		}
	}
}

func isUploadPath(path string) bool {
	return len(path) >= len("/api/v1/uploads") && path[:len("/api/v1/uploads")] == "/api/v1/uploads"
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (n int, err error) {
	if r.exceeded {
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	toRead := int64(len(p))
	if toRead > r.remaining+1 {
		toRead = r.remaining + 1
	}

	n, err = r.ReadCloser.Read(p[:toRead])
	r.remaining -= int64(n)

	if r.remaining < 0 {
		r.exceeded = true
		return 0, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")
	}

	return n, err
}

func payloadTooLarge(c echo.Context) error {
	return c.JSON(http.StatusRequestEntityTooLarge, map[string]interface{}{
		"error": map[string]string{
			"type":       "validation",
			"messageKey": "payloadTooLarge",
		},
	})
}
