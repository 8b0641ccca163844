package blobstore

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/validate"
)

// Handler exposes signed view URLs and the resumable upload endpoints.
type Handler struct {
	store    FileStore
	sessions *SessionManager
	ttl      time.Duration
	log      zerolog.Logger
}

func NewHandler(store FileStore, sessions *SessionManager, signedURLTTL time.Duration, log zerolog.Logger) *Handler {
	return &Handler{store: store, sessions: sessions, ttl: signedURLTTL, log: log}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/files/view-url", h.viewURL)
	g.POST("/uploads", h.createUpload)
	g.HEAD("/uploads/:id", h.uploadOffset)
	g.PATCH("/uploads/:id", h.appendChunk)
}

func (h *Handler) viewURL(c echo.Context) error {
	filePath := c.QueryParam("path")
	if filePath == "" {
		return apperr.Fail(c, h.log, apperr.Validation("invalidFields", validate.Errors{"path": {"required"}}))
	}

	url, err := h.store.SignedViewURL(c.Request().Context(), filePath, h.ttl)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return apperr.Fail(c, h.log, apperr.NotFound("fileNotFound"))
		}
		return apperr.Fail(c, h.log, err)
	}

	return apperr.OK(c, http.StatusOK, map[string]interface{}{
		"url":        url,
		"expires_in": int(h.ttl.Seconds()),
	})
}

type createUploadRequest struct {
	PatientID   int64  `json:"patient_id"`
	FileName    string `json:"file_name"`
	Length      int64  `json:"length"`
	ContentType string `json:"content_type"`
}

func (h *Handler) createUpload(c echo.Context) error {
	var req createUploadRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	errs := validate.Check(
		validate.RequiredInt64("patient_id", req.PatientID),
		validate.Required("file_name", req.FileName),
	)
	if !errs.Empty() {
		return apperr.Fail(c, h.log, apperr.Validation("invalidFields", errs))
	}

	session, err := h.sessions.Create(UploadPath(req.PatientID, req.FileName), req.Length, req.ContentType)
	if err != nil {
		if errors.Is(err, ErrUploadTooLarge) {
			return apperr.Fail(c, h.log, apperr.Validation("invalidFields", validate.Errors{"length": {"outOfRange"}}))
		}
		return apperr.Fail(c, h.log, err)
	}

	retryMS := make([]int64, len(DefaultRetryDelays))
	for i, d := range DefaultRetryDelays {
		retryMS[i] = d.Milliseconds()
	}

	return apperr.OK(c, http.StatusCreated, map[string]interface{}{
		"session":         session,
		"retry_delays_ms": retryMS,
	})
}

func (h *Handler) uploadOffset(c echo.Context) error {
	offset, err := h.sessions.Offset(c.Param("id"))
	if err != nil {
		return c.NoContent(http.StatusNotFound)
	}
	c.Response().Header().Set("Upload-Offset", strconv.FormatInt(offset, 10))
	return c.NoContent(http.StatusOK)
}

func (h *Handler) appendChunk(c echo.Context) error {
	offset, err := strconv.ParseInt(c.Request().Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidFields", validate.Errors{"Upload-Offset": {"required"}}))
	}

	chunk, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}

	newOffset, info, err := h.sessions.Append(c.Request().Context(), c.Param("id"), offset, chunk)
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return apperr.Fail(c, h.log, apperr.NotFound("uploadSessionNotFound"))
	case errors.Is(err, ErrOffsetMismatch):
		c.Response().Header().Set("Upload-Offset", strconv.FormatInt(newOffset, 10))
		return apperr.Fail(c, h.log, apperr.Conflict("uploadOffsetMismatch"))
	case errors.Is(err, ErrLengthExceeded):
		return apperr.Fail(c, h.log, apperr.Validation("invalidFields", validate.Errors{"length": {"outOfRange"}}))
	case err != nil:
		return apperr.Fail(c, h.log, err)
	}

	c.Response().Header().Set("Upload-Offset", strconv.FormatInt(newOffset, 10))
	if info != nil {
		return apperr.OK(c, http.StatusOK, map[string]interface{}{"file": info, "complete": true})
	}
	return apperr.OK(c, http.StatusOK, map[string]interface{}{"offset": newOffset, "complete": false})
}
