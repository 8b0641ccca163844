package medhistory

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/blobstore"
	"github.com/clinicore/clinicore/pkg/pagination"
)

type Handler struct {
	svc *Service
	log zerolog.Logger
}

func NewHandler(svc *Service, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("staff"))
	g.GET("/patients/:id/medical-history", h.ListEvents)
	g.POST("/patients/:id/medical-history", h.CreateEvent)
	g.GET("/medical-history/:id", h.GetEvent)
	g.PUT("/medical-history/:id", h.UpdateEvent)
	g.DELETE("/medical-history/:id", h.DeleteEvent)

	g.GET("/medical-history/:id/documents", h.ListDocuments)
	g.POST("/medical-history/:id/documents", h.CreateDocument)
	g.GET("/medical-documents/:id", h.GetDocument)
	g.PUT("/medical-documents/:id", h.UpdateDocument)
	g.DELETE("/medical-documents/:id", h.DeleteDocument)

	g.GET("/diagnoses", h.SearchDiagnoses)
}

func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

type fileRef struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

func (f *fileRef) toInfo() *blobstore.FileInfo {
	if f == nil || f.Path == "" {
		return nil
	}
	return &blobstore.FileInfo{
		Path:        f.Path,
		Name:        f.Name,
		Size:        f.Size,
		ContentType: f.ContentType,
		StoredAt:    time.Now(),
	}
}

// -- Event handlers --

type eventRequest struct {
	EventDate    *time.Time `json:"event_date"`
	Locale       string     `json:"locale"`
	Title        string     `json:"title"`
	Notes        string     `json:"notes"`
	DiagnosisIDs []int64    `json:"diagnosis_ids"`
	Version      int64      `json:"version"`
}

func (r eventRequest) input(patientID int64) EventInput {
	return EventInput{
		PatientID:    patientID,
		EventDate:    r.EventDate,
		Locale:       r.Locale,
		Title:        r.Title,
		Notes:        r.Notes,
		DiagnosisIDs: r.DiagnosisIDs,
	}
}

func (h *Handler) CreateEvent(c echo.Context) error {
	patientID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	created, err := h.svc.CreateEvent(c.Request().Context(), req.input(patientID))
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetEvent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	e, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, e)
}

func (h *Handler) ListEvents(c echo.Context) error {
	patientID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	pg := pagination.FromContext(c)
	events, total, err := h.svc.ListEvents(c.Request().Context(), patientID, pg)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, pagination.NewResponse(events, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateEvent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req eventRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	updated, err := h.svc.UpdateEvent(c.Request().Context(), id, req.Version, req.input(0))
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteEvent(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteEvent(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Document handlers --

type documentRequest struct {
	MedicalDocumentTypeID int64      `json:"medical_document_type_id"`
	DocumentDate          *time.Time `json:"document_date"`
	Locale                string     `json:"locale"`
	Notes                 string     `json:"notes"`
	DiagnosisIDs          []int64    `json:"diagnosis_ids"`
	File                  *fileRef   `json:"file"`
	RemoveFile            bool       `json:"remove_file"`
	Version               int64      `json:"version"`
}

func (r documentRequest) input(eventID int64) DocumentInput {
	return DocumentInput{
		EventID:               eventID,
		MedicalDocumentTypeID: r.MedicalDocumentTypeID,
		DocumentDate:          r.DocumentDate,
		Locale:                r.Locale,
		Notes:                 r.Notes,
		DiagnosisIDs:          r.DiagnosisIDs,
	}
}

func (h *Handler) CreateDocument(c echo.Context) error {
	eventID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req documentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	created, err := h.svc.CreateDocument(c.Request().Context(), req.input(eventID), req.File.toInfo())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	d, err := h.svc.GetDocument(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, d)
}

func (h *Handler) ListDocuments(c echo.Context) error {
	eventID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	docs, err := h.svc.ListDocuments(c.Request().Context(), eventID)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, docs)
}

func (h *Handler) UpdateDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req documentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	change := blobstore.Change{New: req.File.toInfo(), Remove: req.RemoveFile}
	updated, err := h.svc.UpdateDocument(c.Request().Context(), id, req.Version, req.input(0), change)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteDocument(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Diagnosis lookup --

func (h *Handler) SearchDiagnoses(c echo.Context) error {
	term := c.QueryParam("query")
	locale := c.QueryParam("locale")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	diags, err := h.svc.SearchDiagnoses(c.Request().Context(), term, locale, limit)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, diags)
}
