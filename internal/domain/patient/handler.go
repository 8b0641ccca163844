package patient

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
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
	g.GET("/patients", h.SearchPatients)
	g.POST("/patients", h.CreatePatient)
	g.GET("/patients/:id", h.GetPatient)
	g.PUT("/patients/:id", h.UpdatePatient)
	g.DELETE("/patients/:id", h.DeletePatient)

	g.GET("/patients/:id/personal", h.GetPersonal)
	g.PUT("/patients/:id/personal", h.SavePersonal)
	g.GET("/patients/:id/risk", h.GetRisk)
	g.PUT("/patients/:id/risk", h.SaveRisk)

	g.GET("/patients/:id/notes", h.ListNotes)
	g.POST("/patients/:id/notes", h.CreateNote)
	g.GET("/notes/:id", h.GetNote)
	g.PUT("/notes/:id", h.UpdateNote)
	g.DELETE("/notes/:id", h.DeleteNote)
}

func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// -- Patient handlers --

type patientRequest struct {
	Patient
	// Version echoes the version the client last read; required on update.
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	created, err := h.svc.CreatePatient(c.Request().Context(), &req.Patient)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, p)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	filter := SearchFilter{
		FirstName:  c.QueryParam("first_name"),
		LastName:   c.QueryParam("last_name"),
		NationalID: c.QueryParam("national_id"),
		Phone:      c.QueryParam("phone"),
		SortBy:     c.QueryParam("sort_by"),
		SortOrder:  c.QueryParam("sort_order"),
	}

	items, total, err := h.svc.SearchPatients(c.Request().Context(), filter, pg)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}

	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	req.Patient.ID = id

	updated, err := h.svc.UpdatePatient(c.Request().Context(), &req.Patient, req.Version)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- PersonalInfo handlers --

func (h *Handler) GetPersonal(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	p, err := h.svc.GetPersonal(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, p)
}

func (h *Handler) SavePersonal(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}

	var req PersonalInfo
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	req.PatientID = id

	saved, err := h.svc.SavePersonal(c.Request().Context(), &req, req.Version)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, saved)
}

// -- RiskInfo handlers --

func (h *Handler) GetRisk(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	ri, err := h.svc.GetRisk(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, ri)
}

func (h *Handler) SaveRisk(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}

	var req RiskInfo
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	req.PatientID = id

	saved, err := h.svc.SaveRisk(c.Request().Context(), &req, req.Version)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, saved)
}

// -- Note handlers --

type noteRequest struct {
	Locale  string `json:"locale"`
	Note    string `json:"note"`
	Version int64  `json:"version"`
}

func (h *Handler) CreateNote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	n, err := h.svc.CreateNote(c.Request().Context(), id, req.Locale, req.Note)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, n)
}

func (h *Handler) GetNote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	n, err := h.svc.GetNote(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, n)
}

func (h *Handler) ListNotes(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListNotes(c.Request().Context(), id, pg)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateNote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}

	var req noteRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	n, err := h.svc.UpdateNote(c.Request().Context(), id, req.Version, req.Locale, req.Note)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, n)
}

func (h *Handler) DeleteNote(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteNote(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}
