package company

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
	staff := api.Group("", auth.RequireRole("staff"))
	staff.GET("/companies", h.ListCompanies)
	staff.POST("/companies", h.CreateCompany)
	staff.GET("/companies/:id", h.GetCompany)
	staff.PUT("/companies/:id", h.UpdateCompany)
	staff.DELETE("/companies/:id", h.DeleteCompany)

	staff.GET("/company-info", h.GetInfo)
	staff.PUT("/company-info", h.SaveInfo)

	staff.GET("/examination-categories", h.ListCategories)
	staff.GET("/examination-types", h.ListExamTypes)
	staff.GET("/examination-types/:id", h.GetExamType)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/examination-categories", h.CreateCategory)
	admin.PUT("/examination-categories/:id", h.UpdateCategory)
	admin.DELETE("/examination-categories/:id", h.DeleteCategory)
	admin.POST("/examination-types", h.CreateExamType)
	admin.PUT("/examination-types/:id", h.UpdateExamType)
	admin.DELETE("/examination-types/:id", h.DeleteExamType)
}

func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// -- Company handlers --

type companyRequest struct {
	Company
}

func (h *Handler) CreateCompany(c echo.Context) error {
	var req companyRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateCompany(c.Request().Context(), &req.Company)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetCompany(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	company, err := h.svc.GetCompany(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, company)
}

func (h *Handler) ListCompanies(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCompanies(c.Request().Context(), c.QueryParam("name"), pg)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateCompany(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req companyRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	req.Company.ID = id
	updated, err := h.svc.UpdateCompany(c.Request().Context(), &req.Company, req.Version)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteCompany(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteCompany(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Clinic profile handlers --

type infoRequest struct {
	Info
}

func (h *Handler) GetInfo(c echo.Context) error {
	info, err := h.svc.GetInfo(c.Request().Context())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, info)
}

func (h *Handler) SaveInfo(c echo.Context) error {
	var req infoRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	saved, err := h.svc.SaveInfo(c.Request().Context(), &req.Info, req.Version)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, saved)
}

// -- Examination category handlers --

type categoryRequest struct {
	Locale    string `json:"locale"`
	Name      string `json:"name"`
	SortOrder int    `json:"sort_order"`
}

func (h *Handler) ListCategories(c echo.Context) error {
	cats, err := h.svc.ListCategories(c.Request().Context())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, cats)
}

func (h *Handler) CreateCategory(c echo.Context) error {
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateCategory(c.Request().Context(), CategoryInput(req))
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) UpdateCategory(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req categoryRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	updated, err := h.svc.UpdateCategory(c.Request().Context(), id, CategoryInput(req))
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteCategory(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteCategory(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Examination type handlers --

type examTypeRequest struct {
	CategoryID      *int64   `json:"category_id"`
	Locale          string   `json:"locale"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	Price           *float64 `json:"price"`
	Active          bool     `json:"active"`
	Version         int64    `json:"version"`
}

func (r examTypeRequest) input() ExamTypeInput {
	return ExamTypeInput{
		CategoryID:      r.CategoryID,
		Locale:          r.Locale,
		Name:            r.Name,
		DurationMinutes: r.DurationMinutes,
		Price:           r.Price,
		Active:          r.Active,
	}
}

func (h *Handler) CreateExamType(c echo.Context) error {
	var req examTypeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateExamType(c.Request().Context(), req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetExamType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	et, err := h.svc.GetExamType(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, et)
}

func (h *Handler) ListExamTypes(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	items, err := h.svc.ListExamTypes(c.Request().Context(), activeOnly)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) UpdateExamType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req examTypeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	updated, err := h.svc.UpdateExamType(c.Request().Context(), id, req.Version, req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteExamType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteExamType(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}
