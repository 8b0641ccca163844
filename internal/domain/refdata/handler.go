package refdata

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
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
	staff.GET("/document-types", h.ListDocumentTypes)
	staff.GET("/medical-document-types", h.ListMedicalDocumentTypes)
	staff.GET("/insurance-providers", h.ListProviders)
	staff.GET("/insurance-providers/:id", h.GetProvider)
	staff.GET("/insurance-providers/:id/plans", h.ListPlans)
	staff.GET("/countries", h.ListCountries)
	staff.GET("/cities", h.ListCities)
	staff.GET("/professions", h.ListProfessions)
	staff.GET("/employers", h.ListEmployers)
	staff.POST("/employers", h.CreateEmployer)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/document-types", h.CreateDocumentType)
	admin.PUT("/document-types/:id", h.UpdateDocumentType)
	admin.DELETE("/document-types/:id", h.DeleteDocumentType)
	admin.POST("/medical-document-types", h.CreateMedicalDocumentType)
	admin.PUT("/medical-document-types/:id", h.UpdateMedicalDocumentType)
	admin.DELETE("/medical-document-types/:id", h.DeleteMedicalDocumentType)
	admin.POST("/insurance-providers", h.CreateProvider)
	admin.PUT("/insurance-providers/:id", h.UpdateProvider)
	admin.DELETE("/insurance-providers/:id", h.DeleteProvider)
	admin.POST("/insurance-plans", h.CreatePlan)
	admin.PUT("/insurance-plans/:id", h.UpdatePlan)
	admin.DELETE("/insurance-plans/:id", h.DeletePlan)
}

func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// -- Document type handlers --

type typeRequest struct {
	Locale  string `json:"locale"`
	Name    string `json:"name"`
	Version int64  `json:"version"`
}

func (r typeRequest) input() TypeInput {
	return TypeInput{Locale: r.Locale, Name: r.Name}
}

func (h *Handler) ListDocumentTypes(c echo.Context) error {
	items, err := h.svc.ListDocumentTypes(c.Request().Context())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) CreateDocumentType(c echo.Context) error {
	var req typeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateDocumentType(c.Request().Context(), req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) UpdateDocumentType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req typeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	updated, err := h.svc.UpdateDocumentType(c.Request().Context(), id, req.Version, req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteDocumentType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteDocumentType(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) ListMedicalDocumentTypes(c echo.Context) error {
	items, err := h.svc.ListMedicalDocumentTypes(c.Request().Context())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) CreateMedicalDocumentType(c echo.Context) error {
	var req typeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateMedicalDocumentType(c.Request().Context(), req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) UpdateMedicalDocumentType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req typeRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	updated, err := h.svc.UpdateMedicalDocumentType(c.Request().Context(), id, req.Version, req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteMedicalDocumentType(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteMedicalDocumentType(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Insurance provider handlers --

type providerRequest struct {
	Locale  string `json:"locale"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`
	Address string `json:"address"`
	Active  bool   `json:"active"`
	Version int64  `json:"version"`
}

func (r providerRequest) input() ProviderInput {
	return ProviderInput{
		Locale: r.Locale, Name: r.Name, Phone: r.Phone, Email: r.Email,
		Website: r.Website, Address: r.Address, Active: r.Active,
	}
}

func (h *Handler) ListProviders(c echo.Context) error {
	activeOnly := c.QueryParam("active") == "true"
	items, err := h.svc.ListProviders(c.Request().Context(), activeOnly)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) GetProvider(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	p, err := h.svc.GetProvider(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, p)
}

func (h *Handler) CreateProvider(c echo.Context) error {
	var req providerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateProvider(c.Request().Context(), req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) UpdateProvider(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req providerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	updated, err := h.svc.UpdateProvider(c.Request().Context(), id, req.Version, req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteProvider(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteProvider(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Insurance plan handlers --

type planRequest struct {
	ProviderID      int64    `json:"provider_id"`
	Locale          string   `json:"locale"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	CoveragePercent *float64 `json:"coverage_percent"`
	Active          bool     `json:"active"`
	Version         int64    `json:"version"`
}

func (r planRequest) input() PlanInput {
	return PlanInput{
		ProviderID: r.ProviderID, Locale: r.Locale, Name: r.Name,
		Description: r.Description, CoveragePercent: r.CoveragePercent, Active: r.Active,
	}
}

func (h *Handler) ListPlans(c echo.Context) error {
	providerID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	items, err := h.svc.ListPlans(c.Request().Context(), providerID)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) CreatePlan(c echo.Context) error {
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreatePlan(c.Request().Context(), req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) UpdatePlan(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req planRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	updated, err := h.svc.UpdatePlan(c.Request().Context(), id, req.Version, req.input())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeletePlan(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeletePlan(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Lookup handlers --

func (h *Handler) ListCountries(c echo.Context) error {
	items, err := h.svc.ListCountries(c.Request().Context())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) ListCities(c echo.Context) error {
	var countryID int64
	if raw := c.QueryParam("country_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperr.Fail(c, h.log, apperr.Validation("invalidQuery", nil))
		}
		countryID = id
	}
	items, err := h.svc.ListCities(c.Request().Context(), countryID)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) ListProfessions(c echo.Context) error {
	items, err := h.svc.ListProfessions(c.Request().Context())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

func (h *Handler) ListEmployers(c echo.Context) error {
	items, err := h.svc.ListEmployers(c.Request().Context(), c.QueryParam("name"))
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, items)
}

type employerRequest struct {
	Name string `json:"name"`
}

func (h *Handler) CreateEmployer(c echo.Context) error {
	var req employerRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}
	created, err := h.svc.CreateEmployer(c.Request().Context(), req.Name)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}
