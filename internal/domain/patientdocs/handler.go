package patientdocs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicore/clinicore/internal/platform/apperr"
	"github.com/clinicore/clinicore/internal/platform/auth"
	"github.com/clinicore/clinicore/internal/platform/blobstore"
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
	g.GET("/patients/:id/id-documents", h.ListIDDocuments)
	g.POST("/patients/:id/id-documents", h.CreateIDDocument)
	g.POST("/id-documents/validate-duplicate", h.CheckIDDocument)
	g.GET("/id-documents/:id", h.GetIDDocument)
	g.PUT("/id-documents/:id", h.UpdateIDDocument)
	g.DELETE("/id-documents/:id", h.DeleteIDDocument)

	g.GET("/patients/:id/insurances", h.ListInsurances)
	g.POST("/patients/:id/insurances", h.CreateInsurance)
	g.GET("/insurances/:id", h.GetInsurance)
	g.PUT("/insurances/:id", h.UpdateInsurance)
	g.DELETE("/insurances/:id", h.DeleteInsurance)
}

func parseID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// fileRef is the client's handle to a file already committed through the
// upload endpoints.
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

// -- Identity document handlers --

type idDocumentRequest struct {
	DocumentTypeID int64      `json:"document_type_id"`
	DocumentNumber string     `json:"document_number"`
	IssueDate      *time.Time `json:"issue_date"`
	ExpiryDate     *time.Time `json:"expiry_date"`
	File           *fileRef   `json:"file"`
	RemoveFile     bool       `json:"remove_file"`
	Version        int64      `json:"version"`
}

type duplicateCheckRequest struct {
	PatientID      int64  `json:"patient_id"`
	DocumentTypeID int64  `json:"document_type_id"`
	DocumentNumber string `json:"document_number"`
	ExcludeID      int64  `json:"exclude_id"`
}

func (h *Handler) CheckIDDocument(c echo.Context) error {
	var req duplicateCheckRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	err := h.svc.CheckDuplicateIDDocument(c.Request().Context(), req.PatientID,
		req.DocumentTypeID, req.DocumentNumber, req.ExcludeID)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"available": true})
}

func (h *Handler) CreateIDDocument(c echo.Context) error {
	patientID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req idDocumentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	doc := &IDDocument{
		PatientID:      patientID,
		DocumentTypeID: req.DocumentTypeID,
		DocumentNumber: req.DocumentNumber,
		IssueDate:      req.IssueDate,
		ExpiryDate:     req.ExpiryDate,
	}
	created, err := h.svc.CreateIDDocument(c.Request().Context(), doc, req.File.toInfo())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetIDDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	d, err := h.svc.GetIDDocument(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, d)
}

func (h *Handler) ListIDDocuments(c echo.Context) error {
	patientID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	docs, err := h.svc.ListIDDocuments(c.Request().Context(), patientID)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, docs)
}

func (h *Handler) UpdateIDDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req idDocumentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	doc := &IDDocument{
		ID:             id,
		DocumentTypeID: req.DocumentTypeID,
		DocumentNumber: req.DocumentNumber,
		IssueDate:      req.IssueDate,
		ExpiryDate:     req.ExpiryDate,
	}
	change := blobstore.Change{New: req.File.toInfo(), Remove: req.RemoveFile}
	updated, err := h.svc.UpdateIDDocument(c.Request().Context(), doc, req.Version, change)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteIDDocument(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteIDDocument(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}

// -- Insurance handlers --

type insuranceRequest struct {
	InsurancePlanID int64      `json:"insurance_plan_id"`
	PolicyNumber    string     `json:"policy_number"`
	LBONumber       string     `json:"lbo_number"`
	EffectiveDate   *time.Time `json:"effective_date"`
	ExpiryDate      *time.Time `json:"expiry_date"`
	File            *fileRef   `json:"file"`
	RemoveFile      bool       `json:"remove_file"`
	Version         int64      `json:"version"`
}

func (h *Handler) CreateInsurance(c echo.Context) error {
	patientID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req insuranceRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	ins := &Insurance{
		PatientID:       patientID,
		InsurancePlanID: req.InsurancePlanID,
		PolicyNumber:    req.PolicyNumber,
		LBONumber:       req.LBONumber,
		EffectiveDate:   req.EffectiveDate,
		ExpiryDate:      req.ExpiryDate,
	}
	created, err := h.svc.CreateInsurance(c.Request().Context(), ins, req.File.toInfo())
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusCreated, created)
}

func (h *Handler) GetInsurance(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	ins, err := h.svc.GetInsurance(c.Request().Context(), id)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, ins)
}

func (h *Handler) ListInsurances(c echo.Context) error {
	patientID, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	list, err := h.svc.ListInsurances(c.Request().Context(), patientID)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, list)
}

func (h *Handler) UpdateInsurance(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	var req insuranceRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Fail(c, h.log, apperr.Validation("invalidBody", nil))
	}

	ins := &Insurance{
		ID:              id,
		InsurancePlanID: req.InsurancePlanID,
		PolicyNumber:    req.PolicyNumber,
		LBONumber:       req.LBONumber,
		EffectiveDate:   req.EffectiveDate,
		ExpiryDate:      req.ExpiryDate,
	}
	change := blobstore.Change{New: req.File.toInfo(), Remove: req.RemoveFile}
	updated, err := h.svc.UpdateInsurance(c.Request().Context(), ins, req.Version, change)
	if err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, updated)
}

func (h *Handler) DeleteInsurance(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return apperr.Fail(c, h.log, apperr.NotFound("recordNotFound"))
	}
	if err := h.svc.DeleteInsurance(c.Request().Context(), id); err != nil {
		return apperr.Fail(c, h.log, err)
	}
	return apperr.OK(c, http.StatusOK, map[string]bool{"deleted": true})
}
