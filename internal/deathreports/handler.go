package deathreports

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"harambee/mutual-aid/mutual-aid-backend/internal/auth"
	"harambee/mutual-aid/mutual-aid-backend/internal/documents"
)

// Handler exposes the report lifecycle over HTTP.
type Handler struct {
	service *Service
	store   documents.Store
	logger  *zap.Logger
}

// NewHandler creates a death reports handler.
func NewHandler(service *Service, store documents.Store, logger *zap.Logger) *Handler {
	return &Handler{service: service, store: store, logger: logger}
}

// RegisterRoutes registers the death report routes. The admin review route
// additionally requires the admin role.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/death-reports")
	{
		reports.POST("", h.submitReport)
		reports.GET("", h.listSectionReports)
		reports.POST("/documents", h.uploadCertificate)
		reports.GET("/:id", h.getReport)
		reports.POST("/:id/vote", h.castVote)
		reports.PUT("/:id/review", auth.RequireAdmin(), h.resolveReview)
	}
}

type submitRequest struct {
	BeneficiaryID string          `json:"beneficiary_id" binding:"required"`
	DocumentRef   string          `json:"document_ref" binding:"required"`
	BankDetails   json.RawMessage `json:"bank_details" binding:"required"`
}

func (h *Handler) submitReport(c *gin.Context) {
	principal, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	beneficiaryID, err := primitive.ObjectIDFromHex(req.BeneficiaryID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid beneficiary_id"})
		return
	}

	bank, err := ParseBankDetails(req.BankDetails)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.SubmitReport(c.Request.Context(), SubmitInput{
		ReporterID:    principal.ID,
		SectionID:     principal.SectionID,
		CommunityID:   principal.CommunityID,
		BeneficiaryID: beneficiaryID,
		DocumentRef:   req.DocumentRef,
		BankDetails:   bank,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *Handler) uploadCertificate(c *gin.Context) {
	file, header, err := c.Request.FormFile("certificate")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "certificate file is required"})
		return
	}
	defer file.Close()

	ref, err := h.store.Store(c.Request.Context(), "certificates", header.Filename, file)
	if err != nil {
		h.logger.Error("failed to store death certificate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store certificate"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"document_ref": ref})
}

type voteRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Comment  string `json:"comment"`
}

func (h *Handler) castVote(c *gin.Context) {
	principal, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	reportID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.CastVote(c.Request.Context(), reportID, principal.ID, principal.SectionID, *req.Approved, req.Comment)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

type reviewRequest struct {
	Approved *bool  `json:"approved" binding:"required"`
	Comments string `json:"comments"`
}

func (h *Handler) resolveReview(c *gin.Context) {
	principal, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	reportID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.service.ResolveReview(c.Request.Context(), reportID, principal.ID, *req.Approved, req.Comments)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) getReport(c *gin.Context) {
	principal, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	reportID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report id"})
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), reportID, principal.ID, principal.SectionID, principal.IsAdmin)
	if err != nil {
		h.respondError(c, err)
		return
	}

	response := gin.H{"report": report}
	if principal.IsAdmin && report.DocumentRef != "" {
		if url, err := h.store.PresignedURL(c.Request.Context(), report.DocumentRef, 15*time.Minute); err == nil {
			response["document_url"] = url
		} else {
			h.logger.Warn("failed to presign certificate url",
				zap.String("report_id", report.ID.Hex()), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) listSectionReports(c *gin.Context) {
	principal, ok := auth.FromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	reports, err := h.service.ListSectionReports(c.Request.Context(), principal.SectionID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if reports == nil {
		reports = []DeathReport{}
	}
	c.JSON(http.StatusOK, reports)
}

// respondError maps lifecycle errors onto HTTP status codes so the client
// can distinguish "you already voted" from "report not found".
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadyVoted),
		errors.Is(err, ErrDuplicateReport),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrDeadlineExpired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrBeneficiaryIneligible):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		h.logger.Error("death report operation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
