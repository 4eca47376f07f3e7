package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/complaint/guard"
	"github.com/smallbiznis/grievance-portal/internal/providers/pdf"
)

func parseComplaintID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, newValidationError("id", "invalid_id", "complaint id must be a positive integer")
	}
	return id, nil
}

func (s *Server) SubmitComplaint(c *gin.Context) {
	var req complaintdomain.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	complaint, err := s.complaintSvc.Submit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, complaint)
}

func (s *Server) GetComplaint(c *gin.Context) {
	id, err := parseComplaintID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	complaint, err := s.complaintSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, complaint)
}

// ComplaintLetter renders the response letter of a resolved complaint.
func (s *Server) ComplaintLetter(c *gin.Context) {
	id, err := parseComplaintID(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	complaint, err := s.complaintSvc.Get(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !guard.IsTerminal(complaint.Status) || complaint.AIResponse == nil || !guard.EnsureResponsePair(complaint) {
		AbortWithError(c, complaintdomain.ErrInvalidState)
		return
	}

	doc, err := s.letters.GenerateLetter(ctx, pdf.LetterData{
		ComplaintID:     complaint.ID,
		CustomerEmail:   complaint.CustomerEmail,
		Content:         complaint.Content,
		FiledAt:         complaint.CreatedAt,
		ResolvedAt:      complaint.UpdatedAt,
		Response:        *complaint.AIResponse,
		ComplexityScore: *complaint.ComplexityScore,
		FilingFee:       complaint.FilingFee,
		Currency:        s.cfg.Payment.Currency,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="%s.pdf"`, pdf.Reference(complaint.ID)))
	c.Data(http.StatusOK, "application/pdf", doc)
}
