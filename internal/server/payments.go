package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	paymentdomain "github.com/smallbiznis/grievance-portal/internal/payment/domain"
)

const maxWebhookBody = 1 << 20

type checkoutSessionRequest struct {
	ComplaintID int64 `json:"complaintId"`
}

type verifySessionRequest struct {
	SessionID   string `json:"sessionId"`
	ComplaintID int64  `json:"complaintId"`
}

func (s *Server) CreateCheckoutSession(c *gin.Context) {
	var req checkoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.ComplaintID <= 0 {
		AbortWithError(c, newValidationError("complaintId", "required", "complaintId is required"))
		return
	}

	session, err := s.complaintSvc.CreateCheckoutSession(c.Request.Context(), req.ComplaintID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}

// VerifySession is called by the browser after the gateway redirects back.
func (s *Server) VerifySession(c *gin.Context) {
	var req verifySessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.ComplaintID <= 0 {
		AbortWithError(c, newValidationError("complaintId", "required", "complaintId is required"))
		return
	}

	result, err := s.complaintSvc.ReconcilePayment(c.Request.Context(), complaintdomain.ReconcileRequest{
		SessionID:   strings.TrimSpace(req.SessionID),
		ComplaintID: req.ComplaintID,
		Source:      complaintdomain.SourceVerify,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) HandlePaymentWebhook(c *gin.Context) {
	provider := strings.TrimSpace(c.Param("provider"))
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err = s.webhookSvc.Ingest(c.Request.Context(), provider, payload, c.Request.Header)
	if err != nil && !errors.Is(err, paymentdomain.ErrEventAlreadyProcessed) {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
