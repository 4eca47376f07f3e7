package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	admindomain "github.com/smallbiznis/grievance-portal/internal/admin/domain"
	complaintdomain "github.com/smallbiznis/grievance-portal/internal/complaint/domain"
	"github.com/smallbiznis/grievance-portal/internal/providers/xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) AdminLogin(c *gin.Context) {
	var req admindomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.adminSvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.cookies.Set(c, result.Token, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"isAdmin": true,
		"email":   result.Admin.Email,
	})
}

func (s *Server) AdminLogout(c *gin.Context) {
	s.cookies.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// AdminCheck never fails; it reports whether the caller holds a valid
// admin session.
func (s *Server) AdminCheck(c *gin.Context) {
	token, ok := s.cookies.Read(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"isAdmin": false})
		return
	}
	principal, err := s.adminSvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isAdmin": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"isAdmin": true, "email": principal.Email})
}

func (s *Server) AdminListComplaints(c *gin.Context) {
	var req complaintdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.complaintSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) AdminDailyStats(c *gin.Context) {
	counts, err := s.complaintSvc.DailyCounts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (s *Server) AdminExportComplaints(c *gin.Context) {
	ctx := c.Request.Context()

	list, err := s.complaintSvc.List(ctx, complaintdomain.ListRequest{})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	daily, err := s.complaintSvc.DailyCounts(ctx)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := xlsx.WriteComplaintReport(&buf, list.Complaints, daily); err != nil {
		AbortWithError(c, err)
		return
	}

	filename := "complaints.xlsx"
	if len(daily) > 0 {
		filename = fmt.Sprintf("complaints-%s.xlsx", daily[len(daily)-1].Date)
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
