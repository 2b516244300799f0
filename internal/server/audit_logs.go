package server

import (
	"net/http"
	"strings"

	audittraildomain "github.com/dealerdesk/taxengine/internal/audittrail/domain"
	"github.com/dealerdesk/taxengine/pkg/db/pagination"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetAuditByCalculationID(c *gin.Context) {
	entry, err := s.auditSvc.GetByCalculationID(c.Request.Context(), c.Param("calculationId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entry})
}

func (s *Server) GetAuditByDeal(c *gin.Context) {
	entries, err := s.calcSvc.AuditTaxCalculation(c.Request.Context(), c.Param("dealId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) ListAuditLogs(c *gin.Context) {
	var query struct {
		pagination.Pagination
		DealershipID string `form:"dealership_id"`
		Type         string `form:"calculation_type"`
		StartAt      string `form:"start_at"`
		EndAt        string `form:"end_at"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := audittraildomain.ListRequest{
		Pagination:   query.Pagination,
		DealershipID: strings.TrimSpace(query.DealershipID),
		Type:         audittraildomain.CalculationType(strings.TrimSpace(query.Type)),
	}

	startAt, err := parseOptionalTime(query.StartAt)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if !startAt.IsZero() {
		req.StartAt = &startAt
	}

	endAt, err := parseOptionalTime(query.EndAt)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if !endAt.IsZero() {
		req.EndAt = &endAt
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
