package server

import (
	"net/http"
	"strings"
	"time"

	calculationdomain "github.com/dealerdesk/taxengine/internal/calculation/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CalculateSalesTax(c *gin.Context) {
	var req calculationdomain.SalesTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.calcSvc.CalculateSalesTax(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CalculateDealTaxes(c *gin.Context) {
	var req calculationdomain.DealTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.calcSvc.CalculateDealTaxes(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EstimateSalesTax(c *gin.Context) {
	var req calculationdomain.SalesTaxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.calcSvc.EstimateSalesTax(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CalculateDocFee(c *gin.Context) {
	state := strings.TrimSpace(c.Query("state"))
	fee := strings.TrimSpace(c.Query("fee"))
	if state == "" || fee == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.calcSvc.CalculateDocFee(c.Request.Context(), state, fee)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": strings.ToUpper(state), "doc_fee": resp}})
}

func (s *Server) CalculateTitleFee(c *gin.Context) {
	state := strings.TrimSpace(c.Param("state"))

	resp, err := s.calcSvc.CalculateTitleFee(c.Request.Context(), state)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"state": strings.ToUpper(state), "title_fee": resp}})
}

func (s *Server) GetRatesByPostalCode(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	jur, err := s.jurSvc.ResolveByPostalCode(c.Request.Context(), c.Param("postalCode"), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.jurSvc.Rates(jur)})
}

func parseOptionalTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", trimmed)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
