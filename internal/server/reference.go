package server

import (
	"net/http"
	"time"

	jurisdictiondomain "github.com/dealerdesk/taxengine/internal/jurisdiction/domain"
	stateruledomain "github.com/dealerdesk/taxengine/internal/staterule/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) LoadJurisdiction(c *gin.Context) {
	var req jurisdictiondomain.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.jurSvc.Load(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetJurisdictionHistory(c *gin.Context) {
	history, err := s.jurSvc.History(c.Request.Context(), c.Param("postalCode"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}

func (s *Server) LoadStateRules(c *gin.Context) {
	var req stateruledomain.LoadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.ruleSvc.LoadVersion(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetStateRules(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}

	rules, err := s.ruleSvc.Rules(c.Request.Context(), c.Param("state"), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (s *Server) ListStateRuleVersions(c *gin.Context) {
	versions, err := s.ruleSvc.Versions(c.Request.Context(), c.Param("state"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": versions})
}
