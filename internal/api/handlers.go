package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/compath-server/internal/domain"
)

// geneSetQueryRequest is the body of POST /api/v1/query/gene-set.
type geneSetQueryRequest struct {
	GeneSet []string `json:"gene_set" binding:"required"`
}

func (s *Server) handleHealth(c *gin.Context) {
	populated, err := s.service.IsPopulated(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"populated": populated,
	})
}

func (s *Server) handleSummary(c *gin.Context) {
	summary, err := s.service.Summarize(c.Request.Context())
	if err != nil {
		s.serverError(c, "summarizing database", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleQueryGeneSet(c *gin.Context) {
	var req geneSetQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if len(req.GeneSet) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gene_set must not be empty"})
		return
	}

	ctx := c.Request.Context()

	if s.cache != nil {
		if results, ok := s.cache.GetGeneSetQuery(ctx, req.GeneSet); ok {
			c.JSON(http.StatusOK, gin.H{"results": results, "cached": true})
			return
		}
	}

	results, err := s.service.QueryGeneSet(ctx, req.GeneSet)
	if err != nil {
		s.serverError(c, "querying gene set", err)
		return
	}

	if s.cache != nil {
		s.cache.SetGeneSetQuery(ctx, req.GeneSet, results)
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "cached": false})
}

func (s *Server) handleQueryGene(c *gin.Context) {
	symbol := c.Param("symbol")

	results, err := s.service.QueryGene(c.Request.Context(), symbol)
	if err != nil {
		s.serverError(c, "querying gene", err)
		return
	}
	if results == nil {
		results = []domain.GeneQueryResult{}
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"pathways": results,
	})
}

func (s *Server) handleGetPathway(c *gin.Context) {
	id := c.Param("id")

	pathway, err := s.service.GetPathwayByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "pathway not found: " + id})
			return
		}
		s.serverError(c, "fetching pathway", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resource_id": pathway.ResourceID(),
		"name":        pathway.Name(),
		"url":         pathway.URL(),
		"gene_set":    pathway.GeneSet(),
		"size":        len(pathway.GeneSet()),
	})
}

func (s *Server) handleSearchPathways(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	top := 5
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		top = parsed
	}

	matches, err := s.service.QuerySimilarPathways(c.Request.Context(), query, top)
	if err != nil {
		s.serverError(c, "searching pathways", err)
		return
	}
	if matches == nil {
		matches = []domain.PathwaySummary{}
	}

	c.JSON(http.StatusOK, gin.H{"query": query, "pathways": matches})
}

func (s *Server) handleExportGeneSets(c *gin.Context) {
	geneSets, err := s.service.ExportGeneSets(c.Request.Context())
	if err != nil {
		s.serverError(c, "exporting gene sets", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gene_sets": geneSets})
}

func (s *Server) serverError(c *gin.Context, action string, err error) {
	s.log.WithFields(logrus.Fields{
		"request_id": c.GetString("request_id"),
		"path":       c.Request.URL.Path,
		"error":      err,
	}).Error("Request failed")

	c.JSON(http.StatusInternalServerError, gin.H{"error": action + " failed"})
}
