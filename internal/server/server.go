// Package server exposes the graph engine over HTTP.
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agenthands/sage/internal/extraction"
	"github.com/agenthands/sage/internal/graph"
	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/logger"
)

type Server struct {
	engine    *graph.Engine
	extractor *extraction.Extractor // nil when no LLM is configured
	log       *logger.Logger
}

func NewServer(engine *graph.Engine, extractor *extraction.Extractor, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{engine: engine, extractor: extractor, log: log.With("component", "http")}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.POST("/nodes", s.createNode)
	r.GET("/nodes/:id", s.getNode)
	r.PATCH("/nodes/:id", s.updateNode)
	r.DELETE("/nodes/:id", s.deleteNode)
	r.GET("/nodes/:id/children", s.children)
	r.GET("/nodes/:id/descendants", s.descendants)
	r.GET("/nodes/:id/ancestors", s.ancestors)
	r.GET("/nodes/:id/prerequisites", s.prerequisites)
	r.GET("/nodes/:id/unlocks", s.unlocks)
	r.GET("/nodes/:id/dependents", s.dependents)
	r.GET("/nodes/:id/relationships", s.relationships)

	r.GET("/concepts", s.conceptByName)
	r.GET("/search", s.search)

	r.POST("/relationships", s.createRelationship)
	r.GET("/relationships/:id", s.getRelationship)
	r.PATCH("/relationships/:id", s.updateRelationship)
	r.DELETE("/relationships/:id", s.deleteRelationship)

	r.GET("/path", s.learningPath)
	r.GET("/stats", s.stats)

	if s.extractor != nil {
		r.POST("/extract", s.extract)
	}

	return r
}

type createNodeRequest struct {
	Name                 string            `json:"name"`
	NodeType             string            `json:"node_type"`
	HierarchyLevel       int               `json:"hierarchy_level"`
	ParentID             *string           `json:"parent_id"`
	Description          string            `json:"description"`
	Aliases              []string          `json:"aliases"`
	Difficulty           string            `json:"difficulty"`
	BloomLevel           string            `json:"bloom_level"`
	EstimatedTimeMinutes *int              `json:"estimated_time_minutes"`
	ImportanceWeight     *float64          `json:"importance_weight"`
	Provenance           *model.Provenance `json:"provenance"`
}

func (s *Server) createNode(c *gin.Context) {
	var req createNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	node, err := s.engine.CreateNode(c.Request.Context(), model.ConceptNode{
		Name:                 req.Name,
		NodeType:             model.NodeType(req.NodeType),
		HierarchyLevel:       req.HierarchyLevel,
		ParentID:             req.ParentID,
		Description:          req.Description,
		Aliases:              req.Aliases,
		Difficulty:           model.Difficulty(req.Difficulty),
		BloomLevel:           model.BloomLevel(req.BloomLevel),
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		ImportanceWeight:     req.ImportanceWeight,
		Provenance:           req.Provenance,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, node)
}

func (s *Server) getNode(c *gin.Context) {
	if c.Query("include") == "children" {
		node, err := s.engine.NodeWithChildren(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, node)
		return
	}
	node, err := s.engine.Node(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

type updateNodeRequest struct {
	Name                 *string           `json:"name"`
	NodeType             *string           `json:"node_type"`
	HierarchyLevel       *int              `json:"hierarchy_level"`
	ParentID             *string           `json:"parent_id"`
	ClearParent          bool              `json:"clear_parent"`
	Description          *string           `json:"description"`
	Aliases              *[]string         `json:"aliases"`
	Difficulty           *model.Difficulty `json:"difficulty"`
	BloomLevel           *model.BloomLevel `json:"bloom_level"`
	EstimatedTimeMinutes *int              `json:"estimated_time_minutes"`
	ImportanceWeight     *float64          `json:"importance_weight"`
	Provenance           *model.Provenance `json:"provenance"`
}

func (s *Server) updateNode(c *gin.Context) {
	var req updateNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	patch := graph.NodePatch{
		Name:                 req.Name,
		HierarchyLevel:       req.HierarchyLevel,
		ParentID:             req.ParentID,
		ClearParent:          req.ClearParent,
		Description:          req.Description,
		Aliases:              req.Aliases,
		Difficulty:           req.Difficulty,
		BloomLevel:           req.BloomLevel,
		EstimatedTimeMinutes: req.EstimatedTimeMinutes,
		ImportanceWeight:     req.ImportanceWeight,
		Provenance:           req.Provenance,
	}
	if req.NodeType != nil {
		nt := model.NodeType(*req.NodeType)
		patch.NodeType = &nt
	}
	node, err := s.engine.UpdateNode(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, node)
}

func (s *Server) deleteNode(c *gin.Context) {
	result, err := s.engine.DeleteNode(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) children(c *gin.Context) {
	nodes, err := s.engine.Children(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"children": nodes, "total_count": len(nodes)})
}

func (s *Server) descendants(c *gin.Context) {
	nodes, err := s.engine.Descendants(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"descendants": nodes, "total_count": len(nodes)})
}

func (s *Server) ancestors(c *gin.Context) {
	nodes, err := s.engine.Ancestors(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ancestors": nodes, "total_count": len(nodes)})
}

func (s *Server) prerequisites(c *gin.Context) {
	transitive := c.DefaultQuery("transitive", "true") == "true"
	strength := model.PrerequisiteStrength(c.Query("strength"))
	prereqs, err := s.engine.Prerequisites(c.Request.Context(), c.Param("id"), strength, transitive, intQuery(c, "max_depth", 0))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"prerequisites": prereqs, "total_count": len(prereqs)})
}

func (s *Server) unlocks(c *gin.Context) {
	nodes, err := s.engine.WhatThisUnlocks(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unlocks": nodes, "total_count": len(nodes)})
}

func (s *Server) dependents(c *gin.Context) {
	nodes, err := s.engine.WhatDependsOnThis(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dependents": nodes, "total_count": len(nodes)})
}

func (s *Server) relationships(c *gin.Context) {
	edges, err := s.engine.Relationships(c.Request.Context(), c.Param("id"),
		model.RelationshipType(c.Query("type")), model.EdgeDirection(c.Query("direction")))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relationships": edges, "total_count": len(edges)})
}

// conceptByName is the lookup tutoring clients use: first match plus the
// names of any other nodes sharing the name or alias.
func (s *Server) conceptByName(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name query parameter is required"})
		return
	}
	matches, err := s.engine.NodesByName(c.Request.Context(), name)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if len(matches) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "not_found", "concept": nil})
		return
	}
	var alternatives []string
	for _, m := range matches[1:] {
		alternatives = append(alternatives, m.Name)
	}
	c.JSON(http.StatusOK, gin.H{"status": "found", "concept": matches[0], "alternatives": alternatives})
}

func (s *Server) search(c *gin.Context) {
	nodes, err := s.engine.SearchNodes(c.Request.Context(), model.NodeQuery{
		Query:      c.Query("q"),
		NodeType:   model.NodeType(c.Query("node_type")),
		BloomLevel: model.BloomLevel(c.Query("bloom_level")),
		Difficulty: model.Difficulty(c.Query("difficulty")),
		Limit:      intQuery(c, "limit", 0),
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": nodes, "total_found": len(nodes)})
}

type createRelationshipRequest struct {
	SourceID         string            `json:"source_id"`
	TargetID         string            `json:"target_id"`
	RelationshipType string            `json:"relationship_type"`
	Strength         string            `json:"strength"`
	EvidenceText     string            `json:"evidence_text"`
	Confidence       float64           `json:"confidence"`
	Provenance       *model.Provenance `json:"provenance"`
}

func (s *Server) createRelationship(c *gin.Context) {
	var req createRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	edge, err := s.engine.CreateRelationship(c.Request.Context(), model.RelationshipEdge{
		SourceID:         req.SourceID,
		TargetID:         req.TargetID,
		RelationshipType: model.RelationshipType(req.RelationshipType),
		Strength:         model.PrerequisiteStrength(req.Strength),
		EvidenceText:     req.EvidenceText,
		Confidence:       req.Confidence,
		Provenance:       req.Provenance,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, edge)
}

func (s *Server) getRelationship(c *gin.Context) {
	edge, err := s.engine.Relationship(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

type updateRelationshipRequest struct {
	Confidence   *float64                    `json:"confidence"`
	EvidenceText *string                     `json:"evidence_text"`
	Strength     *model.PrerequisiteStrength `json:"strength"`
}

func (s *Server) updateRelationship(c *gin.Context) {
	var req updateRelationshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	edge, err := s.engine.UpdateRelationship(c.Request.Context(), c.Param("id"), graph.EdgePatch{
		Confidence:   req.Confidence,
		EvidenceText: req.EvidenceText,
		Strength:     req.Strength,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, edge)
}

func (s *Server) deleteRelationship(c *gin.Context) {
	if err := s.engine.DeleteRelationship(c.Request.Context(), c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (s *Server) learningPath(c *gin.Context) {
	start := c.Query("start")
	target := c.Query("target")
	if start == "" || target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and target query parameters are required"})
		return
	}
	path, err := s.engine.FindLearningPath(c.Request.Context(), start, target, intQuery(c, "max_depth", 0))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if path == nil {
		c.JSON(http.StatusOK, gin.H{"status": "no_path"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":                 "found",
		"path":                   path.Nodes,
		"total_concepts":         len(path.Nodes),
		"total_time_minutes":     path.TotalTimeMinutes,
		"difficulty_progression": path.DifficultyProgression,
	})
}

func (s *Server) stats(c *gin.Context) {
	stats, err := s.engine.Stats(c.Request.Context())
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

type extractRequest struct {
	Name        string `json:"name"`
	Text        string `json:"text"`
	ExtractedBy string `json:"extracted_by"`
}

func (s *Server) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and text are required"})
		return
	}
	result, err := s.extractor.IngestDocument(c.Request.Context(), extraction.Document{
		Name:        req.Name,
		Text:        req.Text,
		ExtractedBy: req.ExtractedBy,
	})
	if err != nil {
		s.log.Error("extraction failed", "document", req.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "extraction failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) renderError(c *gin.Context, err error) {
	var ve *graph.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Msg, "reason": string(ve.Reason)})
	case errors.Is(err, graph.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.log.Error("request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
