// Package extraction is the document-to-concept producer: it asks an LLM for
// concept and relationship drafts, resolves duplicates against the existing
// graph, and persists through the same validated engine write path as direct
// API calls. The engine infers nothing; every field arrives pre-decided here
// and is only structurally validated downstream.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/sage/internal/config"
	"github.com/agenthands/sage/internal/graph"
	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/llm"
	"github.com/agenthands/sage/internal/logger"
)

const defaultConceptsPrompt = `You are building a learning knowledge graph. Extract the learnable concepts from the document below.

Return JSON only, in this shape:
{"concepts": [{"name": "...", "node_type": "domain|course|module|topic|concept|skill|resource|assessment", "hierarchy_level": 1-5, "parent": "name of parent concept or empty", "description": "...", "aliases": ["..."], "difficulty": "novice|beginner|intermediate|advanced|expert", "bloom_level": "remember|understand|apply|analyze|evaluate|create", "estimated_time_minutes": 30, "confidence": 0.0-1.0}]}

Hierarchy levels: 1 = domain, 2 = course, 3 = module, 4 = topic, 5 = concept or skill. A child's level is its parent's level plus one.

Document (%s):
%s`

const defaultRelationshipsPrompt = `You are building a learning knowledge graph. Identify relationships between the concepts listed below, using evidence from the document.

Known concepts:
%s

Return JSON only, in this shape:
{"relationships": [{"source": "concept name", "target": "concept name", "relationship_type": "prerequisite|enables|part_of|contains|similar_to|related_to|contradicts|exemplifies|applies_to|extends|teaches|assesses", "strength": "hard|soft|recommended (prerequisite only, else empty)", "evidence": "supporting quote", "confidence": 0.0-1.0}]}

A prerequisite edge points from the prerequisite to the concept that requires it.

Document (%s):
%s`

// Document is one source text to ingest.
type Document struct {
	Name        string
	Text        string
	ExtractedBy string
}

// Result reports what one ingestion run changed.
type Result struct {
	ConceptsCreated      int      `json:"concepts_created"`
	ConceptsMerged       int      `json:"concepts_merged"`
	RelationshipsCreated int      `json:"relationships_created"`
	Skipped              []string `json:"skipped,omitempty"`
}

type Extractor struct {
	llm     llm.Client
	engine  *graph.Engine
	prompts config.ExtractionPrompts
	log     *logger.Logger
}

func NewExtractor(client llm.Client, engine *graph.Engine, prompts config.ExtractionPrompts, log *logger.Logger) *Extractor {
	if prompts.Concepts == "" {
		prompts.Concepts = defaultConceptsPrompt
	}
	if prompts.Relationships == "" {
		prompts.Relationships = defaultRelationshipsPrompt
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{llm: client, engine: engine, prompts: prompts, log: log.With("component", "extractor")}
}

// IngestDocument runs the full producer pipeline over one document.
// Relationship drafts the engine rejects (unknown names, duplicates,
// circular hard prerequisites) are skipped and reported, never retried or
// downgraded.
func (x *Extractor) IngestDocument(ctx context.Context, doc Document) (*Result, error) {
	drafts, err := x.ExtractConcepts(ctx, doc)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	byName := make(map[string]string) // lowercased name/alias -> node id
	provenanceAt := time.Now().UTC()

	for _, draft := range drafts {
		node, merged, err := x.resolveConcept(ctx, draft, doc, provenanceAt)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("concept %q: %v", draft.Name, err))
			x.log.Warn("concept draft rejected", "name", draft.Name, "error", err)
			continue
		}
		if merged {
			result.ConceptsMerged++
		} else {
			result.ConceptsCreated++
		}
		byName[strings.ToLower(node.Name)] = node.ID
		for _, alias := range node.Aliases {
			byName[strings.ToLower(alias)] = node.ID
		}
	}

	relDrafts, err := x.ExtractRelationships(ctx, doc, drafts)
	if err != nil {
		return nil, err
	}
	for _, draft := range relDrafts {
		if err := x.createRelationship(ctx, draft, byName, doc, provenanceAt); err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("relationship %q -> %q: %v", draft.Source, draft.Target, err))
			x.log.Warn("relationship draft rejected", "source", draft.Source, "target", draft.Target, "error", err)
			continue
		}
		result.RelationshipsCreated++
	}

	x.log.Info("document ingested", "document", doc.Name,
		"created", result.ConceptsCreated, "merged", result.ConceptsMerged,
		"relationships", result.RelationshipsCreated, "skipped", len(result.Skipped))
	return result, nil
}

// ExtractConcepts asks the LLM for concept drafts without persisting them.
func (x *Extractor) ExtractConcepts(ctx context.Context, doc Document) ([]model.ConceptDraft, error) {
	prompt := fmt.Sprintf(x.prompts.Concepts, doc.Name, doc.Text)
	response, err := x.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate concepts: %w", err)
	}
	parsed, err := parseJSON[model.ConceptDrafts](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse concepts: %w", err)
	}
	return parsed.Concepts, nil
}

// ExtractRelationships asks the LLM for relationship drafts between the
// given concepts, without persisting them.
func (x *Extractor) ExtractRelationships(ctx context.Context, doc Document, concepts []model.ConceptDraft) ([]model.RelationshipDraft, error) {
	var names strings.Builder
	for _, c := range concepts {
		fmt.Fprintf(&names, "- %s\n", c.Name)
	}
	prompt := fmt.Sprintf(x.prompts.Relationships, names.String(), doc.Name, doc.Text)
	response, err := x.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate relationships: %w", err)
	}
	parsed, err := parseJSON[model.RelationshipDrafts](response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse relationships: %w", err)
	}
	return parsed.Relationships, nil
}

func (x *Extractor) resolveConcept(ctx context.Context, draft model.ConceptDraft, doc Document, at time.Time) (*model.ConceptNode, bool, error) {
	if existing := x.findExisting(ctx, draft); existing != nil {
		merged, err := x.mergeAliases(ctx, existing, draft)
		if err != nil {
			return nil, false, err
		}
		return merged, true, nil
	}

	node := model.ConceptNode{
		Name:                 draft.Name,
		NodeType:             model.NodeType(draft.NodeType),
		HierarchyLevel:       draft.HierarchyLevel,
		Description:          draft.Description,
		Aliases:              draft.Aliases,
		Difficulty:           model.Difficulty(draft.Difficulty),
		BloomLevel:           model.BloomLevel(draft.BloomLevel),
		EstimatedTimeMinutes: draft.EstimatedTimeMinutes,
		Provenance: &model.Provenance{
			SourceDocument:   doc.Name,
			ExtractionMethod: model.ExtractionLLM,
			ConfidenceScore:  draft.Confidence,
			ExtractedBy:      doc.ExtractedBy,
			ExtractedAt:      &at,
		},
	}
	if draft.Parent != "" {
		if parents, err := x.engine.NodesByName(ctx, draft.Parent); err == nil && len(parents) > 0 {
			node.ParentID = &parents[0].ID
		}
	}
	created, err := x.engine.CreateNode(ctx, node)
	if err != nil {
		return nil, false, err
	}
	return created, false, nil
}

// findExisting resolves a draft against the graph by name or alias; this is
// the dedupe step, so repeated ingestion enriches nodes instead of
// duplicating them.
func (x *Extractor) findExisting(ctx context.Context, draft model.ConceptDraft) *model.ConceptNode {
	candidates := []string{draft.Name}
	candidates = append(candidates, draft.Aliases...)
	for _, name := range candidates {
		matches, err := x.engine.NodesByName(ctx, name)
		if err != nil || len(matches) == 0 {
			continue
		}
		for i := range matches {
			if matches[i].NodeType == model.NodeType(draft.NodeType) {
				return &matches[i]
			}
		}
	}
	return nil
}

func (x *Extractor) mergeAliases(ctx context.Context, existing *model.ConceptNode, draft model.ConceptDraft) (*model.ConceptNode, error) {
	known := make(map[string]bool, len(existing.Aliases)+1)
	known[strings.ToLower(existing.Name)] = true
	for _, a := range existing.Aliases {
		known[strings.ToLower(a)] = true
	}
	aliases := existing.Aliases
	changed := false
	for _, candidate := range append([]string{draft.Name}, draft.Aliases...) {
		if !known[strings.ToLower(candidate)] {
			aliases = append(aliases, candidate)
			known[strings.ToLower(candidate)] = true
			changed = true
		}
	}
	if !changed {
		return existing, nil
	}
	return x.engine.UpdateNode(ctx, existing.ID, graph.NodePatch{Aliases: &aliases})
}

func (x *Extractor) createRelationship(ctx context.Context, draft model.RelationshipDraft, byName map[string]string, doc Document, at time.Time) error {
	sourceID, ok := byName[strings.ToLower(draft.Source)]
	if !ok {
		return fmt.Errorf("unknown source concept")
	}
	targetID, ok := byName[strings.ToLower(draft.Target)]
	if !ok {
		return fmt.Errorf("unknown target concept")
	}
	_, err := x.engine.CreateRelationship(ctx, model.RelationshipEdge{
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: model.RelationshipType(draft.RelationshipType),
		Strength:         model.PrerequisiteStrength(draft.Strength),
		EvidenceText:     draft.Evidence,
		Confidence:       draft.Confidence,
		Provenance: &model.Provenance{
			SourceDocument:   doc.Name,
			ExtractionMethod: model.ExtractionLLM,
			ConfidenceScore:  draft.Confidence,
			ExtractedBy:      doc.ExtractedBy,
			ExtractedAt:      &at,
		},
	})
	return err
}
