package model

import "time"

type NodeType string

const (
	NodeDomain     NodeType = "domain"
	NodeCourse     NodeType = "course"
	NodeModule     NodeType = "module"
	NodeTopic      NodeType = "topic"
	NodeConcept    NodeType = "concept"
	NodeSkill      NodeType = "skill"
	NodeResource   NodeType = "resource"
	NodeAssessment NodeType = "assessment"
)

func (t NodeType) Valid() bool {
	switch t {
	case NodeDomain, NodeCourse, NodeModule, NodeTopic, NodeConcept, NodeSkill, NodeResource, NodeAssessment:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyNovice       Difficulty = "novice"
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyNovice, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

// BloomLevel is a cognitive level from Bloom's taxonomy.
type BloomLevel string

const (
	BloomRemember   BloomLevel = "remember"
	BloomUnderstand BloomLevel = "understand"
	BloomApply      BloomLevel = "apply"
	BloomAnalyze    BloomLevel = "analyze"
	BloomEvaluate   BloomLevel = "evaluate"
	BloomCreate     BloomLevel = "create"
)

func (b BloomLevel) Valid() bool {
	switch b {
	case BloomRemember, BloomUnderstand, BloomApply, BloomAnalyze, BloomEvaluate, BloomCreate:
		return true
	}
	return false
}

type ExtractionMethod string

const (
	ExtractionManual    ExtractionMethod = "manual"
	ExtractionLLM       ExtractionMethod = "llm_extracted"
	ExtractionRuleBased ExtractionMethod = "rule_based"
)

func (m ExtractionMethod) Valid() bool {
	switch m {
	case ExtractionManual, ExtractionLLM, ExtractionRuleBased:
		return true
	}
	return false
}

// Provenance records where a node or edge came from and how confident the
// producing process was. It is embedded, never addressed on its own.
type Provenance struct {
	SourceDocument   string           `json:"source_document"`
	PageNumbers      []int            `json:"page_numbers,omitempty"`
	ExtractionMethod ExtractionMethod `json:"extraction_method"`
	ConfidenceScore  float64          `json:"confidence_score"`
	ExtractedBy      string           `json:"extracted_by,omitempty"`
	ExtractedAt      *time.Time       `json:"extracted_at,omitempty"`
}

// MinHierarchyLevel and MaxHierarchyLevel bound the domain -> course -> module
// -> topic -> concept/skill tree. Level strictly increases by 1 from parent to
// child; level-1 nodes are roots and must have no parent.
const (
	MinHierarchyLevel = 1
	MaxHierarchyLevel = 5
)

// ConceptNode is one unit of learnable material at a specific abstraction level.
type ConceptNode struct {
	ID                   string      `json:"id"`
	Name                 string      `json:"name"`
	NodeType             NodeType    `json:"node_type"`
	HierarchyLevel       int         `json:"hierarchy_level"`
	ParentID             *string     `json:"parent_id,omitempty"`
	Description          string      `json:"description,omitempty"`
	Aliases              []string    `json:"aliases,omitempty"`
	Difficulty           Difficulty  `json:"difficulty,omitempty"`
	BloomLevel           BloomLevel  `json:"bloom_level,omitempty"`
	EstimatedTimeMinutes *int        `json:"estimated_time_minutes,omitempty"`
	ImportanceWeight     *float64    `json:"importance_weight,omitempty"`
	Provenance           *Provenance `json:"provenance,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// NodeWithChildren pairs a node with its immediate children.
type NodeWithChildren struct {
	Node     ConceptNode   `json:"node"`
	Children []ConceptNode `json:"children"`
}

// NodeQuery filters a text search over nodes. Query matches name, aliases and
// description, case-insensitively.
type NodeQuery struct {
	Query      string
	NodeType   NodeType
	BloomLevel BloomLevel
	Difficulty Difficulty
	Limit      int
}
