package model

// ConceptDraft is the shape the extraction LLM returns for one concept,
// before validation and persistence. Parent is a name reference resolved
// against the same batch or the existing graph.
type ConceptDraft struct {
	Name                 string   `json:"name"`
	NodeType             string   `json:"node_type"`
	HierarchyLevel       int      `json:"hierarchy_level"`
	Parent               string   `json:"parent,omitempty"`
	Description          string   `json:"description,omitempty"`
	Aliases              []string `json:"aliases,omitempty"`
	Difficulty           string   `json:"difficulty,omitempty"`
	BloomLevel           string   `json:"bloom_level,omitempty"`
	EstimatedTimeMinutes *int     `json:"estimated_time_minutes,omitempty"`
	Confidence           float64  `json:"confidence"`
}

type ConceptDrafts struct {
	Concepts []ConceptDraft `json:"concepts"`
}

// RelationshipDraft references concepts by name; the producer resolves names
// to ids before calling the engine.
type RelationshipDraft struct {
	Source           string  `json:"source"`
	Target           string  `json:"target"`
	RelationshipType string  `json:"relationship_type"`
	Strength         string  `json:"strength,omitempty"`
	Evidence         string  `json:"evidence,omitempty"`
	Confidence       float64 `json:"confidence"`
}

type RelationshipDrafts struct {
	Relationships []RelationshipDraft `json:"relationships"`
}
