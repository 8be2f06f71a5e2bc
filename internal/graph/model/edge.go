package model

import "time"

type RelationshipType string

const (
	RelPrerequisite RelationshipType = "prerequisite"
	RelEnables      RelationshipType = "enables"
	RelPartOf       RelationshipType = "part_of"
	RelContains     RelationshipType = "contains"
	RelSimilarTo    RelationshipType = "similar_to"
	RelRelatedTo    RelationshipType = "related_to"
	RelContradicts  RelationshipType = "contradicts"
	RelExemplifies  RelationshipType = "exemplifies"
	RelAppliesTo    RelationshipType = "applies_to"
	RelExtends      RelationshipType = "extends"
	RelTeaches      RelationshipType = "teaches"
	RelAssesses     RelationshipType = "assesses"
)

func (t RelationshipType) Valid() bool {
	switch t {
	case RelPrerequisite, RelEnables, RelPartOf, RelContains, RelSimilarTo, RelRelatedTo,
		RelContradicts, RelExemplifies, RelAppliesTo, RelExtends, RelTeaches, RelAssesses:
		return true
	}
	return false
}

// Symmetric reports whether the type has no meaningful direction. Symmetric
// edges are stored with IsDirected = false.
func (t RelationshipType) Symmetric() bool {
	switch t {
	case RelSimilarTo, RelRelatedTo, RelContradicts:
		return true
	}
	return false
}

// PrerequisiteStrength is meaningful only on prerequisite edges. Hard
// prerequisites must never form a cycle; soft and recommended ones may.
type PrerequisiteStrength string

const (
	StrengthHard        PrerequisiteStrength = "hard"
	StrengthSoft        PrerequisiteStrength = "soft"
	StrengthRecommended PrerequisiteStrength = "recommended"
)

func (s PrerequisiteStrength) Valid() bool {
	switch s {
	case StrengthHard, StrengthSoft, StrengthRecommended:
		return true
	}
	return false
}

// RelationshipEdge is a typed connection between two nodes. A prerequisite
// edge points from the prerequisite to the dependent concept; an enables edge
// points from the enabler to what it unlocks. The (source, target, type)
// triple is unique across the graph.
type RelationshipEdge struct {
	ID               string               `json:"id"`
	SourceID         string               `json:"source_id"`
	TargetID         string               `json:"target_id"`
	RelationshipType RelationshipType     `json:"relationship_type"`
	IsDirected       bool                 `json:"is_directed"`
	Strength         PrerequisiteStrength `json:"strength,omitempty"`
	EvidenceText     string               `json:"evidence_text,omitempty"`
	Confidence       float64              `json:"confidence"`
	Provenance       *Provenance          `json:"provenance,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
}

// EdgeDirection selects which incident edges a relationship query returns.
type EdgeDirection string

const (
	DirectionOutgoing EdgeDirection = "outgoing"
	DirectionIncoming EdgeDirection = "incoming"
	DirectionBoth     EdgeDirection = "both"
)

func (d EdgeDirection) Valid() bool {
	switch d {
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return true
	}
	return false
}

// EdgeFilter narrows edge listings. Zero values mean "no filter"; an empty
// NodeID selects edges across the whole graph, and Direction only applies
// when NodeID is set.
type EdgeFilter struct {
	NodeID    string
	Types     []RelationshipType
	Strength  PrerequisiteStrength
	Direction EdgeDirection
}

// MatchesType reports whether t passes the filter's type list.
func (f EdgeFilter) MatchesType(t RelationshipType) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, want := range f.Types {
		if t == want {
			return true
		}
	}
	return false
}
