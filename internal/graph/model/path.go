package model

// Prerequisite is one entry of a prerequisite closure. Depth is the minimum
// number of prerequisite hops from the queried concept; depth 1 entries are
// direct prerequisites.
type Prerequisite struct {
	Node     ConceptNode          `json:"node"`
	Strength PrerequisiteStrength `json:"strength,omitempty"`
	Depth    int                  `json:"depth"`
	Direct   bool                 `json:"direct"`
}

// LearningPath is an ordered concept sequence from a start concept to a
// target, following learning-order edges. TotalTimeMinutes sums the time
// estimates of every node on the path that carries one.
type LearningPath struct {
	Nodes                 []ConceptNode `json:"nodes"`
	TotalTimeMinutes      int           `json:"total_time_minutes"`
	DifficultyProgression []Difficulty  `json:"difficulty_progression,omitempty"`
}

// GraphStats summarizes graph size and metadata coverage. Coverage ratios are
// fractions in [0,1]; BloomCoverage is computed over concept and skill nodes
// only, the two types the taxonomy applies to.
type GraphStats struct {
	TotalNodes         int                      `json:"total_nodes"`
	TotalEdges         int                      `json:"total_edges"`
	NodesByType        map[NodeType]int         `json:"nodes_by_type"`
	NodesByLevel       map[int]int              `json:"nodes_by_level"`
	EdgesByType        map[RelationshipType]int `json:"edges_by_type"`
	BloomCoverage      float64                  `json:"bloom_coverage"`
	DifficultyCoverage float64                  `json:"difficulty_coverage"`
	TimeCoverage       float64                  `json:"time_coverage"`
}
