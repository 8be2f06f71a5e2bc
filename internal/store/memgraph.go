package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/logger"
)

// timeLayout is fixed-width RFC3339 with nanoseconds so stored timestamps
// sort lexicographically; edge and node listings ORDER BY created_at.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// MemgraphStore is the graph-database backend, usable against Memgraph or
// Neo4j over bolt.
type MemgraphStore struct {
	driver neo4j.DriverWithContext
	log    *logger.Logger
}

func NewMemgraphStore(uri, username, password string, log *logger.Logger) (*MemgraphStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(context.Background()); err != nil {
		return nil, err
	}
	log.Info("connected to memgraph", "uri", uri)
	return &MemgraphStore{driver: driver, log: log.With("store", "memgraph")}, nil
}

func (s *MemgraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *MemgraphStore) BuildIndices(ctx context.Context) error {
	for _, q := range memgraphIndexQueries {
		if _, err := s.run(ctx, q, nil); err != nil {
			// Index may already exist.
			s.log.Warn("index creation failed", "query", q, "error", err)
		}
	}
	return nil
}

func (s *MemgraphStore) run(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (s *MemgraphStore) InsertNode(ctx context.Context, n *model.ConceptNode) error {
	params, err := nodeParams(n)
	if err != nil {
		return err
	}
	_, err = s.run(ctx, createNodeQuery, params)
	return err
}

func (s *MemgraphStore) GetNode(ctx context.Context, id string) (*model.ConceptNode, error) {
	res, err := s.run(ctx, getNodeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrRecordNotFound
	}
	return nodeFromRecord(res.Records[0])
}

func (s *MemgraphStore) NodesByName(ctx context.Context, name string) ([]model.ConceptNode, error) {
	res, err := s.run(ctx, nodesByNameQuery, map[string]interface{}{"name": strings.ToLower(name)})
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(res.Records)
}

func (s *MemgraphStore) UpdateNode(ctx context.Context, n *model.ConceptNode) error {
	params, err := nodeParams(n)
	if err != nil {
		return err
	}
	res, err := s.run(ctx, updateNodeQuery, params)
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MemgraphStore) DeleteNodes(ctx context.Context, ids []string) (int, error) {
	res, err := s.run(ctx, deleteNodesQuery, map[string]interface{}{"ids": ids})
	if err != nil {
		return 0, err
	}
	return countFromRecords(res.Records), nil
}

func (s *MemgraphStore) Children(ctx context.Context, parentID string) ([]model.ConceptNode, error) {
	res, err := s.run(ctx, childrenQuery, map[string]interface{}{"parent_id": parentID})
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(res.Records)
}

func (s *MemgraphStore) SearchNodes(ctx context.Context, q model.NodeQuery) ([]model.ConceptNode, error) {
	var clauses []string
	params := map[string]interface{}{}
	if q.Query != "" {
		clauses = append(clauses,
			"(toLower(n.name) CONTAINS $query OR toLower(n.description) CONTAINS $query OR any(alias IN n.aliases WHERE toLower(alias) CONTAINS $query))")
		params["query"] = strings.ToLower(q.Query)
	}
	if q.NodeType != "" {
		clauses = append(clauses, "n.node_type = $node_type")
		params["node_type"] = string(q.NodeType)
	}
	if q.BloomLevel != "" {
		clauses = append(clauses, "n.bloom_level = $bloom_level")
		params["bloom_level"] = string(q.BloomLevel)
	}
	if q.Difficulty != "" {
		clauses = append(clauses, "n.difficulty = $difficulty")
		params["difficulty"] = string(q.Difficulty)
	}

	cypher := "MATCH (n:Concept)"
	if len(clauses) > 0 {
		cypher += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	cypher += "\nRETURN " + nodeReturnFields + "\nORDER BY n.created_at"
	if q.Limit > 0 {
		cypher += "\nLIMIT $limit"
		params["limit"] = q.Limit
	}

	res, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	return nodesFromRecords(res.Records)
}

func (s *MemgraphStore) InsertEdge(ctx context.Context, e *model.RelationshipEdge) error {
	params, err := edgeParams(e)
	if err != nil {
		return err
	}
	res, err := s.run(ctx, createEdgeQuery, params)
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("edge endpoints missing: %s or %s", e.SourceID, e.TargetID)
	}
	return nil
}

func (s *MemgraphStore) GetEdge(ctx context.Context, id string) (*model.RelationshipEdge, error) {
	res, err := s.run(ctx, getEdgeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrRecordNotFound
	}
	return edgeFromRecord(res.Records[0])
}

func (s *MemgraphStore) FindEdge(ctx context.Context, sourceID, targetID string, t model.RelationshipType) (*model.RelationshipEdge, error) {
	res, err := s.run(ctx, findEdgeQuery, map[string]interface{}{
		"source_id":         sourceID,
		"target_id":         targetID,
		"relationship_type": string(t),
	})
	if err != nil {
		return nil, err
	}
	if len(res.Records) == 0 {
		return nil, ErrRecordNotFound
	}
	return edgeFromRecord(res.Records[0])
}

func (s *MemgraphStore) ListEdges(ctx context.Context, f model.EdgeFilter) ([]model.RelationshipEdge, error) {
	var clauses []string
	params := map[string]interface{}{}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		clauses = append(clauses, "r.relationship_type IN $types")
		params["types"] = types
	}
	if f.Strength != "" {
		clauses = append(clauses, "r.strength = $strength")
		params["strength"] = string(f.Strength)
	}
	if f.NodeID != "" {
		params["node_id"] = f.NodeID
		switch f.Direction {
		case model.DirectionOutgoing:
			clauses = append(clauses, "(s.id = $node_id OR (NOT r.is_directed AND t.id = $node_id))")
		case model.DirectionIncoming:
			clauses = append(clauses, "(t.id = $node_id OR (NOT r.is_directed AND s.id = $node_id))")
		default:
			clauses = append(clauses, "(s.id = $node_id OR t.id = $node_id)")
		}
	}

	cypher := "MATCH (s:Concept)-[r:RELATES]->(t:Concept)"
	if len(clauses) > 0 {
		cypher += "\nWHERE " + strings.Join(clauses, " AND ")
	}
	cypher += "\nRETURN " + edgeReturnFields + "\nORDER BY r.created_at"

	res, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	out := make([]model.RelationshipEdge, 0, len(res.Records))
	for _, rec := range res.Records {
		e, err := edgeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *MemgraphStore) UpdateEdge(ctx context.Context, e *model.RelationshipEdge) error {
	provenance, err := provenanceJSON(e.Provenance)
	if err != nil {
		return err
	}
	res, err := s.run(ctx, updateEdgeQuery, map[string]interface{}{
		"id":            e.ID,
		"confidence":    e.Confidence,
		"evidence_text": e.EvidenceText,
		"strength":      nullableString(string(e.Strength)),
		"provenance":    provenance,
	})
	if err != nil {
		return err
	}
	if len(res.Records) == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MemgraphStore) DeleteEdge(ctx context.Context, id string) error {
	res, err := s.run(ctx, deleteEdgeQuery, map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	if countFromRecords(res.Records) == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *MemgraphStore) DeleteEdgesTouching(ctx context.Context, nodeIDs []string) (int, error) {
	res, err := s.run(ctx, deleteEdgesTouchingQuery, map[string]interface{}{"ids": nodeIDs})
	if err != nil {
		return 0, err
	}
	return countFromRecords(res.Records), nil
}

func (s *MemgraphStore) Stats(ctx context.Context) (*model.GraphStats, error) {
	stats := &model.GraphStats{
		NodesByType:  make(map[model.NodeType]int),
		NodesByLevel: make(map[int]int),
		EdgesByType:  make(map[model.RelationshipType]int),
	}

	nodeRes, err := s.run(ctx, nodeStatsQuery, nil)
	if err != nil {
		return nil, err
	}
	var taxonomized, withBloom, withDifficulty, withTime int
	for _, rec := range nodeRes.Records {
		nodeType := model.NodeType(stringValue(rec, "node_type"))
		stats.NodesByType[nodeType]++
		stats.NodesByLevel[int(intValue(rec, "hierarchy_level"))]++
		stats.TotalNodes++
		bloom := stringValue(rec, "bloom_level")
		if nodeType == model.NodeConcept || nodeType == model.NodeSkill {
			taxonomized++
			if bloom != "" {
				withBloom++
			}
		}
		if stringValue(rec, "difficulty") != "" {
			withDifficulty++
		}
		if v, ok := rec.Get("estimated_time_minutes"); ok && v != nil {
			withTime++
		}
	}

	edgeRes, err := s.run(ctx, edgeStatsQuery, nil)
	if err != nil {
		return nil, err
	}
	for _, rec := range edgeRes.Records {
		stats.EdgesByType[model.RelationshipType(stringValue(rec, "relationship_type"))]++
		stats.TotalEdges++
	}

	if taxonomized > 0 {
		stats.BloomCoverage = float64(withBloom) / float64(taxonomized)
	}
	if stats.TotalNodes > 0 {
		stats.DifficultyCoverage = float64(withDifficulty) / float64(stats.TotalNodes)
		stats.TimeCoverage = float64(withTime) / float64(stats.TotalNodes)
	}
	return stats, nil
}

func nodeParams(n *model.ConceptNode) (map[string]interface{}, error) {
	provenance, err := provenanceJSON(n.Provenance)
	if err != nil {
		return nil, err
	}
	aliases := make([]interface{}, len(n.Aliases))
	for i, a := range n.Aliases {
		aliases[i] = a
	}
	params := map[string]interface{}{
		"id":                     n.ID,
		"name":                   n.Name,
		"node_type":              string(n.NodeType),
		"hierarchy_level":        n.HierarchyLevel,
		"parent_id":              nil,
		"description":            n.Description,
		"aliases":                aliases,
		"difficulty":             nullableString(string(n.Difficulty)),
		"bloom_level":            nullableString(string(n.BloomLevel)),
		"estimated_time_minutes": nil,
		"importance_weight":      nil,
		"provenance":             provenance,
		"created_at":             n.CreatedAt.UTC().Format(timeLayout),
		"updated_at":             n.UpdatedAt.UTC().Format(timeLayout),
	}
	if n.ParentID != nil {
		params["parent_id"] = *n.ParentID
	}
	if n.EstimatedTimeMinutes != nil {
		params["estimated_time_minutes"] = *n.EstimatedTimeMinutes
	}
	if n.ImportanceWeight != nil {
		params["importance_weight"] = *n.ImportanceWeight
	}
	return params, nil
}

func edgeParams(e *model.RelationshipEdge) (map[string]interface{}, error) {
	provenance, err := provenanceJSON(e.Provenance)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":                e.ID,
		"source_id":         e.SourceID,
		"target_id":         e.TargetID,
		"relationship_type": string(e.RelationshipType),
		"is_directed":       e.IsDirected,
		"strength":          nullableString(string(e.Strength)),
		"evidence_text":     e.EvidenceText,
		"confidence":        e.Confidence,
		"provenance":        provenance,
		"created_at":        e.CreatedAt.UTC().Format(timeLayout),
	}, nil
}

func nodeFromRecord(rec *neo4j.Record) (*model.ConceptNode, error) {
	n := &model.ConceptNode{
		ID:             stringValue(rec, "id"),
		Name:           stringValue(rec, "name"),
		NodeType:       model.NodeType(stringValue(rec, "node_type")),
		HierarchyLevel: int(intValue(rec, "hierarchy_level")),
		Description:    stringValue(rec, "description"),
		Difficulty:     model.Difficulty(stringValue(rec, "difficulty")),
		BloomLevel:     model.BloomLevel(stringValue(rec, "bloom_level")),
	}
	if v, ok := rec.Get("parent_id"); ok && v != nil {
		parentID := v.(string)
		n.ParentID = &parentID
	}
	if v, ok := rec.Get("aliases"); ok && v != nil {
		for _, item := range v.([]interface{}) {
			n.Aliases = append(n.Aliases, item.(string))
		}
	}
	if v, ok := rec.Get("estimated_time_minutes"); ok && v != nil {
		minutes := int(v.(int64))
		n.EstimatedTimeMinutes = &minutes
	}
	if v, ok := rec.Get("importance_weight"); ok && v != nil {
		weight := v.(float64)
		n.ImportanceWeight = &weight
	}
	if err := decodeProvenance(stringValue(rec, "provenance"), &n.Provenance); err != nil {
		return nil, err
	}
	var err error
	if n.CreatedAt, err = timeValue(rec, "created_at"); err != nil {
		return nil, err
	}
	if n.UpdatedAt, err = timeValue(rec, "updated_at"); err != nil {
		return nil, err
	}
	return n, nil
}

func nodesFromRecords(records []*neo4j.Record) ([]model.ConceptNode, error) {
	out := make([]model.ConceptNode, 0, len(records))
	for _, rec := range records {
		n, err := nodeFromRecord(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

func edgeFromRecord(rec *neo4j.Record) (*model.RelationshipEdge, error) {
	e := &model.RelationshipEdge{
		ID:               stringValue(rec, "id"),
		SourceID:         stringValue(rec, "source_id"),
		TargetID:         stringValue(rec, "target_id"),
		RelationshipType: model.RelationshipType(stringValue(rec, "relationship_type")),
		Strength:         model.PrerequisiteStrength(stringValue(rec, "strength")),
		EvidenceText:     stringValue(rec, "evidence_text"),
	}
	if v, ok := rec.Get("is_directed"); ok && v != nil {
		e.IsDirected = v.(bool)
	}
	if v, ok := rec.Get("confidence"); ok && v != nil {
		e.Confidence = v.(float64)
	}
	if err := decodeProvenance(stringValue(rec, "provenance"), &e.Provenance); err != nil {
		return nil, err
	}
	var err error
	if e.CreatedAt, err = timeValue(rec, "created_at"); err != nil {
		return nil, err
	}
	return e, nil
}

func provenanceJSON(p *model.Provenance) (interface{}, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func decodeProvenance(raw string, out **model.Provenance) error {
	if raw == "" {
		return nil
	}
	p := &model.Provenance{}
	if err := json.Unmarshal([]byte(raw), p); err != nil {
		return err
	}
	*out = p
	return nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func stringValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func intValue(rec *neo4j.Record, key string) int64 {
	if v, ok := rec.Get(key); ok && v != nil {
		if i, ok := v.(int64); ok {
			return i
		}
	}
	return 0
}

func timeValue(rec *neo4j.Record, key string) (time.Time, error) {
	raw := stringValue(rec, key)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, raw)
}

func countFromRecords(records []*neo4j.Record) int {
	if len(records) == 0 {
		return 0
	}
	if v, ok := records[0].Get("removed"); ok && v != nil {
		if i, ok := v.(int64); ok {
			return int(i)
		}
	}
	return 0
}
