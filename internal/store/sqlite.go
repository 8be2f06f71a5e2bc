package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/agenthands/sage/internal/graph/model"
	"github.com/agenthands/sage/internal/logger"
)

// SQLiteStore is the primary backend: one sqlite file per user graph.
type SQLiteStore struct {
	db  *gorm.DB
	log *logger.Logger
}

type nodeRecord struct {
	ID                   string  `gorm:"primaryKey"`
	Name                 string  `gorm:"index:idx_node_name;not null"`
	NodeType             string  `gorm:"index:idx_node_type;not null"`
	HierarchyLevel       int     `gorm:"index:idx_node_level;not null"`
	ParentID             *string `gorm:"index:idx_node_parent"`
	Description          string
	Aliases              datatypes.JSON
	Difficulty           *string
	BloomLevel           *string
	EstimatedTimeMinutes *int
	ImportanceWeight     *float64
	Provenance           datatypes.JSON
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (nodeRecord) TableName() string { return "concept_nodes" }

type edgeRecord struct {
	ID               string  `gorm:"primaryKey"`
	SourceID         string  `gorm:"index:idx_edge_source;uniqueIndex:idx_edge_triple;not null"`
	TargetID         string  `gorm:"index:idx_edge_target;uniqueIndex:idx_edge_triple;not null"`
	RelationshipType string  `gorm:"index:idx_edge_type;uniqueIndex:idx_edge_triple;not null"`
	IsDirected       bool
	Strength         *string `gorm:"index:idx_edge_strength"`
	EvidenceText     string
	Confidence       float64
	Provenance       datatypes.JSON
	CreatedAt        time.Time
}

func (edgeRecord) TableName() string { return "relationship_edges" }

func NewSQLiteStore(path string, log *logger.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
	}
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &SQLiteStore{db: db, log: log.With("store", "sqlite")}, nil
}

// BuildIndices runs the schema migration; gorm creates the table indices and
// the unique (source, target, type) constraint from the struct tags.
func (s *SQLiteStore) BuildIndices(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&nodeRecord{}, &edgeRecord{})
}

func (s *SQLiteStore) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) InsertNode(ctx context.Context, n *model.ConceptNode) error {
	rec, err := toNodeRecord(n)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *SQLiteStore) GetNode(ctx context.Context, id string) (*model.ConceptNode, error) {
	var rec nodeRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromNodeRecord(&rec)
}

func (s *SQLiteStore) NodesByName(ctx context.Context, name string) ([]model.ConceptNode, error) {
	// Aliases are a JSON array of strings; the LIKE clause is a cheap
	// prefilter and the decoded aliases are re-checked exactly below.
	pattern := "%" + strings.ToLower(name) + "%"
	var recs []nodeRecord
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = ? OR LOWER(aliases) LIKE ?", strings.ToLower(name), pattern).
		Order("rowid").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(name)
	var out []model.ConceptNode
	for i := range recs {
		n, err := fromNodeRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		if strings.ToLower(n.Name) == want {
			out = append(out, *n)
			continue
		}
		for _, alias := range n.Aliases {
			if strings.ToLower(alias) == want {
				out = append(out, *n)
				break
			}
		}
	}
	return out, nil
}

func (s *SQLiteStore) UpdateNode(ctx context.Context, n *model.ConceptNode) error {
	rec, err := toNodeRecord(n)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&nodeRecord{}).Where("id = ?", n.ID).
		Select("*").Omit("id", "created_at").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteNodes(ctx context.Context, ids []string) (int, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id IN ?", ids).Delete(&nodeRecord{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return int(removed), err
}

func (s *SQLiteStore) Children(ctx context.Context, parentID string) ([]model.ConceptNode, error) {
	var recs []nodeRecord
	err := s.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("rowid").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return fromNodeRecords(recs)
}

func (s *SQLiteStore) SearchNodes(ctx context.Context, q model.NodeQuery) ([]model.ConceptNode, error) {
	tx := s.db.WithContext(ctx).Model(&nodeRecord{})
	if q.Query != "" {
		pattern := "%" + strings.ToLower(q.Query) + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(aliases) LIKE ?",
			pattern, pattern, pattern)
	}
	if q.NodeType != "" {
		tx = tx.Where("node_type = ?", string(q.NodeType))
	}
	if q.BloomLevel != "" {
		tx = tx.Where("bloom_level = ?", string(q.BloomLevel))
	}
	if q.Difficulty != "" {
		tx = tx.Where("difficulty = ?", string(q.Difficulty))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	var recs []nodeRecord
	if err := tx.Order("rowid").Find(&recs).Error; err != nil {
		return nil, err
	}
	return fromNodeRecords(recs)
}

func (s *SQLiteStore) InsertEdge(ctx context.Context, e *model.RelationshipEdge) error {
	rec, err := toEdgeRecord(e)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *SQLiteStore) GetEdge(ctx context.Context, id string) (*model.RelationshipEdge, error) {
	var rec edgeRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromEdgeRecord(&rec)
}

func (s *SQLiteStore) FindEdge(ctx context.Context, sourceID, targetID string, t model.RelationshipType) (*model.RelationshipEdge, error) {
	var rec edgeRecord
	err := s.db.WithContext(ctx).
		First(&rec, "source_id = ? AND target_id = ? AND relationship_type = ?",
			sourceID, targetID, string(t)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromEdgeRecord(&rec)
}

func (s *SQLiteStore) ListEdges(ctx context.Context, f model.EdgeFilter) ([]model.RelationshipEdge, error) {
	tx := s.db.WithContext(ctx).Model(&edgeRecord{})
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		tx = tx.Where("relationship_type IN ?", types)
	}
	if f.Strength != "" {
		tx = tx.Where("strength = ?", string(f.Strength))
	}
	if f.NodeID != "" {
		switch f.Direction {
		case model.DirectionOutgoing:
			tx = tx.Where("source_id = ? OR (is_directed = ? AND target_id = ?)", f.NodeID, false, f.NodeID)
		case model.DirectionIncoming:
			tx = tx.Where("target_id = ? OR (is_directed = ? AND source_id = ?)", f.NodeID, false, f.NodeID)
		default:
			tx = tx.Where("source_id = ? OR target_id = ?", f.NodeID, f.NodeID)
		}
	}
	var recs []edgeRecord
	if err := tx.Order("rowid").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]model.RelationshipEdge, 0, len(recs))
	for i := range recs {
		e, err := fromEdgeRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateEdge(ctx context.Context, e *model.RelationshipEdge) error {
	rec, err := toEdgeRecord(e)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&edgeRecord{}).Where("id = ?", e.ID).
		Select("confidence", "evidence_text", "strength", "provenance").Updates(rec)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteEdge(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&edgeRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (s *SQLiteStore) DeleteEdgesTouching(ctx context.Context, nodeIDs []string) (int, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("source_id IN ? OR target_id IN ?", nodeIDs, nodeIDs).Delete(&edgeRecord{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected
		return nil
	})
	return int(removed), err
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.GraphStats, error) {
	stats := &model.GraphStats{
		NodesByType:  make(map[model.NodeType]int),
		NodesByLevel: make(map[int]int),
		EdgesByType:  make(map[model.RelationshipType]int),
	}

	type typeCount struct {
		Key   string
		Count int
	}
	var nodeTypes []typeCount
	err := s.db.WithContext(ctx).Model(&nodeRecord{}).
		Select("node_type AS key, COUNT(*) AS count").Group("node_type").Scan(&nodeTypes).Error
	if err != nil {
		return nil, err
	}
	for _, tc := range nodeTypes {
		stats.NodesByType[model.NodeType(tc.Key)] = tc.Count
		stats.TotalNodes += tc.Count
	}

	type levelCount struct {
		Level int
		Count int
	}
	var levels []levelCount
	err = s.db.WithContext(ctx).Model(&nodeRecord{}).
		Select("hierarchy_level AS level, COUNT(*) AS count").Group("hierarchy_level").Scan(&levels).Error
	if err != nil {
		return nil, err
	}
	for _, lc := range levels {
		stats.NodesByLevel[lc.Level] = lc.Count
	}

	var edgeTypes []typeCount
	err = s.db.WithContext(ctx).Model(&edgeRecord{}).
		Select("relationship_type AS key, COUNT(*) AS count").Group("relationship_type").Scan(&edgeTypes).Error
	if err != nil {
		return nil, err
	}
	for _, tc := range edgeTypes {
		stats.EdgesByType[model.RelationshipType(tc.Key)] = tc.Count
		stats.TotalEdges += tc.Count
	}

	var taxonomized, withBloom, withDifficulty, withTime int64
	base := func() *gorm.DB { return s.db.WithContext(ctx).Model(&nodeRecord{}) }
	if err := base().Where("node_type IN ?", []string{"concept", "skill"}).Count(&taxonomized).Error; err != nil {
		return nil, err
	}
	if err := base().Where("node_type IN ? AND bloom_level IS NOT NULL", []string{"concept", "skill"}).Count(&withBloom).Error; err != nil {
		return nil, err
	}
	if err := base().Where("difficulty IS NOT NULL").Count(&withDifficulty).Error; err != nil {
		return nil, err
	}
	if err := base().Where("estimated_time_minutes IS NOT NULL").Count(&withTime).Error; err != nil {
		return nil, err
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

func toNodeRecord(n *model.ConceptNode) (*nodeRecord, error) {
	aliases, err := json.Marshal(n.Aliases)
	if err != nil {
		return nil, err
	}
	rec := &nodeRecord{
		ID:                   n.ID,
		Name:                 n.Name,
		NodeType:             string(n.NodeType),
		HierarchyLevel:       n.HierarchyLevel,
		ParentID:             n.ParentID,
		Description:          n.Description,
		Aliases:              datatypes.JSON(aliases),
		EstimatedTimeMinutes: n.EstimatedTimeMinutes,
		ImportanceWeight:     n.ImportanceWeight,
		CreatedAt:            n.CreatedAt,
		UpdatedAt:            n.UpdatedAt,
	}
	if n.Difficulty != "" {
		d := string(n.Difficulty)
		rec.Difficulty = &d
	}
	if n.BloomLevel != "" {
		b := string(n.BloomLevel)
		rec.BloomLevel = &b
	}
	if n.Provenance != nil {
		p, err := json.Marshal(n.Provenance)
		if err != nil {
			return nil, err
		}
		rec.Provenance = datatypes.JSON(p)
	}
	return rec, nil
}

func fromNodeRecord(rec *nodeRecord) (*model.ConceptNode, error) {
	n := &model.ConceptNode{
		ID:                   rec.ID,
		Name:                 rec.Name,
		NodeType:             model.NodeType(rec.NodeType),
		HierarchyLevel:       rec.HierarchyLevel,
		ParentID:             rec.ParentID,
		Description:          rec.Description,
		EstimatedTimeMinutes: rec.EstimatedTimeMinutes,
		ImportanceWeight:     rec.ImportanceWeight,
		CreatedAt:            rec.CreatedAt,
		UpdatedAt:            rec.UpdatedAt,
	}
	if rec.Difficulty != nil {
		n.Difficulty = model.Difficulty(*rec.Difficulty)
	}
	if rec.BloomLevel != nil {
		n.BloomLevel = model.BloomLevel(*rec.BloomLevel)
	}
	if len(rec.Aliases) > 0 {
		if err := json.Unmarshal(rec.Aliases, &n.Aliases); err != nil {
			return nil, err
		}
	}
	if len(rec.Provenance) > 0 {
		n.Provenance = &model.Provenance{}
		if err := json.Unmarshal(rec.Provenance, n.Provenance); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func fromNodeRecords(recs []nodeRecord) ([]model.ConceptNode, error) {
	out := make([]model.ConceptNode, 0, len(recs))
	for i := range recs {
		n, err := fromNodeRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, nil
}

func toEdgeRecord(e *model.RelationshipEdge) (*edgeRecord, error) {
	rec := &edgeRecord{
		ID:               e.ID,
		SourceID:         e.SourceID,
		TargetID:         e.TargetID,
		RelationshipType: string(e.RelationshipType),
		IsDirected:       e.IsDirected,
		EvidenceText:     e.EvidenceText,
		Confidence:       e.Confidence,
		CreatedAt:        e.CreatedAt,
	}
	if e.Strength != "" {
		st := string(e.Strength)
		rec.Strength = &st
	}
	if e.Provenance != nil {
		p, err := json.Marshal(e.Provenance)
		if err != nil {
			return nil, err
		}
		rec.Provenance = datatypes.JSON(p)
	}
	return rec, nil
}

func fromEdgeRecord(rec *edgeRecord) (*model.RelationshipEdge, error) {
	e := &model.RelationshipEdge{
		ID:               rec.ID,
		SourceID:         rec.SourceID,
		TargetID:         rec.TargetID,
		RelationshipType: model.RelationshipType(rec.RelationshipType),
		IsDirected:       rec.IsDirected,
		EvidenceText:     rec.EvidenceText,
		Confidence:       rec.Confidence,
		CreatedAt:        rec.CreatedAt,
	}
	if rec.Strength != nil {
		e.Strength = model.PrerequisiteStrength(*rec.Strength)
	}
	if len(rec.Provenance) > 0 {
		e.Provenance = &model.Provenance{}
		if err := json.Unmarshal(rec.Provenance, e.Provenance); err != nil {
			return nil, err
		}
	}
	return e, nil
}
