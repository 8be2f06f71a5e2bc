package store

// Cypher used by the Memgraph backend. Nodes are :Concept vertices and edges
// are :RELATES relationships carrying their own properties; provenance is a
// JSON string property because graph properties cannot nest maps.
const (
	createNodeQuery = `
		CREATE (n:Concept {
			id: $id,
			name: $name,
			node_type: $node_type,
			hierarchy_level: $hierarchy_level,
			parent_id: $parent_id,
			description: $description,
			aliases: $aliases,
			difficulty: $difficulty,
			bloom_level: $bloom_level,
			estimated_time_minutes: $estimated_time_minutes,
			importance_weight: $importance_weight,
			provenance: $provenance,
			created_at: $created_at,
			updated_at: $updated_at
		})
		RETURN n.id AS id
	`

	getNodeQuery = `
		MATCH (n:Concept {id: $id})
		RETURN ` + nodeReturnFields

	nodesByNameQuery = `
		MATCH (n:Concept)
		WHERE toLower(n.name) = $name
		   OR any(alias IN n.aliases WHERE toLower(alias) = $name)
		RETURN ` + nodeReturnFields + `
		ORDER BY n.created_at
	`

	updateNodeQuery = `
		MATCH (n:Concept {id: $id})
		SET n.name = $name,
			n.node_type = $node_type,
			n.hierarchy_level = $hierarchy_level,
			n.parent_id = $parent_id,
			n.description = $description,
			n.aliases = $aliases,
			n.difficulty = $difficulty,
			n.bloom_level = $bloom_level,
			n.estimated_time_minutes = $estimated_time_minutes,
			n.importance_weight = $importance_weight,
			n.provenance = $provenance,
			n.updated_at = $updated_at
		RETURN n.id AS id
	`

	deleteNodesQuery = `
		MATCH (n:Concept)
		WHERE n.id IN $ids
		DETACH DELETE n
		RETURN count(n) AS removed
	`

	childrenQuery = `
		MATCH (n:Concept {parent_id: $parent_id})
		RETURN ` + nodeReturnFields + `
		ORDER BY n.created_at
	`

	nodeReturnFields = `
		n.id AS id, n.name AS name, n.node_type AS node_type,
		n.hierarchy_level AS hierarchy_level, n.parent_id AS parent_id,
		n.description AS description, n.aliases AS aliases,
		n.difficulty AS difficulty, n.bloom_level AS bloom_level,
		n.estimated_time_minutes AS estimated_time_minutes,
		n.importance_weight AS importance_weight, n.provenance AS provenance,
		n.created_at AS created_at, n.updated_at AS updated_at`

	createEdgeQuery = `
		MATCH (source:Concept {id: $source_id})
		MATCH (target:Concept {id: $target_id})
		CREATE (source)-[r:RELATES {
			id: $id,
			relationship_type: $relationship_type,
			is_directed: $is_directed,
			strength: $strength,
			evidence_text: $evidence_text,
			confidence: $confidence,
			provenance: $provenance,
			created_at: $created_at
		}]->(target)
		RETURN r.id AS id
	`

	getEdgeQuery = `
		MATCH (s:Concept)-[r:RELATES {id: $id}]->(t:Concept)
		RETURN ` + edgeReturnFields

	findEdgeQuery = `
		MATCH (s:Concept {id: $source_id})-[r:RELATES {relationship_type: $relationship_type}]->(t:Concept {id: $target_id})
		RETURN ` + edgeReturnFields

	updateEdgeQuery = `
		MATCH ()-[r:RELATES {id: $id}]->()
		SET r.confidence = $confidence,
			r.evidence_text = $evidence_text,
			r.strength = $strength,
			r.provenance = $provenance
		RETURN r.id AS id
	`

	deleteEdgeQuery = `
		MATCH ()-[r:RELATES {id: $id}]->()
		DELETE r
		RETURN count(r) AS removed
	`

	deleteEdgesTouchingQuery = `
		MATCH (s:Concept)-[r:RELATES]->(t:Concept)
		WHERE s.id IN $ids OR t.id IN $ids
		DELETE r
		RETURN count(r) AS removed
	`

	edgeReturnFields = `
		r.id AS id, s.id AS source_id, t.id AS target_id,
		r.relationship_type AS relationship_type, r.is_directed AS is_directed,
		r.strength AS strength, r.evidence_text AS evidence_text,
		r.confidence AS confidence, r.provenance AS provenance,
		r.created_at AS created_at`

	nodeStatsQuery = `
		MATCH (n:Concept)
		RETURN n.node_type AS node_type, n.hierarchy_level AS hierarchy_level,
			n.bloom_level AS bloom_level, n.difficulty AS difficulty,
			n.estimated_time_minutes AS estimated_time_minutes
	`

	edgeStatsQuery = `
		MATCH ()-[r:RELATES]->()
		RETURN r.relationship_type AS relationship_type
	`
)

var memgraphIndexQueries = []string{
	"CREATE INDEX ON :Concept(id);",
	"CREATE INDEX ON :Concept(name);",
	"CREATE INDEX ON :Concept(parent_id);",
	"CREATE INDEX ON :Concept(hierarchy_level);",
}
