package graph

// Cypher statements used by the graph store. MERGE keys on stable ids so
// re-running a pipeline stage is idempotent.
const (
	CreateConstraintEntityID = `
		CREATE CONSTRAINT entity_id IF NOT EXISTS
		FOR (e:Entity) REQUIRE e.id IS UNIQUE`

	CreateConstraintCommunityID = `
		CREATE CONSTRAINT community_id IF NOT EXISTS
		FOR (c:Community) REQUIRE c.id IS UNIQUE`

	mergeEntity = `
		MERGE (e:Entity {id: $id})
		SET e.name = $name,
		    e.type = $type,
		    e.chunk_id = $chunk_id,
		    e.workspace_id = $workspace_id`

	mergeRelationship = `
		MATCH (a:Entity {id: $source_id}), (b:Entity {id: $target_id})
		MERGE (a)-[r:RELATED {type: $type}]->(b)
		SET r.chunk_id = $chunk_id`

	mergeCommunity = `
		MERGE (c:Community {id: $id})
		SET c.summary = $summary,
		    c.workspace_id = $workspace_id
		WITH c
		UNWIND $entity_ids AS eid
		MATCH (e:Entity {id: eid})
		MERGE (e)-[:MEMBER_OF]->(c)`

	mergeDocumentNode = `
		MERGE (d:Document {id: $id})
		SET d.workspace_id = $workspace_id,
		    d.filename = $filename
		WITH d
		MATCH (e:Entity {workspace_id: $workspace_id})
		WHERE e.chunk_id STARTS WITH $id
		MERGE (e)-[:FOUND_IN]->(d)`

	deleteWorkspaceGraph = `
		MATCH (n {workspace_id: $workspace_id})
		DETACH DELETE n`
)
