// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AleutianAI/atlas/services/knowledge"
)

// ErrNotConfigured is returned by Open when the connection environment
// is incomplete. The caller runs without a graph database.
var ErrNotConfigured = errors.New("store: graph database not configured")

// Config holds graph database connection settings.
type Config struct {
	// URI is the bolt/neo4j connection URI.
	URI string

	// User and Password authenticate the connection.
	User     string
	Password string

	// Database is the database name. Defaults to "repos".
	Database string

	// MaxRetries bounds connection attempts. Defaults to 3.
	MaxRetries int

	// RetryDelay is the base backoff; attempt n waits delay·2^n.
	// Defaults to 1s.
	RetryDelay time.Duration

	// BatchSize is the number of rows per upsert transaction.
	// Defaults to 1000.
	BatchSize int
}

// ConfigFromEnv reads NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD,
// NEO4J_DATABASE, NEO4J_MAX_RETRIES, NEO4J_RETRY_DELAY (seconds), and
// NEO4J_BATCH_SIZE.
func ConfigFromEnv() Config {
	cfg := Config{
		URI:        os.Getenv("NEO4J_URI"),
		User:       os.Getenv("NEO4J_USER"),
		Password:   os.Getenv("NEO4J_PASSWORD"),
		Database:   getEnvString("NEO4J_DATABASE", "repos"),
		MaxRetries: getEnvInt("NEO4J_MAX_RETRIES", 3),
		RetryDelay: time.Duration(getEnvFloat("NEO4J_RETRY_DELAY", 1.0) * float64(time.Second)),
		BatchSize:  getEnvInt("NEO4J_BATCH_SIZE", 1000),
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Database == "" {
		c.Database = "repos"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1000
	}
}

// GraphStore persists knowledge graphs in Neo4j.
//
// Node layout: Package, Project, Metadata{projectId}, Module, Symbol,
// Endpoint, Feature, each keyed by id. Project connects to its parts
// with HAS_MODULE / HAS_SYMBOL / HAS_ENDPOINT / HAS_FEATURE /
// HAS_METADATA; Feature connects to Module with CONTAINS. Typed edges
// become relationships named upper(type) between Module and Symbol
// nodes; edges whose source is not a module or symbol (endpoint
// handler links) are not persisted, per the document contract.
//
// Nested documents (project metadata, per-module patterns) are stored
// as JSON string properties since Neo4j properties hold only scalars
// and scalar arrays.
type GraphStore struct {
	driver neo4j.DriverWithContext
	cfg    Config
	logger *slog.Logger
}

var _ GraphDB = (*GraphStore)(nil)

// Open connects to the graph database with exponential backoff and
// verifies the schema indexes. Returns ErrNotConfigured when URI,
// user, or password is missing.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*GraphStore, error) {
	if cfg.URI == "" || cfg.User == "" || cfg.Password == "" {
		return nil, ErrNotConfigured
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}

	var (
		driver neo4j.DriverWithContext
		err    error
	)
	for attempt := 0; attempt < cfg.MaxRetries; attempt++ {
		driver, err = neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
		if err == nil {
			if err = driver.VerifyConnectivity(ctx); err == nil {
				break
			}
			driver.Close(ctx)
			driver = nil
		}
		logger.Warn("graph database connection failed",
			"attempt", attempt+1, "max_retries", cfg.MaxRetries, "error", err)
		if attempt < cfg.MaxRetries-1 {
			backoff := cfg.RetryDelay * (1 << attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	if driver == nil {
		return nil, fmt.Errorf("store: connect after %d attempts: %w", cfg.MaxRetries, err)
	}

	s := &GraphStore{driver: driver, cfg: cfg, logger: logger}
	if err := s.ensureIndexes(ctx); err != nil {
		logger.Warn("graph database index creation failed", "error", err)
	}
	logger.Info("graph database connection established", "uri", cfg.URI, "database", cfg.Database)
	return s, nil
}

// Close releases the driver's connection pool.
func (s *GraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// Driver exposes the connection for read-side engines that run their
// own Cypher against the same database.
func (s *GraphStore) Driver() neo4j.DriverWithContext {
	return s.driver
}

// Database returns the session database name.
func (s *GraphStore) Database() string {
	return s.cfg.Database
}

// ensureIndexes creates the id indexes queried on every lookup.
func (s *GraphStore) ensureIndexes(ctx context.Context) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS FOR (p:Project) ON (p.id)",
		"CREATE INDEX IF NOT EXISTS FOR (m:Module) ON (m.id)",
		"CREATE INDEX IF NOT EXISTS FOR (s:Symbol) ON (s.id)",
		"CREATE INDEX IF NOT EXISTS FOR (e:Endpoint) ON (e.id)",
		"CREATE INDEX IF NOT EXISTS FOR (f:Feature) ON (f.id)",
		"CREATE INDEX IF NOT EXISTS FOR (pkg:Package) ON (pkg.id)",
		"CREATE INDEX IF NOT EXISTS FOR (d:Document) ON (d.url)",
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)
	for _, stmt := range stmts {
		if _, err := sess.Run(ctx, stmt, nil); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.cfg.Database})
}

// verify pings the database before an operation.
func (s *GraphStore) verify(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// ===== Store =====

// Store upserts the full document: Package and Project nodes first,
// then modules, symbols, endpoints, edges, and features in batches of
// BatchSize rows, one write transaction per batch.
func (s *GraphStore) Store(ctx context.Context, graph *knowledge.Graph) error {
	if err := s.verify(ctx); err != nil {
		return err
	}
	projectID := graph.Project.ID

	sess := s.session(ctx)
	defer sess.Close(ctx)

	if err := s.storePackage(ctx, sess, graph); err != nil {
		return fmt.Errorf("store: package node: %w", err)
	}
	if err := s.storeProject(ctx, sess, graph); err != nil {
		return fmt.Errorf("store: project node: %w", err)
	}

	moduleRows := make([]map[string]any, 0, len(graph.Modules))
	for i := range graph.Modules {
		moduleRows = append(moduleRows, moduleRow(&graph.Modules[i], projectID))
	}
	if err := s.storeBatched(ctx, sess, moduleUpsert, "modules", moduleRows); err != nil {
		return fmt.Errorf("store: modules: %w", err)
	}

	symbolRows := make([]map[string]any, 0, len(graph.Symbols))
	for i := range graph.Symbols {
		symbolRows = append(symbolRows, symbolRow(&graph.Symbols[i], projectID))
	}
	if err := s.storeBatched(ctx, sess, symbolUpsert, "symbols", symbolRows); err != nil {
		return fmt.Errorf("store: symbols: %w", err)
	}

	endpointRows := make([]map[string]any, 0, len(graph.Endpoints))
	for i := range graph.Endpoints {
		endpointRows = append(endpointRows, endpointRow(&graph.Endpoints[i], projectID))
	}
	if err := s.storeBatched(ctx, sess, endpointUpsert, "endpoints", endpointRows); err != nil {
		return fmt.Errorf("store: endpoints: %w", err)
	}

	if err := s.storeEdges(ctx, sess, graph.Edges); err != nil {
		return fmt.Errorf("store: edges: %w", err)
	}
	if err := s.storeFeatures(ctx, sess, graph.Features, projectID); err != nil {
		return fmt.Errorf("store: features: %w", err)
	}

	s.logger.Info("knowledge graph stored",
		"project_id", projectID,
		"modules", len(graph.Modules),
		"symbols", len(graph.Symbols),
		"endpoints", len(graph.Endpoints),
		"edges", len(graph.Edges),
		"features", len(graph.Features))
	return nil
}

func (s *GraphStore) storePackage(ctx context.Context, sess neo4j.SessionWithContext, graph *knowledge.Graph) error {
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, `
			MERGE (p:Package {id: $project_id})
			SET p.version = $version,
			    p.generatedAt = $generatedAt,
			    p.gitSha = $gitSha,
			    p.timestamp = datetime()
		`, map[string]any{
			"project_id":  graph.Project.ID,
			"version":     graph.Version,
			"generatedAt": graph.GeneratedAt.UTC().Format(time.RFC3339Nano),
			"gitSha":      graph.GitSHA,
		})
	})
	return err
}

func (s *GraphStore) storeProject(ctx context.Context, sess neo4j.SessionWithContext, graph *knowledge.Graph) error {
	project := &graph.Project
	metadataJSON := ""
	if project.Metadata != nil {
		if data, err := json.Marshal(project.Metadata); err == nil {
			metadataJSON = string(data)
		}
	}
	_, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (proj:Project {id: $project_id})
			SET proj.name = $name,
			    proj.rootPath = $rootPath,
			    proj.languages = $languages,
			    proj.frameworks = $frameworks,
			    proj.buildTools = $buildTools,
			    proj.gitSha = $gitSha
		`, map[string]any{
			"project_id": project.ID,
			"name":       project.Name,
			"rootPath":   project.RootPath,
			"languages":  stringList(project.Languages),
			"frameworks": stringList(project.Frameworks),
			"buildTools": stringList(project.BuildTools),
			"gitSha":     project.GitSHA,
		}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			MERGE (m:Metadata {projectId: $project_id})
			SET m.json = $json
		`, map[string]any{
			"project_id": project.ID,
			"json":       metadataJSON,
		}); err != nil {
			return nil, err
		}
		return tx.Run(ctx, `
			MATCH (proj:Project {id: $project_id})
			MATCH (m:Metadata {projectId: $project_id})
			MERGE (proj)-[:HAS_METADATA]->(m)
		`, map[string]any{"project_id": project.ID})
	})
	return err
}

// Upsert statements for the batched node kinds. Each consumes rows of
// {id, data, projectId} (symbols and endpoints carry one extra keyed
// property, matching their index).
const (
	moduleUpsert = `
		UNWIND $rows AS row
		MERGE (mod:Module {id: row.id})
		SET mod += row.data
		WITH mod, row.projectId AS projectId
		MATCH (proj:Project {id: projectId})
		MERGE (proj)-[:HAS_MODULE]->(mod)`

	symbolUpsert = `
		UNWIND $rows AS row
		MERGE (sym:Symbol {id: row.id})
		SET sym.name = row.name,
		    sym += row.data
		WITH sym, row.projectId AS projectId
		MATCH (proj:Project {id: projectId})
		MERGE (proj)-[:HAS_SYMBOL]->(sym)`

	endpointUpsert = `
		UNWIND $rows AS row
		MERGE (end:Endpoint {id: row.id})
		SET end.path = row.path,
		    end += row.data
		WITH end, row.projectId AS projectId
		MATCH (proj:Project {id: projectId})
		MERGE (proj)-[:HAS_ENDPOINT]->(end)`
)

// storeBatched runs one upsert statement over rows in BatchSize
// chunks, one transaction per chunk.
func (s *GraphStore) storeBatched(ctx context.Context, sess neo4j.SessionWithContext, stmt, what string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}
	for start := 0; start < len(rows); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		if _, err := sess.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			return tx.Run(ctx, stmt, map[string]any{"rows": batch})
		}); err != nil {
			return err
		}
		s.logger.Debug("batch stored", "what", what, "offset", start, "count", len(batch))
	}
	return nil
}

// relTypeRe constrains interpolated relationship type names; the
// relationship type position cannot be parameterized in Cypher.
var relTypeRe = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

// storeEdges groups edges by relationship type (upper-cased, default
// DEPENDS_ON) and upserts each group in batches. Only edges whose
// both endpoints are Module or Symbol nodes materialize.
func (s *GraphStore) storeEdges(ctx context.Context, sess neo4j.SessionWithContext, edges []knowledge.Edge) error {
	if len(edges) == 0 {
		return nil
	}

	groups := make(map[string][]map[string]any)
	for _, e := range edges {
		if e.From == "" || e.To == "" {
			continue
		}
		relType := e.Type.RelationshipType()
		if !relTypeRe.MatchString(relType) {
			s.logger.Warn("skipping edge with unusable type", "type", string(e.Type))
			continue
		}
		weight := e.Weight
		if weight == 0 {
			weight = 1
		}
		groups[relType] = append(groups[relType], map[string]any{
			"from":   e.From,
			"to":     e.To,
			"weight": weight,
		})
	}

	relTypes := make([]string, 0, len(groups))
	for relType := range groups {
		relTypes = append(relTypes, relType)
	}
	sort.Strings(relTypes)

	for _, relType := range relTypes {
		stmt := fmt.Sprintf(`
			UNWIND $rows AS edge
			MATCH (a)
			WHERE (a:Module OR a:Symbol) AND a.id = edge.from
			MATCH (b)
			WHERE (b:Module OR b:Symbol) AND b.id = edge.to
			MERGE (a)-[r:%s]->(b)
			ON CREATE SET r.weight = edge.weight
			ON MATCH SET r.weight = edge.weight`, relType)
		if err := s.storeBatched(ctx, sess, stmt, "edges:"+relType, groups[relType]); err != nil {
			return err
		}
	}
	return nil
}

func (s *GraphStore) storeFeatures(ctx context.Context, sess neo4j.SessionWithContext, features []knowledge.Feature, projectID string) error {
	if len(features) == 0 {
		return nil
	}

	featureRows := make([]map[string]any, 0, len(features))
	var linkRows []map[string]any
	for _, f := range features {
		featureRows = append(featureRows, map[string]any{
			"id":        f.ID,
			"name":      f.Name,
			"path":      f.Path,
			"projectId": projectID,
		})
		for _, moduleID := range f.ModuleIDs {
			linkRows = append(linkRows, map[string]any{
				"feature_id": f.ID,
				"module_id":  moduleID,
			})
		}
	}

	const featureUpsert = `
		UNWIND $rows AS row
		MERGE (f:Feature {id: row.id})
		SET f.name = row.name,
		    f.path = row.path
		WITH f, row.projectId AS projectId
		MATCH (proj:Project {id: projectId})
		MERGE (proj)-[:HAS_FEATURE]->(f)`
	if err := s.storeBatched(ctx, sess, featureUpsert, "features", featureRows); err != nil {
		return err
	}

	const containsUpsert = `
		UNWIND $rows AS fm
		MATCH (f:Feature {id: fm.feature_id})
		MATCH (m:Module {id: fm.module_id})
		MERGE (f)-[:CONTAINS]->(m)`
	return s.storeBatched(ctx, sess, containsUpsert, "feature links", linkRows)
}

// ===== Row builders =====

func moduleRow(m *knowledge.Module, projectID string) map[string]any {
	data := map[string]any{
		"path":    m.Path,
		"kind":    stringList(m.Kinds),
		"loc":     m.LOC,
		"hash":    m.Hash,
		"exports": stringList(m.Exports),
		"imports": stringList(m.Imports),
	}
	if m.ModuleSummary != "" {
		data["moduleSummary"] = m.ModuleSummary
	}
	putJSON(data, "codePatterns", m.CodePatterns)
	putJSON(data, "uiElements", m.UIElements)
	putJSON(data, "fileStructure", m.FileStructure)
	return map[string]any{"id": m.ID, "data": data, "projectId": projectID}
}

func symbolRow(sym *knowledge.Symbol, projectID string) map[string]any {
	data := map[string]any{
		"moduleId":   sym.ModuleID,
		"kind":       sym.Kind.String(),
		"isExported": sym.IsExported,
		"signature":  sym.Signature,
		"visibility": sym.Visibility,
	}
	if sym.Summary != "" {
		data["summary"] = sym.Summary
	}
	return map[string]any{"id": sym.ID, "name": sym.Name, "data": data, "projectId": projectID}
}

func endpointRow(ep *knowledge.Endpoint, projectID string) map[string]any {
	data := map[string]any{}
	if ep.Method != "" {
		data["method"] = ep.Method
	}
	if ep.HandlerModuleID != "" {
		data["handlerModuleId"] = ep.HandlerModuleID
	}
	if ep.Handler != "" {
		data["handler"] = ep.Handler
	}
	if ep.Framework != "" {
		data["framework"] = ep.Framework
	}
	return map[string]any{"id": ep.ID, "path": ep.Path, "data": data, "projectId": projectID}
}

// putJSON stores a nested document as a JSON string property.
func putJSON(data map[string]any, key string, v any) {
	if v == nil {
		return
	}
	encoded, err := json.Marshal(v)
	if err != nil || string(encoded) == "null" {
		return
	}
	data[key] = string(encoded)
}

// stringList copies a string slice into []any, non-nil, the shape the
// driver serializes as a Cypher list.
func stringList(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ===== CheckStored / Load =====

// CheckStored reports whether a Project node exists for the ID.
// Unreachable databases report false.
func (s *GraphStore) CheckStored(ctx context.Context, projectID string) bool {
	if err := s.verify(ctx); err != nil {
		s.logger.Warn("graph database unreachable", "project_id", projectID, "error", err)
		return false
	}
	sess := s.session(ctx)
	defer sess.Close(ctx)

	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx,
			"MATCH (p:Project {id: $project_id}) RETURN count(p) AS n",
			map[string]any{"project_id": projectID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := record.Get("n")
		return n, nil
	})
	if err != nil {
		s.logger.Warn("graph database existence check failed", "project_id", projectID, "error", err)
		return false
	}
	n, ok := result.(int64)
	return ok && n > 0
}

// Load reconstructs the full document for a project. Edges come back
// restricted to Module/Symbol endpoints under the project, sorted by
// (from, to, type) since the database preserves no insertion order.
func (s *GraphStore) Load(ctx context.Context, projectID string) (*knowledge.Graph, error) {
	if err := s.verify(ctx); err != nil {
		return nil, err
	}
	if !s.CheckStored(ctx, projectID) {
		return nil, ErrNotStored
	}

	sess := s.session(ctx)
	defer sess.Close(ctx)

	graph := &knowledge.Graph{}
	result, err := sess.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := s.loadPackage(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		if err := s.loadProject(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		if err := s.loadModules(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		if err := s.loadSymbols(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		if err := s.loadEndpoints(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		if err := s.loadFeatures(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		if err := s.loadEdges(ctx, tx, projectID, graph); err != nil {
			return nil, err
		}
		return graph, nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: load %s: %w", projectID, err)
	}
	loaded := result.(*knowledge.Graph)
	s.logger.Info("knowledge graph loaded",
		"project_id", projectID,
		"modules", len(loaded.Modules),
		"symbols", len(loaded.Symbols),
		"endpoints", len(loaded.Endpoints),
		"edges", len(loaded.Edges),
		"features", len(loaded.Features))
	return loaded, nil
}

func (s *GraphStore) loadPackage(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx,
		"MATCH (pkg:Package {id: $project_id}) RETURN pkg",
		map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	graph.Version = knowledge.Version
	if len(records) == 0 {
		return nil
	}
	props := NodeProps(records[0], "pkg")
	if v := propString(props, "version"); v != "" {
		graph.Version = v
	}
	if at := propString(props, "generatedAt"); at != "" {
		if t, err := time.Parse(time.RFC3339Nano, at); err == nil {
			graph.GeneratedAt = t
		}
	}
	graph.GitSHA = propString(props, "gitSha")
	return nil
}

func (s *GraphStore) loadProject(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx, `
		MATCH (proj:Project {id: $project_id})
		OPTIONAL MATCH (proj)-[:HAS_METADATA]->(m:Metadata {projectId: $project_id})
		RETURN proj, m
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("project node missing for %s", projectID)
	}

	props := NodeProps(records[0], "proj")
	graph.Project = knowledge.Project{
		ID:         propString(props, "id"),
		Name:       propString(props, "name"),
		RootPath:   propString(props, "rootPath"),
		Languages:  propStrings(props, "languages"),
		Frameworks: propStrings(props, "frameworks"),
		BuildTools: propStrings(props, "buildTools"),
		GitSHA:     propString(props, "gitSha"),
	}
	if metaProps := NodeProps(records[0], "m"); metaProps != nil {
		if raw := propString(metaProps, "json"); raw != "" {
			var meta knowledge.ProjectMetadata
			if err := json.Unmarshal([]byte(raw), &meta); err == nil {
				graph.Project.Metadata = &meta
			}
		}
	}
	return nil
}

func (s *GraphStore) loadModules(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_MODULE]->(mod:Module)
		RETURN mod
		ORDER BY mod.id
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	graph.Modules = make([]knowledge.Module, 0, len(records))
	for _, rec := range records {
		if props := NodeProps(rec, "mod"); props != nil {
			graph.Modules = append(graph.Modules, ModuleFromProps(props))
		}
	}
	return nil
}

func (s *GraphStore) loadSymbols(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_SYMBOL]->(sym:Symbol)
		RETURN sym
		ORDER BY sym.id
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	graph.Symbols = make([]knowledge.Symbol, 0, len(records))
	for _, rec := range records {
		if props := NodeProps(rec, "sym"); props != nil {
			graph.Symbols = append(graph.Symbols, SymbolFromProps(props))
		}
	}
	return nil
}

func (s *GraphStore) loadEndpoints(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_ENDPOINT]->(end:Endpoint)
		RETURN end
		ORDER BY end.id
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	graph.Endpoints = make([]knowledge.Endpoint, 0, len(records))
	for _, rec := range records {
		if props := NodeProps(rec, "end"); props != nil {
			graph.Endpoints = append(graph.Endpoints, EndpointFromProps(props))
		}
	}
	return nil
}

func (s *GraphStore) loadFeatures(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx, `
		MATCH (proj:Project {id: $project_id})-[:HAS_FEATURE]->(f:Feature)
		RETURN f
		ORDER BY f.id
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	index := make(map[string]int, len(records))
	graph.Features = make([]knowledge.Feature, 0, len(records))
	featureIDs := make([]any, 0, len(records))
	for _, rec := range records {
		props := NodeProps(rec, "f")
		id := propString(props, "id")
		index[id] = len(graph.Features)
		featureIDs = append(featureIDs, id)
		graph.Features = append(graph.Features, knowledge.Feature{
			ID:        id,
			Name:      propString(props, "name"),
			Path:      propString(props, "path"),
			ModuleIDs: []string{},
		})
	}

	res, err = tx.Run(ctx, `
		MATCH (f:Feature)-[:CONTAINS]->(m:Module)
		WHERE f.id IN $feature_ids
		RETURN f.id AS feature_id, m.id AS module_id
		ORDER BY feature_id, module_id
	`, map[string]any{"feature_ids": featureIDs})
	if err != nil {
		return err
	}
	links, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	for _, rec := range links {
		featureID := recordString(rec, "feature_id")
		moduleID := recordString(rec, "module_id")
		if i, ok := index[featureID]; ok && moduleID != "" {
			graph.Features[i].ModuleIDs = append(graph.Features[i].ModuleIDs, moduleID)
		}
	}
	return nil
}

func (s *GraphStore) loadEdges(ctx context.Context, tx neo4j.ManagedTransaction, projectID string, graph *knowledge.Graph) error {
	res, err := tx.Run(ctx, `
		MATCH (proj:Project {id: $project_id})
		MATCH (proj)-[:HAS_MODULE|HAS_SYMBOL]->(a)
		MATCH (a)-[r]->(b)
		WHERE (b:Module OR b:Symbol)
		AND (
			EXISTS { MATCH (proj)-[:HAS_MODULE]->(b) } OR
			EXISTS { MATCH (proj)-[:HAS_SYMBOL]->(b) }
		)
		RETURN type(r) AS rel_type, a.id AS from_id, b.id AS to_id, r.weight AS weight
	`, map[string]any{"project_id": projectID})
	if err != nil {
		return err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return err
	}
	graph.Edges = make([]knowledge.Edge, 0, len(records))
	for _, rec := range records {
		edge := knowledge.Edge{
			From: recordString(rec, "from_id"),
			To:   recordString(rec, "to_id"),
			Type: knowledge.EdgeType(strings.ToLower(recordString(rec, "rel_type"))),
		}
		if w, ok := rec.Get("weight"); ok && w != nil {
			switch v := w.(type) {
			case float64:
				edge.Weight = v
			case int64:
				edge.Weight = float64(v)
			}
		}
		graph.Edges = append(graph.Edges, edge)
	}
	sort.Slice(graph.Edges, func(i, j int) bool {
		a, b := &graph.Edges[i], &graph.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Type < b.Type
	})
	return nil
}

// ===== Record helpers =====
//
// NodeProps and the FromProps constructors are exported: the query
// engine's database path reads the same node layout this store
// writes, and must decode it identically.

// NodeProps extracts a node's property map from a record column, or
// nil when the column is absent or null (OPTIONAL MATCH).
func NodeProps(rec *neo4j.Record, key string) map[string]any {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return nil
	}
	node, ok := val.(neo4j.Node)
	if !ok {
		return nil
	}
	return node.Props
}

// ModuleFromProps rebuilds a Module from its node properties.
func ModuleFromProps(props map[string]any) knowledge.Module {
	mod := knowledge.Module{
		ID:            propString(props, "id"),
		Path:          propString(props, "path"),
		Kinds:         propStrings(props, "kind"),
		LOC:           propInt(props, "loc"),
		Hash:          propString(props, "hash"),
		Exports:       propStrings(props, "exports"),
		Imports:       propStrings(props, "imports"),
		ModuleSummary: propString(props, "moduleSummary"),
	}
	getJSON(props, "codePatterns", &mod.CodePatterns)
	getJSON(props, "uiElements", &mod.UIElements)
	getJSON(props, "fileStructure", &mod.FileStructure)
	return mod
}

// SymbolFromProps rebuilds a Symbol from its node properties.
func SymbolFromProps(props map[string]any) knowledge.Symbol {
	return knowledge.Symbol{
		ID:         propString(props, "id"),
		ModuleID:   propString(props, "moduleId"),
		Name:       propString(props, "name"),
		Kind:       knowledge.ParseSymbolKind(propString(props, "kind")),
		IsExported: propBool(props, "isExported"),
		Signature:  propString(props, "signature"),
		Visibility: propString(props, "visibility"),
		Summary:    propString(props, "summary"),
	}
}

// EndpointFromProps rebuilds an Endpoint from its node properties.
func EndpointFromProps(props map[string]any) knowledge.Endpoint {
	return knowledge.Endpoint{
		ID:              propString(props, "id"),
		Path:            propString(props, "path"),
		Method:          propString(props, "method"),
		HandlerModuleID: propString(props, "handlerModuleId"),
		Handler:         propString(props, "handler"),
		Framework:       propString(props, "framework"),
	}
}

func recordString(rec *neo4j.Record, key string) string {
	val, ok := rec.Get(key)
	if !ok || val == nil {
		return ""
	}
	s, _ := val.(string)
	return s
}

func propString(props map[string]any, key string) string {
	if props == nil {
		return ""
	}
	s, _ := props[key].(string)
	return s
}

func propStrings(props map[string]any, key string) []string {
	if props == nil {
		return nil
	}
	raw, ok := props[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func propInt(props map[string]any, key string) int {
	if props == nil {
		return 0
	}
	switch v := props[key].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func propBool(props map[string]any, key string) bool {
	if props == nil {
		return false
	}
	b, _ := props[key].(bool)
	return b
}

// getJSON decodes a JSON string property into target (a pointer to a
// pointer, left nil when the property is absent or malformed).
func getJSON[T any](props map[string]any, key string, target **T) {
	raw := propString(props, key)
	if raw == "" {
		return
	}
	var decoded T
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return
	}
	*target = &decoded
}

// ===== Env helpers =====

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
