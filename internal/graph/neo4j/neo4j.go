package neo4j

import (
	"context"
	"fmt"

	"github.com/batfish/batfish-sub054/internal/graph"
	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jRepository implements graph.Repository using Neo4j. Every node it
// writes carries the snapshot ID so runs over different snapshots coexist.
type Neo4jRepository struct {
	driver neo4j.DriverWithContext
}

// NewNeo4j creates a Neo4j-backed repository.
func NewNeo4j(ctx context.Context, uri, username, password string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver}, nil
}

type statement struct {
	cypher string
	params map[string]any
}

const clearSnapshot = "MATCH (d:Device {snapshot: $snapshot}) " +
	"OPTIONAL MATCH (d)-[:HAS_INTERFACE|HAS_VRF|HAS_ACCESS_LIST]->(x) " +
	"DETACH DELETE x, d"

// deviceStatements returns the writes for one device. VRFs and access
// lists come before interfaces so the interface edges can match them.
func deviceStatements(snapshotID string, d graph.Device) []statement {
	key := func(extra map[string]any) map[string]any {
		p := map[string]any{"snapshot": snapshotID, "hostname": d.Hostname}
		for k, v := range extra {
			p[k] = v
		}
		return p
	}

	stmts := []statement{{
		"MERGE (d:Device {snapshot: $snapshot, hostname: $hostname}) " +
			"SET d.format = $format, d.source_file = $source",
		key(map[string]any{"format": d.Format, "source": d.SourceFile}),
	}}
	for _, vrf := range d.Vrfs {
		stmts = append(stmts, statement{
			"MATCH (d:Device {snapshot: $snapshot, hostname: $hostname}) " +
				"MERGE (v:Vrf {snapshot: $snapshot, hostname: $hostname, name: $name}) " +
				"MERGE (d)-[:HAS_VRF]->(v)",
			key(map[string]any{"name": vrf}),
		})
	}
	for _, acl := range d.AccessLists {
		stmts = append(stmts, statement{
			"MATCH (d:Device {snapshot: $snapshot, hostname: $hostname}) " +
				"MERGE (a:AccessList {snapshot: $snapshot, hostname: $hostname, name: $name}) " +
				"SET a.lines = $lines " +
				"MERGE (d)-[:HAS_ACCESS_LIST]->(a)",
			key(map[string]any{"name": acl.Name, "lines": acl.Lines}),
		})
	}
	for _, iface := range d.Interfaces {
		stmts = append(stmts, statement{
			"MATCH (d:Device {snapshot: $snapshot, hostname: $hostname}) " +
				"MERGE (i:Interface {snapshot: $snapshot, hostname: $hostname, name: $name}) " +
				"SET i.active = $active, i.addresses = $addresses " +
				"MERGE (d)-[:HAS_INTERFACE]->(i) " +
				"WITH i MATCH (v:Vrf {snapshot: $snapshot, hostname: $hostname, name: $vrf}) " +
				"MERGE (i)-[:IN_VRF]->(v)",
			key(map[string]any{"name": iface.Name, "active": iface.Active, "addresses": iface.Addresses, "vrf": iface.Vrf}),
		})
		for _, slot := range model.FilterSlots {
			acl, ok := iface.Filters[string(slot)]
			if !ok {
				continue
			}
			stmts = append(stmts, statement{
				"MATCH (i:Interface {snapshot: $snapshot, hostname: $hostname, name: $iface}) " +
					"MATCH (a:AccessList {snapshot: $snapshot, hostname: $hostname, name: $acl}) " +
					"MERGE (a)-[:FILTERS {slot: $slot}]->(i)",
				key(map[string]any{"iface": iface.Name, "acl": acl, "slot": string(slot)}),
			})
		}
	}
	return stmts
}

func (r *Neo4jRepository) StoreTopology(ctx context.Context, snapshotID string, nodes map[string]*model.Configuration) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, clearSnapshot, map[string]any{"snapshot": snapshotID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("clear snapshot %s: %w", snapshotID, err)
	}

	for _, d := range graph.Devices(nodes) {
		_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			for _, s := range deviceStatements(snapshotID, d) {
				if _, err := tx.Run(ctx, s.cypher, s.params); err != nil {
					return nil, err
				}
			}
			return nil, nil
		})
		if err != nil {
			return fmt.Errorf("store device %s: %w", d.Hostname, err)
		}
	}
	return nil
}

func (r *Neo4jRepository) LoadHostnames(ctx context.Context, snapshotID string) ([]string, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx,
			"MATCH (d:Device {snapshot: $snapshot}) RETURN d.hostname ORDER BY d.hostname",
			map[string]any{"snapshot": snapshotID})
		if err != nil {
			return nil, err
		}
		names := []string{}
		for records.Next(ctx) {
			n, _ := records.Record().Get("d.hostname")
			names = append(names, n.(string))
		}
		return names, records.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

// Ping checks that the database is reachable.
func (r *Neo4jRepository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Neo4jRepository)(nil)
