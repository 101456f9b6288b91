// Package graph exports converted nodes as a property graph.
package graph

import (
	"context"
	"sort"

	"github.com/batfish/batfish-sub054/internal/model"
)

// Repository provides graph storage for converted topologies.
type Repository interface {
	// StoreTopology persists every node of a run under snapshotID,
	// replacing what was stored for it before.
	StoreTopology(ctx context.Context, snapshotID string, nodes map[string]*model.Configuration) error
	// LoadHostnames returns the stored device names of a snapshot, sorted.
	LoadHostnames(ctx context.Context, snapshotID string) ([]string, error)
	// Close releases resources.
	Close(ctx context.Context) error
}

// Device is a node with the records hanging off it.
type Device struct {
	Hostname    string
	Format      string
	SourceFile  string
	Interfaces  []Interface
	Vrfs        []string
	AccessLists []AccessList
}

type Interface struct {
	Name      string
	Active    bool
	Vrf       string
	Addresses []string
	// Filters maps a filter slot to the ACL attached there.
	Filters map[string]string
}

type AccessList struct {
	Name  string
	Lines int
}

// Devices flattens nodes into graph records, sorted by hostname.
func Devices(nodes map[string]*model.Configuration) []Device {
	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Device, 0, len(names))
	for _, name := range names {
		n := nodes[name]
		d := Device{
			Hostname:   name,
			Format:     string(n.ConfigurationFormat),
			SourceFile: n.SourceFile,
			Vrfs:       n.Vrfs.Keys(),
		}
		n.Interfaces.Range(func(_ string, i *model.Interface) bool {
			rec := Interface{Name: i.Name, Active: i.Active, Vrf: i.Vrf, Filters: make(map[string]string)}
			for _, p := range i.Addresses {
				rec.Addresses = append(rec.Addresses, p.String())
			}
			for _, slot := range model.FilterSlots {
				if acl := *i.Filter(slot); acl != "" {
					rec.Filters[string(slot)] = acl
				}
			}
			d.Interfaces = append(d.Interfaces, rec)
			return true
		})
		n.IpAccessLists.Range(func(name string, acl *model.IpAccessList) bool {
			d.AccessLists = append(d.AccessLists, AccessList{Name: name, Lines: len(acl.Lines)})
			return true
		})
		out = append(out, d)
	}
	return out
}
