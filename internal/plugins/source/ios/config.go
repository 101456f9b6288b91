package ios

import (
	"net/netip"

	"github.com/batfish/batfish-sub054/internal/model"
	"github.com/batfish/batfish-sub054/internal/vendor"
)

// Structure types recorded in the structure manager.
const (
	typeAccessList    = "ip access-list"
	typeObjectGroup   = "object-group network"
	typePrefixList    = "ip prefix-list"
	typeCommunityList = "ip community-list"
	typeAsPathList    = "ip as-path access-list"
	typeRouteMap      = "route-map"
	typeVrf           = "vrf"
	typeZone          = "zone security"
	typeInterface     = "interface"
)

// Configuration is the IR of a Cisco-style configuration.
type Configuration struct {
	vendor.Base

	Interfaces     map[string]*Interface
	AccessLists    map[string]*AccessList
	ObjectGroups   map[string]*ObjectGroup
	PrefixLists    map[string]*PrefixList
	CommunityLists map[string]*CommunityList
	AsPathLists    map[string]*AsPathList
	RouteMaps      map[string]*RouteMap
	Vrfs           map[string]bool
	Zones          map[string]bool
	ZonePairs      []ZonePair
	StaticRoutes   []StaticRoute
	Banners        map[string]string
}

// NewConfiguration returns an empty IR.
func NewConfiguration() *Configuration {
	return &Configuration{
		Interfaces:     make(map[string]*Interface),
		AccessLists:    make(map[string]*AccessList),
		ObjectGroups:   make(map[string]*ObjectGroup),
		PrefixLists:    make(map[string]*PrefixList),
		CommunityLists: make(map[string]*CommunityList),
		AsPathLists:    make(map[string]*AsPathList),
		RouteMaps:      make(map[string]*RouteMap),
		Vrfs:           make(map[string]bool),
		Zones:          make(map[string]bool),
		Banners:        make(map[string]string),
	}
}

type Interface struct {
	Name           string
	Description    string
	Shutdown       bool
	Switchport     bool
	SwitchportMode model.SwitchportMode
	AccessVlan     int
	Addresses      []netip.Prefix
	Vrf            string
	Zone           string
	// Bandwidth in bits per second.
	Bandwidth *float64
	InFilter  string
	OutFilter string
}

type AccessList struct {
	Name     string
	Standard bool
	Lines    []AclLine
}

type AclLine struct {
	Text     string
	Action   model.LineAction
	Protocol string
	Src      Address
	Dst      Address
	DstPorts string
}

// Address is one side of an ACL line: any, a prefix, or a named group.
type Address struct {
	Any    bool
	Prefix netip.Prefix
	Group  string
}

type ObjectGroup struct {
	Name     string
	Prefixes []netip.Prefix
	Groups   []string
}

type PrefixList struct {
	Name  string
	Lines []model.RouteFilterLine
}

type CommunityList struct {
	Name    string
	Members []string
}

type AsPathList struct {
	Name    string
	Regexes []string
}

type RouteMap struct {
	Name    string
	Clauses map[int]*RouteMapClause
}

type RouteMapClause struct {
	Seq         int
	Action      model.LineAction
	PrefixLists []string
	Communities []string
	AsPaths     []string
	Sets        []string
	Line        int
}

type ZonePair struct {
	Name        string
	Source      string
	Destination string
}

type StaticRoute struct {
	Vrf     string
	Prefix  netip.Prefix
	NextHop string
}

func (c *Configuration) iface(name string) *Interface {
	i, ok := c.Interfaces[name]
	if !ok {
		i = &Interface{Name: name, SwitchportMode: model.SwitchportNone}
		c.Interfaces[name] = i
	}
	return i
}

func (c *Configuration) accessList(name string, standard bool) *AccessList {
	acl, ok := c.AccessLists[name]
	if !ok {
		acl = &AccessList{Name: name, Standard: standard}
		c.AccessLists[name] = acl
	}
	return acl
}
