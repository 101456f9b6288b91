// Package model holds the vendor-independent representation of a network
// device produced by conversion.
package model

import (
	"net/netip"

	"github.com/batfish/batfish-sub054/internal/format"
)

// LineAction is the permit/deny verdict of a filter line or default policy.
type LineAction string

const (
	Permit LineAction = "PERMIT"
	Deny   LineAction = "DENY"
)

// ActionPtr returns a pointer to a.
func ActionPtr(a LineAction) *LineAction { return &a }

// Configuration is one network node. Named collections are frozen into
// key-sorted maps during finalization.
type Configuration struct {
	Hostname               string        `json:"hostname" yaml:"hostname"`
	ConfigurationFormat    format.Format `json:"configuration_format" yaml:"configuration_format"`
	SourceFile             string        `json:"source_file,omitempty" yaml:"source_file,omitempty"`
	DefaultCrossZoneAction *LineAction   `json:"default_cross_zone_action,omitempty" yaml:"default_cross_zone_action,omitempty"`
	DefaultInboundAction   *LineAction   `json:"default_inbound_action,omitempty" yaml:"default_inbound_action,omitempty"`

	Interfaces        *SortedMap[*Interface]        `json:"interfaces" yaml:"interfaces"`
	IpAccessLists     *SortedMap[*IpAccessList]     `json:"ip_access_lists" yaml:"ip_access_lists"`
	IpSpaces          *SortedMap[*IpSpace]          `json:"ip_spaces" yaml:"ip_spaces"`
	RouteFilterLists  *SortedMap[*RouteFilterList]  `json:"route_filter_lists" yaml:"route_filter_lists"`
	CommunitySets     *SortedMap[*CommunitySet]     `json:"community_sets" yaml:"community_sets"`
	AsPathAccessLists *SortedMap[*AsPathAccessList] `json:"as_path_access_lists" yaml:"as_path_access_lists"`
	RoutingPolicies   *SortedMap[*RoutingPolicy]    `json:"routing_policies" yaml:"routing_policies"`
	Vrfs              *SortedMap[*Vrf]              `json:"vrfs" yaml:"vrfs"`
	Zones             *SortedMap[*Zone]             `json:"zones" yaml:"zones"`
}

// NewConfiguration returns a node with every collection allocated and the
// default VRF present.
func NewConfiguration(hostname string, f format.Format) *Configuration {
	c := &Configuration{
		Hostname:            hostname,
		ConfigurationFormat: f,
		Interfaces:          NewSortedMap[*Interface](),
		IpAccessLists:       NewSortedMap[*IpAccessList](),
		IpSpaces:            NewSortedMap[*IpSpace](),
		RouteFilterLists:    NewSortedMap[*RouteFilterList](),
		CommunitySets:       NewSortedMap[*CommunitySet](),
		AsPathAccessLists:   NewSortedMap[*AsPathAccessList](),
		RoutingPolicies:     NewSortedMap[*RoutingPolicy](),
		Vrfs:                NewSortedMap[*Vrf](),
		Zones:               NewSortedMap[*Zone](),
	}
	c.Vrfs.Put(DefaultVrf, &Vrf{Name: DefaultVrf})
	return c
}

// DefaultVrf is the name of the VRF every node has.
const DefaultVrf = "default"

// SwitchportMode is the layer-2 mode of an interface.
type SwitchportMode string

const (
	SwitchportNone   SwitchportMode = "NONE"
	SwitchportAccess SwitchportMode = "ACCESS"
	SwitchportTrunk  SwitchportMode = "TRUNK"
)

// Interface is a layer-1/2/3 interface of a node.
type Interface struct {
	Name           string         `json:"name" yaml:"name"`
	Description    string         `json:"description,omitempty" yaml:"description,omitempty"`
	Active         bool           `json:"active" yaml:"active"`
	Switchport     bool           `json:"switchport" yaml:"switchport"`
	SwitchportMode SwitchportMode `json:"switchport_mode" yaml:"switchport_mode"`
	AccessVlan     int            `json:"access_vlan,omitempty" yaml:"access_vlan,omitempty"`
	Addresses      []netip.Prefix `json:"addresses,omitempty" yaml:"addresses,omitempty"`
	Vrf            string         `json:"vrf" yaml:"vrf"`
	Zone           string         `json:"zone,omitempty" yaml:"zone,omitempty"`
	Bandwidth      *float64       `json:"bandwidth,omitempty" yaml:"bandwidth,omitempty"`

	IncomingFilter                   string `json:"incoming_filter,omitempty" yaml:"incoming_filter,omitempty"`
	OutgoingFilter                   string `json:"outgoing_filter,omitempty" yaml:"outgoing_filter,omitempty"`
	PostTransformationIncomingFilter string `json:"post_transformation_incoming_filter,omitempty" yaml:"post_transformation_incoming_filter,omitempty"`
	PreTransformationOutgoingFilter  string `json:"pre_transformation_outgoing_filter,omitempty" yaml:"pre_transformation_outgoing_filter,omitempty"`

	Layer1Peers []string `json:"layer1_peers,omitempty" yaml:"layer1_peers,omitempty"`
}

// NewInterface returns an active layer-3 interface in the default VRF.
func NewInterface(name string) *Interface {
	return &Interface{Name: name, Active: true, SwitchportMode: SwitchportNone, Vrf: DefaultVrf}
}

// FilterSlot names one of the four ACL attachment points of an interface.
type FilterSlot string

const (
	SlotIncoming                   FilterSlot = "incoming"
	SlotOutgoing                   FilterSlot = "outgoing"
	SlotPostTransformationIncoming FilterSlot = "post-transformation-incoming"
	SlotPreTransformationOutgoing  FilterSlot = "pre-transformation-outgoing"
)

// FilterSlots lists the slots in a fixed order.
var FilterSlots = []FilterSlot{
	SlotIncoming,
	SlotOutgoing,
	SlotPostTransformationIncoming,
	SlotPreTransformationOutgoing,
}

// Filter returns a pointer to the ACL name held in slot.
func (i *Interface) Filter(slot FilterSlot) *string {
	switch slot {
	case SlotIncoming:
		return &i.IncomingFilter
	case SlotOutgoing:
		return &i.OutgoingFilter
	case SlotPostTransformationIncoming:
		return &i.PostTransformationIncomingFilter
	case SlotPreTransformationOutgoing:
		return &i.PreTransformationOutgoingFilter
	}
	return nil
}

// IpSpace is a set of addresses. Refs name other IP spaces whose contents
// are included.
type IpSpace struct {
	Prefixes []netip.Prefix `json:"prefixes,omitempty" yaml:"prefixes,omitempty"`
	Refs     []string       `json:"refs,omitempty" yaml:"refs,omitempty"`
}

// IsEmpty reports whether the space matches nothing.
func (s *IpSpace) IsEmpty() bool {
	return s == nil || (len(s.Prefixes) == 0 && len(s.Refs) == 0)
}

// IpAccessList is an ordered packet filter.
type IpAccessList struct {
	Name  string    `json:"name" yaml:"name"`
	Lines []AclLine `json:"lines" yaml:"lines"`
}

// AclLine matches packets on protocol, source and destination space.
type AclLine struct {
	Name     string     `json:"name" yaml:"name"`
	Action   LineAction `json:"action" yaml:"action"`
	Protocol string     `json:"protocol,omitempty" yaml:"protocol,omitempty"`
	Src      *IpSpace   `json:"src,omitempty" yaml:"src,omitempty"`
	Dst      *IpSpace   `json:"dst,omitempty" yaml:"dst,omitempty"`
	DstPorts string     `json:"dst_ports,omitempty" yaml:"dst_ports,omitempty"`
}

// RouteFilterList matches route prefixes.
type RouteFilterList struct {
	Name  string            `json:"name" yaml:"name"`
	Lines []RouteFilterLine `json:"lines" yaml:"lines"`
}

// RouteFilterLine matches a prefix with a length range [MinLength, MaxLength].
type RouteFilterLine struct {
	Action    LineAction   `json:"action" yaml:"action"`
	Prefix    netip.Prefix `json:"prefix" yaml:"prefix"`
	MinLength int          `json:"min_length" yaml:"min_length"`
	MaxLength int          `json:"max_length" yaml:"max_length"`
}

// CommunitySet matches BGP communities. References name other community
// sets whose members are included.
type CommunitySet struct {
	Name       string   `json:"name" yaml:"name"`
	Members    []string `json:"members,omitempty" yaml:"members,omitempty"`
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// AsPathAccessList matches AS paths by regex. References name other lists.
type AsPathAccessList struct {
	Name       string   `json:"name" yaml:"name"`
	Regexes    []string `json:"regexes,omitempty" yaml:"regexes,omitempty"`
	References []string `json:"references,omitempty" yaml:"references,omitempty"`
}

// Vrf is a routing instance.
type Vrf struct {
	Name         string        `json:"name" yaml:"name"`
	StaticRoutes []StaticRoute `json:"static_routes,omitempty" yaml:"static_routes,omitempty"`
}

// StaticRoute is a configured route.
type StaticRoute struct {
	Prefix  netip.Prefix `json:"prefix" yaml:"prefix"`
	NextHop string       `json:"next_hop" yaml:"next_hop"`
}

// Zone groups interfaces for zone-based firewall policy.
type Zone struct {
	Name          string   `json:"name" yaml:"name"`
	Interfaces    []string `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
	InboundFilter string   `json:"inbound_filter,omitempty" yaml:"inbound_filter,omitempty"`
}
