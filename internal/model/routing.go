package model

import "sort"

// PolicyResult is the terminal outcome of a routing policy statement.
type PolicyResult string

const (
	Fallthrough PolicyResult = ""
	Accept      PolicyResult = "ACCEPT"
	Reject      PolicyResult = "REJECT"
)

// RoutingPolicy is an ordered list of statements evaluated top-down.
type RoutingPolicy struct {
	Name       string      `json:"name" yaml:"name"`
	Statements []Statement `json:"statements" yaml:"statements"`
	// Sources lists the policies this one depends on, itself included.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`
}

// Statement matches routes and applies Sets then Result. A statement with
// no match conditions and no call applies to every route.
type Statement struct {
	MatchRouteFilters  []string     `json:"match_route_filters,omitempty" yaml:"match_route_filters,omitempty"`
	MatchCommunitySets []string     `json:"match_community_sets,omitempty" yaml:"match_community_sets,omitempty"`
	MatchAsPaths       []string     `json:"match_as_paths,omitempty" yaml:"match_as_paths,omitempty"`
	Call               string       `json:"call,omitempty" yaml:"call,omitempty"`
	Sets               []string     `json:"sets,omitempty" yaml:"sets,omitempty"`
	Result             PolicyResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// Unconditional reports whether s matches every route.
func (s Statement) Unconditional() bool {
	return len(s.MatchRouteFilters) == 0 && len(s.MatchCommunitySets) == 0 &&
		len(s.MatchAsPaths) == 0 && s.Call == ""
}

func (s Statement) noop() bool {
	return s.Unconditional() && len(s.Sets) == 0 && s.Result == Fallthrough
}

// Simplify drops statements that do nothing and everything after the first
// unconditional terminal statement. It is idempotent.
func (p *RoutingPolicy) Simplify() {
	out := make([]Statement, 0, len(p.Statements))
	for _, s := range p.Statements {
		if s.noop() {
			continue
		}
		out = append(out, s)
		if s.Unconditional() && s.Result != Fallthrough {
			break
		}
	}
	p.Statements = out
}

// SimplifyRoutingPolicies simplifies every policy of c.
func SimplifyRoutingPolicies(c *Configuration) {
	c.RoutingPolicies.Range(func(_ string, p *RoutingPolicy) bool {
		p.Simplify()
		return true
	})
}

// ComputeRoutingPolicySources sets Sources on every policy to the sorted
// set of policies reachable through calls. Calls to undefined policies are
// ignored.
func ComputeRoutingPolicySources(c *Configuration) {
	c.RoutingPolicies.Range(func(name string, p *RoutingPolicy) bool {
		seen := map[string]bool{}
		var visit func(n string)
		visit = func(n string) {
			if seen[n] {
				return
			}
			target, ok := c.RoutingPolicies.Get(n)
			if !ok {
				return
			}
			seen[n] = true
			for _, s := range target.Statements {
				if s.Call != "" {
					visit(s.Call)
				}
			}
		}
		visit(name)
		sources := make([]string, 0, len(seen))
		for n := range seen {
			sources = append(sources, n)
		}
		sort.Strings(sources)
		p.Sources = sources
		return true
	})
}
