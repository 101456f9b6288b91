package model

import "sort"

// VerifyCommunityStructures checks that every community set reference made
// by a community set or a routing policy is defined and that community set
// references are acyclic.
func VerifyCommunityStructures(c *Configuration) error {
	refs := make(map[string][]string, c.CommunitySets.Len())
	c.CommunitySets.Range(func(name string, cs *CommunitySet) bool {
		refs[name] = cs.References
		return true
	})
	var policyRefs []policyRef
	c.RoutingPolicies.Range(func(name string, p *RoutingPolicy) bool {
		for _, s := range p.Statements {
			for _, m := range s.MatchCommunitySets {
				policyRefs = append(policyRefs, policyRef{policy: name, target: m})
			}
		}
		return true
	})
	return verifyStructures("community set", refs, policyRefs)
}

// VerifyAsPathStructures is the as-path access-list counterpart of
// VerifyCommunityStructures.
func VerifyAsPathStructures(c *Configuration) error {
	refs := make(map[string][]string, c.AsPathAccessLists.Len())
	c.AsPathAccessLists.Range(func(name string, l *AsPathAccessList) bool {
		refs[name] = l.References
		return true
	})
	var policyRefs []policyRef
	c.RoutingPolicies.Range(func(name string, p *RoutingPolicy) bool {
		for _, s := range p.Statements {
			for _, m := range s.MatchAsPaths {
				policyRefs = append(policyRefs, policyRef{policy: name, target: m})
			}
		}
		return true
	})
	return verifyStructures("as-path list", refs, policyRefs)
}

type policyRef struct {
	policy string
	target string
}

const (
	white = iota
	grey
	black
)

func verifyStructures(kind string, refs map[string][]string, policyRefs []policyRef) error {
	for _, pr := range policyRefs {
		if _, ok := refs[pr.target]; !ok {
			return Internalf("routing policy %q references undefined %s %q", pr.policy, kind, pr.target)
		}
	}

	color := make(map[string]int, len(refs))
	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		switch color[name] {
		case grey:
			return Internalf("cyclic %s references: %v", kind, append(path, name))
		case black:
			return nil
		}
		color[name] = grey
		for _, r := range refs[name] {
			if _, ok := refs[r]; !ok {
				return Internalf("%s %q references undefined %s %q", kind, name, kind, r)
			}
			if err := visit(r, append(path, name)); err != nil {
				return err
			}
		}
		color[name] = black
		return nil
	}
	for _, name := range sortedKeys(refs) {
		if err := visit(name, nil); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
