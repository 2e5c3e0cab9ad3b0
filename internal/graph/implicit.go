// Copyright 2026 The mk Authors
// SPDX-License-Identifier: Apache-2.0

package graph

// searchImplicit implements spec.md §4.6's two-pass implicit-rule search.
// targetStack already has t.Name pushed by the caller (ResolveDeps).
func (mf *Makefile) searchImplicit(t *Target, targetStack []string, ruleStack []*PatternRule) (*PatternRuleInstance, error) {
	dir, file := splitLastSlash(t.Name)
	mf.debugf("implicit: searching a rule for %q", t.Name)

	var passB []*PatternRuleInstance

	for _, pr := range mf.PatternRules {
		if len(pr.Commands) == 0 || onRuleStack(ruleStack, pr) {
			continue
		}
		inst, ok := mf.instantiate(pr, dir, file)
		if !ok {
			continue
		}
		if inst.MatchAny && !pr.DoubleColon && !mf.anyNonMatchAnyMatches(pr, dir, file) {
			mf.debugf("implicit: %q skipping match-anything candidate %v (no more specific pattern rule matches)", t.Name, pr.TargetPatterns)
			continue
		}

		if mf.prereqsSatisfiedNoChain(inst) {
			mf.debugf("implicit: %q matched %v via %q (pass A, prereqs already satisfied)", t.Name, pr.TargetPatterns, inst.StemText)
			return inst, nil
		}
		if pr.DoubleColon {
			continue // terminal candidates failing pass A are discarded
		}
		passB = append(passB, inst)
	}

	for _, inst := range passB {
		newStack := append(append([]*PatternRule{}, ruleStack...), inst.Rule)
		ok := true
		for _, p := range inst.Prereqs() {
			pt := mf.GetOrCreate(p)
			if err := mf.ResolveDeps(pt, targetStack, newStack, true); err != nil {
				ok = false
				break
			}
		}
		if ok {
			mf.debugf("implicit: %q matched %v via %q (pass B, chained prereq resolution)", t.Name, inst.Rule.TargetPatterns, inst.StemText)
			return inst, nil
		}
	}

	if len(mf.PatternRules) > 0 {
		mf.debugf("implicit: no pattern rule resolved for %q", t.Name)
	}
	return nil, nil
}

// instantiate matches pr's target patterns against file first, then
// dir+file, returning a PatternRuleInstance bound to whichever matched.
func (mf *Makefile) instantiate(pr *PatternRule, dir, file string) (*PatternRuleInstance, bool) {
	for _, tp := range pr.TargetPatterns {
		if stem, ok := tp.Match(file); ok {
			return &PatternRuleInstance{Rule: pr, Dir: "", StemText: stem, MatchAny: tp.IsMatchAny()}, true
		}
	}
	for _, tp := range pr.TargetPatterns {
		if stem, ok := tp.Match(dir + file); ok {
			return &PatternRuleInstance{Rule: pr, Dir: dir, StemText: stem, MatchAny: tp.IsMatchAny()}, true
		}
	}
	return nil, false
}

func (mf *Makefile) anyNonMatchAnyMatches(skip *PatternRule, dir, file string) bool {
	for _, pr := range mf.PatternRules {
		if pr == skip {
			continue
		}
		for _, tp := range pr.TargetPatterns {
			if tp.IsMatchAny() {
				continue
			}
			if _, ok := tp.Match(file); ok {
				return true
			}
			if _, ok := tp.Match(dir + file); ok {
				return true
			}
		}
	}
	return false
}

func onRuleStack(stack []*PatternRule, pr *PatternRule) bool {
	for _, s := range stack {
		if s == pr {
			return true
		}
	}
	return false
}

// prereqsSatisfiedNoChain implements pass A: a prerequisite is OK if it
// resolves (via VPATH) to an existing file, or is already an explicit
// target, without recursively resolving its own dependencies.
func (mf *Makefile) prereqsSatisfiedNoChain(inst *PatternRuleInstance) bool {
	for _, name := range inst.Prereqs() {
		if mf.prereqSatisfiedNoChain(name) {
			continue
		}
		return false
	}
	return true
}

func (mf *Makefile) prereqSatisfiedNoChain(name string) bool {
	if existing, ok := mf.Targets[name]; ok {
		if existing.Explicit {
			return true
		}
		if existing.vpathResolved && existing.Mtime != nil {
			return true
		}
	}
	probe := &Target{Name: name}
	mf.resolveVPath(probe)
	return probe.Mtime != nil
}
