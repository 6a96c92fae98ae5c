package config

import "github.com/jamestiotio/SimEng/internal/isa"

// groupParent walks one step up the group-inheritance tree spec §6
// describes for Latencies[*] (LOAD_INT ⊂ LOAD ⊂ ALL). The same walk is
// reused for bypass-latency lookup, since nothing in the spec suggests
// the two tables should inherit differently.
func groupParent(g isa.Group) (isa.Group, bool) {
	switch g {
	case isa.GroupAll:
		return isa.GroupAll, false
	case isa.GroupLoadInt:
		return isa.GroupLoad, true
	default:
		return isa.GroupAll, true
	}
}

// latencyTable is the config-backed execute.LatencyTable.
type latencyTable struct {
	byGroup map[isa.Group]LatencyEntry
}

// LatencyTable builds the execute.LatencyTable this document implies,
// indexing each Latencies[*] entry by every group it names.
func (d *Document) LatencyTable() *latencyTable {
	t := &latencyTable{byGroup: make(map[isa.Group]LatencyEntry)}
	for _, e := range d.Latencies {
		for _, g := range e.InstructionGroup {
			t.byGroup[g] = e
		}
	}
	return t
}

// Latency implements execute.LatencyTable, walking the group-inheritance
// chain toward GroupAll until an entry matches. A uop group the document
// never mentions (directly or through an ancestor) defaults to a single
// cycle of latency and full throughput, the same as an execution unit
// the config forgot to list a latency for would otherwise stall forever.
func (t *latencyTable) Latency(g isa.Group) (exec int, throughput int) {
	for cur, ok := g, true; ok; cur, ok = groupParent(cur) {
		if e, found := t.byGroup[cur]; found {
			return e.ExecutionLatency, e.ExecutionThroughput
		}
		if cur == isa.GroupAll {
			break
		}
	}
	return 1, 1
}

// GroupChain returns g followed by each of its ancestors up to and
// including GroupAll, the same walk Latency and Bypass use. Exported for
// internal/core's port-support resolution (spec §6's
// Ports[*].Instruction-Group-Support lists name a group, and a uop whose
// own group is a descendant of a listed one still qualifies for that
// port).
func GroupChain(g isa.Group) []isa.Group {
	chain := []isa.Group{g}
	for cur, ok := g, true; ok; {
		cur, ok = groupParent(cur)
		if !ok {
			break
		}
		chain = append(chain, cur)
		if cur == isa.GroupAll {
			break
		}
	}
	return chain
}

// bypassTable is the config-backed dispatch.BypassTable.
type bypassTable struct {
	byPair map[[2]isa.Group]int
}

// BypassTable builds the dispatch.BypassTable this document implies.
func (d *Document) BypassTable() *bypassTable {
	t := &bypassTable{byPair: make(map[[2]isa.Group]int)}
	for _, e := range d.BypassLatencies {
		t.byPair[[2]isa.Group{e.Producer, e.Consumer}] = e.Latency
	}
	return t
}

// Bypass implements dispatch.BypassTable. It looks up the exact
// producer/consumer pair first, then walks each side toward GroupAll
// independently (producer first, then consumer) the way Latencies[*]
// inheritance does for a single group. An unconfigured pair defaults to
// 0 (immediate forwarding) rather than -1 (forwarding disallowed): spec
// §4.2's scenarios all assume same-group bypass works out of the box,
// and a silently-disabled fast path would be a much stranger default
// than a free one.
func (t *bypassTable) Bypass(producer, consumer isa.Group) int {
	for p, pok := producer, true; ; p, pok = groupParent(p) {
		for c, cok := consumer, true; ; c, cok = groupParent(c) {
			if lat, found := t.byPair[[2]isa.Group{p, c}]; found {
				return lat
			}
			if !cok {
				break
			}
		}
		if !pok {
			break
		}
	}
	return 0
}
