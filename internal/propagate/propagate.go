// Package propagate drives the three-phase valley-free propagation
// algorithm (up, across, down) over an already-ranked AS graph, using a
// worker pool to process each rank barrier in parallel.
package propagate

import (
	"log"
	"strconv"

	pool "github.com/Emeline-1/pool"

	"github.com/anaximander-rib/interdomain-sim/internal/announce"
	"github.com/anaximander-rib/interdomain-sim/internal/asgraph"
	"github.com/anaximander-rib/interdomain-sim/internal/asn"
	"github.com/anaximander-rib/interdomain-sim/internal/iofmt"
)

// DefaultWorkers matches the reference design's fixed two-thread rank
// barrier.
const DefaultWorkers = 2

// Engine drives propagation over a graph. Workers controls how many
// goroutines share the AS list at each rank barrier; it defaults to
// DefaultWorkers when zero.
type Engine struct {
	Graph   *asgraph.Graph
	Workers int
	Logger  *log.Logger
}

// New returns an Engine with the default worker count.
func New(g *asgraph.Graph) *Engine {
	return &Engine{Graph: g, Workers: DefaultWorkers}
}

func (e *Engine) workers() int {
	if e.Workers <= 0 {
		return DefaultWorkers
	}
	return e.Workers
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// Seed installs origin announcements from the seeds file. A seed whose
// ASN is not in the graph is logged and skipped.
func (e *Engine) Seed(seeds []iofmt.Seed) {
	for _, s := range seeds {
		node, ok := e.Graph.Node(s.Asn)
		if !ok {
			e.logf("propagate: seed references unknown ASN %v, skipping", s.Asn)
			continue
		}
		node.Policy.AddOrigin(announce.Origin(s.Asn, s.Prefix, s.RovInvalid))
	}
}

// exportAllowed implements the sender-side valley-free filter adopted as
// defense in depth alongside the selection-rule enforcement: a route
// learned from a peer or provider (tagged PEER or PROVIDER) is never
// re-exported to another peer or provider. Routes tagged CUSTOMER or
// ORIGIN may go anywhere.
func exportAllowed(rel asn.RelationshipTag, towardProviderOrPeer bool) bool {
	if !towardProviderOrPeer {
		return true
	}
	return rel == asn.Customer || rel == asn.Origin
}

// processRank runs Policy.Process on every AS in asns, split across the
// engine's worker pool. All sends into these ASes' queues must already
// have completed before this is called.
func (e *Engine) processRank(asns []asn.ASN) {
	if len(asns) == 0 {
		return
	}
	items := make([]string, len(asns))
	for i, a := range asns {
		items[i] = strconv.Itoa(int(a))
	}
	pool.Launch_pool(e.workers(), items, func(item string) {
		n, err := strconv.Atoi(item)
		if err != nil {
			return
		}
		node, ok := e.Graph.Node(asn.ASN(n))
		if !ok {
			return
		}
		node.Policy.Process(node.Asn)
	})
}

// Run executes the full UP -> ACROSS -> DOWN sequence once, to a fixed
// point, and returns the final set of output rows.
func (e *Engine) Run() []iofmt.OutputRow {
	e.up()
	e.across()
	e.down()
	return e.collect()
}

func (e *Engine) up() {
	ranks := e.Graph.Ranks()
	for r := 0; r < len(ranks); r++ {
		for _, c := range ranks[r] {
			node, _ := e.Graph.Node(c)
			for _, p := range node.Providers {
				providerNode, ok := e.Graph.Node(p)
				if !ok {
					continue
				}
				for _, prefix := range node.Policy.AllPrefixes() {
					ann, ok := node.Policy.LocalRIB(prefix)
					if !ok || !exportAllowed(ann.Relation, true) {
						continue
					}
					providerNode.Policy.Enqueue(ann.WithRelay(node.Asn, asn.Customer))
				}
			}
		}
		if r+1 < len(ranks) {
			e.processRank(ranks[r+1])
		}
	}
}

func (e *Engine) across() {
	for _, node := range e.nodesSnapshot() {
		for _, v := range node.Peers {
			peerNode, ok := e.Graph.Node(v)
			if !ok {
				continue
			}
			for _, prefix := range node.Policy.AllPrefixes() {
				ann, ok := node.Policy.LocalRIB(prefix)
				if !ok || !exportAllowed(ann.Relation, true) {
					continue
				}
				peerNode.Policy.Enqueue(ann.WithRelay(node.Asn, asn.Peer))
			}
		}
	}
	e.processRank(e.allAsns())
}

func (e *Engine) down() {
	ranks := e.Graph.Ranks()
	for r := len(ranks) - 1; r >= 0; r-- {
		e.processRank(ranks[r])
		for _, p := range ranks[r] {
			node, _ := e.Graph.Node(p)
			for _, c := range node.Customers {
				customerNode, ok := e.Graph.Node(c)
				if !ok {
					continue
				}
				for _, prefix := range node.Policy.AllPrefixes() {
					ann, ok := node.Policy.LocalRIB(prefix)
					if !ok {
						continue
					}
					// Toward a customer, any relationship may be
					// re-exported: valley-free export restricts what
					// goes up or across, not down.
					customerNode.Policy.Enqueue(ann.WithRelay(node.Asn, asn.Provider))
				}
			}
		}
	}
}

// nodesSnapshot returns every node in the graph, order-insensitive per
// the design's hash-order tolerance.
func (e *Engine) nodesSnapshot() []*asgraph.Node {
	asns := e.allAsns()
	nodes := make([]*asgraph.Node, 0, len(asns))
	for _, a := range asns {
		if n, ok := e.Graph.Node(a); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (e *Engine) allAsns() []asn.ASN {
	var all []asn.ASN
	for _, rank := range e.Graph.Ranks() {
		all = append(all, rank...)
	}
	return all
}

// collect gathers one output row per (asn, prefix) pair present in any
// RIB, for writing via iofmt.WriteOutput.
func (e *Engine) collect() []iofmt.OutputRow {
	var rows []iofmt.OutputRow
	for _, a := range e.allAsns() {
		node, ok := e.Graph.Node(a)
		if !ok {
			continue
		}
		for _, prefix := range node.Policy.AllPrefixes() {
			ann, ok := node.Policy.LocalRIB(prefix)
			if !ok {
				continue
			}
			rows = append(rows, iofmt.OutputRow{Asn: a, Prefix: prefix, Route: ann})
		}
	}
	return rows
}
