// Package asgraph holds the AS graph: nodes keyed by ASN, their adjacency
// lists, topological rank layering, and the loaders that build a graph
// from the fixed topology/ROV-deployment file formats.
package asgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/anaximander-rib/interdomain-sim/internal/asn"
	"github.com/anaximander-rib/interdomain-sim/internal/policy"
)

// Node is a single AS: its identifier, its three adjacency lists, and the
// Policy it owns. The graph is the exclusive owner of every Node; callers
// receive borrowed references that are only valid for the graph's
// lifetime, never retained past it.
type Node struct {
	Asn       asn.ASN
	Providers []asn.ASN
	Customers []asn.ASN
	Peers     []asn.ASN
	Policy    policy.Policy
	Rank      int
}

// Stats summarizes a built graph, the kind of one-line count a run logs
// after construction.
type Stats struct {
	ASCount        int
	EdgeCount      int
	RankCount      int
	ROVEnabledASes int
}

// Graph is the keyed collection of AS nodes plus the derived rank
// layering. It is built once via Build and is read-only with respect to
// its node set and adjacency from that point on — only the Policy state
// owned by each node mutates during propagation.
type Graph struct {
	nodes map[asn.ASN]*Node
	ranks [][]asn.ASN
}

// edge is an intermediate representation of one topology-file line,
// produced by the loader before nodes exist to attach it to.
type edge struct {
	src, dst asn.ASN
	kind     asn.RelationshipKind
}

// LoadTopology parses the pipe-delimited topology format: one edge per
// line as `SRC|DST|REL|TAG`. Lines that are empty or start with `#` are
// skipped. REL must be `0` (peer-to-peer, symmetric) or `-1` (SRC is
// provider of DST); any other REL value is ignored. TAG is not inspected.
func LoadTopology(r io.Reader) ([]edge, error) {
	var edges []edge
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "|")
		if len(fields) < 3 {
			return nil, fmt.Errorf("asgraph: topology line %d: expected at least 3 fields, got %d", lineNo, len(fields))
		}

		src, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("asgraph: topology line %d: bad SRC_ASN: %w", lineNo, err)
		}
		dst, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("asgraph: topology line %d: bad DST_ASN: %w", lineNo, err)
		}
		rel, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("asgraph: topology line %d: bad REL: %w", lineNo, err)
		}

		switch rel {
		case 0:
			edges = append(edges, edge{src: asn.ASN(src), dst: asn.ASN(dst), kind: asn.PeerToPeer})
		case -1:
			edges = append(edges, edge{src: asn.ASN(src), dst: asn.ASN(dst), kind: asn.ProviderToCustomer})
		default:
			// Unknown REL values are ignored per the external contract.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("asgraph: reading topology: %w", err)
	}
	return edges, nil
}

// LoadROVDeployment parses one decimal ASN per line, blank lines skipped,
// into the set of ASNs that should be built with the ROV policy variant.
func LoadROVDeployment(r io.Reader) (map[asn.ASN]bool, error) {
	enabled := make(map[asn.ASN]bool)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		n, err := strconv.Atoi(line)
		if err != nil {
			return nil, fmt.Errorf("asgraph: rov deployment line %d: %w", lineNo, err)
		}
		enabled[asn.ASN(n)] = true
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("asgraph: reading rov deployment: %w", err)
	}
	return enabled, nil
}

// Build assembles a Graph from parsed edges and an ROV-enabled set. Every
// ASN mentioned by any edge gets a Node; rovEnabled may be nil. Build does
// not rank or validate the graph — call Flatten for that.
func Build(edges []edge, rovEnabled map[asn.ASN]bool) *Graph {
	g := &Graph{nodes: make(map[asn.ASN]*Node)}

	ensure := func(a asn.ASN) *Node {
		if n, ok := g.nodes[a]; ok {
			return n
		}
		var p policy.Policy
		if rovEnabled[a] {
			p = policy.NewROV()
		} else {
			p = policy.NewBGP()
		}
		n := &Node{Asn: a, Policy: p}
		g.nodes[a] = n
		return n
	}

	for _, e := range edges {
		src := ensure(e.src)
		dst := ensure(e.dst)

		switch e.kind {
		case asn.ProviderToCustomer:
			src.Customers = append(src.Customers, dst.Asn)
			dst.Providers = append(dst.Providers, src.Asn)
		case asn.PeerToPeer:
			src.Peers = append(src.Peers, dst.Asn)
			dst.Peers = append(dst.Peers, src.Asn)
		}
	}

	return g
}

// Node returns the node for asn and whether it exists in the graph.
func (g *Graph) Node(a asn.ASN) (*Node, bool) {
	n, ok := g.nodes[a]
	return n, ok
}

// Len returns the number of AS nodes in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Ranks returns the flattened rank layering computed by the last call to
// Flatten, rank 0 first. Nil until Flatten has been called successfully.
func (g *Graph) Ranks() [][]asn.ASN {
	return g.ranks
}

// HasCycle reports whether the provider-customer subgraph (peer edges
// excluded) contains a cycle anywhere, via DFS three-colouring.
func (g *Graph) HasCycle() bool {
	color := make(map[asn.ASN]int, len(g.nodes)) // 0=white, 1=grey, 2=black
	for a := range g.nodes {
		if color[a] == 0 {
			if g.dfsHasCycle(a, color) {
				return true
			}
		}
	}
	return false
}

// NodeHasCycle reports whether a cycle is reachable from src through the
// provider-customer subgraph.
func (g *Graph) NodeHasCycle(src asn.ASN) bool {
	color := make(map[asn.ASN]int, len(g.nodes))
	return g.dfsHasCycle(src, color)
}

func (g *Graph) dfsHasCycle(a asn.ASN, color map[asn.ASN]int) bool {
	color[a] = 1 // grey: on the current path
	n, ok := g.nodes[a]
	if ok {
		for _, c := range n.Customers {
			switch color[c] {
			case 1:
				return true
			case 0:
				if g.dfsHasCycle(c, color) {
					return true
				}
			}
		}
	}
	color[a] = 2 // black: fully explored, acyclic from here
	return false
}

// Flatten computes the rank layering by longest-path relaxation from
// stubs (ASes with no customers) upward through providers. It returns
// TopologyCycle-style error if the provider-customer subgraph is cyclic,
// since the relaxation below is only guaranteed to terminate on a DAG.
func (g *Graph) Flatten() error {
	if g.HasCycle() {
		return fmt.Errorf("asgraph: provider-customer subgraph has a cycle, cannot rank")
	}

	rank := make(map[asn.ASN]int, len(g.nodes))
	queue := make([]asn.ASN, 0, len(g.nodes))

	for a, n := range g.nodes {
		if len(n.Customers) == 0 {
			rank[a] = 0
			queue = append(queue, a)
		} else {
			rank[a] = -1
		}
	}

	for len(queue) > 0 {
		a := queue[0]
		queue = queue[1:]
		newRank := rank[a] + 1

		n := g.nodes[a]
		for _, p := range n.Providers {
			if newRank > rank[p] {
				rank[p] = newRank
				queue = append(queue, p)
			}
		}
	}

	maxRank := 0
	for _, r := range rank {
		if r > maxRank {
			maxRank = r
		}
	}

	ranks := make([][]asn.ASN, maxRank+1)
	for a, r := range rank {
		ranks[r] = append(ranks[r], a)
		g.nodes[a].Rank = r
	}

	g.ranks = ranks
	return nil
}

// Stats summarizes the graph for logging after construction.
func (g *Graph) Stats() Stats {
	s := Stats{ASCount: len(g.nodes), RankCount: len(g.ranks)}
	seenPeer := make(map[[2]asn.ASN]bool)
	for a, n := range g.nodes {
		s.EdgeCount += len(n.Customers)
		for _, p := range n.Peers {
			key := [2]asn.ASN{a, p}
			rev := [2]asn.ASN{p, a}
			if !seenPeer[key] && !seenPeer[rev] {
				seenPeer[key] = true
				s.EdgeCount++
			}
		}
		if _, isROV := n.Policy.(*policy.ROV); isROV {
			s.ROVEnabledASes++
		}
	}
	return s
}
