// Package policy implements route selection: the rule an AS applies to
// decide, out of everything it has heard for a prefix this round, which
// single route becomes its local best route, plus the Route Origin
// Validation overlay that filters ingress announcements before they ever
// reach selection.
package policy

import (
	"sync"

	"github.com/anaximander-rib/interdomain-sim/internal/announce"
	"github.com/anaximander-rib/interdomain-sim/internal/asn"
)

// Policy is the per-AS decision point: it accepts incoming announcements,
// folds them down to one winner per prefix on demand, and exposes the
// resulting local RIB. BGP is the base implementation; ROV wraps a BGP to
// add an ingress filter, the same tagged-variant shape the teacher uses
// for its probing strategies rather than a class hierarchy.
type Policy interface {
	// Enqueue stages an announcement heard from a neighbor this round. It
	// is not visible in LocalRIB until Process runs.
	Enqueue(a announce.Announcement)

	// AddOrigin installs a directly into the local RIB, bypassing the
	// queue and route selection entirely. Used only to seed the prefixes
	// an AS originates itself.
	AddOrigin(a announce.Announcement)

	// Process folds every announcement enqueued since the last call into
	// the local RIB, running route selection once per distinct prefix
	// that received at least one candidate this round. It returns the
	// set of prefixes whose best route changed. The propagation engine
	// does not use this set: it re-announces every installed route.
	Process(owner asn.ASN) []string

	// LocalRIB returns the best known Announcement for prefix, and
	// whether one exists at all.
	LocalRIB(prefix string) (announce.Announcement, bool)

	// AllPrefixes returns every prefix with an installed route, for
	// output and re-announcement.
	AllPrefixes() []string
}

// BGP implements ordinary Gao-Rexford route selection: relationship
// priority first, then shortest AS path, then lowest next-hop ASN.
// It is safe for concurrent Enqueue calls from multiple neighbor senders
// within the same rank; Process itself is expected to run single-threaded
// per AS, since only one phase touches a given AS's local RIB at a time.
type BGP struct {
	mu      sync.Mutex
	pending map[string][]announce.Announcement
	rib     map[string]announce.Announcement
}

// NewBGP returns an empty BGP policy.
func NewBGP() *BGP {
	return &BGP{
		pending: make(map[string][]announce.Announcement),
		rib:     make(map[string]announce.Announcement),
	}
}

func (b *BGP) Enqueue(a announce.Announcement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[a.Prefix] = append(b.pending[a.Prefix], a)
}

// AddOrigin installs a directly, overwriting any prior entry for the same
// prefix. A misuse such as seeding the same prefix twice silently
// overwrites rather than erroring, since seeds come from a trusted input
// file.
func (b *BGP) AddOrigin(a announce.Announcement) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rib[a.Prefix] = a
}

func (b *BGP) Process(owner asn.ASN) []string {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[string][]announce.Announcement)
	b.mu.Unlock()

	var changed []string
	for prefix, candidates := range pending {
		if len(candidates) == 0 {
			continue
		}

		winner := candidates[0]
		for _, c := range candidates[1:] {
			if chooseBest(c, winner) {
				winner = c
			}
		}

		incumbent, have := b.rib[prefix]
		if have && !chooseBest(winner, incumbent) {
			// The incoming winner does not beat what's already
			// installed, so the existing route stands.
			continue
		}

		if winner.ContainsAsn(owner) {
			// Accepting would create a loop through ourselves.
			continue
		}

		installed := winner.Prepend(owner)
		b.rib[prefix] = installed
		changed = append(changed, prefix)
	}
	return changed
}

func (b *BGP) LocalRIB(prefix string) (announce.Announcement, bool) {
	a, ok := b.rib[prefix]
	return a, ok
}

func (b *BGP) AllPrefixes() []string {
	prefixes := make([]string, 0, len(b.rib))
	for p := range b.rib {
		prefixes = append(prefixes, p)
	}
	return prefixes
}

// chooseBest reports whether candidate beats incumbent under Gao-Rexford
// tie-breaking: higher relationship tag wins; on a tie, the shorter AS
// path wins; on a further tie, the lower next-hop ASN wins. Ties that
// survive all three comparisons keep the incumbent (candidate does not
// beat it), matching the fold order in Process where the first-seen
// candidate is the initial incumbent.
func chooseBest(candidate, incumbent announce.Announcement) bool {
	if candidate.Relation != incumbent.Relation {
		return candidate.Relation > incumbent.Relation
	}
	if len(candidate.AsPath) != len(incumbent.AsPath) {
		return len(candidate.AsPath) < len(incumbent.AsPath)
	}
	return candidate.NextHopAsn < incumbent.NextHopAsn
}

// ROV wraps a BGP policy with Route Origin Validation: announcements
// marked invalid at origin are dropped before they can ever enter
// selection, rather than being selected and then discarded, so an
// ROV-invalid route can never win even transiently.
type ROV struct {
	inner *BGP
}

// NewROV returns an ROV-filtering policy backed by a fresh BGP selector.
func NewROV() *ROV {
	return &ROV{inner: NewBGP()}
}

func (r *ROV) Enqueue(a announce.Announcement) {
	if a.RovInvalid {
		return
	}
	r.inner.Enqueue(a)
}

func (r *ROV) AddOrigin(a announce.Announcement) {
	if a.RovInvalid {
		return
	}
	r.inner.AddOrigin(a)
}

func (r *ROV) Process(owner asn.ASN) []string {
	return r.inner.Process(owner)
}

func (r *ROV) LocalRIB(prefix string) (announce.Announcement, bool) {
	return r.inner.LocalRIB(prefix)
}

func (r *ROV) AllPrefixes() []string {
	return r.inner.AllPrefixes()
}
