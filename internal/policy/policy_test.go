package policy

import (
	"reflect"
	"testing"

	"github.com/anaximander-rib/interdomain-sim/internal/announce"
	"github.com/anaximander-rib/interdomain-sim/internal/asn"
)

const prefixP = "10.0.0.0/8"

// S2: tie on relationship, shorter path wins.
func TestChooseBestShorterPathWins(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Customer, false))
	b.Enqueue(announce.New(prefixP, []asn.ASN{300, 400, 500}, 300, asn.Customer, false))

	b.Process(owner)

	got, ok := b.LocalRIB(prefixP)
	if !ok {
		t.Fatalf("expected an installed route")
	}
	want := []asn.ASN{100, 200}
	if !reflect.DeepEqual(got.AsPath, want) {
		t.Fatalf("AsPath = %v, want %v", got.AsPath, want)
	}
	if got.NextHopAsn != 200 {
		t.Fatalf("NextHopAsn = %v, want 200", got.NextHopAsn)
	}
}

// S3: tie on relationship and path length, lower next-hop wins.
func TestChooseBestLowerNextHopWins(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{300}, 300, asn.Customer, false))
	b.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Customer, false))

	b.Process(owner)

	got, _ := b.LocalRIB(prefixP)
	want := []asn.ASN{100, 200}
	if !reflect.DeepEqual(got.AsPath, want) {
		t.Fatalf("AsPath = %v, want %v", got.AsPath, want)
	}
}

// S4: ROV drops the invalid candidate before it ever reaches selection.
func TestROVDropsInvalidBeforeSelection(t *testing.T) {
	owner := asn.ASN(100)
	r := NewROV()
	r.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Customer, true))
	r.Enqueue(announce.New(prefixP, []asn.ASN{400}, 400, asn.Provider, false))

	r.Process(owner)

	got, ok := r.LocalRIB(prefixP)
	if !ok {
		t.Fatalf("expected an installed route")
	}
	if got.Relation != asn.Provider {
		t.Fatalf("Relation = %v, want PROVIDER", got.Relation)
	}
	if got.RovInvalid {
		t.Fatalf("installed route must not be ROV-invalid")
	}
}

// S6: loop prevention — an announcement whose path already contains the
// owner is discarded rather than installed.
func TestLoopPreventionDiscards(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{300, 100, 200}, 300, asn.Customer, false))

	b.Process(owner)

	if _, ok := b.LocalRIB(prefixP); ok {
		t.Fatalf("expected nothing installed when path already contains owner")
	}
}

// Invariant 6: a CUSTOMER candidate beats a PROVIDER candidate regardless
// of path length or next-hop.
func TestRelationshipPriorityDominatesOtherTieBreaks(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Provider, false))
	b.Enqueue(announce.New(prefixP, []asn.ASN{300, 400, 500}, 300, asn.Customer, false))

	b.Process(owner)

	got, _ := b.LocalRIB(prefixP)
	if got.Relation != asn.Customer {
		t.Fatalf("Relation = %v, want CUSTOMER to win over PROVIDER", got.Relation)
	}
}

// Invariants 1 and 2: once installed, the owner ASN is the first and only
// occurrence in as_path.
func TestInstalledPathStartsWithOwnerExactlyOnce(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Customer, false))
	b.Process(owner)

	got, _ := b.LocalRIB(prefixP)
	if got.AsPath[0] != owner {
		t.Fatalf("AsPath[0] = %v, want owner %v", got.AsPath[0], owner)
	}
	count := 0
	for _, hop := range got.AsPath {
		if hop == owner {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("owner ASN appears %d times in AsPath, want exactly 1", count)
	}
}

// A losing incumbent comparison keeps the existing route untouched.
func TestIncumbentBeatsWorseCandidate(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Customer, false))
	b.Process(owner)
	first, _ := b.LocalRIB(prefixP)

	b.Enqueue(announce.New(prefixP, []asn.ASN{300, 400}, 300, asn.Peer, false))
	b.Process(owner)
	second, _ := b.LocalRIB(prefixP)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("incumbent should not be replaced by a lower-priority candidate: %+v vs %+v", first, second)
	}
}

// Idempotence: processing with an empty queue leaves local_rib unchanged.
func TestProcessWithEmptyQueueIsNoop(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.Enqueue(announce.New(prefixP, []asn.ASN{200}, 200, asn.Customer, false))
	b.Process(owner)
	before, _ := b.LocalRIB(prefixP)

	changed := b.Process(owner)
	after, _ := b.LocalRIB(prefixP)

	if len(changed) != 0 {
		t.Fatalf("expected no changed prefixes on an empty queue, got %v", changed)
	}
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("local RIB changed on an empty-queue process: %+v vs %+v", before, after)
	}
}

func TestAddOriginBypassesQueueAndSelection(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.AddOrigin(announce.Origin(owner, prefixP, false))

	got, ok := b.LocalRIB(prefixP)
	if !ok {
		t.Fatalf("expected origin to be installed")
	}
	if got.Relation != asn.Origin {
		t.Fatalf("Relation = %v, want ORIGIN", got.Relation)
	}
	if !reflect.DeepEqual(got.AsPath, []asn.ASN{owner}) {
		t.Fatalf("AsPath = %v, want [%v]", got.AsPath, owner)
	}
}

func TestROVAddOriginDropsInvalid(t *testing.T) {
	owner := asn.ASN(100)
	r := NewROV()
	r.AddOrigin(announce.Origin(owner, prefixP, true))

	if _, ok := r.LocalRIB(prefixP); ok {
		t.Fatalf("expected invalid origin to be dropped, not installed")
	}
}

func TestAllPrefixesReflectsInstalledRoutes(t *testing.T) {
	owner := asn.ASN(100)
	b := NewBGP()
	b.AddOrigin(announce.Origin(owner, "10.0.0.0/8", false))
	b.AddOrigin(announce.Origin(owner, "10.1.0.0/16", false))

	got := b.AllPrefixes()
	if len(got) != 2 {
		t.Fatalf("AllPrefixes() = %v, want 2 entries", got)
	}
}
