package announce

import (
	"reflect"
	"testing"

	"github.com/anaximander-rib/interdomain-sim/internal/asn"
)

func TestOriginPath(t *testing.T) {
	a := Origin(asn.ASN(100), "10.0.0.0/8", false)
	want := []asn.ASN{100}
	if !reflect.DeepEqual(a.AsPath, want) {
		t.Fatalf("AsPath = %v, want %v", a.AsPath, want)
	}
	if a.Relation != asn.Origin {
		t.Fatalf("Relation = %v, want ORIGIN", a.Relation)
	}
	if a.NextHopAsn != asn.ASN(100) {
		t.Fatalf("NextHopAsn = %v, want 100", a.NextHopAsn)
	}
}

func TestPrependDoesNotAliasOriginal(t *testing.T) {
	a := Origin(asn.ASN(200), "10.0.0.0/8", false)
	b := a.Prepend(asn.ASN(100))

	if !reflect.DeepEqual(a.AsPath, []asn.ASN{200}) {
		t.Fatalf("original AsPath mutated: %v", a.AsPath)
	}
	if !reflect.DeepEqual(b.AsPath, []asn.ASN{100, 200}) {
		t.Fatalf("prepended AsPath = %v, want [100 200]", b.AsPath)
	}
}

func TestContainsAsn(t *testing.T) {
	a := New("10.0.0.0/8", []asn.ASN{300, 200, 100}, 300, asn.Customer, false)
	if !a.ContainsAsn(200) {
		t.Fatalf("expected path to contain 200")
	}
	if a.ContainsAsn(999) {
		t.Fatalf("did not expect path to contain 999")
	}
}

func TestWithRelayPreservesPathAndFlag(t *testing.T) {
	a := New("10.0.0.0/8", []asn.ASN{300, 200, 100}, 300, asn.Customer, true)
	b := a.WithRelay(400, asn.Provider)

	if !reflect.DeepEqual(b.AsPath, a.AsPath) {
		t.Fatalf("AsPath changed across relay: %v vs %v", b.AsPath, a.AsPath)
	}
	if b.RovInvalid != true {
		t.Fatalf("RovInvalid lost across relay")
	}
	if b.NextHopAsn != 400 || b.Relation != asn.Provider {
		t.Fatalf("relay fields wrong: %+v", b)
	}
}

func TestNewCopiesBackingArray(t *testing.T) {
	path := []asn.ASN{1, 2, 3}
	a := New("10.0.0.0/8", path, 1, asn.Origin, false)
	path[0] = 999
	if a.AsPath[0] == 999 {
		t.Fatalf("New aliased caller's backing array")
	}
}
