// Package announce holds the Announcement value type: a route advertisement
// carrying a prefix, an AS path, a next-hop ASN, the relationship it was
// learned over, and an ROV validity flag.
package announce

import "github.com/anaximander-rib/interdomain-sim/internal/asn"

// Announcement is a single route advertisement. Its fields are exported
// plain data with no getters or setters — matching the teacher's
// preference for plain data over getter/setter ceremony (misc.go's
// Trace/Hop types are treated the same way). AsPath is never modified in
// place: New, WithRelay and Prepend each return an Announcement with its
// own copy of the path, and the BGP selection step installs the result of
// Prepend.
//
// as_path is newest-to-oldest after storage in a RIB: once stored at AS X,
// it begins with X and ends with the origin AS. Before local processing it
// begins with the announcing neighbor's path.
type Announcement struct {
	Prefix     string
	AsPath     []asn.ASN
	NextHopAsn asn.ASN
	Relation   asn.RelationshipTag
	RovInvalid bool
}

// New builds an Announcement, copying the supplied path so the caller's
// backing array can be reused or mutated without aliasing.
func New(prefix string, path []asn.ASN, nextHop asn.ASN, rel asn.RelationshipTag, rovInvalid bool) Announcement {
	cp := make([]asn.ASN, len(path))
	copy(cp, path)
	return Announcement{
		Prefix:     prefix,
		AsPath:     cp,
		NextHopAsn: nextHop,
		Relation:   rel,
		RovInvalid: rovInvalid,
	}
}

// Origin builds the seed Announcement an AS installs for a prefix it
// originates: as_path = [asn], next_hop = asn, relationship = ORIGIN.
func Origin(owner asn.ASN, prefix string, rovInvalid bool) Announcement {
	return New(prefix, []asn.ASN{owner}, owner, asn.Origin, rovInvalid)
}

// WithRelay returns a copy of a carrying the same prefix, AS path and ROV
// flag but a new next-hop ASN and relationship tag — the shape every
// propagation phase needs when handing one AS's local RIB entry to a
// neighbor.
func (a Announcement) WithRelay(nextHop asn.ASN, rel asn.RelationshipTag) Announcement {
	return New(a.Prefix, a.AsPath, nextHop, rel, a.RovInvalid)
}

// Prepend returns a copy of a with owner inserted at the front of the AS
// path, as done during BGP selection once a candidate has won.
func (a Announcement) Prepend(owner asn.ASN) Announcement {
	path := make([]asn.ASN, 0, len(a.AsPath)+1)
	path = append(path, owner)
	path = append(path, a.AsPath...)
	a.AsPath = path
	return a
}

// ContainsAsn reports whether owner already appears anywhere in the AS
// path — the loop-prevention check performed before installation.
func (a Announcement) ContainsAsn(owner asn.ASN) bool {
	for _, hop := range a.AsPath {
		if hop == owner {
			return true
		}
	}
	return false
}
