package key

import "github.com/bindgraph-core/bindgraph/internal/model"

// MapKeyStrategy distinguishes the two parallel ways a map multibinding entry
// may name its key: a class/type literal or a string literal, switched by an
// experimental option. Both strategies must produce identical effective keys.
type MapKeyStrategy int

const (
	// MapKeyClass names an entry by a class/type literal (e.g. @ClassKey(Foo.class)).
	MapKeyClass MapKeyStrategy = iota
	// MapKeyString names an entry by a string literal (e.g. @StringKey("foo")).
	MapKeyString
)

// MapKey is one multibinding map entry's key, in either source strategy.
type MapKey struct {
	Strategy MapKeyStrategy
	Class    model.Type
	String_  string
}

// Canonical lowers a MapKey into a comparable string: "class:" plus the
// canonical type id for a class-valued key, "string:" plus the literal for a
// string-valued key. The prefixes keep the two strategies' values disjoint.
func (m MapKey) Canonical() string {
	switch m.Strategy {
	case MapKeyClass:
		return "class:" + CanonicalTypeID(m.Class)
	default:
		return "string:" + m.String_
	}
}

// Equal reports whether two MapKeys denote the same map entry by comparing
// their Canonical forms; keys from different strategies are never equal.
func (m MapKey) Equal(other MapKey) bool { return m.Canonical() == other.Canonical() }
