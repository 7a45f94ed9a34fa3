// Package key implements the canonical Key and Scope model. Identity here is
// always by canonical string, the same approach the teacher's
// internal/dep_graph takes for its BindingKey ("value:foo.bar",
// "type:foo.MyType"): two structurally equal model.Type values must collapse
// to the same string regardless of how each was spelled or imported in
// source.
package key

import (
	"sort"
	"strings"

	"github.com/bindgraph-core/bindgraph/internal/model"
)

// RequestKind is the closed enum of ways a dependency may be requested.
type RequestKind int

const (
	RequestInstance RequestKind = iota
	RequestProvider
	RequestLazy
	RequestProviderOfLazy
	RequestMembersInjection
	RequestProducer
	RequestProduced
	RequestFuture
)

func (k RequestKind) String() string {
	switch k {
	case RequestInstance:
		return "instance"
	case RequestProvider:
		return "provider"
	case RequestLazy:
		return "lazy"
	case RequestProviderOfLazy:
		return "provider_of_lazy"
	case RequestMembersInjection:
		return "members_injection"
	case RequestProducer:
		return "producer"
	case RequestProduced:
		return "produced"
	case RequestFuture:
		return "future"
	default:
		return "unknown"
	}
}

// frameworkWrapper names the synthetic wrapper type that wrap_into_framework
// peels off or puts on. Returns "" for request kinds that do not wrap the
// underlying key (instance, members_injection).
func frameworkWrapper(rk RequestKind) string {
	switch rk {
	case RequestProvider:
		return "Provider"
	case RequestLazy:
		return "Lazy"
	case RequestProviderOfLazy:
		return "ProviderOfLazy"
	case RequestProducer:
		return "Producer"
	case RequestProduced:
		return "Produced"
	case RequestFuture:
		return "Future"
	default:
		return ""
	}
}

// Fully-qualified names of the host framework types RequestKindOfHostType
// recognizes.
const (
	providerFQN             = "javax.inject.Provider"
	jakartaProviderFQN      = "jakarta.inject.Provider"
	lazyFQN                 = "dagger.Lazy"
	producerFQN             = "dagger.producers.Producer"
	producedFQN             = "dagger.producers.Produced"
	futureFQN               = "java.util.concurrent.Future"
	listenableFutureFQN     = "com.google.common.util.concurrent.ListenableFuture"
)

// RequestKindOfHostType inspects a host Type as it appears in source (an entry
// point return type or a binding method's parameter type) and returns the
// RequestKind it denotes plus the underlying unwrapped Type, recognizing
// nested Provider<Lazy<T>> as RequestProviderOfLazy. Types that are none of
// the recognized framework wrappers pass through as RequestInstance
// unchanged.
func RequestKindOfHostType(t model.Type) (RequestKind, model.Type) {
	if t == nil {
		return RequestInstance, t
	}
	erasure := t.Erasure()
	if erasure == nil {
		erasure = t
	}
	args := t.TypeArguments()
	switch erasure.Name() {
	case providerFQN, jakartaProviderFQN:
		if len(args) != 1 {
			return RequestInstance, t
		}
		inner := args[0]
		innerErasure := inner.Erasure()
		if innerErasure == nil {
			innerErasure = inner
		}
		if innerErasure.Name() == lazyFQN {
			if lazyArgs := inner.TypeArguments(); len(lazyArgs) == 1 {
				return RequestProviderOfLazy, lazyArgs[0]
			}
		}
		return RequestProvider, inner
	case lazyFQN:
		if len(args) == 1 {
			return RequestLazy, args[0]
		}
	case producerFQN:
		if len(args) == 1 {
			return RequestProducer, args[0]
		}
	case producedFQN:
		if len(args) == 1 {
			return RequestProduced, args[0]
		}
	case futureFQN, listenableFutureFQN:
		if len(args) == 1 {
			return RequestFuture, args[0]
		}
	}
	return RequestInstance, t
}

// Key is the canonical identity of a bindable thing: a type, an optional
// qualifier, and an optional multibinding contribution id.
//
// Equality is always structural: two Keys are equal iff their canonical
// strings agree. TypeRef is retained only so callers that need the underlying
// model.Type (e.g. to query Supertypes for delegate-compatibility checks) don't
// have to re-resolve it; it is never consulted for equality.
type Key struct {
	TypeRef      model.Type
	typeID       string
	Qualifier    *model.Annotation
	Contribution string
}

// Of builds a Key for a plain (unwrapped) type reference with an optional
// qualifier.
func Of(t model.Type, qualifier *model.Annotation) Key {
	return Key{TypeRef: t, typeID: CanonicalTypeID(t), Qualifier: qualifier}
}

// WithContribution returns a copy of k identifying one individual multibinding
// contribution, stripped for the effective key.
func (k Key) WithContribution(id string) Key {
	k2 := k
	k2.Contribution = id
	return k2
}

// Effective strips the multibinding_contribution_id, yielding the key
// downstream consumers (everything except the resolver's own bookkeeping) see.
func (k Key) Effective() Key {
	k2 := k
	k2.Contribution = ""
	return k2
}

// TypeID returns the canonical, alias-independent identity string for k's type.
func (k Key) TypeID() string { return k.typeID }

// String returns the full canonical identity, including qualifier and
// contribution id, suitable as a btree.Map/btree.Set key.
func (k Key) String() string {
	var b strings.Builder
	if k.Qualifier != nil {
		b.WriteString(k.Qualifier.String())
		b.WriteByte('@')
	}
	b.WriteString(k.typeID)
	if k.Contribution != "" {
		b.WriteString("#")
		b.WriteString(k.Contribution)
	}
	return b.String()
}

// Equal reports structural equality, including multibinding contribution id.
func (k Key) Equal(other Key) bool { return k.String() == other.String() }

// EqualEffective reports structural equality after stripping contribution ids,
// the comparison used everywhere except multibinding bookkeeping.
func (k Key) EqualEffective(other Key) bool {
	return k.Effective().String() == other.Effective().String()
}

// CanonicalTypeID builds the alias-independent identity string for t: its
// erasure's fully-qualified name plus the canonical ids of its type arguments,
// recursively. Two Types denoting the same type (e.g. imported under different
// aliases) must produce equal Names from the host model; CanonicalTypeID does
// not itself attempt alias resolution beyond trusting Type.Name()/Erasure().
func CanonicalTypeID(t model.Type) string {
	if t == nil {
		return ""
	}
	erasure := t.Erasure()
	if erasure == nil {
		erasure = t
	}
	args := t.TypeArguments()
	if len(args) == 0 {
		return erasure.Name()
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = CanonicalTypeID(a)
	}
	return erasure.Name() + "<" + strings.Join(parts, ",") + ">"
}

// WrapIntoFramework returns the synthetic key identifying the framework-typed
// carrier of k for the given request kind. RequestInstance and
// RequestMembersInjection do not wrap: they return k unchanged.
func WrapIntoFramework(k Key, rk RequestKind) Key {
	wrapper := frameworkWrapper(rk)
	if wrapper == "" {
		return k
	}
	wrapped := k
	wrapped.TypeRef = nil
	wrapped.typeID = wrapper + "<" + k.typeID + ">"
	return wrapped
}

// Unwrap is the inverse of WrapIntoFramework: given a framework-wrapped key and
// the request kind that produced it, returns the bare underlying key. If k does
// not carry the expected wrapper prefix, k is returned unchanged (this can
// happen for synthetic keys built directly, bypassing WrapIntoFramework).
func Unwrap(k Key, rk RequestKind) Key {
	wrapper := frameworkWrapper(rk)
	if wrapper == "" {
		return k
	}
	prefix := wrapper + "<"
	if strings.HasPrefix(k.typeID, prefix) && strings.HasSuffix(k.typeID, ">") {
		inner := k.typeID[len(prefix) : len(k.typeID)-1]
		return Key{typeID: inner, Qualifier: k.Qualifier, Contribution: k.Contribution}
	}
	return k
}

// Synthetic builds a Key with no underlying model.Type, for purely internal
// binding kinds (MultiboundSet/Map, OptionalBinding, MembersInjector) whose
// identity is derived from another key rather than looked up from the host.
func Synthetic(id string, qualifier *model.Annotation) Key {
	return Key{typeID: id, Qualifier: qualifier}
}

// SetOf returns the synthetic key for "Set<elementKey>", the aggregate key a
// set multibinding is published under.
func SetOf(element Key) Key {
	return Key{typeID: "Set<" + element.typeID + ">", Qualifier: element.Qualifier}
}

// MapOf returns the synthetic key for "Map<valueKey>", the aggregate key a map
// multibinding is published under.
func MapOf(value Key) Key {
	return Key{typeID: "Map<" + value.typeID + ">", Qualifier: value.Qualifier}
}

// SortKeys sorts keys by canonical string, giving every caller that needs a
// deterministic iteration order (diagnostics, emission) one without having to
// re-derive a comparator.
func SortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
}
