// Package binding implements the Binding sum type and the binding factories:
// pure functions from (declaration, context) to a Binding value. Nothing
// here touches the resolver's search order or ownership assignment
// (internal/resolver); this package only knows how to shape one binding once
// its contributing declaration is already known.
package binding

import (
	"errors"

	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/moznion/go-optional"
)

// Kind is the closed sum-type discriminant.
type Kind int

const (
	KindInjection Kind = iota
	KindProvision
	KindProduction
	KindDelegate
	KindComponentProvision
	KindComponentProduction
	KindBoundInstance
	KindSubcomponentCreator
	KindMultiboundSet
	KindMultiboundMap
	KindOptionalBinding
	KindMembersInjector
	KindAssistedInjection
	KindAssistedFactory
)

func (k Kind) String() string {
	switch k {
	case KindInjection:
		return "injection"
	case KindProvision:
		return "provision"
	case KindProduction:
		return "production"
	case KindDelegate:
		return "delegate"
	case KindComponentProvision:
		return "component_provision"
	case KindComponentProduction:
		return "component_production"
	case KindBoundInstance:
		return "bound_instance"
	case KindSubcomponentCreator:
		return "subcomponent_creator"
	case KindMultiboundSet:
		return "multibound_set"
	case KindMultiboundMap:
		return "multibound_map"
	case KindOptionalBinding:
		return "optional_binding"
	case KindMembersInjector:
		return "members_injector"
	case KindAssistedInjection:
		return "assisted_injection"
	case KindAssistedFactory:
		return "assisted_factory"
	default:
		return "unknown"
	}
}

// DependencyRequest: two requests with identical Kind+Key from different
// declaration sites are distinct values. Callers that need request identity
// (diagnostics, emission) compare by slice index/pointer, never by
// DependencyRequest equality. Go structs compare by value, and two
// textually-identical parameters at different sites must stay distinguishable.
type DependencyRequest struct {
	Kind           key.RequestKind
	Key            key.Key
	RequestElement model.Element
	IsNullable     bool
	// MapKey is set only for a dependency that is itself one contribution to
	// a MultiboundMap binding.
	MapKey *key.MapKey
}

// Binding is the sum type, represented as one flat struct carrying every
// field any Kind might need; Kind tells a consumer which fields are
// meaningful, the same shape discipline the teacher applies to checker.Error.
type Binding struct {
	Key                 key.Key
	Kind                Kind
	Scope               *key.Scope
	Dependencies        []DependencyRequest
	ContributingModule  *decl.ModuleRef
	BindingElement      model.Executable
	IsNullable          bool
	IsProduction        bool
	ContributionType    decl.ContributionType
	MapKey              *key.MapKey
	// SubcomponentType is set only for KindSubcomponentCreator.
	SubcomponentType model.Type
	// OwningComponentType is set only for KindComponentProvision/Production:
	// the component-dependency this binding is inherited from.
	OwningComponentType model.Type
}

// ErrProducerFromProvision is returned by LowerFrameworkType when a provision
// (non-production) binding is asked to satisfy a producer/produced/future
// request.
var ErrProducerFromProvision = errors.New("binding: provision binding cannot satisfy a producer/produced/future request")

// FrameworkMapper distinguishes the provider-typed and producer-typed framework
// field shapes a dependency can be lowered into.
type FrameworkMapper int

const (
	MapperProvider FrameworkMapper = iota
	MapperProducerNode
)

// LowerFrameworkType picks the framework field shape for a dependency
// request kind, selected by the containing binding's production-ness.
func LowerFrameworkType(rk key.RequestKind, bindingIsProduction bool) (FrameworkMapper, error) {
	switch rk {
	case key.RequestInstance:
		if bindingIsProduction {
			return MapperProducerNode, nil
		}
		return MapperProvider, nil
	case key.RequestProvider, key.RequestLazy, key.RequestProviderOfLazy:
		return MapperProvider, nil
	case key.RequestProducer, key.RequestProduced, key.RequestFuture:
		if !bindingIsProduction {
			return 0, ErrProducerFromProvision
		}
		return MapperProducerNode, nil
	default:
		return MapperProvider, nil
	}
}

// FromProvision builds a Provision or Production binding from a declaration
// classified by internal/decl as KindProvision/KindProduction.
func FromProvision(d decl.MethodDeclaration) Binding {
	isProduction := d.Kind == decl.KindProduction
	k := KindProvision
	if isProduction {
		k = KindProduction
	}
	return Binding{
		Key:                d.Key,
		Kind:               k,
		Scope:              d.Scope,
		Dependencies:       dependenciesFromParameters(d.Element, isProduction),
		ContributingModule: &d.Module,
		BindingElement:     d.Element,
		IsNullable:         d.IsNullable,
		IsProduction:       isProduction,
		ContributionType:   d.ContributionType,
		MapKey:             d.MapKey,
	}
}

// FromDelegate builds a Delegate binding from an @Binds-shaped declaration,
// which must forward to a binding of an assignable type.
func FromDelegate(d decl.MethodDeclaration) Binding {
	param := d.Element.Parameters()[0]
	rk, unwrapped := key.RequestKindOfHostType(param.Type)
	return Binding{
		Key:                d.Key,
		Kind:               KindDelegate,
		Scope:              d.Scope,
		ContributingModule: &d.Module,
		BindingElement:     d.Element,
		IsNullable:         d.IsNullable,
		ContributionType:   d.ContributionType,
		MapKey:             d.MapKey,
		Dependencies: []DependencyRequest{{
			Kind:           rk,
			Key:            key.Of(unwrapped, nil),
			RequestElement: d.Element,
		}},
	}
}

// FromInjectableConstructor builds an Injection binding from an
// @Inject-annotated constructor.
func FromInjectableConstructor(ctor model.Executable, resultKey key.Key, scope *key.Scope) Binding {
	return Binding{
		Key:            resultKey,
		Kind:           KindInjection,
		Scope:          scope,
		BindingElement: ctor,
		Dependencies:   dependenciesFromParameters(ctor, false),
	}
}

// BoundInstance builds the binding for a value supplied directly to a
// component's creator: no dependencies.
func BoundInstance(k key.Key) Binding {
	return Binding{Key: k, Kind: KindBoundInstance}
}

// ComponentProvision/ComponentProduction model an inherited provider from a
// component listed in @Component(dependencies=...).
func ComponentProvision(method model.Executable, depComponentType model.Type, k key.Key) Binding {
	return Binding{Key: k, Kind: KindComponentProvision, BindingElement: method, OwningComponentType: depComponentType}
}

func ComponentProduction(method model.Executable, depComponentType model.Type, k key.Key) Binding {
	return Binding{Key: k, Kind: KindComponentProduction, BindingElement: method, OwningComponentType: depComponentType, IsProduction: true}
}

// SubcomponentCreator builds the binding connecting a creator key to the
// child component it instantiates. The dependency edge itself is
// internal/graph's concern; this only shapes the binding.
func SubcomponentCreator(creatorKey key.Key, childType model.Type) Binding {
	return Binding{Key: creatorKey, Kind: KindSubcomponentCreator, SubcomponentType: childType}
}

// MembersInjector synthesizes the binding that injects fields/methods on an
// already-constructed instance.
func MembersInjector(injectableKey key.Key, injectionSites []DependencyRequest) Binding {
	return Binding{Key: injectableKey, Kind: KindMembersInjector, Dependencies: injectionSites}
}

// SynthesizeSet builds the MultiboundSet aggregate from its contributions.
// With zero contributions, Dependencies is empty and the emission planner
// must pick factory_creation_strategy = singleton_instance returning an
// empty set; with at least one, it picks class_constructor. That choice is
// the emission planner's, not this package's, since it is purely a
// code-generation decision with no bearing on graph shape.
func SynthesizeSet(setKey key.Key, contributions []decl.MethodDeclaration, isProduction bool) Binding {
	deps := make([]DependencyRequest, 0, len(contributions))
	for _, c := range contributions {
		rk := key.RequestInstance
		if c.Kind == decl.KindProduction {
			rk = key.RequestProduced
		}
		deps = append(deps, DependencyRequest{
			Kind:           rk,
			Key:            c.Key.Effective(),
			RequestElement: c.Element,
		})
	}
	return Binding{
		Key:              setKey,
		Kind:             KindMultiboundSet,
		Dependencies:     deps,
		IsProduction:     isProduction,
		ContributionType: decl.ContributionSet,
	}
}

// SynthesizeMap builds the MultiboundMap aggregate: one dependency per map
// entry, each carrying its MapKey. If the map is a production map, all
// entries are lifted to producer types, modeled here by requesting
// RequestProduced instead of RequestInstance for every entry when
// isProduction holds. Unlike SynthesizeSet, which picks each dependency's
// kind from its own contribution, the map applies the map-wide flag.
func SynthesizeMap(mapKey key.Key, contributions []decl.MethodDeclaration, isProduction bool) Binding {
	deps := make([]DependencyRequest, 0, len(contributions))
	for _, c := range contributions {
		rk := key.RequestInstance
		if isProduction {
			rk = key.RequestProduced
		}
		deps = append(deps, DependencyRequest{
			Kind:           rk,
			Key:            c.Key.Effective(),
			RequestElement: c.Element,
			MapKey:         c.MapKey,
		})
	}
	return Binding{
		Key:              mapKey,
		Kind:             KindMultiboundMap,
		Dependencies:     deps,
		IsProduction:     isProduction,
		ContributionType: decl.ContributionMap,
	}
}

// SynthesizeOptional builds the OptionalBinding wrapping presence/absence of
// the underlying key. underlying is optional.None when no binding for the
// wrapped key exists anywhere in the graph, producing a binding with no
// dependencies (the "absent" case).
func SynthesizeOptional(optionalKey key.Key, underlying optional.Option[DependencyRequest]) Binding {
	b := Binding{Key: optionalKey, Kind: KindOptionalBinding}
	underlying.IfSome(func(dep DependencyRequest) {
		b.Dependencies = []DependencyRequest{dep}
	})
	return b
}

// dependenciesFromParameters classifies every parameter of exec into a
// DependencyRequest, unwrapping framework types. A parameter declared as
// Produced<T> becomes RequestProduced whatever the binding kind (produced
// values expose both value and failure, distinct from a bare
// provider/producer handle); isProduction is not consulted here.
func dependenciesFromParameters(exec model.Executable, isProduction bool) []DependencyRequest {
	params := exec.Parameters()
	deps := make([]DependencyRequest, 0, len(params))
	for i := range params {
		rk, unwrapped := key.RequestKindOfHostType(params[i].Type)
		deps = append(deps, DependencyRequest{
			Kind:           rk,
			Key:            key.Of(unwrapped, nil),
			RequestElement: exec,
		})
	}
	return deps
}
