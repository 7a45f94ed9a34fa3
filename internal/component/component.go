// Package component implements the component descriptor: built bottom-up from
// a component's declared type, its transitively-included modules, and its
// declared subcomponents.
//
// Descriptor.Parent/Children and Path() follow a parentScope-pointer plus
// childScopes-slice shape, with a getScopesFromRoot-style walk for path
// reconstruction.
package component

import (
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/set"
)

// Kind is the closed set of component shapes.
type Kind int

const (
	KindComponent Kind = iota
	KindSubcomponent
	KindProductionComponent
	KindProductionSubcomponent
	KindModuleComponent
)

func (k Kind) IsProduction() bool {
	return k == KindProductionComponent || k == KindProductionSubcomponent
}

func (k Kind) IsSubcomponent() bool {
	return k == KindSubcomponent || k == KindProductionSubcomponent
}

// Annotation/member names recognized on component types.
const (
	AnnotationComponent             = "Component"
	AnnotationSubcomponent          = "Subcomponent"
	AnnotationProductionComponent   = "ProductionComponent"
	AnnotationProductionSubcomponent = "ProductionSubcomponent"
	AnnotationBuilder               = "Component.Builder"
	AnnotationFactory                = "Component.Factory"

	memberModules      = "modules"
	memberDependencies = "dependencies"
)

// EntryPoint is an abstract no-arg provision method or single-parameter
// members-injection method declared directly on a component interface.
type EntryPoint struct {
	Element            model.Executable
	Key                key.Key
	RequestKind        key.RequestKind
	IsMembersInjection bool
}

// CreatorParameter is one @BindsInstance setter/parameter on a component
// creator, or one plain component-dependency parameter.
type CreatorParameter struct {
	Element      model.Parameter
	Key          key.Key
	IsBoundInstance bool
}

// Creator describes a component's @Component.Builder/@Component.Factory type.
type Creator struct {
	Type       model.Type
	Element    model.Element
	Parameters []CreatorParameter
}

// Descriptor is the built component descriptor.
type Descriptor struct {
	Type         model.Type
	Element      model.Element
	Kind         Kind
	Scopes       []key.Scope
	Modules      []decl.ModuleRef
	Declarations *decl.Declarations
	Dependencies []model.Type
	EntryPoints  []EntryPoint
	// ChildFactoryMethods maps a declared method name to the child Descriptor
	// it instantiates, either by returning the subcomponent type directly or
	// by returning the subcomponent's creator type.
	ChildFactoryMethods map[string]*Descriptor
	Creator             *Creator
	Parent              *Descriptor
	Children            []*Descriptor
}

// AtRoot reports whether d has no parent.
func (d *Descriptor) AtRoot() bool { return d.Parent == nil }

// Path returns the root-to-d chain of component types.
func (d *Descriptor) Path() []model.Type {
	var rev []model.Type
	for c := d; c != nil; c = c.Parent {
		rev = append(rev, c.Type)
	}
	path := make([]model.Type, len(rev))
	for i, t := range rev {
		path[len(rev)-1-i] = t
	}
	return path
}

// Build constructs the Descriptor for compRef and recursively for every
// subcomponent reachable through its modules' @Module(subcomponents=...)
// declarations, attaching each as a child with Parent set. Leaves are fully
// built, including their own declarations, before being linked under their
// parent.
func Build(p model.Program, compRef decl.ModuleRef, parent *Descriptor) (*Descriptor, diag.Diagnostics) {
	var ds diag.Diagnostics

	kind, ok := kindOf(p, compRef.Element)
	if !ok {
		ds = append(ds, diag.ComponentShapeError{
			Component: nameOf(compRef.Type),
			Reason:    "missing @Component/@Subcomponent/@ProductionComponent/@ProductionSubcomponent annotation",
		})
		return nil, ds
	}
	if parent == nil && kind.IsSubcomponent() {
		ds = append(ds, diag.ComponentShapeError{
			Component: nameOf(compRef.Type),
			Reason:    "a subcomponent cannot be the compilation root",
		})
	}
	if parent != nil && !kind.IsSubcomponent() {
		ds = append(ds, diag.ComponentShapeError{
			Component: nameOf(compRef.Type),
			Reason:    "a non-subcomponent cannot be installed as a child",
		})
	}

	d := &Descriptor{
		Type:                compRef.Type,
		Element:             compRef.Element,
		Kind:                kind,
		Parent:              parent,
		ChildFactoryMethods: map[string]*Descriptor{},
	}

	d.Scopes = scopesOf(p, compRef.Element)

	moduleRefs, moduleTypes, modDs := resolveTypeList(p, compRef.Element, memberModules)
	ds = append(ds, modDs...)
	d.Modules = moduleRefs
	declarations, declDs := decl.Collect(p, moduleRefs)
	ds = append(ds, declDs...)
	d.Declarations = declarations

	d.Dependencies, _ = resolveTypeListValues(p, compRef.Element, memberDependencies)
	_ = moduleTypes

	eps, childEPDs := classifyEntryPoints(p, compRef.Element)
	ds = append(ds, childEPDs...)

	creator, creatorDs := findCreator(p, compRef.Element)
	ds = append(ds, creatorDs...)
	d.Creator = creator

	// Every declared subcomponent type becomes a child Descriptor, built
	// recursively before being linked under d.
	seenChild := set.NewSet[string]()
	for _, m := range declarations.Modules {
		for _, subType := range m.SubcomponentDeclarations {
			id := key.CanonicalTypeID(subType)
			if seenChild.Contains(id) {
				continue
			}
			seenChild.Add(id)

			subElem, err := p.DeclarationOf(subType)
			if err != nil {
				ds = append(ds, diag.ComponentShapeError{
					Component: nameOf(subType),
					Reason:    "subcomponent declaration unavailable in this round: " + err.Error(),
				})
				continue
			}
			child, childDs := Build(p, decl.ModuleRef{Type: subType, Element: subElem}, d)
			ds = append(ds, childDs...)
			if child != nil {
				d.Children = append(d.Children, child)
			}
		}
	}

	// Entry points that actually name a declared child (factory methods or
	// creator-returning methods) are reclassified as ChildFactoryMethods
	// rather than ordinary provision entry points.
	for _, ep := range eps {
		if child := d.childByTypeID(ep.Key.TypeID()); child != nil {
			d.ChildFactoryMethods[ep.Element.Name()] = child
			continue
		}
		d.EntryPoints = append(d.EntryPoints, ep)
	}

	return d, ds
}

func (d *Descriptor) childByTypeID(id string) *Descriptor {
	for _, c := range d.Children {
		if key.CanonicalTypeID(c.Type) == id {
			return c
		}
		if c.Creator != nil && key.CanonicalTypeID(c.Creator.Type) == id {
			return c
		}
	}
	return nil
}

func kindOf(p model.Program, elem model.Element) (Kind, bool) {
	for _, ann := range p.AnnotationsOf(elem) {
		switch ann.Name() {
		case AnnotationComponent:
			return KindComponent, true
		case AnnotationSubcomponent:
			return KindSubcomponent, true
		case AnnotationProductionComponent:
			return KindProductionComponent, true
		case AnnotationProductionSubcomponent:
			return KindProductionSubcomponent, true
		}
	}
	return KindComponent, false
}

func scopesOf(p model.Program, elem model.Element) []key.Scope {
	var scopes []key.Scope
	for _, ann := range p.AnnotationsOf(elem) {
		if key.IsScopeMarker(p, ann) {
			scopes = append(scopes, key.Scope{Annotation: ann})
		}
	}
	return scopes
}

// resolveTypeList reads a @Component-family annotation member naming a list
// of types (modules=, dependencies=) and resolves each to a ModuleRef via
// Program.DeclarationOf, accumulating a diagnostic per type whose declaration
// is unavailable this round rather than failing the whole component.
func resolveTypeList(p model.Program, elem model.Element, member string) ([]decl.ModuleRef, []model.Type, diag.Diagnostics) {
	types, ds := resolveTypeListValues(p, elem, member)
	refs := make([]decl.ModuleRef, 0, len(types))
	for _, t := range types {
		e, err := p.DeclarationOf(t)
		if err != nil {
			ds = append(ds, diag.ComponentShapeError{
				Component: nameOf(t),
				Reason:    "declaration unavailable in this round: " + err.Error(),
			})
			continue
		}
		refs = append(refs, decl.ModuleRef{Type: t, Element: e})
	}
	return refs, types, ds
}

func resolveTypeListValues(p model.Program, elem model.Element, member string) ([]model.Type, diag.Diagnostics) {
	var ds diag.Diagnostics
	for _, ann := range p.AnnotationsOf(elem) {
		if !isComponentAnnotation(ann.Name()) {
			continue
		}
		v, ok := ann.Value(member)
		if !ok {
			continue
		}
		switch vv := v.(type) {
		case []model.Type:
			return vv, ds
		case model.Type:
			return []model.Type{vv}, ds
		}
	}
	return nil, ds
}

func isComponentAnnotation(name string) bool {
	switch name {
	case AnnotationComponent, AnnotationSubcomponent, AnnotationProductionComponent, AnnotationProductionSubcomponent:
		return true
	}
	return false
}

// classifyEntryPoints recognizes abstract zero-parameter provision methods
// and abstract single-parameter members-injection methods declared directly
// on the component type. Methods whose return type wraps a framework type
// (Provider<T>, Lazy<T>, ...) are unwrapped so the entry point's Key always
// names the underlying binding.
func classifyEntryPoints(p model.Program, elem model.Element) ([]EntryPoint, diag.Diagnostics) {
	var eps []EntryPoint
	var ds diag.Diagnostics
	for _, child := range p.ElementOrder(elem) {
		exec, ok := child.(model.Executable)
		if !ok || exec.IsConstructor() || !exec.IsAbstract() {
			continue
		}
		params := exec.Parameters()
		switch len(params) {
		case 0:
			returnType := exec.ReturnType()
			if returnType == nil {
				continue
			}
			rk, unwrapped := key.RequestKindOfHostType(returnType)
			qualifier, err := key.QualifierOf(p, exec)
			if err != nil {
				ds = append(ds, diag.EntryPointError{Method: exec.Name(), Reason: err.Error()})
			}
			eps = append(eps, EntryPoint{
				Element:     exec,
				Key:         key.Of(unwrapped, qualifier),
				RequestKind: rk,
			})
		case 1:
			eps = append(eps, EntryPoint{
				Element:            exec,
				Key:                key.Of(params[0].Type, nil),
				RequestKind:        key.RequestMembersInjection,
				IsMembersInjection: true,
			})
		default:
			ds = append(ds, diag.EntryPointError{
				Method: exec.Name(),
				Reason: "entry point methods take at most one parameter",
			})
		}
	}
	return eps, ds
}

// findCreator looks for a nested @Component.Builder/@Component.Factory type
// declared directly inside elem.
func findCreator(p model.Program, elem model.Element) (*Creator, diag.Diagnostics) {
	var ds diag.Diagnostics
	for _, child := range p.ElementOrder(elem) {
		nested, ok := child.(model.NestedTypeElement)
		if !ok {
			continue
		}
		isCreator := false
		for _, ann := range p.AnnotationsOf(nested) {
			if ann.Name() == AnnotationBuilder || ann.Name() == AnnotationFactory {
				isCreator = true
			}
		}
		if !isCreator {
			continue
		}
		c := &Creator{Type: nested.AsType(), Element: nested}
		for _, member := range p.ElementOrder(nested) {
			exec, ok := member.(model.Executable)
			if !ok || exec.IsConstructor() {
				continue
			}
			for _, param := range exec.Parameters() {
				isBound := hasAnnotationNamed(p, exec, "BindsInstance")
				c.Parameters = append(c.Parameters, CreatorParameter{
					Element:         param,
					Key:             key.Of(param.Type, nil),
					IsBoundInstance: isBound,
				})
			}
		}
		return c, ds
	}
	return nil, ds
}

func hasAnnotationNamed(p model.Program, elem model.Element, name string) bool {
	for _, ann := range p.AnnotationsOf(elem) {
		if ann.Name() == name {
			return true
		}
	}
	return false
}

func nameOf(t model.Type) string {
	if t == nil {
		return "<none>"
	}
	return t.Name()
}
