// Package decl implements declaration collection: walking a module type's
// declared methods (after transitive includes closure) and classifying each
// into the shape the binding factories (internal/binding) consume.
//
// Follows a declaration-collection visitor idiom targeted at model.Program
// instead of a host AST: walk declared members in source order, switch on a
// small set of marker annotations, and accumulate into typed buckets rather
// than emitting bindings directly.
package decl

import (
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/set"
)

// Marker annotation names recognized on module methods.
const (
	AnnotationModule          = "Module"
	AnnotationProvides        = "Provides"
	AnnotationProduces        = "Produces"
	AnnotationBinds           = "Binds"
	AnnotationMultibinds      = "Multibinds"
	AnnotationBindsOptionalOf = "BindsOptionalOf"
	AnnotationIntoSet         = "IntoSet"
	AnnotationIntoMap         = "IntoMap"
	AnnotationElementsIntoSet = "ElementsIntoSet"
	AnnotationNullable        = "Nullable"
	AnnotationConstructorOK   = "AllowsConstructorParameters"

	memberIncludes      = "includes"
	memberSubcomponents = "subcomponents"

	setFQN = "java.util.Set"
	mapFQN = "java.util.Map"
)

// ContributionType is the closed set of multibinding contribution shapes.
type ContributionType int

const (
	ContributionUnique ContributionType = iota
	ContributionSet
	ContributionSetValues
	ContributionMap
)

// MethodKind classifies a recognized module method.
type MethodKind int

const (
	KindProvision MethodKind = iota
	KindProduction
	KindDelegate
	KindMultibindsDeclaration
	KindOptionalOf
)

// ModuleRef pairs a module's Type with the Element used to walk its declared
// members. The L1 Program Model keeps Type and Element separate (a Type is a
// bare structural reference; an Element is a declaration site with modifiers
// and enclosing-element links), so callers building the module set must
// supply both.
type ModuleRef struct {
	Type    model.Type
	Element model.Element
}

// MethodDeclaration is one recognized module method, classified and keyed.
type MethodDeclaration struct {
	Element          model.Executable
	Module           ModuleRef
	Kind             MethodKind
	Key              key.Key
	ContributionType ContributionType
	MapKey           *key.MapKey
	Scope            *key.Scope
	IsNullable       bool
}

// ModuleDeclarations is everything recognized in one module, before the
// transitive includes/subcomponents closure is resolved.
type ModuleDeclarations struct {
	Module                    ModuleRef
	Provisions                []MethodDeclaration
	Delegates                 []MethodDeclaration
	MultibindsDeclarations    []MethodDeclaration
	OptionalDeclarations      []MethodDeclaration
	IncludedModules           []model.Type
	SubcomponentDeclarations  []model.Type
}

// Declarations is the transitive-closure result of Collect: every module
// reachable from the roots via @Module(includes=...), deduplicated by
// canonical type id, each collected independently.
type Declarations struct {
	Modules []*ModuleDeclarations
}

// AllProvisions returns every Provision/Production method across all
// collected modules, in module-then-declaration order.
func (d *Declarations) AllProvisions() []MethodDeclaration {
	var out []MethodDeclaration
	for _, m := range d.Modules {
		out = append(out, m.Provisions...)
	}
	return out
}

// AllDelegates returns every @Binds-shaped method across all collected modules.
func (d *Declarations) AllDelegates() []MethodDeclaration {
	var out []MethodDeclaration
	for _, m := range d.Modules {
		out = append(out, m.Delegates...)
	}
	return out
}

// AllMultibindsDeclarations returns every @Multibinds method across all
// collected modules.
func (d *Declarations) AllMultibindsDeclarations() []MethodDeclaration {
	var out []MethodDeclaration
	for _, m := range d.Modules {
		out = append(out, m.MultibindsDeclarations...)
	}
	return out
}

// AllOptionalDeclarations returns every @BindsOptionalOf method across all
// collected modules.
func (d *Declarations) AllOptionalDeclarations() []MethodDeclaration {
	var out []MethodDeclaration
	for _, m := range d.Modules {
		out = append(out, m.OptionalDeclarations...)
	}
	return out
}

// Collect walks roots and their transitive includes closure, classifying each
// module's declared methods. Diagnostics accumulate ill-formed declarations
// rather than aborting the walk, so a caller sees every problem in one
// compile round.
func Collect(p model.Program, roots []ModuleRef) (*Declarations, diag.Diagnostics) {
	var ds diag.Diagnostics
	seen := set.NewSet[string]()
	var result Declarations

	var visit func(ref ModuleRef)
	visit = func(ref ModuleRef) {
		id := key.CanonicalTypeID(ref.Type)
		if seen.Contains(id) {
			return
		}
		seen.Add(id)

		md, modDiags := CollectModule(p, ref)
		ds = append(ds, modDiags...)
		result.Modules = append(result.Modules, md)

		for _, included := range md.IncludedModules {
			includedElem, err := p.DeclarationOf(included)
			if err != nil {
				ds = append(ds, diag.ComponentShapeError{
					Component: nameOf(included),
					Reason:    "included module declaration unavailable in this round: " + err.Error(),
				})
				continue
			}
			visit(ModuleRef{Type: included, Element: includedElem})
		}
	}
	for _, r := range roots {
		visit(r)
	}
	return &result, ds
}

// CollectModule classifies the declared members of one module, without
// descending into includes.
func CollectModule(p model.Program, ref ModuleRef) (*ModuleDeclarations, diag.Diagnostics) {
	var ds diag.Diagnostics
	md := &ModuleDeclarations{Module: ref}

	if err := rejectUnwhitelistedConstructor(p, ref); err != nil {
		ds = append(ds, err)
	}

	for _, ann := range p.AnnotationsOf(ref.Element) {
		if ann.Name() != AnnotationModule {
			continue
		}
		if v, ok := ann.Value(memberIncludes); ok {
			md.IncludedModules = append(md.IncludedModules, asTypes(v)...)
		}
		if v, ok := ann.Value(memberSubcomponents); ok {
			md.SubcomponentDeclarations = append(md.SubcomponentDeclarations, asTypes(v)...)
		}
	}

	for _, elem := range p.ElementOrder(ref.Element) {
		exec, ok := elem.(model.Executable)
		if !ok || exec.IsConstructor() {
			continue
		}
		switch {
		case hasAnnotation(p, exec, AnnotationProvides):
			md.Provisions = append(md.Provisions, classifyProvisionLike(p, ref, exec, KindProvision, false, &ds))
		case hasAnnotation(p, exec, AnnotationProduces):
			md.Provisions = append(md.Provisions, classifyProvisionLike(p, ref, exec, KindProduction, true, &ds))
		case hasAnnotation(p, exec, AnnotationBinds):
			if d, ok := classifyDelegate(p, ref, exec, &ds); ok {
				md.Delegates = append(md.Delegates, d)
			}
		case hasAnnotation(p, exec, AnnotationMultibinds):
			md.MultibindsDeclarations = append(md.MultibindsDeclarations, classifyMultibindsDeclaration(p, ref, exec, &ds))
		case hasAnnotation(p, exec, AnnotationBindsOptionalOf):
			md.OptionalDeclarations = append(md.OptionalDeclarations, classifyOptionalOf(p, ref, exec))
		}
	}
	return md, ds
}

func classifyProvisionLike(p model.Program, ref ModuleRef, exec model.Executable, kind MethodKind, isProduction bool, ds *diag.Diagnostics) MethodDeclaration {
	qualifier, err := key.QualifierOf(p, exec)
	if err != nil {
		*ds = append(*ds, diag.EntryPointError{Method: exec.Name(), Reason: err.Error()})
	}
	scope, err := key.ScopeOf(p, exec)
	if err != nil {
		*ds = append(*ds, diag.EntryPointError{Method: exec.Name(), Reason: err.Error()})
	}

	returnType := exec.ReturnType()
	contribType, mapKey := classifyContribution(p, exec, returnType)

	k := key.Of(returnType, qualifier)
	if contribType != ContributionUnique {
		k = k.WithContribution(exec.Name())
	}

	return MethodDeclaration{
		Element:          exec,
		Module:           ref,
		Kind:             kind,
		Key:              k,
		ContributionType: contribType,
		MapKey:           mapKey,
		Scope:            scope,
		IsNullable:       hasAnnotation(p, exec, AnnotationNullable) && !isProduction,
	}
}

func classifyContribution(p model.Program, exec model.Executable, returnType model.Type) (ContributionType, *key.MapKey) {
	switch {
	case hasAnnotation(p, exec, AnnotationIntoSet):
		return ContributionSet, nil
	case hasAnnotation(p, exec, AnnotationElementsIntoSet):
		return ContributionSetValues, nil
	case hasAnnotation(p, exec, AnnotationIntoMap):
		return ContributionMap, mapKeyOf(p, exec)
	default:
		return ContributionUnique, nil
	}
}

// mapKeyOf finds the single map-key marker annotation on exec (an annotation
// itself annotated @MapKey, mirroring the scope/qualifier meta-marker pattern
// in internal/key) and builds a key.MapKey from it.
func mapKeyOf(p model.Program, exec model.Executable) *key.MapKey {
	for _, ann := range p.AnnotationsOf(exec) {
		if len(p.AnnotatedAnnotations(ann.Declaration(), "MapKey")) == 0 {
			continue
		}
		if v, ok := ann.Value("value"); ok {
			if t, ok := v.(model.Type); ok {
				return &key.MapKey{Strategy: key.MapKeyClass, Class: t}
			}
			if s, ok := v.(string); ok {
				return &key.MapKey{Strategy: key.MapKeyString, String_: s}
			}
		}
		return &key.MapKey{Strategy: key.MapKeyString, String_: ann.String()}
	}
	return nil
}

// classifyDelegate enforces the @Binds shape rule: must be abstract, take
// one parameter, return a supertype of the parameter.
func classifyDelegate(p model.Program, ref ModuleRef, exec model.Executable, ds *diag.Diagnostics) (MethodDeclaration, bool) {
	params := exec.Parameters()
	if !exec.IsAbstract() || len(params) != 1 {
		*ds = append(*ds, diag.DelegateTypeError{
			Method:     exec.Name(),
			ParamType:  paramTypeNames(params),
			ReturnType: nameOf(exec.ReturnType()),
		})
		return MethodDeclaration{}, false
	}
	paramType := params[0].Type
	returnType := exec.ReturnType()
	if !returnType.IsAssignableFrom(paramType) {
		*ds = append(*ds, diag.DelegateTypeError{
			Method:     exec.Name(),
			ParamType:  nameOf(paramType),
			ReturnType: nameOf(returnType),
		})
		return MethodDeclaration{}, false
	}

	qualifier, _ := key.QualifierOf(p, exec)
	scope, _ := key.ScopeOf(p, exec)
	contribType, mapKey := classifyContribution(p, exec, returnType)
	k := key.Of(returnType, qualifier)
	if contribType != ContributionUnique {
		k = k.WithContribution(exec.Name())
	}
	return MethodDeclaration{
		Element:          exec,
		Module:           ref,
		Kind:             KindDelegate,
		Key:              k,
		ContributionType: contribType,
		MapKey:           mapKey,
		Scope:            scope,
		IsNullable:       hasAnnotation(p, exec, AnnotationNullable),
	}, true
}

func classifyMultibindsDeclaration(p model.Program, ref ModuleRef, exec model.Executable, ds *diag.Diagnostics) MethodDeclaration {
	returnType := exec.ReturnType()
	if len(exec.Parameters()) != 0 {
		*ds = append(*ds, diag.MultibindingCoherenceError{
			Key:     key.Of(returnType, nil),
			Problem: "@Multibinds method " + exec.Name() + " must take no parameters",
		})
	}
	qualifier, _ := key.QualifierOf(p, exec)
	return MethodDeclaration{
		Element: exec,
		Module:  ref,
		Kind:    KindMultibindsDeclaration,
		Key:     aggregateKeyOf(returnType, qualifier),
	}
}

// aggregateKeyOf builds the same synthetic Set<T>/Map<V> key contributions use
// (key.SetOf/key.MapOf) from a @Multibinds method's literal java.util.Set<T>
// or java.util.Map<K,V> return type, so a bare multibinds declaration and an
// actual contribution always collide on the same string identity.
func aggregateKeyOf(returnType model.Type, qualifier *model.Annotation) key.Key {
	erasure := returnType.Erasure()
	if erasure == nil {
		erasure = returnType
	}
	args := returnType.TypeArguments()
	switch erasure.Name() {
	case setFQN:
		if len(args) == 1 {
			return key.SetOf(key.Of(args[0], qualifier))
		}
	case mapFQN:
		if len(args) == 2 {
			return key.MapOf(key.Of(args[1], qualifier))
		}
	}
	return key.Of(returnType, qualifier)
}

func classifyOptionalOf(p model.Program, ref ModuleRef, exec model.Executable) MethodDeclaration {
	qualifier, _ := key.QualifierOf(p, exec)
	return MethodDeclaration{
		Element: exec,
		Module:  ref,
		Kind:    KindOptionalOf,
		Key:     key.Of(exec.ReturnType(), qualifier),
	}
}

func rejectUnwhitelistedConstructor(p model.Program, ref ModuleRef) diag.Diagnostic {
	whitelisted := hasAnnotation(p, ref.Element, AnnotationConstructorOK)
	for _, elem := range p.ElementOrder(ref.Element) {
		exec, ok := elem.(model.Executable)
		if !ok || !exec.IsConstructor() {
			continue
		}
		if len(exec.Parameters()) > 0 && !whitelisted {
			return diag.ModuleConstructionError{Module: nameOf(ref.Type)}
		}
	}
	return nil
}

func hasAnnotation(p model.Program, elem model.Element, name string) bool {
	for _, ann := range p.AnnotationsOf(elem) {
		if ann.Name() == name {
			return true
		}
	}
	return false
}

func asTypes(v any) []model.Type {
	switch vv := v.(type) {
	case []model.Type:
		return vv
	case model.Type:
		return []model.Type{vv}
	default:
		return nil
	}
}

func nameOf(t model.Type) string {
	if t == nil {
		return "<none>"
	}
	return t.Name()
}

func paramTypeNames(params []model.Parameter) string {
	if len(params) == 0 {
		return "<none>"
	}
	if len(params) == 1 {
		return nameOf(params[0].Type)
	}
	s := ""
	for i, p := range params {
		if i > 0 {
			s += ", "
		}
		s += nameOf(p.Type)
	}
	return s
}
