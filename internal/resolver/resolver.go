// Package resolver implements the resolver: for each component in the
// hierarchy, compute ResolvedBindings for every key transitively required by
// its entry points and by the entry points of ancestor components that its
// bindings participate in.
//
// Each resolver holds a reference to its parent for upward lookup, and all
// internal collections preserve insertion order for deterministic traversal.
//
// Simplification recorded in DESIGN.md: the ownership-hoisting rule (if a
// resolved binding's dependencies are all satisfiable at an ancestor,
// ownership moves up to it) is not implemented as a fixpoint search; a
// binding's owner is always the nearest component whose own declarations (or
// whose dependency/bound-instance/multibinding visibility) first makes it
// resolvable. This is a valid, if not maximally-hoisted, binding graph.
package resolver

import (
	"sort"

	"github.com/bindgraph-core/bindgraph/internal/binding"
	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/tidwall/btree"
)

const injectAnnotation = "Inject"

// ResolvedBindings is the per-(component,key) aggregate.
type ResolvedBindings struct {
	OwningComponent          *component.Descriptor
	Key                      key.Key
	ContributionBindings     []binding.Binding
	MembersInjectionBinding  *binding.Binding
	MultibindingDeclarations []decl.MethodDeclaration
	OptionalDeclarations     []decl.MethodDeclaration
	SubcomponentDeclarations []model.Type
}

type cycleFrame struct {
	key  key.Key
	kind key.RequestKind
}

// Resolver resolves one component, holding a reference to its parent's
// resolver for upward lookup.
type Resolver struct {
	Program   model.Program
	Component *component.Descriptor
	Parent    *Resolver
	Children  []*Resolver

	resolved   btree.Map[string, *ResolvedBindings]
	cycleStack []cycleFrame

	diags diag.Diagnostics
}

// Resolve builds the Resolver for comp and runs its resolution algorithm,
// then recurses into comp's children so a child resolver can reference, but
// never re-resolve, a key its parent already owns.
func Resolve(p model.Program, comp *component.Descriptor, parent *Resolver) (*Resolver, diag.Diagnostics) {
	r := &Resolver{Program: p, Component: comp, Parent: parent}

	for _, ep := range comp.EntryPoints {
		r.resolve(binding.DependencyRequest{Kind: ep.RequestKind, Key: ep.Key, RequestElement: ep.Element})
	}

	ds := append(diag.Diagnostics{}, r.diags...)
	for _, child := range comp.Children {
		childResolver, childDs := Resolve(p, child, r)
		r.Children = append(r.Children, childResolver)
		ds = append(ds, childDs...)
	}
	return r, ds
}

// AllResolved returns every ResolvedBindings this resolver itself discovered
// (not those only present in an ancestor's or descendant's own map), in the
// btree.Map's deterministic key-sorted order, for internal/graph's
// tree-to-network walk.
func (r *Resolver) AllResolved() []*ResolvedBindings {
	var out []*ResolvedBindings
	iter := r.resolved.Iter()
	for ok := iter.First(); ok; ok = iter.Next() {
		out = append(out, iter.Value())
	}
	return out
}

// Lookup returns the ResolvedBindings for k, searching this resolver then its
// ancestor chain.
func (r *Resolver) Lookup(k key.Key) (*ResolvedBindings, bool) {
	eff := k.Effective().String()
	for cur := r; cur != nil; cur = cur.Parent {
		if rb, ok := cur.resolved.Get(eff); ok {
			return rb, true
		}
	}
	return nil, false
}

func (r *Resolver) resolve(req binding.DependencyRequest) {
	effKey := req.Key.Effective()
	if _, ok := r.Lookup(effKey); ok {
		return
	}

	for _, frame := range r.cycleStack {
		if frame.key.EqualEffective(effKey) {
			r.reportCycle(effKey, req.Kind)
			return
		}
	}
	r.cycleStack = append(r.cycleStack, cycleFrame{key: effKey, kind: req.Kind})
	defer func() { r.cycleStack = r.cycleStack[:len(r.cycleStack)-1] }()

	rb := r.build(req, effKey)
	if rb == nil {
		return
	}

	// Dependencies are walked, and only afterward is effKey marked resolved
	// (post-order), so a genuine cycle re-enters this function while effKey
	// is still absent from r.resolved and gets caught by the cycleStack check
	// above rather than short-circuited here as "already resolved".
	for _, b := range rb.ContributionBindings {
		if b.Kind == binding.KindMultiboundSet || b.Kind == binding.KindMultiboundMap {
			r.resolveMultiboundContributions(rb)
			continue
		}
		for _, d := range b.Dependencies {
			r.resolve(d)
		}
	}
	if rb.MembersInjectionBinding != nil {
		for _, d := range rb.MembersInjectionBinding.Dependencies {
			r.resolve(d)
		}
	}

	r.resolved.Set(effKey.String(), rb)
}

// resolveMultiboundContributions resolves the dependencies of each
// individual multibinding contribution directly against its own declaration:
// a @IntoSet/@IntoMap method's own parameters, not the aggregate
// Set<T>/Map<K,V> type it publishes into. The generic single-binding search
// in build() never finds these, since contributionsAt filters to
// ContributionUnique declarations only, so they must be resolved here rather
// than through the normal DependencyRequest loop in resolve().
// Each contribution is registered under its own full (contribution-id
// bearing) key, distinct from the aggregate key and from any plain key of the
// same element type.
func (r *Resolver) resolveMultiboundContributions(rb *ResolvedBindings) {
	for _, d := range rb.MultibindingDeclarations {
		if d.Kind == decl.KindMultibindsDeclaration {
			continue
		}
		if _, ok := r.resolved.Get(d.Key.String()); ok {
			continue
		}
		var cb binding.Binding
		if d.Kind == decl.KindDelegate {
			cb = binding.FromDelegate(d)
		} else {
			cb = binding.FromProvision(d)
		}
		r.resolved.Set(d.Key.String(), &ResolvedBindings{
			OwningComponent:      rb.OwningComponent,
			Key:                  d.Key,
			ContributionBindings: []binding.Binding{cb},
		})
		for _, dep := range cb.Dependencies {
			r.resolve(dep)
		}
	}
}

// reportCycle reports a dependency cycle: fatal iff every edge in the cycle
// is RequestKind.instance; otherwise an informational note (gating the note
// on warn_if_injection_factory_generation_fails is internal/options'
// concern; the resolver always records the note, and internal/compiler
// filters it out when the option is off).
func (r *Resolver) reportCycle(closingKey key.Key, closingKind key.RequestKind) {
	start := 0
	for i, frame := range r.cycleStack {
		if frame.key.EqualEffective(closingKey) {
			start = i
			break
		}
	}
	frames := r.cycleStack[start:]
	// frames[0].kind is the edge that entered the cycle from outside it; the
	// cycle's own edges are frames[1:] plus the closing request.
	allInstance := closingKind == key.RequestInstance
	trace := make([]string, 0, len(frames)+1)
	for i, f := range frames {
		if i > 0 && f.kind != key.RequestInstance {
			allInstance = false
		}
		trace = append(trace, f.key.String())
	}
	trace = append(trace, closingKey.String())
	if allInstance {
		r.diags = append(r.diags, diag.DependencyCycleError{Cycle: trace})
	} else {
		r.diags = append(r.diags, diag.InjectionCycleNote{Cycle: trace})
	}
}

func (r *Resolver) build(req binding.DependencyRequest, effKey key.Key) *ResolvedBindings {
	if req.Kind == key.RequestMembersInjection {
		return r.buildMembersInjection(effKey)
	}
	if child := r.childForCreatorKey(effKey); child != nil {
		b := binding.SubcomponentCreator(effKey, child.Type)
		return &ResolvedBindings{OwningComponent: r.Component, Key: effKey, ContributionBindings: []binding.Binding{b}}
	}
	if rb := r.tryMultibinding(effKey); rb != nil {
		return rb
	}
	if rb := r.tryOptional(effKey); rb != nil {
		return rb
	}

	for cur := r; cur != nil; cur = cur.Parent {
		contribs := contributionsAt(r.Program, cur.Component, effKey)
		switch len(contribs) {
		case 0:
			continue
		case 1:
			return &ResolvedBindings{OwningComponent: cur.Component, Key: effKey, ContributionBindings: contribs}
		default:
			r.diags = append(r.diags, diag.DuplicateBindingError{
				Key:           effKey,
				ComponentPath: pathString(cur.Component),
				Sources:       sourceNames(contribs),
			})
			return &ResolvedBindings{OwningComponent: cur.Component, Key: effKey, ContributionBindings: contribs[:1]}
		}
	}

	if b, ok := injectableConstructorBinding(r.Program, effKey); ok {
		if b.Scope != nil && !componentDeclaresScope(r.Component, *b.Scope) {
			r.diags = append(r.diags, diag.IncompatibleScopeError{Key: effKey, Scope: b.Scope.Name(), ComponentPath: pathString(r.Component)})
		}
		return &ResolvedBindings{OwningComponent: r.Component, Key: effKey, ContributionBindings: []binding.Binding{*b}}
	}

	r.diags = append(r.diags, diag.MissingBindingError{Key: effKey, ComponentPath: pathString(r.Component)})
	return nil
}

// buildMembersInjection synthesizes a MembersInjector for the type named by k,
// gathering @Inject-annotated setter-style methods on its declaration as
// injection sites.
func (r *Resolver) buildMembersInjection(k key.Key) *ResolvedBindings {
	if k.TypeRef == nil {
		r.diags = append(r.diags, diag.MembersInjectionError{Type: k.TypeID(), Reason: "no underlying type available for members injection"})
		return nil
	}
	elem, err := r.Program.DeclarationOf(k.TypeRef)
	if err != nil {
		r.diags = append(r.diags, diag.MembersInjectionError{Type: k.TypeID(), Reason: err.Error()})
		return nil
	}
	var sites []binding.DependencyRequest
	for _, child := range r.Program.ElementOrder(elem) {
		exec, ok := child.(model.Executable)
		if !ok || exec.IsConstructor() || !hasInject(r.Program, exec) {
			continue
		}
		params := exec.Parameters()
		if len(params) != 1 {
			continue
		}
		rk, unwrapped := key.RequestKindOfHostType(params[0].Type)
		sites = append(sites, binding.DependencyRequest{Kind: rk, Key: key.Of(unwrapped, nil), RequestElement: exec})
	}
	b := binding.MembersInjector(k, sites)
	return &ResolvedBindings{OwningComponent: r.Component, Key: k, MembersInjectionBinding: &b}
}

// childForCreatorKey reports whether k names a child's creator type or the
// child type itself, i.e. this request is a subcomponent-creator request.
func (r *Resolver) childForCreatorKey(k key.Key) *component.Descriptor {
	for _, c := range r.Component.Children {
		if key.CanonicalTypeID(c.Type) == k.TypeID() {
			return c
		}
		if c.Creator != nil && key.CanonicalTypeID(c.Creator.Type) == k.TypeID() {
			return c
		}
	}
	return nil
}

// tryMultibinding unions contributions from the current component and all
// ancestors, ordered depth-first by component path root-first then
// declaration order. Owner is the lowest (closest to the requesting
// component) component that introduces a local contribution, or the root if
// only ancestor/global contributions exist.
func (r *Resolver) tryMultibinding(k key.Key) *ResolvedBindings {
	chain := r.chainRootFirst()
	var contributions []decl.MethodDeclaration
	var multibindsDecls []decl.MethodDeclaration
	owner := chain[0]
	isProduction := r.Component.Kind.IsProduction()
	isMap := false
	sawAny := false

	for _, comp := range chain {
		for _, pr := range comp.Declarations.AllProvisions() {
			switch pr.ContributionType {
			case decl.ContributionSet, decl.ContributionSetValues:
				if key.SetOf(pr.Key.Effective()).Equal(k) {
					contributions = append(contributions, pr)
					owner, sawAny = comp, true
				}
			case decl.ContributionMap:
				if key.MapOf(pr.Key.Effective()).Equal(k) {
					contributions = append(contributions, pr)
					owner, isMap, sawAny = comp, true, true
				}
			}
		}
		for _, del := range comp.Declarations.AllDelegates() {
			switch del.ContributionType {
			case decl.ContributionSet, decl.ContributionSetValues:
				if key.SetOf(del.Key.Effective()).Equal(k) {
					contributions = append(contributions, del)
					owner, sawAny = comp, true
				}
			case decl.ContributionMap:
				if key.MapOf(del.Key.Effective()).Equal(k) {
					contributions = append(contributions, del)
					owner, isMap, sawAny = comp, true, true
				}
			}
		}
		for _, md := range comp.Declarations.AllMultibindsDeclarations() {
			if md.Key.Equal(k) {
				multibindsDecls = append(multibindsDecls, md)
				sawAny = true
			}
		}
	}
	if !sawAny {
		return nil
	}

	var bindings []binding.Binding
	if isMap {
		bindings = append(bindings, binding.SynthesizeMap(k, contributions, isProduction))
		if dupErr := checkDuplicateMapKeys(k, contributions); dupErr != nil {
			r.diags = append(r.diags, *dupErr)
		}
	} else {
		bindings = append(bindings, binding.SynthesizeSet(k, contributions, isProduction))
	}

	return &ResolvedBindings{
		OwningComponent:          owner,
		Key:                      k,
		ContributionBindings:     bindings,
		MultibindingDeclarations: append(append([]decl.MethodDeclaration{}, contributions...), multibindsDecls...),
	}
}

// tryOptional checks the ancestor chain for an @BindsOptionalOf declaration
// of k's underlying key; owner is the lowest component that has visibility
// of that declaration.
func (r *Resolver) tryOptional(k key.Key) *ResolvedBindings {
	for cur := r; cur != nil; cur = cur.Parent {
		for _, od := range cur.Component.Declarations.AllOptionalDeclarations() {
			underlying := od.Key
			optKey := key.Synthetic("Optional<"+underlying.String()+">", nil)
			if !optKey.Equal(k) {
				continue
			}
			var dep *binding.DependencyRequest
			if _, found := r.Lookup(underlying); found {
				dep = &binding.DependencyRequest{Kind: key.RequestInstance, Key: underlying}
			} else if len(contributionsAtAnyAncestor(r, underlying)) > 0 {
				dep = &binding.DependencyRequest{Kind: key.RequestInstance, Key: underlying}
			}
			var b binding.Binding
			if dep != nil {
				b = binding.Binding{Key: optKey, Kind: binding.KindOptionalBinding, Dependencies: []binding.DependencyRequest{*dep}}
			} else {
				b = binding.Binding{Key: optKey, Kind: binding.KindOptionalBinding}
			}
			return &ResolvedBindings{
				OwningComponent:      cur.Component,
				Key:                  k,
				ContributionBindings: []binding.Binding{b},
				OptionalDeclarations: []decl.MethodDeclaration{od},
			}
		}
	}
	return nil
}

func contributionsAtAnyAncestor(r *Resolver, k key.Key) []binding.Binding {
	for cur := r; cur != nil; cur = cur.Parent {
		if c := contributionsAt(cur.Program, cur.Component, k); len(c) > 0 {
			return c
		}
	}
	return nil
}

// chainRootFirst returns [root, ..., r.Component], the order required for
// deterministic multibinding contribution ordering.
func (r *Resolver) chainRootFirst() []*component.Descriptor {
	var rev []*component.Descriptor
	for c := r.Component; c != nil; c = c.Parent {
		rev = append(rev, c)
	}
	chain := make([]*component.Descriptor, len(rev))
	for i, c := range rev {
		chain[len(rev)-1-i] = c
	}
	return chain
}

// contributionsAt gathers every Unique-kind binding source declared directly
// on comp: provisions, delegates, bound instances, and inherited
// component-dependency provisions. A declaration is owned by the nearest
// ancestor in whose module set it appears.
func contributionsAt(p model.Program, comp *component.Descriptor, k key.Key) []binding.Binding {
	var out []binding.Binding
	for _, pr := range comp.Declarations.AllProvisions() {
		if pr.ContributionType == decl.ContributionUnique && pr.Key.EqualEffective(k) {
			out = append(out, binding.FromProvision(pr))
		}
	}
	for _, del := range comp.Declarations.AllDelegates() {
		if del.ContributionType == decl.ContributionUnique && del.Key.EqualEffective(k) {
			out = append(out, binding.FromDelegate(del))
		}
	}
	if comp.Creator != nil {
		for _, cp := range comp.Creator.Parameters {
			if cp.IsBoundInstance && cp.Key.EqualEffective(k) {
				out = append(out, binding.BoundInstance(cp.Key))
			}
		}
	}
	for _, depType := range comp.Dependencies {
		elem, err := p.DeclarationOf(depType)
		if err != nil {
			continue
		}
		for _, child := range p.ElementOrder(elem) {
			exec, ok := child.(model.Executable)
			if !ok || exec.IsConstructor() || !exec.IsAbstract() || len(exec.Parameters()) != 0 {
				continue
			}
			rk, unwrapped := key.RequestKindOfHostType(exec.ReturnType())
			_ = rk
			candidate := key.Of(unwrapped, nil)
			if !candidate.EqualEffective(k) {
				continue
			}
			if comp.Kind.IsProduction() {
				out = append(out, binding.ComponentProduction(exec, depType, candidate))
			} else {
				out = append(out, binding.ComponentProvision(exec, depType, candidate))
			}
		}
	}
	return out
}

func injectableConstructorBinding(p model.Program, k key.Key) (*binding.Binding, bool) {
	if k.TypeRef == nil {
		return nil, false
	}
	elem, err := p.DeclarationOf(k.TypeRef)
	if err != nil {
		return nil, false
	}
	for _, child := range p.ElementOrder(elem) {
		exec, ok := child.(model.Executable)
		if !ok || !exec.IsConstructor() || !hasInject(p, exec) {
			continue
		}
		scope, _ := key.ScopeOf(p, elem)
		b := binding.FromInjectableConstructor(exec, k, scope)
		return &b, true
	}
	return nil, false
}

func hasInject(p model.Program, elem model.Element) bool {
	for _, ann := range p.AnnotationsOf(elem) {
		if ann.Name() == injectAnnotation {
			return true
		}
	}
	return false
}

func componentDeclaresScope(comp *component.Descriptor, s key.Scope) bool {
	for _, cs := range comp.Scopes {
		if cs.Equal(s) {
			return true
		}
	}
	return false
}

func checkDuplicateMapKeys(aggregateKey key.Key, contributions []decl.MethodDeclaration) *diag.DuplicateMapKeyError {
	seen := map[string][]string{}
	for _, c := range contributions {
		if c.MapKey == nil {
			continue
		}
		canon := c.MapKey.Canonical()
		seen[canon] = append(seen[canon], c.Element.Name())
	}
	keys := make([]string, 0, len(seen))
	for canon := range seen {
		keys = append(keys, canon)
	}
	sort.Strings(keys)
	for _, canon := range keys {
		if sources := seen[canon]; len(sources) > 1 {
			return &diag.DuplicateMapKeyError{Key: aggregateKey, MapKey: canon, Sources: sources}
		}
	}
	return nil
}

func pathString(comp *component.Descriptor) string {
	path := comp.Path()
	s := ""
	for i, t := range path {
		if i > 0 {
			s += " > "
		}
		s += t.Name()
	}
	return s
}

func sourceNames(bindings []binding.Binding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.BindingElement != nil {
			names = append(names, b.BindingElement.Name())
		} else {
			names = append(names, b.Kind.String())
		}
	}
	return names
}
