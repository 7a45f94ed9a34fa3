// Package validate implements the Validation Pipeline: checks run against
// the frozen internal/graph network plus the diagnostics internal/decl,
// internal/component and internal/resolver already produced while building
// it. Most checks were already enforced upstream at declaration or
// resolution time (missing/duplicate bindings, incompatible scopes,
// dependency cycles, delegate type mismatches); this package passes those
// through, enriches missing-binding diagnostics with a shortest trace, and
// adds the checks that only make sense once the whole network exists:
// nullability, multibinding coherence, map-key strategy, subcomponent
// reachability, members-injection accessibility, framework-type lowering and
// component shape.
//
// One exported entry point collects diagnostics from independent passes
// into a single slice. The independent, order-insensitive passes run
// concurrently with golang.org/x/sync/errgroup.
package validate

import (
	"sort"

	"github.com/bindgraph-core/bindgraph/internal/binding"
	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/graph"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/resolver"
	"golang.org/x/sync/errgroup"
)

// Run executes the validation pipeline over root's resolved tree and its
// frozen Graph, returning upstream (enriched where this package knows how)
// followed by every diagnostic the checks below discover. p is the host
// program, needed by the component-shape check to re-inspect annotations
// component.Descriptor does not itself retain.
func Run(p model.Program, root *resolver.Resolver, g *graph.Graph, upstream diag.Diagnostics) diag.Diagnostics {
	enriched := enrichMissingBindings(upstream, g)

	comps := allComponents(root.Component)

	checks := []func() diag.Diagnostics{
		func() diag.Diagnostics { return componentShape(p, comps) },
		func() diag.Diagnostics { return nullability(g) },
		func() diag.Diagnostics { return multibindingCoherence(comps) },
		func() diag.Diagnostics { return mapKeyStrategy(comps) },
		func() diag.Diagnostics { return subcomponentReferences(comps) },
		func() diag.Diagnostics { return membersInjectionAccessibility(g) },
		func() diag.Diagnostics { return frameworkTypeLowering(g) },
	}
	results := make([]diag.Diagnostics, len(checks))

	var eg errgroup.Group
	for i, check := range checks {
		i, check := i, check
		eg.Go(func() error {
			results[i] = check()
			return nil
		})
	}
	_ = eg.Wait() // none of the checks above can fail; they only collect diagnostics

	out := append(diag.Diagnostics{}, enriched...)
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// enrichMissingBindings fills in Trace on any MissingBindingError upstream
// left empty (internal/resolver has no access to internal/graph, so it
// always reports an empty trace), using graph.ShortestTrace against the
// matching MissingBinding node.
func enrichMissingBindings(upstream diag.Diagnostics, g *graph.Graph) diag.Diagnostics {
	out := append(diag.Diagnostics{}, upstream...)
	missing := g.MissingBindings()
	for i, d := range out {
		mb, ok := d.(diag.MissingBindingError)
		if !ok || len(mb.Trace) > 0 {
			continue
		}
		for _, n := range missing {
			if n.Key.EqualEffective(mb.Key) && n.Path.String() == mb.ComponentPath {
				mb.Trace = g.ShortestTrace(n.ID())
				out[i] = mb
				break
			}
		}
	}
	return out
}

// allComponents flattens a component tree into preorder (root first).
func allComponents(root *component.Descriptor) []*component.Descriptor {
	var out []*component.Descriptor
	var walk func(c *component.Descriptor)
	walk = func(c *component.Descriptor) {
		out = append(out, c)
		for _, child := range c.Children {
			walk(child)
		}
	}
	walk(root)
	return out
}

// componentShape checks that survive past internal/component.Build: at most
// one creator, no @Reusable on a component itself, and no
// cancellation-policy annotation on a non-production component.
func componentShape(p model.Program, comps []*component.Descriptor) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, comp := range comps {
		if countCreators(p, comp.Element) > 1 {
			ds = append(ds, diag.ComponentShapeError{
				Component: comp.Type.Name(),
				Reason:    "declares more than one creator",
			})
		}
		for _, s := range comp.Scopes {
			if s.IsReusable() {
				ds = append(ds, diag.ComponentShapeError{
					Component: comp.Type.Name(),
					Reason:    "a component must not declare @Reusable; it is a binding scope only",
				})
			}
		}
		if !comp.Kind.IsProduction() {
			for _, ann := range p.AnnotationsOf(comp.Element) {
				if ann.Name() == "CancellationPolicy" {
					ds = append(ds, diag.ComponentShapeError{
						Component: comp.Type.Name(),
						Reason:    "@CancellationPolicy is only meaningful on a production component",
					})
				}
			}
		}
	}
	return ds
}

func countCreators(p model.Program, elem model.Element) int {
	n := 0
	for _, child := range p.ElementOrder(elem) {
		nested, ok := child.(model.NestedTypeElement)
		if !ok {
			continue
		}
		for _, ann := range p.AnnotationsOf(nested) {
			if ann.Name() == component.AnnotationBuilder || ann.Name() == component.AnnotationFactory {
				n++
				break
			}
		}
	}
	return n
}

// nullability: a non-nullable request may not be satisfied by a binding
// marked @Nullable.
func nullability(g *graph.Graph) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, e := range g.Edges() {
		if e.Kind != graph.EdgeDependency || e.Request == nil || e.Request.IsNullable {
			continue
		}
		target, ok := g.Node(e.Target)
		if !ok || target.Kind != graph.NodeBinding || target.Binding == nil || !target.Binding.IsNullable {
			continue
		}
		src, _ := g.Node(e.Source)
		site := "an entry point"
		if e.Request.RequestElement != nil {
			site = e.Request.RequestElement.Name()
		}
		ds = append(ds, diag.NullabilityError{
			Key:           target.Key,
			ComponentPath: src.Path.String(),
			RequestSite:   site,
		})
	}
	return ds
}

// multibindingCoherence: mixing @IntoSet/@ElementsIntoSet contributions with
// @IntoMap contributions for the same effective key, or mixing @IntoSet with
// @ElementsIntoSet for the same key, is a shape error independent of
// whether the aggregate is ever actually requested.
func multibindingCoherence(comps []*component.Descriptor) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, comp := range comps {
		if comp.Declarations == nil {
			continue
		}
		groups := map[string]map[decl.ContributionType]bool{}
		keyOf := map[string]key.Key{}
		for _, m := range allContributing(comp.Declarations) {
			eff := m.Key.Effective()
			id := eff.String()
			if groups[id] == nil {
				groups[id] = map[decl.ContributionType]bool{}
			}
			groups[id][m.ContributionType] = true
			keyOf[id] = eff
		}
		for _, id := range sortedKeys(groups) {
			types := groups[id]
			hasSet := types[decl.ContributionSet] || types[decl.ContributionSetValues]
			switch {
			case hasSet && types[decl.ContributionMap]:
				ds = append(ds, diag.MultibindingCoherenceError{
					Key:     keyOf[id],
					Problem: "mixes set and map contribution types for the same key",
				})
			case types[decl.ContributionSet] && types[decl.ContributionSetValues]:
				ds = append(ds, diag.MultibindingCoherenceError{
					Key:     keyOf[id],
					Problem: "mixes @IntoSet and @ElementsIntoSet contributions for the same key",
				})
			}
		}
	}
	return ds
}

// mapKeyStrategy wires diag.MixedMapKeyStrategyError: a class-valued @MapKey
// and a string-valued @MapKey must never contribute to the same effective
// map.
func mapKeyStrategy(comps []*component.Descriptor) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, comp := range comps {
		if comp.Declarations == nil {
			continue
		}
		strategies := map[string]map[key.MapKeyStrategy]bool{}
		keyOf := map[string]key.Key{}
		for _, m := range allContributing(comp.Declarations) {
			if m.ContributionType != decl.ContributionMap || m.MapKey == nil {
				continue
			}
			eff := m.Key.Effective()
			id := eff.String()
			if strategies[id] == nil {
				strategies[id] = map[key.MapKeyStrategy]bool{}
			}
			strategies[id][m.MapKey.Strategy] = true
			keyOf[id] = eff
		}
		for _, id := range sortedMapKeys(strategies) {
			s := strategies[id]
			if s[key.MapKeyClass] && s[key.MapKeyString] {
				ds = append(ds, diag.MixedMapKeyStrategyError{Key: keyOf[id]})
			}
		}
	}
	return ds
}

func allContributing(d *decl.Declarations) []decl.MethodDeclaration {
	var out []decl.MethodDeclaration
	for _, m := range d.AllProvisions() {
		if m.ContributionType != decl.ContributionUnique {
			out = append(out, m)
		}
	}
	for _, m := range d.AllDelegates() {
		if m.ContributionType != decl.ContributionUnique {
			out = append(out, m)
		}
	}
	return out
}

func sortedKeys(m map[string]map[decl.ContributionType]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedMapKeys(m map[string]map[key.MapKeyStrategy]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// subcomponentReferences: a subcomponent installed via more than one factory
// method on the same parent is a shape error. A subcomponent declared but
// never installed through any factory method is not flagged here: real
// usages sometimes only expose it through a nested creator, so zero
// reachability is not by itself incoherent (documented in DESIGN.md).
func subcomponentReferences(comps []*component.Descriptor) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, comp := range comps {
		for _, child := range comp.Children {
			count := 0
			for _, v := range comp.ChildFactoryMethods {
				if v == child {
					count++
				}
			}
			if count > 1 {
				ds = append(ds, diag.SubcomponentReferenceError{
					Subcomponent: child.Type.Name(),
					Reason:       "installed via more than one factory method on its parent component",
				})
			}
		}
	}
	return ds
}

// frameworkTypeLowering rejects a provision (non-production) binding that
// requests one of its dependencies as a producer, produced, or future,
// delegating the actual table lookup to binding.LowerFrameworkType.
func frameworkTypeLowering(g *graph.Graph) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, n := range g.Nodes() {
		if n.Kind != graph.NodeBinding || n.Binding == nil {
			continue
		}
		for _, dep := range n.Binding.Dependencies {
			if _, err := binding.LowerFrameworkType(dep.Kind, n.Binding.IsProduction); err != nil {
				ds = append(ds, diag.ProducerFromProvisionError{
					Key:           n.Key,
					ComponentPath: n.Path.String(),
					RequestedKey:  dep.Key,
				})
			}
		}
	}
	return ds
}

// membersInjectionAccessibility (internal/resolver already checks that the
// injected type's declaration exists): every field/method injection site
// must be accessible, neither private nor static.
func membersInjectionAccessibility(g *graph.Graph) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, n := range g.Nodes() {
		if n.Kind != graph.NodeBinding || n.Binding == nil || n.Binding.Kind != binding.KindMembersInjector {
			continue
		}
		for _, dep := range n.Binding.Dependencies {
			if dep.RequestElement == nil {
				continue
			}
			for _, mod := range dep.RequestElement.Modifiers() {
				if mod == "private" || mod == "static" {
					ds = append(ds, diag.MembersInjectionError{
						Type:   n.Key.TypeID(),
						Reason: "injection site " + dep.RequestElement.Name() + " must not be " + mod,
					})
				}
			}
		}
	}
	return ds
}
