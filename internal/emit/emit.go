// Package emit implements the emission planner: turning a frozen
// internal/graph network into a declarative emission plan, ordered type
// descriptors carrying an abstract expression tree, independent of any
// source-language syntax. Nothing in this package writes files or source
// text; that is the host's job, driven by the plan this package returns.
//
// Expr is kept as one flat tagged struct in the same sum-type discipline
// internal/binding and internal/diag already use. Name derivation uses
// iancoleman/strcase.
package emit

import (
	"fmt"
	"strings"

	"github.com/bindgraph-core/bindgraph/internal/binding"
	"github.com/bindgraph-core/bindgraph/internal/graph"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/set"
	"github.com/iancoleman/strcase"
)

// Strategy is the factory-creation strategy chosen for a generated type.
type Strategy int

const (
	StrategyClassConstructor Strategy = iota
	StrategySingletonInstance
	StrategyDelegate
)

// MemoStrategy is the double-check (singleton) or single-check (reusable)
// memoization choice for a scoped binding.
type MemoStrategy int

const (
	MemoNone MemoStrategy = iota
	MemoDoubleCheck
	MemoSingleCheck
)

// ExprKind is the closed set of expression-tree node shapes.
type ExprKind int

const (
	// ExprConstruct invokes Binding's own construction logic (a constructor
	// call, a @Provides/@Produces method call, a multibinding aggregate
	// build), supplying Args as its inputs.
	ExprConstruct ExprKind = iota
	// ExprDelegate forwards directly to the single dependency in Args, the
	// expression for a KindDelegate binding.
	ExprDelegate
	// ExprFieldRead reads a generated framework field. buildExpr emits it
	// when a node is reached again along the current construction path, to
	// break the cycle rather than re-entering construction.
	ExprFieldRead
	// ExprMissing marks a dependency that resolved to a MissingBinding node;
	// only appears when the plan is built despite validation errors, which
	// internal/compiler never does in practice but which this package does
	// not itself assume.
	ExprMissing
	// ExprDoubleCheck/ExprSingleCheck wrap a single Args[0] expression in the
	// named memoization strategy.
	ExprDoubleCheck
	ExprSingleCheck
)

// Expr is one node of an emission plan's abstract expression tree.
type Expr struct {
	Kind      ExprKind
	FieldName string // ExprFieldRead
	Args      []Expr
}

// Field is one generated framework field backing a binding's dependency.
// Mapper picks the provider-shaped or producer-node-shaped field template,
// per binding.LowerFrameworkType.
type Field struct {
	Name   string
	Key    key.Key
	Mapper binding.FrameworkMapper
}

// TypeDescriptor is one generated type: fully qualified name, originating
// elements, and an abstract body.
type TypeDescriptor struct {
	FullyQualifiedName  string
	OriginatingElements []model.Element
	Strategy            Strategy
	Memo                MemoStrategy
	Fields              []Field
	Body                Expr
}

// Plan is the emission planner's output: an ordered list of generated type
// descriptors, in the frozen graph's node order, deterministic across runs.
type Plan struct {
	Types []TypeDescriptor
}

// Build walks every BindingNode in g and computes its TypeDescriptor. Callers
// (internal/compiler) are responsible for never calling Build when the
// preceding validation pipeline reported any error.
func Build(g *graph.Graph) *Plan {
	plan := &Plan{}
	reserved := map[string]map[string]bool{} // owner component path -> reserved field names

	for _, n := range g.Nodes() {
		if n.Kind != graph.NodeBinding || n.Binding == nil {
			continue
		}
		ownerID := n.Path.String()
		names := reserved[ownerID]
		if names == nil {
			names = map[string]bool{}
			reserved[ownerID] = names
		}

		var fields []Field
		for _, dep := range n.Binding.Dependencies {
			// LowerFrameworkType's error case (a provision binding requesting a
			// producer/produced/future) is already rejected by
			// internal/validate before emission ever runs; the mapper here only
			// picks which field template to generate.
			mapper, _ := binding.LowerFrameworkType(dep.Kind, n.Binding.IsProduction)
			fields = append(fields, Field{Name: frameworkFieldName(dep, names), Key: dep.Key, Mapper: mapper})
		}

		body := buildExpr(g, n.ID(), set.NewSet[string]())
		memo := memoFor(n.Binding.Scope)
		if memo != MemoNone {
			body = wrapMemo(body, memo)
		}

		var elems []model.Element
		if n.Binding.BindingElement != nil {
			elems = append(elems, n.Binding.BindingElement)
		}

		plan.Types = append(plan.Types, TypeDescriptor{
			FullyQualifiedName:  generatedName(n.Path, n.Binding),
			OriginatingElements: elems,
			Strategy:            strategyFor(n.Binding),
			Memo:                memo,
			Fields:              fields,
			Body:                body,
		})
	}
	return plan
}

// strategyFor picks the three-way factory-creation strategy: a set/map
// binding with zero contributions gets a singleton empty-collection instance;
// with at least one contribution it picks class_constructor like everything
// else.
func strategyFor(b *binding.Binding) Strategy {
	switch {
	case b.Kind == binding.KindDelegate:
		return StrategyDelegate
	case b.Kind == binding.KindBoundInstance:
		return StrategySingletonInstance
	case (b.Kind == binding.KindMultiboundSet || b.Kind == binding.KindMultiboundMap) && len(b.Dependencies) == 0:
		return StrategySingletonInstance
	case b.Kind == binding.KindOptionalBinding && len(b.Dependencies) == 0:
		return StrategySingletonInstance
	default:
		return StrategyClassConstructor
	}
}

func memoFor(scope *key.Scope) MemoStrategy {
	if scope == nil {
		return MemoNone
	}
	if scope.IsReusable() {
		return MemoSingleCheck
	}
	return MemoDoubleCheck
}

func wrapMemo(e Expr, m MemoStrategy) Expr {
	kind := ExprDoubleCheck
	if m == MemoSingleCheck {
		kind = ExprSingleCheck
	}
	return Expr{Kind: kind, Args: []Expr{e}}
}

// buildExpr recursively builds the expression tree for node nodeID,
// following its EdgeDependency edges. visiting guards against re-entering a
// node already on the current construction path: validation already rejected
// any all-instance cycle, so a revisit can only happen through a
// framework-typed edge, and is rendered as a field read rather than infinite
// recursion.
func buildExpr(g *graph.Graph, nodeID string, visiting set.Set[string]) Expr {
	n, ok := g.Node(nodeID)
	if !ok || n.Kind == graph.NodeMissingBinding {
		return Expr{Kind: ExprMissing}
	}
	if visiting.Contains(nodeID) {
		return Expr{Kind: ExprFieldRead, FieldName: scopedFieldName(n)}
	}
	visiting.Add(nodeID)
	defer visiting.Remove(nodeID)

	var args []Expr
	for _, e := range g.DependencyEdges(nodeID) {
		args = append(args, buildExpr(g, e.Target, visiting))
	}

	if n.Binding != nil && n.Binding.Kind == binding.KindDelegate {
		return Expr{Kind: ExprDelegate, Args: args}
	}
	return Expr{Kind: ExprConstruct, Args: args}
}

func scopedFieldName(n graph.Node) string {
	return strcase.ToLowerCamel(simpleName(n.Key.TypeRef)) + "Instance"
}

// generatedName derives the generated type's name from the enclosing type,
// method, and a kind-specific suffix.
func generatedName(owner graph.ComponentPath, b *binding.Binding) string {
	ownerName := "Root"
	if len(owner) > 0 {
		ownerName = simpleName(owner[len(owner)-1])
	}
	switch b.Kind {
	case binding.KindInjection:
		return simpleName(b.Key.TypeRef) + "_Factory"
	case binding.KindSubcomponentCreator:
		return simpleName(b.SubcomponentType) + "Builder"
	case binding.KindMembersInjector:
		return simpleName(b.Key.TypeRef) + "_MembersInjector"
	case binding.KindProvision, binding.KindProduction, binding.KindDelegate:
		method := "provide"
		if b.BindingElement != nil {
			method = b.BindingElement.Name()
		}
		return fmt.Sprintf("%s_%sFactory", ownerName, strcase.ToCamel(method))
	default:
		return fmt.Sprintf("%s_%sFactory", ownerName, strcase.ToCamel(simpleName(b.Key.TypeRef)))
	}
}

// frameworkFieldName derives a generated field name, disambiguated against
// names already reserved for the same owning type (two dependencies on the
// same Key from different requests must still get distinct fields).
func frameworkFieldName(dep binding.DependencyRequest, reserved map[string]bool) string {
	base := strcase.ToLowerCamel(simpleName(dep.Key.TypeRef)) + frameworkSuffix(dep.Kind)
	name := base
	for i := 2; reserved[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	reserved[name] = true
	return name
}

func frameworkSuffix(rk key.RequestKind) string {
	switch rk {
	case key.RequestProvider, key.RequestProviderOfLazy:
		return "Provider"
	case key.RequestLazy:
		return "Lazy"
	case key.RequestProducer:
		return "Producer"
	case key.RequestProduced:
		return "Produced"
	case key.RequestFuture:
		return "Future"
	default:
		return ""
	}
}

func simpleName(t model.Type) string {
	if t == nil {
		return "Unknown"
	}
	name := t.Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[i+1:]
	}
	return name
}
