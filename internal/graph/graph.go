// Package graph implements the external graph model: an immutable network
// built from a fully-resolved internal/resolver tree, exposed through a
// narrow, read-only query API rather than the resolver's own mutable
// bookkeeping.
//
// Build walks the resolver tree the way a dependency-graph builder walks a
// module's declarations, and FindStronglyConnectedComponents runs Tarjan's
// algorithm over dependency edges between BindingNodes. Node/edge adjacency
// is kept in a tidwall/btree.Map, matching internal/resolver's ordered-map
// idiom.
package graph

import (
	"github.com/bindgraph-core/bindgraph/internal/binding"
	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/resolver"
	"github.com/tidwall/btree"
)

// NodeKind is the closed set of node variants.
type NodeKind int

const (
	NodeComponent NodeKind = iota
	NodeBinding
	NodeMissingBinding
)

// ComponentPath is a non-empty sequence of component types, root first.
type ComponentPath []model.Type

// AtRoot reports whether the path names only the root component.
func (p ComponentPath) AtRoot() bool { return len(p) == 1 }

// String renders the path as "Outer > Inner > Leaf" for diagnostics.
func (p ComponentPath) String() string {
	s := ""
	for i, t := range p {
		if i > 0 {
			s += " > "
		}
		s += t.Name()
	}
	return s
}

func (p ComponentPath) canonical() string {
	s := ""
	for i, t := range p {
		if i > 0 {
			s += "/"
		}
		s += key.CanonicalTypeID(t)
	}
	return s
}

func pathOf(comp *component.Descriptor) ComponentPath { return ComponentPath(comp.Path()) }

// Node is the node sum type, represented as one flat struct (the same
// shaping discipline internal/binding applies to Binding): Kind tells a
// consumer which of the remaining fields apply.
type Node struct {
	id   string
	Kind NodeKind
	Path ComponentPath

	// NodeComponent
	EntryPoints []component.EntryPoint
	Scopes      []key.Scope

	// NodeBinding
	Binding *binding.Binding

	// NodeMissingBinding and NodeBinding both carry the key being resolved.
	Key key.Key
}

// ID is this node's identity within the network; stable for the lifetime of
// one Graph, not meaningful across separate Build calls.
func (n Node) ID() string { return n.id }

// EdgeKind is the closed set of edge variants.
type EdgeKind int

const (
	EdgeDependency EdgeKind = iota
	EdgeChildFactoryMethod
	EdgeSubcomponentCreatorBinding
)

// Edge is the edge sum type.
type Edge struct {
	Kind   EdgeKind
	Source string
	Target string

	// EdgeDependency
	Request      *binding.DependencyRequest
	IsEntryPoint bool

	// EdgeChildFactoryMethod
	FactoryMethod string

	// EdgeSubcomponentCreatorBinding
	DeclaringModules []decl.ModuleRef
}

// Graph is the immutable network built by Build; every exported method is a
// read-only query.
type Graph struct {
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	// outAdj maps a source node id to the indices (into edges) of edges
	// leaving it, ordered by source id (tidwall/btree.Map), matching the
	// teacher's insertion/iteration-ordered adjacency idiom.
	outAdj btree.Map[string, []int]
	inAdj  btree.Map[string, []int]

	root          string
	isFullBinding bool

	// traceCache memoizes ShortestTrace by target node id. Populated lazily
	// and without locking: internal/validate calls ShortestTrace only while
	// enriching missing-binding diagnostics, before its concurrent checks
	// start, and those checks only read the graph.
	traceCache map[string][]string
}

// Nodes returns every node in the network, in build (insertion) order.
func (g *Graph) Nodes() []Node { return g.nodes }

// Edges returns every edge in the network, in build (insertion) order.
func (g *Graph) Edges() []Edge { return g.edges }

// Network returns both the nodes and edges.
func (g *Graph) Network() ([]Node, []Edge) { return g.nodes, g.edges }

// Node looks up a node by ID.
func (g *Graph) Node(id string) (Node, bool) {
	i, ok := g.nodeIndex[id]
	if !ok {
		return Node{}, false
	}
	return g.nodes[i], true
}

// BindingNodes returns every BindingNode, optionally filtered to those whose
// key is effective-equal to k.
func (g *Graph) BindingNodes(k *key.Key) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Kind != NodeBinding {
			continue
		}
		if k != nil && !n.Key.EqualEffective(*k) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// MissingBindings returns every MissingBinding node.
func (g *Graph) MissingBindings() []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Kind == NodeMissingBinding {
			out = append(out, n)
		}
	}
	return out
}

// ComponentNodes returns every ComponentNode, optionally filtered to the one
// whose leaf type is componentType.
func (g *Graph) ComponentNodes(componentType model.Type) []Node {
	var out []Node
	for _, n := range g.nodes {
		if n.Kind != NodeComponent {
			continue
		}
		if componentType != nil && key.CanonicalTypeID(n.Path[len(n.Path)-1]) != key.CanonicalTypeID(componentType) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// RootComponentNode returns the unique root ComponentNode.
func (g *Graph) RootComponentNode() (Node, bool) {
	return g.Node(g.root)
}

// DependencyEdges returns the EdgeDependency edges leaving node.
func (g *Graph) DependencyEdges(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.edgesFrom(nodeID) {
		if e.Kind == EdgeDependency {
			out = append(out, e)
		}
	}
	return out
}

// EntryPointEdges returns every entry-point EdgeDependency, optionally
// restricted to those sourced at the ComponentNode for componentType.
func (g *Graph) EntryPointEdges(componentType model.Type) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Kind != EdgeDependency || !e.IsEntryPoint {
			continue
		}
		if componentType != nil {
			src, ok := g.Node(e.Source)
			if !ok || key.CanonicalTypeID(src.Path[len(src.Path)-1]) != key.CanonicalTypeID(componentType) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// EntryPointEdgesDependingOn returns every entry-point edge whose dependency
// chain transitively reaches bindingNodeID, via transposed (reverse) BFS
// reachability.
func (g *Graph) EntryPointEdgesDependingOn(bindingNodeID string) []Edge {
	visited := map[string]bool{bindingNodeID: true}
	queue := []string{bindingNodeID}
	reachable := map[string]bool{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, ei := range g.edgesInto(cur) {
			e := g.edges[ei]
			if e.IsEntryPoint {
				reachable[e.Source+"->"+e.Target] = true
			}
			if !visited[e.Source] {
				visited[e.Source] = true
				queue = append(queue, e.Source)
			}
		}
	}
	var out []Edge
	for _, e := range g.edges {
		if e.IsEntryPoint && reachable[e.Source+"->"+e.Target] {
			out = append(out, e)
		}
	}
	return out
}

// ShortestTrace computes the shortest dependency trace from an entry point
// to targetID: a list of node IDs from the chosen entry point's
// ComponentNode through to targetID inclusive. Among entry
// points that can reach targetID at all, candidates are ranked by (1) the
// entry point's component depth (root closest first), (2) path length
// (shortest first), (3) entry-point edge iteration order (a proxy for
// "declared directly on the component" then "source declaration order",
// since edges are appended in root-first, declaration-order component
// traversal by Build). Results are memoized per targetID.
func (g *Graph) ShortestTrace(targetID string) []string {
	if cached, ok := g.traceCache[targetID]; ok {
		return cached
	}

	type candidate struct {
		path  []string
		depth int
		order int
	}
	var best *candidate
	for i, ep := range g.EntryPointEdges(nil) {
		path := g.bfsPath(ep.Source, targetID)
		if path == nil {
			continue
		}
		src, _ := g.Node(ep.Source)
		c := candidate{path: path, depth: len(src.Path), order: i}
		if best == nil ||
			c.depth < best.depth ||
			(c.depth == best.depth && len(c.path) < len(best.path)) ||
			(c.depth == best.depth && len(c.path) == len(best.path) && c.order < best.order) {
			best = &c
		}
	}

	var result []string
	if best != nil {
		result = best.path
	}
	g.traceCache[targetID] = result
	return result
}

// bfsPath returns the node-id path from src to dst (inclusive), following
// EdgeDependency edges only, or nil if dst is unreachable from src.
func (g *Graph) bfsPath(src, dst string) []string {
	if src == dst {
		return []string{src}
	}
	visited := map[string]bool{src: true}
	pred := map[string]string{}
	queue := []string{src}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.edgesFrom(cur) {
			if e.Kind != EdgeDependency || visited[e.Target] {
				continue
			}
			visited[e.Target] = true
			pred[e.Target] = cur
			if e.Target == dst {
				path := []string{dst}
				for p := cur; ; p = pred[p] {
					path = append([]string{p}, path...)
					if p == src {
						break
					}
				}
				return path
			}
			queue = append(queue, e.Target)
		}
	}
	return nil
}

// IsFullBindingGraph reports whether this network was built for module-level
// validation (no root component) rather than rooted at a real component.
func (g *Graph) IsFullBindingGraph() bool { return g.isFullBinding }

func (g *Graph) edgesFrom(nodeID string) []Edge {
	idxs, _ := g.outAdj.Get(nodeID)
	out := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, g.edges[i])
	}
	return out
}

func (g *Graph) edgesInto(nodeID string) []int {
	idxs, _ := g.inAdj.Get(nodeID)
	return idxs
}

// builder accumulates nodes/edges while walking the resolver tree, then
// freezes into a Graph.
type builder struct {
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
}

func componentNodeID(path ComponentPath) string { return "component:" + path.canonical() }
func bindingNodeID(path ComponentPath, k key.Key) string {
	return "binding:" + path.canonical() + "#" + k.String()
}
func missingNodeID(path ComponentPath, k key.Key) string {
	return "missing:" + path.canonical() + "#" + k.String()
}

func (b *builder) addNode(n Node) string {
	if i, ok := b.nodeIndex[n.id]; ok {
		return b.nodes[i].id
	}
	b.nodeIndex[n.id] = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return n.id
}

func (b *builder) hasNode(id string) bool {
	_, ok := b.nodeIndex[id]
	return ok
}

func (b *builder) addEdge(e Edge) { b.edges = append(b.edges, e) }

// Build walks root (and its full resolver tree) into a frozen Graph.
// isFullBindingGraph should be true only when root has no real parent
// component in the host program (module-level validation graphs).
func Build(root *resolver.Resolver, isFullBindingGraph bool) (*Graph, diag.Diagnostics) {
	b := &builder{nodeIndex: map[string]int{}}
	var ds diag.Diagnostics

	visit(root, b, &ds)

	g := &Graph{
		nodes:         b.nodes,
		nodeIndex:     b.nodeIndex,
		edges:         b.edges,
		root:          componentNodeID(pathOf(root.Component)),
		isFullBinding: isFullBindingGraph,
		traceCache:    map[string][]string{},
	}
	for i, e := range g.edges {
		idxs, _ := g.outAdj.Get(e.Source)
		g.outAdj.Set(e.Source, append(idxs, i))
		inIdxs, _ := g.inAdj.Get(e.Target)
		g.inAdj.Set(e.Target, append(inIdxs, i))
	}
	return g, ds
}

func visit(r *resolver.Resolver, b *builder, ds *diag.Diagnostics) {
	comp := r.Component
	path := pathOf(comp)
	compID := b.addNode(Node{
		id:          componentNodeID(path),
		Kind:        NodeComponent,
		Path:        path,
		EntryPoints: comp.EntryPoints,
		Scopes:      comp.Scopes,
	})

	for _, rb := range r.AllResolved() {
		addBindingAndDeps(r, b, rb)
	}

	for _, ep := range comp.EntryPoints {
		target := targetNodeID(r, b, path, ep.Key)
		b.addEdge(Edge{
			Kind:   EdgeDependency,
			Source: compID,
			Target: target,
			Request: &binding.DependencyRequest{
				Kind:           ep.RequestKind,
				Key:            ep.Key,
				RequestElement: ep.Element,
			},
			IsEntryPoint: true,
		})
	}

	for name, child := range comp.ChildFactoryMethods {
		childPath := pathOf(child)
		childID := componentNodeID(childPath)
		b.addEdge(Edge{Kind: EdgeChildFactoryMethod, Source: compID, Target: childID, FactoryMethod: name})
	}

	for _, child := range r.Children {
		visit(child, b, ds)
	}
}

// addBindingAndDeps materializes rb's BindingNode at its owning component:
// every BindingNode's path is the path of the owning component, which may
// differ from the resolver r that discovered it (internal/resolver stores
// ancestor-owned bindings in the discovering descendant's own map too; the
// node id is keyed by owner path so repeated discoveries collapse onto the
// same node).
func addBindingAndDeps(r *resolver.Resolver, b *builder, rb *resolver.ResolvedBindings) {
	ownerPath := pathOf(rb.OwningComponent)
	id := bindingNodeID(ownerPath, rb.Key)
	if b.hasNode(id) {
		return
	}

	var bnd *binding.Binding
	if len(rb.ContributionBindings) > 0 {
		bnd = &rb.ContributionBindings[0]
	} else if rb.MembersInjectionBinding != nil {
		bnd = rb.MembersInjectionBinding
	}

	b.addNode(Node{id: id, Kind: NodeBinding, Path: ownerPath, Binding: bnd, Key: rb.Key})

	var depList []binding.DependencyRequest
	for i := range rb.ContributionBindings {
		depList = append(depList, rb.ContributionBindings[i].Dependencies...)
	}
	if rb.MembersInjectionBinding != nil {
		depList = append(depList, rb.MembersInjectionBinding.Dependencies...)
	}

	for i := range depList {
		d := depList[i]
		target := targetNodeID(r, b, ownerPath, d.Key)
		b.addEdge(Edge{Kind: EdgeDependency, Source: id, Target: target, Request: &depList[i]})
	}

	if bnd != nil && bnd.Kind == binding.KindSubcomponentCreator {
		if child := findChildByType(rb.OwningComponent, bnd.SubcomponentType); child != nil {
			b.addEdge(Edge{
				Kind:             EdgeSubcomponentCreatorBinding,
				Source:           id,
				Target:           componentNodeID(pathOf(child)),
				DeclaringModules: child.Modules,
			})
		}
	}
}

// targetNodeID resolves what a DependencyRequest/entry point points at:
// either an existing BindingNode (reusing the owning component's node id) or
// a fresh MissingBinding node rooted at requestingPath, the component where
// the lookup failed.
func targetNodeID(r *resolver.Resolver, b *builder, requestingPath ComponentPath, k key.Key) string {
	eff := k.Effective()
	if found, ok := r.Lookup(eff); ok {
		return bindingNodeID(pathOf(found.OwningComponent), found.Key)
	}
	id := missingNodeID(requestingPath, eff)
	b.addNode(Node{id: id, Kind: NodeMissingBinding, Path: requestingPath, Key: eff})
	return id
}

func findChildByType(comp *component.Descriptor, t model.Type) *component.Descriptor {
	if t == nil {
		return nil
	}
	for _, c := range comp.Children {
		if key.CanonicalTypeID(c.Type) == key.CanonicalTypeID(t) {
			return c
		}
		if c.Creator != nil && key.CanonicalTypeID(c.Creator.Type) == key.CanonicalTypeID(t) {
			return c
		}
	}
	return nil
}

// FindStronglyConnectedComponents runs Tarjan's algorithm over EdgeDependency
// edges between BindingNodes, in topological order (deepest dependency
// first). It is a query over the frozen network; the dependency-cycle
// diagnostics themselves come from internal/resolver's cycle stack, and
// internal/validate does not call this.
func (g *Graph) FindStronglyConnectedComponents() [][]string {
	index := 0
	var stack []string
	indices := map[string]int{}
	lowlink := map[string]int{}
	onStack := map[string]bool{}
	var sccs [][]string

	var strongConnect func(v string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.edgesFrom(v) {
			if e.Kind != EdgeDependency {
				continue
			}
			w := e.Target
			if _, seen := indices[w]; !seen {
				strongConnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if indices[w] < lowlink[v] {
					lowlink[v] = indices[w]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			hasSelfLoop := false
			if len(scc) == 1 {
				for _, e := range g.edgesFrom(scc[0]) {
					if e.Kind == EdgeDependency && e.Target == scc[0] {
						hasSelfLoop = true
					}
				}
			}
			if len(scc) > 1 || hasSelfLoop {
				sccs = append(sccs, scc)
			}
		}
	}

	for _, n := range g.nodes {
		if n.Kind != NodeBinding {
			continue
		}
		if _, seen := indices[n.id]; !seen {
			strongConnect(n.id)
		}
	}
	return sccs
}
