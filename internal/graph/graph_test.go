package graph_test

import (
	"testing"

	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/graph"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeType struct {
	name string
	args []model.Type
}

func (f *fakeType) Kind() model.TypeKind               { return model.KindClass }
func (f *fakeType) Name() string                       { return f.name }
func (f *fakeType) TypeArguments() []model.Type        { return f.args }
func (f *fakeType) Erasure() model.Type                { return &fakeType{name: f.name} }
func (f *fakeType) Supertypes() []model.Type           { return nil }
func (f *fakeType) IsSame(o model.Type) bool           { return o != nil && o.Name() == f.name }
func (f *fakeType) IsAssignableFrom(o model.Type) bool { return f.IsSame(o) }

type fakeElement struct{ name string }

func (e *fakeElement) Name() string             { return e.name }
func (e *fakeElement) Modifiers() []string      { return nil }
func (e *fakeElement) Enclosing() model.Element { return nil }

type fakeExec struct {
	fakeElement
	params        []model.Parameter
	returnType    model.Type
	isAbstract    bool
	isConstructor bool
}

func (f *fakeExec) Parameters() []model.Parameter { return f.params }
func (f *fakeExec) ReturnType() model.Type        { return f.returnType }
func (f *fakeExec) IsConstructor() bool           { return f.isConstructor }
func (f *fakeExec) IsAbstract() bool              { return f.isAbstract }

type fakeProgram struct {
	annotations map[string][]model.Annotation
	order       map[string][]model.Element
	decls       map[string]model.Element
}

func (p *fakeProgram) LookupType(string) (model.Type, error) { return nil, model.ErrTypeNotFound }
func (p *fakeProgram) DeclarationOf(t model.Type) (model.Element, error) {
	if e, ok := p.decls[t.Name()]; ok {
		return e, nil
	}
	return nil, model.ErrTypeNotFound
}
func (p *fakeProgram) AnnotationsOf(elem model.Element) []model.Annotation {
	return p.annotations[elem.Name()]
}
func (p *fakeProgram) AnnotatedAnnotations(elem model.Element, meta string) []model.Annotation {
	return nil
}
func (p *fakeProgram) ElementOrder(enclosing model.Element) []model.Element {
	return p.order[enclosing.Name()]
}

func marker(name string) model.Annotation { return model.NewAnnotation(name, nil, nil) }

func buildRootComponent(t *testing.T, p *fakeProgram, name string, modules []decl.ModuleRef) *component.Descriptor {
	t.Helper()
	declarations, ds := decl.Collect(p, modules)
	require.Empty(t, ds)
	return &component.Descriptor{
		Type:                &fakeType{name: name},
		Kind:                component.KindComponent,
		Declarations:        declarations,
		ChildFactoryMethods: map[string]*component.Descriptor{},
	}
}

func TestBuild_EntryPointResolvesToBindingNode(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	provideLogger := &fakeExec{fakeElement: fakeElement{name: "provideLogger"}, returnType: loggerType}
	moduleElem := &fakeElement{name: "LogModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{"provideLogger": {marker(decl.AnnotationProvides)}},
		order:       map[string][]model.Element{"LogModule": {provideLogger}},
	}

	comp := buildRootComponent(t, p, "com.example.AppComponent", []decl.ModuleRef{{Type: &fakeType{name: "com.example.LogModule"}, Element: moduleElem}})
	loggerKey := key.Of(loggerType, nil)
	comp.EntryPoints = []component.EntryPoint{{Element: provideLogger, Key: loggerKey, RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Empty(t, ds)

	g, gds := graph.Build(r, false)
	require.Empty(t, gds)

	root, ok := g.RootComponentNode()
	require.True(t, ok)
	assert.True(t, root.Path.AtRoot())

	bindingNodes := g.BindingNodes(&loggerKey)
	require.Len(t, bindingNodes, 1)
	require.NotNil(t, bindingNodes[0].Binding)
	assert.Equal(t, "provideLogger", bindingNodes[0].Binding.BindingElement.Name())

	epEdges := g.EntryPointEdges(nil)
	require.Len(t, epEdges, 1)
	assert.Equal(t, bindingNodes[0].ID(), epEdges[0].Target)
	assert.Equal(t, root.ID(), epEdges[0].Source)

	assert.Empty(t, g.MissingBindings())
}

func TestBuild_MissingBindingProducesMissingNode(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	p := &fakeProgram{}
	comp := buildRootComponent(t, p, "com.example.AppComponent", nil)
	comp.EntryPoints = []component.EntryPoint{{Key: key.Of(loggerType, nil), RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Len(t, ds, 1)

	g, _ := graph.Build(r, false)
	missing := g.MissingBindings()
	require.Len(t, missing, 1)

	epEdges := g.EntryPointEdges(nil)
	require.Len(t, epEdges, 1)
	assert.Equal(t, missing[0].ID(), epEdges[0].Target)
}

func TestBuild_ChildFactoryMethodEdgeConnectsComponents(t *testing.T) {
	p := &fakeProgram{}
	parent := buildRootComponent(t, p, "com.example.AppComponent", nil)
	childType := &fakeType{name: "com.example.RequestComponent"}
	child := &component.Descriptor{
		Type:                childType,
		Kind:                component.KindSubcomponent,
		Parent:              parent,
		Declarations:        &decl.Declarations{},
		ChildFactoryMethods: map[string]*component.Descriptor{},
	}
	parent.Children = []*component.Descriptor{child}
	parent.ChildFactoryMethods["requestComponent"] = child

	r, ds := resolver.Resolve(p, parent, nil)
	require.Empty(t, ds)

	g, gds := graph.Build(r, false)
	require.Empty(t, gds)

	parentNode, _ := g.RootComponentNode()
	childNodes := g.ComponentNodes(childType)
	require.Len(t, childNodes, 1)

	var found bool
	for _, e := range g.Edges() {
		if e.Kind == graph.EdgeChildFactoryMethod && e.Source == parentNode.ID() && e.Target == childNodes[0].ID() {
			found = true
			assert.Equal(t, "requestComponent", e.FactoryMethod)
		}
	}
	assert.True(t, found, "expected a ChildFactoryMethodEdge from parent to child")
}

func TestShortestTrace_FromEntryPointToMissingBinding(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	p := &fakeProgram{}
	comp := buildRootComponent(t, p, "com.example.AppComponent", nil)
	comp.EntryPoints = []component.EntryPoint{{Key: key.Of(loggerType, nil), RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Len(t, ds, 1)

	g, _ := graph.Build(r, false)
	missing := g.MissingBindings()
	require.Len(t, missing, 1)

	root, _ := g.RootComponentNode()
	trace := g.ShortestTrace(missing[0].ID())
	require.Len(t, trace, 2)
	assert.Equal(t, root.ID(), trace[0])
	assert.Equal(t, missing[0].ID(), trace[1])

	// Second call exercises the memoized path.
	assert.Equal(t, trace, g.ShortestTrace(missing[0].ID()))
}

func TestFindStronglyConnectedComponents_DetectsInstanceCycle(t *testing.T) {
	aType := &fakeType{name: "com.example.A"}
	bType := &fakeType{name: "com.example.B"}
	aElem := &fakeElement{name: "A"}
	bElem := &fakeElement{name: "B"}
	aCtor := &fakeExec{fakeElement: fakeElement{name: "<initA>"}, returnType: aType, isConstructor: true, params: []model.Parameter{{Name: "b", Type: bType}}}
	bCtor := &fakeExec{fakeElement: fakeElement{name: "<initB>"}, returnType: bType, isConstructor: true, params: []model.Parameter{{Name: "a", Type: aType}}}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"<initA>": {marker("Inject")},
			"<initB>": {marker("Inject")},
		},
		order: map[string][]model.Element{
			"A": {aCtor},
			"B": {bCtor},
		},
		decls: map[string]model.Element{
			"com.example.A": aElem,
			"com.example.B": bElem,
		},
	}

	comp := buildRootComponent(t, p, "com.example.AppComponent", nil)
	comp.EntryPoints = []component.EntryPoint{{Key: key.Of(aType, nil), RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Len(t, ds, 1)

	g, _ := graph.Build(r, false)
	sccs := g.FindStronglyConnectedComponents()
	require.Len(t, sccs, 1)
	assert.Len(t, sccs[0], 2)
}
