package resolver_test

import (
	"testing"

	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/diag"
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
	params       []model.Parameter
	returnType   model.Type
	isAbstract   bool
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
	if meta == "Scope" && elem != nil && elem.Name() == "Singleton" {
		return []model.Annotation{marker("Scope")}
	}
	return nil
}
func (p *fakeProgram) ElementOrder(enclosing model.Element) []model.Element {
	return p.order[enclosing.Name()]
}

func marker(name string) model.Annotation { return model.NewAnnotation(name, nil, nil) }

// buildRootComponent assembles a single root Descriptor with moduleElem's
// declarations already collected, skipping component.Build's own @Component
// annotation lookup (the resolver tests care about resolution, not shape
// validation, which internal/component already covers).
func buildRootComponent(t *testing.T, p *fakeProgram, modules []decl.ModuleRef) *component.Descriptor {
	t.Helper()
	declarations, ds := decl.Collect(p, modules)
	require.Empty(t, ds)
	return &component.Descriptor{
		Type:                &fakeType{name: "com.example.AppComponent"},
		Kind:                component.KindComponent,
		Declarations:        declarations,
		ChildFactoryMethods: map[string]*component.Descriptor{},
	}
}

func TestResolve_SingleProvisionSatisfiesEntryPoint(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	provideLogger := &fakeExec{fakeElement: fakeElement{name: "provideLogger"}, returnType: loggerType, isAbstract: false}
	moduleElem := &fakeElement{name: "LogModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"provideLogger": {marker(decl.AnnotationProvides)},
		},
		order: map[string][]model.Element{
			"LogModule": {provideLogger},
		},
	}

	comp := buildRootComponent(t, p, []decl.ModuleRef{{Type: &fakeType{name: "com.example.LogModule"}, Element: moduleElem}})
	comp.EntryPoints = []component.EntryPoint{
		{Element: provideLogger, Key: key.Of(loggerType, nil), RequestKind: key.RequestInstance},
	}

	r, ds := resolver.Resolve(p, comp, nil)
	assert.Empty(t, ds)
	rb, ok := r.Lookup(key.Of(loggerType, nil))
	require.True(t, ok)
	require.Len(t, rb.ContributionBindings, 1)
	assert.Equal(t, "provideLogger", rb.ContributionBindings[0].BindingElement.Name())
}

func TestResolve_MissingBindingReported(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	p := &fakeProgram{}
	comp := buildRootComponent(t, p, nil)
	comp.EntryPoints = []component.EntryPoint{
		{Key: key.Of(loggerType, nil), RequestKind: key.RequestInstance},
	}

	_, ds := resolver.Resolve(p, comp, nil)
	require.Len(t, ds, 1)
	_, ok := ds[0].(diag.MissingBindingError)
	assert.True(t, ok)
}

func TestResolve_ParentOwnsBindingChildSeesIt(t *testing.T) {
	configType := &fakeType{name: "com.example.Config"}
	provideConfig := &fakeExec{fakeElement: fakeElement{name: "provideConfig"}, returnType: configType}
	parentModuleElem := &fakeElement{name: "ConfigModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"provideConfig": {marker(decl.AnnotationProvides)},
		},
		order: map[string][]model.Element{
			"ConfigModule": {provideConfig},
		},
	}

	parent := buildRootComponent(t, p, []decl.ModuleRef{{Type: &fakeType{name: "com.example.ConfigModule"}, Element: parentModuleElem}})
	parent.EntryPoints = nil
	parentResolver, ds := resolver.Resolve(p, parent, nil)
	require.Empty(t, ds)

	child := &component.Descriptor{
		Type:                &fakeType{name: "com.example.RequestComponent"},
		Kind:                component.KindSubcomponent,
		Parent:              parent,
		Declarations:        &decl.Declarations{},
		ChildFactoryMethods: map[string]*component.Descriptor{},
		EntryPoints: []component.EntryPoint{
			{Key: key.Of(configType, nil), RequestKind: key.RequestInstance},
		},
	}

	childResolver, ds2 := resolver.Resolve(p, child, parentResolver)
	assert.Empty(t, ds2)
	rb, ok := childResolver.Lookup(key.Of(configType, nil))
	require.True(t, ok)
	assert.Same(t, parent, rb.OwningComponent)
}

func TestResolve_ScopeNotDeclaredIsIncompatible(t *testing.T) {
	svcType := &fakeType{name: "com.example.Service"}
	ctor := &fakeExec{fakeElement: fakeElement{name: "<init>"}, returnType: svcType, isConstructor: true}

	singletonAnn := model.NewAnnotation("Singleton", nil, &fakeElement{name: "Singleton"})
	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"<init>":  {marker("Inject")},
			"Service": {singletonAnn},
		},
		decls: map[string]model.Element{
			"com.example.Service": &fakeElement{name: "Service"},
		},
		order: map[string][]model.Element{
			"Service": {ctor},
		},
	}

	comp := buildRootComponent(t, p, nil)
	comp.EntryPoints = []component.EntryPoint{
		{Key: key.Of(svcType, nil), RequestKind: key.RequestInstance},
	}

	_, ds := resolver.Resolve(p, comp, nil)
	var found bool
	for _, d := range ds {
		if _, ok := d.(diag.IncompatibleScopeError); ok {
			found = true
		}
	}
	assert.True(t, found, "expected an IncompatibleScopeError, got %#v", ds)
}

func TestResolve_SetMultibindingAggregatesContributions(t *testing.T) {
	pluginType := &fakeType{name: "com.example.Plugin"}
	setOfPlugin := &fakeType{name: "java.util.Set", args: []model.Type{pluginType}}
	provideA := &fakeExec{fakeElement: fakeElement{name: "providePluginA"}, returnType: pluginType}
	provideB := &fakeExec{fakeElement: fakeElement{name: "providePluginB"}, returnType: pluginType}
	declareSet := &fakeExec{fakeElement: fakeElement{name: "declarePlugins"}, returnType: setOfPlugin}
	moduleElem := &fakeElement{name: "PluginModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"providePluginA": {marker(decl.AnnotationProvides), marker(decl.AnnotationIntoSet)},
			"providePluginB": {marker(decl.AnnotationProvides), marker(decl.AnnotationIntoSet)},
			"declarePlugins": {marker(decl.AnnotationMultibinds)},
		},
		order: map[string][]model.Element{
			"PluginModule": {provideA, provideB, declareSet},
		},
	}

	comp := buildRootComponent(t, p, []decl.ModuleRef{{Type: &fakeType{name: "com.example.PluginModule"}, Element: moduleElem}})
	setKey := key.SetOf(key.Of(pluginType, nil))
	comp.EntryPoints = []component.EntryPoint{
		{Key: setKey, RequestKind: key.RequestInstance},
	}

	r, ds := resolver.Resolve(p, comp, nil)
	assert.Empty(t, ds)
	rb, ok := r.Lookup(setKey)
	require.True(t, ok)
	require.Len(t, rb.ContributionBindings, 1)
	assert.Len(t, rb.ContributionBindings[0].Dependencies, 2)
}

func TestResolve_MembersInjectionGathersInjectSites(t *testing.T) {
	widgetType := &fakeType{name: "com.example.Widget"}
	loggerType := &fakeType{name: "com.example.Logger"}
	setLogger := &fakeExec{
		fakeElement: fakeElement{name: "setLogger"},
		params:      []model.Parameter{{Name: "logger", Type: loggerType}},
	}
	widgetElem := &fakeElement{name: "Widget"}
	provideLogger := &fakeExec{fakeElement: fakeElement{name: "provideLogger"}, returnType: loggerType}
	moduleElem := &fakeElement{name: "LogModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"setLogger":     {marker("Inject")},
			"provideLogger": {marker(decl.AnnotationProvides)},
		},
		order: map[string][]model.Element{
			"Widget":    {setLogger},
			"LogModule": {provideLogger},
		},
		decls: map[string]model.Element{
			"com.example.Widget": widgetElem,
		},
	}

	comp := buildRootComponent(t, p, []decl.ModuleRef{{Type: &fakeType{name: "com.example.LogModule"}, Element: moduleElem}})
	miKey := key.Of(widgetType, nil)
	comp.EntryPoints = []component.EntryPoint{
		{Key: miKey, RequestKind: key.RequestMembersInjection, IsMembersInjection: true},
	}

	r, ds := resolver.Resolve(p, comp, nil)
	assert.Empty(t, ds)
	rb, ok := r.Lookup(miKey)
	require.True(t, ok)
	require.NotNil(t, rb.MembersInjectionBinding)
	require.Len(t, rb.MembersInjectionBinding.Dependencies, 1)
	assert.Equal(t, "com.example.Logger", rb.MembersInjectionBinding.Dependencies[0].Key.TypeID())
}

func TestResolve_InstanceOnlyCycleIsFatal(t *testing.T) {
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

	comp := buildRootComponent(t, p, nil)
	comp.EntryPoints = []component.EntryPoint{
		{Key: key.Of(aType, nil), RequestKind: key.RequestInstance},
	}

	_, ds := resolver.Resolve(p, comp, nil)
	var found bool
	for _, d := range ds {
		if _, ok := d.(diag.DependencyCycleError); ok {
			found = true
		}
	}
	assert.True(t, found, "expected a DependencyCycleError, got %#v", ds)
}
