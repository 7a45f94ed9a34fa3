package validate_test

import (
	"os"
	"strings"
	"testing"

	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/graph"
	"github.com/bindgraph-core/bindgraph/internal/key"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/resolver"
	"github.com/bindgraph-core/bindgraph/internal/validate"
	"github.com/gkampitakis/go-snaps/snaps"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	v := m.Run()
	snaps.Clean(m)
	os.Exit(v)
}

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

type fakeElement struct {
	name      string
	modifiers []string
}

func (e *fakeElement) Name() string             { return e.name }
func (e *fakeElement) Modifiers() []string      { return e.modifiers }
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
		Element:             &fakeElement{name: name},
		Kind:                component.KindComponent,
		Declarations:        declarations,
		ChildFactoryMethods: map[string]*component.Descriptor{},
	}
}

func TestRun_EnrichesMissingBindingTraceFromGraph(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	p := &fakeProgram{}
	comp := buildRootComponent(t, p, "com.example.AppComponent", nil)
	comp.EntryPoints = []component.EntryPoint{{Key: key.Of(loggerType, nil), RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Len(t, ds, 1)

	g, _ := graph.Build(r, false)

	out := validate.Run(p, r, g, ds)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Message(), "Trace:")
	assert.Contains(t, out[0].Message(), "com.example.AppComponent")
}

// TestRun_DiagnosticFormatIsDeterministic pins the user-visible rendering of
// a missing-binding diagnostic via a go-snaps snapshot, the same mechanism
// the teacher's parser tests use for pinning lexer/parser output.
func TestRun_DiagnosticFormatIsDeterministic(t *testing.T) {
	loggerType := &fakeType{name: "com.example.Logger"}
	p := &fakeProgram{}
	comp := buildRootComponent(t, p, "com.example.AppComponent", nil)
	comp.EntryPoints = []component.EntryPoint{{Key: key.Of(loggerType, nil), RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Len(t, ds, 1)
	g, _ := graph.Build(r, false)

	out := validate.Run(p, r, g, ds)
	require.Len(t, out, 1)
	snaps.MatchSnapshot(t, diag.Format(out[0]))
}

func TestRun_MixedSetAndMapContributionsFlagged(t *testing.T) {
	widgetType := &fakeType{name: "com.example.Widget"}
	intoSet := &fakeExec{fakeElement: fakeElement{name: "provideSetWidget"}, isAbstract: false, returnType: widgetType}
	intoMap := &fakeExec{fakeElement: fakeElement{name: "provideMapWidget"}, isAbstract: false, returnType: widgetType}
	moduleElem := &fakeElement{name: "WidgetModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"provideSetWidget": {marker(decl.AnnotationProvides), marker(decl.AnnotationIntoSet)},
			"provideMapWidget": {marker(decl.AnnotationProvides), marker(decl.AnnotationIntoMap)},
		},
		order: map[string][]model.Element{"WidgetModule": {intoSet, intoMap}},
	}

	comp := buildRootComponent(t, p, "com.example.AppComponent", []decl.ModuleRef{{Type: &fakeType{name: "com.example.WidgetModule"}, Element: moduleElem}})

	r, ds := resolver.Resolve(p, comp, nil)
	require.Empty(t, ds)

	g, _ := graph.Build(r, false)
	out := validate.Run(p, r, g, ds)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Message(), "mixes set and map")
}

func TestRun_ProvisionRequestingProducerFlagged(t *testing.T) {
	widgetType := &fakeType{name: "com.example.Widget"}
	producerOfWidget := &fakeType{name: "dagger.producers.Producer", args: []model.Type{widgetType}}
	provideWidget := &fakeExec{fakeElement: fakeElement{name: "provideWidget"}, returnType: widgetType}
	provideThing := &fakeExec{
		fakeElement: fakeElement{name: "provideThing"},
		returnType:  &fakeType{name: "com.example.Thing"},
		params:      []model.Parameter{{Name: "w", Type: producerOfWidget}},
	}
	moduleElem := &fakeElement{name: "ThingModule"}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{
			"provideWidget": {marker(decl.AnnotationProvides)},
			"provideThing":  {marker(decl.AnnotationProvides)},
		},
		order: map[string][]model.Element{"ThingModule": {provideWidget, provideThing}},
	}

	comp := buildRootComponent(t, p, "com.example.AppComponent", []decl.ModuleRef{{Type: &fakeType{name: "com.example.ThingModule"}, Element: moduleElem}})
	comp.EntryPoints = []component.EntryPoint{{Key: key.Of(&fakeType{name: "com.example.Thing"}, nil), RequestKind: key.RequestInstance}}

	r, ds := resolver.Resolve(p, comp, nil)
	require.Empty(t, ds)

	g, _ := graph.Build(r, false)
	out := validate.Run(p, r, g, ds)

	var found bool
	for _, d := range out {
		if strings.Contains(d.Message(), "producer/produced/future") {
			found = true
		}
	}
	assert.True(t, found, "expected a provision-requesting-producer diagnostic, got: %v", out)
}

func TestRun_PrivateInjectionSiteFlagged(t *testing.T) {
	widgetType := &fakeType{name: "com.example.Widget"}
	loggerType := &fakeType{name: "com.example.Logger"}
	widgetElem := &fakeElement{name: "com.example.Widget"}
	setLogger := &fakeExec{
		fakeElement: fakeElement{name: "setLogger", modifiers: []string{"private"}},
		params:      []model.Parameter{{Name: "l", Type: loggerType}},
	}

	p := &fakeProgram{
		annotations: map[string][]model.Annotation{"setLogger": {marker("Inject")}},
		order:       map[string][]model.Element{"com.example.Widget": {setLogger}},
		decls:       map[string]model.Element{"com.example.Widget": widgetElem},
	}
	comp := buildRootComponent(t, p, "com.example.AppComponent", nil)
	comp.EntryPoints = []component.EntryPoint{{
		Key:                key.Of(widgetType, nil),
		RequestKind:        key.RequestMembersInjection,
		IsMembersInjection: true,
	}}

	r, ds := resolver.Resolve(p, comp, nil)
	g, _ := graph.Build(r, false)

	out := validate.Run(p, r, g, ds)
	var found bool
	for _, d := range out {
		if strings.Contains(d.Message(), "must not be private") {
			found = true
		}
	}
	assert.True(t, found, "expected a private-injection-site diagnostic, got: %v", out)
}
