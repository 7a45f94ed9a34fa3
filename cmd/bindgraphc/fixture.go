// Fixture loading for the bindgraphc harness: a JSON-encoded stand-in for
// the host program model the core is handed, not parsed. There is no host
// annotation-processor integration in scope, so this file is the harness's
// own minimal implementation of model.Program, model.Type and model.Element
// against a flat JSON document rather than a real compiler frontend. Once
// loaded, the fixture's root type is handed to internal/component.Build
// exactly as a real host would; this file supplies data, not component-shape
// logic.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/decl"
	"github.com/bindgraph-core/bindgraph/internal/model"
)

type fixtureFile struct {
	Options       map[string]string   `json:"options"`
	Types         []fixtureType       `json:"types"`
	Elements      []fixtureElement    `json:"elements"`
	DeclarationOf map[string]string   `json:"declarationOf"`
	ElementOrder  map[string][]string `json:"elementOrder"`
	RootComponent string              `json:"rootComponent"`
}

type fixtureType struct {
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	Args []string `json:"args"`
}

type fixtureParameter struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type fixtureAnnotation struct {
	Name    string         `json:"name"`
	Members map[string]any `json:"members"`
}

type fixtureElement struct {
	Name          string              `json:"name"`
	Modifiers     []string            `json:"modifiers"`
	Enclosing     string              `json:"enclosing"`
	Nested        bool                `json:"nested"`
	AsType        string              `json:"asType"`
	Executable    bool                `json:"executable"`
	Parameters    []fixtureParameter  `json:"parameters"`
	ReturnType    string              `json:"returnType"`
	IsConstructor bool                `json:"isConstructor"`
	IsAbstract    bool                `json:"isAbstract"`
	Annotations   []fixtureAnnotation `json:"annotations"`
}

// loadedType is the model.Type backing every type name a fixture mentions.
type loadedType struct {
	name string
	kind model.TypeKind
	args []model.Type
}

func (t *loadedType) Kind() model.TypeKind               { return t.kind }
func (t *loadedType) Name() string                       { return t.name }
func (t *loadedType) TypeArguments() []model.Type        { return t.args }
func (t *loadedType) Erasure() model.Type                { return &loadedType{name: t.name, kind: t.kind} }
func (t *loadedType) Supertypes() []model.Type           { return nil }
func (t *loadedType) IsSame(o model.Type) bool           { return o != nil && o.Name() == t.name }
func (t *loadedType) IsAssignableFrom(o model.Type) bool { return t.IsSame(o) }

// loadedElement backs every element a fixture declares. It implements
// model.Element, model.Executable and model.NestedTypeElement at once,
// whichever facet a caller asks for is the one that matters for that
// element, same as an annotation processor's Element wrapping one
// compiler-internal element under several view interfaces.
type loadedElement struct {
	fx          fixtureElement
	enclosing   model.Element
	asType      model.Type
	params      []model.Parameter
	returnType  model.Type
	annotations []model.Annotation
}

func (e *loadedElement) Name() string                  { return e.fx.Name }
func (e *loadedElement) Modifiers() []string            { return e.fx.Modifiers }
func (e *loadedElement) Enclosing() model.Element       { return e.enclosing }
func (e *loadedElement) AsType() model.Type             { return e.asType }
func (e *loadedElement) Parameters() []model.Parameter  { return e.params }
func (e *loadedElement) ReturnType() model.Type         { return e.returnType }
func (e *loadedElement) IsConstructor() bool            { return e.fx.IsConstructor }
func (e *loadedElement) IsAbstract() bool               { return e.fx.IsAbstract }

// fixtureProgram implements model.Program over a fully-loaded fixtureFile.
type fixtureProgram struct {
	types         map[string]model.Type
	elements      map[string]*loadedElement
	declarationOf map[string]string
	elementOrder  map[string][]string
}

func (p *fixtureProgram) LookupType(name string) (model.Type, error) {
	if t, ok := p.types[name]; ok {
		return t, nil
	}
	return nil, model.ErrTypeNotFound
}

func (p *fixtureProgram) DeclarationOf(t model.Type) (model.Element, error) {
	name := t.Name()
	if target, ok := p.declarationOf[name]; ok {
		name = target
	}
	if e, ok := p.elements[name]; ok {
		return e, nil
	}
	return nil, model.ErrTypeNotFound
}

func (p *fixtureProgram) AnnotationsOf(elem model.Element) []model.Annotation {
	e, ok := p.elements[elem.Name()]
	if !ok {
		return nil
	}
	return e.annotations
}

// AnnotatedAnnotations answers "is this annotation itself annotated as a
// scope/qualifier/map-key marker": elem is the marker annotation's own
// declaring element (e.g. "Singleton"), and it registers as a meta-marker
// when the fixture gives that element a meta annotation (e.g. a "Scope"
// annotation on the "Singleton" element).
func (p *fixtureProgram) AnnotatedAnnotations(elem model.Element, meta string) []model.Annotation {
	if elem == nil {
		return nil
	}
	e, ok := p.elements[elem.Name()]
	if !ok {
		return nil
	}
	var out []model.Annotation
	for _, ann := range e.annotations {
		if ann.Name() == meta {
			out = append(out, ann)
		}
	}
	return out
}

func (p *fixtureProgram) ElementOrder(enclosing model.Element) []model.Element {
	names := p.elementOrder[enclosing.Name()]
	out := make([]model.Element, 0, len(names))
	for _, n := range names {
		if e, ok := p.elements[n]; ok {
			out = append(out, e)
		}
	}
	return out
}

// loadFixture reads and wires a fixture file into a ready-to-use Program
// plus the root component.Descriptor internal/component.Build derives from
// the fixture's own @Component-family annotations; this file never decides
// component shape itself.
func loadFixture(path string) (*fixtureProgram, *component.Descriptor, map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("reading fixture: %w", err)
	}
	var fx fixtureFile
	if err := json.Unmarshal(raw, &fx); err != nil {
		return nil, nil, nil, fmt.Errorf("parsing fixture: %w", err)
	}

	p := &fixtureProgram{
		types:         map[string]model.Type{},
		elements:      map[string]*loadedElement{},
		declarationOf: fx.DeclarationOf,
		elementOrder:  fx.ElementOrder,
	}

	for _, ft := range fx.Types {
		p.types[ft.Name] = p.declareType(ft)
	}
	for _, fe := range fx.Elements {
		p.elements[fe.Name] = &loadedElement{fx: fe}
	}
	// Second pass: wire cross-references now that every name resolves to
	// something, regardless of declaration order in the JSON document.
	for _, fe := range fx.Elements {
		e := p.elements[fe.Name]
		if fe.Enclosing != "" {
			e.enclosing = p.elements[fe.Enclosing]
		}
		if fe.Nested && fe.AsType != "" {
			e.asType = p.typeByName(fe.AsType)
		}
		if fe.Executable {
			e.returnType = p.typeByName(fe.ReturnType)
			for _, param := range fe.Parameters {
				e.params = append(e.params, model.Parameter{Name: param.Name, Type: p.typeByName(param.Type)})
			}
		}
		for _, fa := range fe.Annotations {
			e.annotations = append(e.annotations, model.NewAnnotation(fa.Name, p.decodeMembers(fa.Members), nil))
		}
	}

	rootType := p.typeByName(fx.RootComponent)
	rootElem, err := p.DeclarationOf(rootType)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("root component %q: %w", fx.RootComponent, err)
	}
	root, ds := component.Build(p, decl.ModuleRef{Type: rootType, Element: rootElem}, nil)
	if ds.HasError() {
		return nil, nil, nil, fmt.Errorf("building component shape: %v", ds)
	}
	return p, root, fx.Options, nil
}

func (p *fixtureProgram) declareType(ft fixtureType) model.Type {
	kind := model.KindClass
	switch ft.Kind {
	case "interface":
		kind = model.KindInterface
	case "enum":
		kind = model.KindEnum
	case "array":
		kind = model.KindArray
	case "primitive":
		kind = model.KindPrimitive
	}
	var args []model.Type
	for _, a := range ft.Args {
		args = append(args, p.typeByName(a))
	}
	return &loadedType{name: ft.Name, kind: kind, args: args}
}

// typeByName returns the registered type for name, synthesizing a bare
// KindClass type with no generic arguments the first time an unregistered
// name is referenced: most fixture types never need their own "types"
// entry, only ones carrying generic arguments (Set<T>, Map<K,V>) do.
func (p *fixtureProgram) typeByName(name string) model.Type {
	if name == "" {
		return nil
	}
	if t, ok := p.types[name]; ok {
		return t
	}
	t := &loadedType{name: name, kind: model.KindClass}
	p.types[name] = t
	return t
}

// decodeMembers converts a raw JSON annotation-member map into the shapes
// internal/decl and internal/component expect: a member object tagged
// "$type"/"$types" becomes a model.Type / []model.Type (the JSON document
// can't spell a Type literal any other way), everything else passes through
// as the plain JSON-decoded value (string, bool, float64, ...).
func (p *fixtureProgram) decodeMembers(raw map[string]any) map[string]any {
	if raw == nil {
		return nil
	}
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = p.decodeValue(v)
	}
	return out
}

func (p *fixtureProgram) decodeValue(v any) any {
	obj, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if name, ok := obj["$type"].(string); ok {
		return p.typeByName(name)
	}
	if rawNames, ok := obj["$types"].([]any); ok {
		types := make([]model.Type, 0, len(rawNames))
		for _, n := range rawNames {
			if name, ok := n.(string); ok {
				types = append(types, p.typeByName(name))
			}
		}
		return types
	}
	return v
}
