package key

import (
	"errors"

	"github.com/bindgraph-core/bindgraph/internal/model"
)

// Well-known, distinguished scope names.
const (
	SingletonScopeName  = "Singleton"
	ReusableScopeName   = "Reusable"
	ProductionScopeName = "ProductionScope"
)

// ErrMultipleScopes is returned by ScopeOf when an element carries more than
// one scope annotation.
var ErrMultipleScopes = errors.New("key: element has more than one scope annotation")

// ErrMultipleQualifiers is returned by QualifierOf for the analogous
// qualifier case.
var ErrMultipleQualifiers = errors.New("key: element has more than one qualifier")

// Scope wraps a scope annotation value.
type Scope struct {
	Annotation model.Annotation
}

// Name returns the canonicalized scope annotation name.
func (s Scope) Name() string { return s.Annotation.Name() }

// IsSingleton, IsReusable, IsProduction test against the distinguished scopes.
func (s Scope) IsSingleton() bool  { return s.Name() == SingletonScopeName }
func (s Scope) IsReusable() bool   { return s.Name() == ReusableScopeName }
func (s Scope) IsProduction() bool { return s.Name() == ProductionScopeName }

// Equal compares two scopes by canonicalized annotation identity, never by
// structural comparison of annotation-declaration source.
func (s Scope) Equal(other Scope) bool { return s.Annotation.Equal(other.Annotation) }

// IsScopeMarker reports whether ann is itself annotated as a scope marker.
func IsScopeMarker(p model.Program, ann model.Annotation) bool {
	return len(p.AnnotatedAnnotations(ann.Declaration(), "Scope")) > 0
}

// IsQualifierMarker is the qualifier analog of IsScopeMarker.
func IsQualifierMarker(p model.Program, ann model.Annotation) bool {
	return len(p.AnnotatedAnnotations(ann.Declaration(), "Qualifier")) > 0
}

// ScopeOf returns the single scope annotation on elem, if any, erroring per
// ErrMultipleScopes when more than one is present.
func ScopeOf(p model.Program, elem model.Element) (*Scope, error) {
	var found []model.Annotation
	for _, ann := range p.AnnotationsOf(elem) {
		if IsScopeMarker(p, ann) {
			found = append(found, ann)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &Scope{Annotation: found[0]}, nil
	default:
		return nil, ErrMultipleScopes
	}
}

// QualifierOf returns the single qualifier annotation on elem, if any, erroring
// per ErrMultipleQualifiers when more than one is present. Singularized since
// a Key carries at most one qualifier.
func QualifierOf(p model.Program, elem model.Element) (*model.Annotation, error) {
	var found []model.Annotation
	for _, ann := range p.AnnotationsOf(elem) {
		if IsQualifierMarker(p, ann) {
			found = append(found, ann)
		}
	}
	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return &found[0], nil
	default:
		return nil, ErrMultipleQualifiers
	}
}
