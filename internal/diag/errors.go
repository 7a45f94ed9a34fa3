package diag

import (
	"fmt"
	"strings"

	"github.com/bindgraph-core/bindgraph/internal/key"
)

// Component paths and dependency traces are passed in as already-formatted
// strings so this package never needs to import internal/graph: the graph
// package builds these strings.

func (MissingBindingError) isDiagnostic()          {}
func (DuplicateBindingError) isDiagnostic()         {}
func (IncompatibleScopeError) isDiagnostic()        {}
func (DependencyCycleError) isDiagnostic()          {}
func (NullabilityError) isDiagnostic()              {}
func (DelegateTypeError) isDiagnostic()             {}
func (MultibindingCoherenceError) isDiagnostic()    {}
func (DuplicateMapKeyError) isDiagnostic()          {}
func (MixedMapKeyStrategyError) isDiagnostic()      {}
func (SubcomponentReferenceError) isDiagnostic()    {}
func (MembersInjectionError) isDiagnostic()         {}
func (ComponentShapeError) isDiagnostic()           {}
func (EntryPointError) isDiagnostic()               {}
func (UnrecognizedOptionWarning) isDiagnostic()     {}
func (InjectionCycleNote) isDiagnostic()             {}
func (ModuleConstructionError) isDiagnostic()        {}
func (ProducerFromProvisionError) isDiagnostic()     {}

type MissingBindingError struct {
	Key           key.Key
	ComponentPath string
	Trace         []string
}

func (e MissingBindingError) Severity() Severity { return SeverityError }
func (e MissingBindingError) Message() string {
	return fmt.Sprintf("%s cannot be provided %swithout an @Provides-annotated method. Trace: %s",
		e.Key.String(), componentSuffix(e.ComponentPath), strings.Join(e.Trace, " -> "))
}

type DuplicateBindingError struct {
	Key           key.Key
	ComponentPath string
	Sources       []string
}

func (e DuplicateBindingError) Severity() Severity { return SeverityError }
func (e DuplicateBindingError) Message() string {
	return fmt.Sprintf("%s is bound multiple times%s: %s",
		e.Key.String(), componentSuffix(e.ComponentPath), strings.Join(e.Sources, ", "))
}

type IncompatibleScopeError struct {
	Key           key.Key
	Scope         string
	ComponentPath string
}

func (e IncompatibleScopeError) Severity() Severity { return SeverityError }
func (e IncompatibleScopeError) Message() string {
	return fmt.Sprintf("%s has scope %s which is not declared by component %s",
		e.Key.String(), e.Scope, e.ComponentPath)
}

// DependencyCycleError is fatal only when every edge in the cycle is
// RequestKind.instance.
type DependencyCycleError struct {
	Cycle []string // canonical keys in cycle order
}

func (e DependencyCycleError) Severity() Severity { return SeverityError }
func (e DependencyCycleError) Message() string {
	return "dependency cycle detected: " + strings.Join(e.Cycle, " -> ")
}

// InjectionCycleNote is emitted instead of DependencyCycleError when a cycle
// contains a framework-typed edge and warn_if_injection_factory_generation_fails
// is enabled.
type InjectionCycleNote struct {
	Cycle []string
}

func (e InjectionCycleNote) Severity() Severity { return SeverityNote }
func (e InjectionCycleNote) Message() string {
	return "dependency cycle broken by a framework-typed edge: " + strings.Join(e.Cycle, " -> ")
}

type NullabilityError struct {
	Key           key.Key
	ComponentPath string
	RequestSite   string
}

func (e NullabilityError) Severity() Severity { return SeverityError }
func (e NullabilityError) Message() string {
	return fmt.Sprintf("%s is @Nullable but %s requires a non-null value", e.Key.String(), e.RequestSite)
}

type DelegateTypeError struct {
	Method     string
	ParamType  string
	ReturnType string
}

func (e DelegateTypeError) Severity() Severity { return SeverityError }
func (e DelegateTypeError) Message() string {
	return fmt.Sprintf("%s: parameter type %s is not assignable to return type %s", e.Method, e.ParamType, e.ReturnType)
}

// MultibindingCoherenceError covers mixed contribution types for one key and
// malformed @Multibinds declarations. No check emits it for a contribution
// whose set or map has no declaration.
type MultibindingCoherenceError struct {
	Key     key.Key
	Problem string
}

func (e MultibindingCoherenceError) Severity() Severity { return SeverityError }
func (e MultibindingCoherenceError) Message() string {
	return fmt.Sprintf("%s: %s", e.Key.String(), e.Problem)
}

type DuplicateMapKeyError struct {
	Key        key.Key
	MapKey     string
	Sources    []string
}

func (e DuplicateMapKeyError) Severity() Severity { return SeverityError }
func (e DuplicateMapKeyError) Message() string {
	return fmt.Sprintf("%s: duplicate map key %s contributed by %s", e.Key.String(), e.MapKey, strings.Join(e.Sources, ", "))
}

// MixedMapKeyStrategyError: class-valued and string-valued map-key
// strategies must never be mixed for one effective key.
type MixedMapKeyStrategyError struct {
	Key key.Key
}

func (e MixedMapKeyStrategyError) Severity() Severity { return SeverityError }
func (e MixedMapKeyStrategyError) Message() string {
	return fmt.Sprintf("%s: map-key contributions mix class-valued and string-valued strategies", e.Key.String())
}

type SubcomponentReferenceError struct {
	Subcomponent string
	Reason       string
}

func (e SubcomponentReferenceError) Severity() Severity { return SeverityError }
func (e SubcomponentReferenceError) Message() string {
	return fmt.Sprintf("%s: %s", e.Subcomponent, e.Reason)
}

type MembersInjectionError struct {
	Type   string
	Reason string
}

func (e MembersInjectionError) Severity() Severity { return SeverityError }
func (e MembersInjectionError) Message() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

type ComponentShapeError struct {
	Component string
	Reason    string
}

func (e ComponentShapeError) Severity() Severity { return SeverityError }
func (e ComponentShapeError) Message() string {
	return fmt.Sprintf("%s: %s", e.Component, e.Reason)
}

type EntryPointError struct {
	Method string
	Reason string
}

func (e EntryPointError) Severity() Severity { return SeverityError }
func (e EntryPointError) Message() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Reason)
}

type UnrecognizedOptionWarning struct {
	Option string
}

func (e UnrecognizedOptionWarning) Severity() Severity { return SeverityWarning }
func (e UnrecognizedOptionWarning) Message() string {
	return fmt.Sprintf("unrecognized option %q", e.Option)
}

// ModuleConstructionError rejects module instances that need construction
// parameters unless explicitly whitelisted.
type ModuleConstructionError struct {
	Module string
}

func (e ModuleConstructionError) Severity() Severity { return SeverityError }
func (e ModuleConstructionError) Message() string {
	return fmt.Sprintf("module %s declares a constructor with parameters and is not whitelisted for instantiation", e.Module)
}

// ProducerFromProvisionError fires when a non-production (provision) binding
// requests one of its dependencies as a producer, produced, or future.
type ProducerFromProvisionError struct {
	Key           key.Key
	ComponentPath string
	RequestedKey  key.Key
}

func (e ProducerFromProvisionError) Severity() Severity { return SeverityError }
func (e ProducerFromProvisionError) Message() string {
	return fmt.Sprintf("%s%sis a provision binding but requests %s as a producer/produced/future",
		e.Key.String(), componentSuffix(e.ComponentPath), e.RequestedKey.String())
}

func componentSuffix(path string) string {
	if path == "" {
		return " "
	}
	return fmt.Sprintf(" [%s] ", path)
}
