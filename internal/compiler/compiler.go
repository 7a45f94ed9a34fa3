// Package compiler wires the whole pipeline together: a program model in,
// an emission plan out.
//
// Follows the teacher's Compile/CompilePackage shape: sequential phases
// (parse -> infer -> codegen -> print) feeding a single output bag. Here the
// phases are resolve -> freeze graph -> validate -> emit, and the last phase
// is conditional on the one before it, the same way the teacher's printer
// phase never runs over a module that failed type inference with
// unrecoverable errors.
package compiler

import (
	"github.com/bindgraph-core/bindgraph/internal/component"
	"github.com/bindgraph-core/bindgraph/internal/diag"
	"github.com/bindgraph-core/bindgraph/internal/emit"
	"github.com/bindgraph-core/bindgraph/internal/graph"
	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/bindgraph-core/bindgraph/internal/options"
	"github.com/bindgraph-core/bindgraph/internal/resolver"
	"github.com/bindgraph-core/bindgraph/internal/validate"
)

// Output is the compiler's result bag: the full diagnostic set plus the
// emission plan, which is nil whenever Diagnostics.HasError() is true.
type Output struct {
	Diagnostics diag.Diagnostics
	Plan        *emit.Plan
}

// Compile runs the full pipeline over root, the program's top-level
// @Component-annotated descriptor, honoring opts.FullBindingGraphValidation
// when freezing the dependency graph.
func Compile(p model.Program, root *component.Descriptor, opts options.Options) Output {
	r, resolveDiags := resolver.Resolve(p, root, nil)
	if !opts.WarnIfInjectionFactoryGenerationFails {
		kept := diag.Diagnostics{}
		for _, d := range resolveDiags {
			if _, isNote := d.(diag.InjectionCycleNote); !isNote {
				kept = append(kept, d)
			}
		}
		resolveDiags = kept
	}

	g, graphDiags := graph.Build(r, opts.FullBindingGraphValidation)

	upstream := append(diag.Diagnostics{}, opts.Diagnostics()...)
	upstream = append(upstream, resolveDiags...)
	upstream = append(upstream, graphDiags...)

	all := validate.Run(p, r, g, upstream)
	if all.HasError() {
		return Output{Diagnostics: all}
	}

	return Output{Diagnostics: all, Plan: emit.Build(g)}
}
