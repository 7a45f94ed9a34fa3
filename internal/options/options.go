// Package options implements the immutable Options record: one field per
// recognized option plus Unrecognized for unrecognized keys. Recognized
// options override defaults; unknown keys are reported as
// diag.UnrecognizedOptionWarning rather than rejected.
//
// Follows the teacher's pattern of small immutable config structs built by a
// single constructor.
package options

import (
	"sort"

	"github.com/bindgraph-core/bindgraph/internal/diag"
)

// FloorType selects validation strictness: whether to run validation
// strictly or lenient.
type FloorType int

const (
	FloorStrict FloorType = iota
	FloorLenient
)

// Options is the immutable, recognized-options record. Zero value is the
// documented default for every option (all booleans default false,
// FloorType defaults to FloorStrict).
type Options struct {
	ExperimentalDaggerErrorMessages       bool
	FastInit                              bool
	DisableInstallInCheck                 bool
	WarnIfInjectionFactoryGenerationFails bool
	FullBindingGraphValidation            bool
	FloorType                             FloorType

	// Unrecognized carries the raw key of every option key this package did
	// not recognize, for the caller to fold into diag.UnrecognizedOptionWarning.
	Unrecognized []string
}

// recognizedKeys is the closed set of recognized option names.
var recognizedKeys = map[string]bool{
	"experimental_daggerErrorMessages":       true,
	"fast_init":                              true,
	"disable_install_in_check":               true,
	"warn_if_injection_factory_generation_fails": true,
	"full_binding_graph_validation":           true,
	"floor_type":                              true,
}

// FromMap builds an Options record from a raw string-keyed map (as read from
// a build-tool option bag or a bindgraphc config file), applying recognized
// keys and recording the rest in Unrecognized. Unknown options are reported;
// recognized ones override defaults.
func FromMap(raw map[string]string) Options {
	o := Options{}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := raw[k]
		if !recognizedKeys[k] {
			o.Unrecognized = append(o.Unrecognized, k)
			continue
		}
		switch k {
		case "experimental_daggerErrorMessages":
			o.ExperimentalDaggerErrorMessages = isTruthy(v)
		case "fast_init":
			o.FastInit = isTruthy(v)
		case "disable_install_in_check":
			o.DisableInstallInCheck = isTruthy(v)
		case "warn_if_injection_factory_generation_fails":
			o.WarnIfInjectionFactoryGenerationFails = isTruthy(v)
		case "full_binding_graph_validation":
			o.FullBindingGraphValidation = isTruthy(v)
		case "floor_type":
			if v == "lenient" {
				o.FloorType = FloorLenient
			} else {
				o.FloorType = FloorStrict
			}
		}
	}
	return o
}

func isTruthy(v string) bool {
	switch v {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Diagnostics renders Unrecognized as one diag.UnrecognizedOptionWarning per
// entry, in the sorted order FromMap already recorded them in.
func (o Options) Diagnostics() diag.Diagnostics {
	var ds diag.Diagnostics
	for _, k := range o.Unrecognized {
		ds = append(ds, diag.UnrecognizedOptionWarning{Option: k})
	}
	return ds
}
