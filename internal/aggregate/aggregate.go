// Package aggregate implements persisted compile-round artifacts: aggregator
// records written into a dedicated host package after one compilation round,
// and read back by later-round callers to recover transitively installed
// modules/entry-points without re-scanning source. Modeled as a pure
// ReadAggregated(program) -> []Record function plus its WriteAggregated
// counterpart, not a hidden global.
//
// Follows the teacher's package_registry pattern of a small,
// explicitly-passed lookup table rather than package-level state; record
// identity uses google/uuid.
package aggregate

import (
	"fmt"

	"github.com/bindgraph-core/bindgraph/internal/model"
	"github.com/google/uuid"
)

// AnnotationName is the record format: a named annotation with
// string-array members; it is not a bit-exact wire protocol.
const AnnotationName = "AggregatedRoot"

// Record is one persisted aggregator record:
// (component_names[], module_name?, entry_point_name?,
// component_entry_point_name?, test?).
type Record struct {
	ID                      uuid.UUID
	ComponentNames          []string
	ModuleName              string
	EntryPointName          string
	ComponentEntryPointName string
	Test                    bool
}

// ReadAggregated scans pkg's direct children for AggregatedRoot-annotated
// elements left by an earlier round and decodes each into a Record. Elements
// without the annotation, or whose members don't decode, are skipped rather
// than erroring: a round may see a mix of fresh and already-aggregated
// declarations.
func ReadAggregated(p model.Program, pkg model.Element) []Record {
	var out []Record
	for _, elem := range p.ElementOrder(pkg) {
		for _, ann := range p.AnnotationsOf(elem) {
			if ann.Name() != AnnotationName {
				continue
			}
			rec, ok := decodeRecord(ann)
			if ok {
				out = append(out, rec)
			}
		}
	}
	return out
}

// WriteAggregated turns freshly discovered records into the annotation shape
// the host persists into its dedicated aggregator package for the next
// round. Records with a zero ID are assigned a fresh one, since a record
// only gets an identity the first time it is written.
func WriteAggregated(records []Record) []model.Annotation {
	out := make([]model.Annotation, 0, len(records))
	for _, r := range records {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		out = append(out, encodeRecord(r))
	}
	return out
}

func encodeRecord(r Record) model.Annotation {
	members := map[string]any{
		"id":             r.ID.String(),
		"componentNames": r.ComponentNames,
		"test":           r.Test,
	}
	if r.ModuleName != "" {
		members["moduleName"] = r.ModuleName
	}
	if r.EntryPointName != "" {
		members["entryPointName"] = r.EntryPointName
	}
	if r.ComponentEntryPointName != "" {
		members["componentEntryPointName"] = r.ComponentEntryPointName
	}
	return model.NewAnnotation(AnnotationName, members, nil)
}

func decodeRecord(ann model.Annotation) (Record, bool) {
	idVal, ok := ann.Value("id")
	if !ok {
		return Record{}, false
	}
	idStr, ok := idVal.(string)
	if !ok {
		return Record{}, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Record{}, false
	}

	r := Record{ID: id}
	if names, ok := ann.Value("componentNames"); ok {
		r.ComponentNames, _ = names.([]string)
	}
	if v, ok := ann.Value("moduleName"); ok {
		r.ModuleName, _ = v.(string)
	}
	if v, ok := ann.Value("entryPointName"); ok {
		r.EntryPointName, _ = v.(string)
	}
	if v, ok := ann.Value("componentEntryPointName"); ok {
		r.ComponentEntryPointName, _ = v.(string)
	}
	if v, ok := ann.Value("test"); ok {
		r.Test, _ = v.(bool)
	}
	return r, true
}

// String renders a Record for diagnostics/logging, never part of the wire
// format itself.
func (r Record) String() string {
	return fmt.Sprintf("aggregate.Record{id=%s, components=%v, module=%q}", r.ID, r.ComponentNames, r.ModuleName)
}
