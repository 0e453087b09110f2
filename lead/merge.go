package lead

import (
	"log/slog"

	"github.com/danielmdadu/leadagent/schema"
)

// Merger applies extraction updates to a record. The policy is first-write-
// wins: a field holding a real value is never overwritten. Sentinel values
// are the one revisitable state — a lead who said "no sé" may answer later,
// so a sentinel yields to a real value on a subsequent turn.
type Merger struct {
	log *slog.Logger
}

func NewMerger(log *slog.Logger) *Merger {
	if log == nil {
		log = slog.Default()
	}
	return &Merger{log: log}
}

// Apply folds u into r. It mutates r in place and is deterministic and
// idempotent: applying the same update twice leaves the record identical to
// applying it once.
//
// Rules, in registry order so the machinery type lands before its details:
//   - empty values are skipped
//   - machinery type must parse against the closed enumeration; an invalid
//     value is logged and skipped without aborting the rest of the update
//   - a surname arriving after a first name extends the name field to
//     "{name} {surname}" and is also stored standalone
//   - machinery details deep-merge key by key; existing non-empty sub-keys
//     are preserved and keys outside the active type's schema are dropped
func (m *Merger) Apply(r *Record, u Update) {
	if r.MachineryDetails == nil {
		r.MachineryDetails = map[string]string{}
	}

	for _, name := range orderedFieldNames(u.Fields) {
		value := u.Fields[name]
		if value == "" {
			continue
		}
		switch name {
		case schema.FieldMachineryType:
			m.applyMachineryType(r, value)
		case schema.FieldSurname:
			m.applySurname(r, value)
		case schema.FieldName:
			m.applyName(r, value)
		case schema.FieldMachineryDetails:
			// Structured slot; scalar writes to it are extraction noise.
			m.log.Warn("scalar write to structured field skipped", "field", name)
		default:
			if writable(r.FieldValue(name)) {
				r.setField(name, value)
			}
		}
	}

	for name, value := range u.Details {
		if value == "" {
			continue
		}
		if r.MachineryType == schema.MachineryUnknown {
			m.log.Warn("machinery detail before type is known, skipped", "detail", name)
			continue
		}
		if !schema.IsDetailField(r.MachineryType, name) {
			m.log.Warn("detail outside machinery schema skipped",
				"tipo", string(r.MachineryType), "detail", name)
			continue
		}
		if cur := r.MachineryDetails[name]; cur != "" && !schema.IsSentinel(cur) {
			continue
		}
		r.MachineryDetails[name] = value
	}
}

func (m *Merger) applyMachineryType(r *Record, value string) {
	if r.MachineryType != schema.MachineryUnknown {
		return
	}
	tipo, ok := schema.ParseMachineryType(value)
	if !ok {
		m.log.Warn("invalid machinery type skipped", "value", value)
		return
	}
	r.MachineryType = tipo
}

// applySurname writes the standalone surname and, when a first name is
// already known, derives the full name. Guarded by the existing surname so
// reapplying the same update cannot append twice.
func (m *Merger) applySurname(r *Record, value string) {
	if !writable(r.Surname) {
		return
	}
	r.Surname = value
	if r.Name != "" && !schema.IsSentinel(r.Name) {
		r.Name = r.Name + " " + value
	}
}

// applyName mirrors applySurname for the opposite arrival order: when the
// surname came first, the incoming first name is prefixed onto it.
func (m *Merger) applyName(r *Record, value string) {
	if !writable(r.Name) {
		return
	}
	if r.Surname != "" && !schema.IsSentinel(r.Surname) {
		r.Name = value + " " + r.Surname
		return
	}
	r.Name = value
}

func writable(current string) bool {
	return current == "" || schema.IsSentinel(current)
}

// orderedFieldNames yields the update's field names in registry priority
// order, which keeps Apply deterministic regardless of map iteration.
func orderedFieldNames(fields map[string]string) []string {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for _, f := range schema.Fields() {
		if _, ok := fields[f.Name]; ok {
			names = append(names, f.Name)
		}
	}
	return names
}
