package lead

import "github.com/danielmdadu/leadagent/schema"

// IsComplete reports whether the record qualifies the lead: the full name
// carries a surname, every registry field is answered (required fields with
// a real value, optional fields at least with a sentinel), the machinery
// type is set with a non-empty detail map, and every required detail field
// holds a real answer.
//
// This predicate and Next agree by construction: IsComplete(r) is true
// exactly when Next(r) is nil, which the selector tests assert at every
// step of the qualification flow.
func IsComplete(r *Record) bool {
	if r.nameTokens() < 2 {
		return false
	}
	for _, f := range schema.Fields() {
		if f.Name == schema.FieldMachineryDetails {
			continue
		}
		if unanswered(f, r.FieldValue(f.Name)) {
			return false
		}
	}
	if r.MachineryType == schema.MachineryUnknown || len(r.MachineryDetails) == 0 {
		return false
	}
	for _, name := range schema.RequiredDetailFieldsFor(r.MachineryType) {
		v, ok := r.MachineryDetails[name]
		if !ok || v == "" || v == schema.SentinelUnspecified {
			return false
		}
	}
	return true
}
