package lead

import "github.com/danielmdadu/leadagent/schema"

// Question is the selector's result: what to ask, why, and which slot the
// answer is expected to fill.
type Question struct {
	FieldID string
	Text    string
	Reason  string
}

// Next returns the highest-priority unanswered question, or nil when every
// registry field (and every required detail field of the selected machinery
// type) is answered. nil here and IsComplete returning true are the same
// condition by construction.
//
// A field counts as unanswered when it is empty, or when it is required and
// holds a sentinel: "No especificado" on a required slot means the lead has
// not actually answered yet. An optional field holding a sentinel is
// answered — the bot does not ask for a website twice after "no tenemos".
func Next(r *Record) *Question {
	for _, f := range schema.Fields() {
		if f.Name == schema.FieldMachineryDetails {
			if q := nextDetailQuestion(r); q != nil {
				return q
			}
			continue
		}
		if !unanswered(f, r.FieldValue(f.Name)) {
			continue
		}
		if f.Name == schema.FieldCompanyName && r.CompanySector == "" {
			return &Question{
				FieldID: schema.FieldCompanyName,
				Text:    schema.CombinedCompanyQuestion,
				Reason:  f.Reason,
			}
		}
		return &Question{FieldID: f.Name, Text: f.Question, Reason: f.Reason}
	}
	return nil
}

// nextDetailQuestion walks the per-type detail list in order and returns
// the first unanswered required detail field. Before the machinery type is
// known there is nothing to ask here; the type question itself has higher
// priority in the registry.
func nextDetailQuestion(r *Record) *Question {
	if r.MachineryType == schema.MachineryUnknown {
		return nil
	}
	for _, f := range schema.DetailFieldsFor(r.MachineryType) {
		if !f.Required {
			continue
		}
		v := r.MachineryDetails[f.Name]
		if v == "" || v == schema.SentinelUnspecified {
			return &Question{
				FieldID: schema.FieldMachineryDetails,
				Text:    f.Question,
				Reason:  f.Reason,
			}
		}
	}
	return nil
}

func unanswered(f schema.Field, value string) bool {
	if value == "" {
		return true
	}
	return f.Required && schema.IsSentinel(value)
}
