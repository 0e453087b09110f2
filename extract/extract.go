// Package extract turns a free-text lead message into a sparse record
// update. Two structured chains run per turn: a cheap classifier that
// catches negative and uncertain answers to the last question, and the
// general slot extractor. Both fail soft into an empty update.
package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/danielmdadu/leadagent/lead"
	"github.com/danielmdadu/leadagent/llm"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

// Engine extracts new slot values from one message, given the current
// record and the last question the bot asked.
type Engine struct {
	general *llm.Chain[extractInput, fieldUpdate]
	special *llm.Chain[specialInput, specialVerdict]
	log     *slog.Logger
}

// NewEngine builds the two extraction chains on the given chat model.
func NewEngine(chatModel model.ToolCallingChatModel, logger *slog.Logger, opts ...llm.Option) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	general, err := llm.NewChain[extractInput, fieldUpdate](
		chatModel,
		buildExtractionMessages,
		"registrar_datos_lead",
		"Registra la información nueva encontrada en el mensaje del usuario. Incluye solo campos con información nueva.",
		opts...,
	)
	if err != nil {
		return nil, err
	}
	special, err := llm.NewChain[specialInput, specialVerdict](
		chatModel,
		buildSpecialMessages,
		"clasificar_respuesta",
		"Clasifica si la respuesta del usuario es negativa, incierta, o ninguna de las dos.",
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return &Engine{general: general, special: special, log: logger}, nil
}

// Extract returns the new information found in message. The returned
// update only carries slots still open in r; chain failures yield an empty
// update so the conversation never stalls on the model.
func (e *Engine) Extract(ctx context.Context, message string, r *lead.Record, lastQuestion string) lead.Update {
	if lastQuestion != "" {
		if u, ok := e.trySpecial(ctx, message, r, lastQuestion); ok {
			return u
		}
	}

	out, err := e.general.Invoke(ctx, extractInput{
		Message:      message,
		LastQuestion: lastQuestion,
		Record:       r,
	})
	if err != nil {
		e.log.Warn("extraction failed", "error", err)
		return lead.Update{}
	}
	return e.normalize(out, r)
}

// trySpecial short-circuits the turn when the message is a negative or
// uncertain answer to the last question. The second return is false when
// general extraction should run instead.
func (e *Engine) trySpecial(ctx context.Context, message string, r *lead.Record, lastQuestion string) (lead.Update, bool) {
	verdict, err := e.special.Invoke(ctx, specialInput{Message: message, LastQuestion: lastQuestion})
	if err != nil {
		e.log.Warn("special-answer classification failed", "error", err)
		return lead.Update{}, false
	}
	field, sentinel := sentinelFor(verdict)
	if field == "" {
		return lead.Update{}, false
	}
	if !writable(r.FieldValue(field)) {
		// The targeted slot already holds a real answer.
		return lead.Update{}, true
	}
	e.log.Debug("special answer detected", "field", field, "sentinel", sentinel)
	return lead.Update{Fields: map[string]string{field: sentinel}}, true
}

// writable reports whether a slot is still open: unset, or holding only a
// sentinel that a real answer may replace.
func writable(v string) bool {
	return v == "" || leadschema.IsSentinel(v)
}

// normalize converts the raw tool output into a conservative update:
// already-filled slots are dropped, names are split, the machinery type is
// canonicalized, and detail keys already captured are preserved.
func (e *Engine) normalize(out *fieldUpdate, r *lead.Record) lead.Update {
	u := lead.Update{Fields: map[string]string{}}

	name, surname := splitName(out.Name, out.Surname)
	put(u.Fields, leadschema.FieldName, name)
	put(u.Fields, leadschema.FieldSurname, surname)

	if t := strings.TrimSpace(out.MachineryType); t != "" {
		if parsed, ok := leadschema.ParseMachineryType(t); ok {
			put(u.Fields, leadschema.FieldMachineryType, string(parsed))
		} else {
			// Let the merge policy log the invalid value.
			put(u.Fields, leadschema.FieldMachineryType, t)
		}
	}

	put(u.Fields, leadschema.FieldCompanyName, out.CompanyName)
	put(u.Fields, leadschema.FieldCompanySector, out.CompanySector)
	put(u.Fields, leadschema.FieldLocation, out.Location)
	put(u.Fields, leadschema.FieldUsage, canonicalUsage(out.Usage))
	put(u.Fields, leadschema.FieldWebsite, out.Website)
	put(u.Fields, leadschema.FieldEmail, out.Email)
	put(u.Fields, leadschema.FieldPhone, out.Phone)

	for f := range u.Fields {
		if !writable(r.FieldValue(f)) {
			delete(u.Fields, f)
		}
	}

	if len(out.MachineryDetails) > 0 {
		u.Details = map[string]string{}
		for k, v := range out.MachineryDetails {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if cur, exists := r.MachineryDetails[k]; exists && !writable(cur) {
				continue
			}
			u.Details[k] = v
		}
	}

	return u
}

func put(m map[string]string, key, value string) {
	value = strings.TrimSpace(value)
	if value != "" {
		m[key] = value
	}
}

// splitName applies the self-introduction rule: a multi-token name with no
// separate surname splits into first name plus the joined remainder.
func splitName(name, surname string) (string, string) {
	name = strings.TrimSpace(name)
	surname = strings.TrimSpace(surname)
	if surname != "" {
		return name, surname
	}
	tokens := strings.Fields(name)
	if len(tokens) < 2 {
		return name, ""
	}
	return tokens[0], strings.Join(tokens[1:], " ")
}

// canonicalUsage reduces free-form usage answers to the two values the
// record stores.
func canonicalUsage(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" || leadschema.IsSentinel(trimmed) {
		return trimmed
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(lower, "venta") || strings.Contains(lower, "vender") || strings.Contains(lower, "comercializar"):
		return "venta"
	case strings.Contains(lower, "uso") || strings.Contains(lower, "empresa") || strings.Contains(lower, "interno"):
		return "uso empresa"
	}
	return trimmed
}
