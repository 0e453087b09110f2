// Package dialogue produces what the bot actually says: the per-turn reply
// around the next pending question, the inventory side-channel, and the
// deterministic completion summary. Prose is delegated to the model under
// hard rules; every model failure has a deterministic fallback.
package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"

	"github.com/danielmdadu/leadagent/lead"
	"github.com/danielmdadu/leadagent/llm"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

// Greeting opens the first bot reply of a conversation.
const Greeting = "¡Hola! Soy Juan, tu asistente especializado en maquinaria ligera. "

const composerSystemPrompt = `Eres Juan, un asistente de ventas profesional especializado en maquinaria ligera en México. Tu trabajo es calificar leads de manera natural y conversacional.

REGLAS:
- Sé amigable pero profesional. No te presentes ni digas "Hola" o "Soy Juan".
- Mantén respuestas CORTAS (máximo 50 palabras).
- Si se extrajo información nueva, confírmala brevemente de manera amigable.
- Incluye SIEMPRE la siguiente pregunta indicada, puedes reformularla pero sin cambiar su intención ni el dato que pide.
- Solo explica por qué necesitas un dato si el usuario lo pregunta.
- No repitas información ya confirmada en turnos anteriores.

Llama a la herramienta redactar_respuesta con la respuesta.`

type composeInput struct {
	Message      string
	Record       *lead.Record
	Extracted    lead.Update
	NextQuestion *lead.Question
}

type composedReply struct {
	Message string `json:"mensaje" jsonschema:"required,description=Respuesta conversacional para el usuario"`
}

// Input carries everything one reply depends on.
type Input struct {
	Message           string
	Record            *lead.Record
	Extracted         lead.Update
	NextQuestion      *lead.Question
	InventoryQuestion bool
	Greeting          bool
}

// Composer builds the bot's reply for one turn.
type Composer struct {
	chain *llm.Chain[composeInput, composedReply]
	log   *slog.Logger
}

func NewComposer(chatModel model.ToolCallingChatModel, logger *slog.Logger, opts ...llm.Option) (*Composer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chain, err := llm.NewChain[composeInput, composedReply](
		chatModel,
		buildComposerMessages,
		"redactar_respuesta",
		"Redacta la respuesta conversacional del asistente de ventas.",
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return &Composer{chain: chain, log: logger}, nil
}

// stateTable renders the scalar slots of r as a markdown table, so the
// model knows what is already confirmed and never asks for it again.
func stateTable(r *lead.Record) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Campo", "Valor confirmado")
	for _, name := range leadschema.ScalarFieldNames() {
		v := r.FieldValue(name)
		if v == "" {
			v = "(vacío)"
		}
		_ = table.Append(name, v)
	}
	_ = table.Render()
	return buf.String()
}

func buildComposerMessages(_ context.Context, in composeInput) ([]*schema.Message, error) {
	extracted := "Ninguna información nueva"
	if !in.Extracted.IsEmpty() {
		s, err := sonic.MarshalString(in.Extracted)
		if err != nil {
			return nil, err
		}
		extracted = s
	}
	detailsJSON, err := sonic.MarshalString(in.Record.MachineryDetails)
	if err != nil {
		return nil, err
	}
	next := "No hay siguiente pregunta"
	if in.NextQuestion != nil {
		next = in.NextQuestion.Text
	}
	user := fmt.Sprintf(
		"# Estado actual del lead:\n%s\n\n# Detalles de maquinaria ya capturados:\n```json\n%s\n```\n\n# Información extraída del último mensaje:\n%s\n\n# Siguiente pregunta a hacer:\n%s\n\n# Mensaje del usuario:\n%s",
		stateTable(in.Record), detailsJSON, extracted, next, in.Message,
	)
	return []*schema.Message{
		schema.SystemMessage(composerSystemPrompt),
		schema.UserMessage(user),
	}, nil
}

// Compose returns the bot reply for one turn. It never fails: inventory
// questions and machinery-detail questions are answered deterministically,
// everything else goes through the model with a template fallback.
func (c *Composer) Compose(ctx context.Context, in *Input) string {
	var prefix string
	if in.Greeting {
		prefix = Greeting
	}

	if in.InventoryQuestion {
		reply := prefix + CatalogueText()
		if in.NextQuestion != nil {
			reply += "\n\n" + in.NextQuestion.Text
		}
		return reply
	}

	if in.NextQuestion != nil && in.NextQuestion.FieldID == leadschema.FieldMachineryDetails {
		return prefix + c.detailReply(in)
	}

	out, err := c.chain.Invoke(ctx, composeInput{
		Message:      in.Message,
		Record:       in.Record,
		Extracted:    in.Extracted,
		NextQuestion: in.NextQuestion,
	})
	if err != nil || out.Message == "" {
		if err != nil {
			c.log.Warn("reply composition failed", "error", err)
		}
		return prefix + fallbackReply(in)
	}
	return prefix + out.Message
}

// detailReply confirms what the turn extracted and asks the next machinery
// detail without a model call.
func (c *Composer) detailReply(in *Input) string {
	q := in.NextQuestion.Reason + ", " + in.NextQuestion.Text
	if t := in.Extracted.Fields[leadschema.FieldMachineryType]; t != "" {
		return fmt.Sprintf("Perfecto, veo que necesitas %s. %s", strings.ToLower(t), q)
	}
	if n := in.Extracted.Fields[leadschema.FieldName]; n != "" {
		return fmt.Sprintf("¡Perfecto, %s! %s", n, q)
	}
	return q
}

func fallbackReply(in *Input) string {
	if in.NextQuestion == nil {
		return "Gracias por toda la información. Estoy procesando su solicitud."
	}
	return in.NextQuestion.Text + " " + in.NextQuestion.Reason
}

// CompletionMessage renders the final summary once every slot is filled.
func CompletionMessage(r *lead.Record) string {
	details, err := sonic.ConfigDefault.MarshalIndent(r.MachineryDetails, "", "  ")
	if err != nil {
		details = []byte("{}")
	}
	return fmt.Sprintf(`¡Perfecto, %s!

He registrado toda su información:
- Maquinaria: %s
- Detalles: %s
- Empresa: %s
- Giro: %s
- Lugar: %s
- Uso: %s
- Sitio web: %s
- Correo: %s
- Teléfono: %s

Procederé a generar su cotización. Nos pondremos en contacto con usted pronto.

¿Hay algo más en lo que pueda ayudarle?`,
		r.Name, r.MachineryType, details, r.CompanyName, r.CompanySector,
		r.Location, r.Usage, r.Website, r.Email, r.Phone)
}
