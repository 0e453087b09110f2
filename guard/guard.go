// Package guard screens inbound messages before slot-filling: a regex
// pass for code-injection attempts and a model classifier that sorts
// messages into valid, competitor-probing, or out-of-domain.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/danielmdadu/leadagent/llm"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

// Violation types. InvalidConversation is advisory: the message is still
// slot-filled, tagged as suspect. The other types stop the turn and the
// lead gets a clarification reply instead.
const (
	TypeCodeInjection       = "code_injection"
	TypeForbiddenCompetitor = "competencia_prohibido"
	TypeInvalidConversation = "invalid_conversation"
)

// Domain classifier labels.
const (
	labelValid      = "valido"
	labelCompetitor = "competencia_prohibido"
	labelOffDomain  = "fuera_de_dominio"
)

// Result is a non-nil violation verdict.
type Result struct {
	Type    string
	Message string
}

// Blocking reports whether the violation stops the turn entirely.
func (r *Result) Blocking() bool {
	return r != nil && r.Type != TypeInvalidConversation
}

// Gate is the pre-processing safety check. A nil result means the message
// is clean.
type Gate interface {
	Check(ctx context.Context, message string) *Result
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|UNION|CREATE|ALTER)\b|--|;|' OR '1'='1`),
	regexp.MustCompile(`(?i)\b(os\.system|subprocess|eval|exec|import|open)\b`),
	regexp.MustCompile(`(?i)<script.*?>|javascript:|\bon\w+\s*=`),
}

const domainSystemPrompt = `Eres un clasificador de intenciones para un chatbot de ventas de maquinaria.

Clasifica cada mensaje en UNA de estas tres categorías:

1. valido - Incluye CUALQUIER consulta con las siguientes características:
   - Preguntas sobre tipos de maquinaria: %s
   - Consultas sobre PRECIOS de maquinaria específica
   - Preguntas sobre disponibilidad de inventario
   - Preguntas sobre características y especificaciones (capacidad, altura, amperaje, etc.)
   - Consultas sobre marcas de maquinaria y solicitudes de cotización
   - Información personal del cliente (nombre, empresa, contacto, lugar de requerimiento)
   - Preguntas sobre por qué necesita ciertos datos o cómo se llama el asistente
   - Detalles sobre proyectos que requieren maquinaria

2. competencia_prohibido - Consultas sobre otros proveedores:
   - Preguntas sobre precios de competidores
   - Comparativas o recomendaciones de proveedores externos

3. fuera_de_dominio - Cualquier tema no relacionado con maquinaria:
   - Historia, ciencia general, entretenimiento, deportes, cultura
   - Tecnología no relacionada con maquinaria
   - Política, religión, temas controversiales

EJEMPLOS:
- "¿Cuál es el precio de la soldadora Shindaiwa?" → valido
- "Lo necesito de 20 litros" → valido
- "¿Cuál es la capital de México?" → fuera_de_dominio
- "Dame precios de otros proveedores" → competencia_prohibido`

type domainInput struct {
	Message string
}

type domainVerdict struct {
	Label string `json:"label" jsonschema:"required,description=Categoría del mensaje,enum=valido,enum=competencia_prohibido,enum=fuera_de_dominio"`
}

// ContentGate is the production Gate: regex injection screening plus the
// model-backed domain classifier.
type ContentGate struct {
	domain *llm.Chain[domainInput, domainVerdict]
	log    *slog.Logger
}

func NewContentGate(chatModel model.ToolCallingChatModel, logger *slog.Logger, opts ...llm.Option) (*ContentGate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	types := leadschema.MachineryTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	system := fmt.Sprintf(domainSystemPrompt, strings.Join(names, ", "))

	chain, err := llm.NewChain[domainInput, domainVerdict](
		chatModel,
		func(_ context.Context, in domainInput) ([]*schema.Message, error) {
			return []*schema.Message{
				schema.SystemMessage(system),
				schema.UserMessage(in.Message),
			}, nil
		},
		"clasificar_intencion",
		"Clasifica la intención del mensaje del usuario.",
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return &ContentGate{domain: chain, log: logger}, nil
}

// Check screens one message. Classifier failures fall back to the
// off-domain verdict so an unreachable model never lets a message through
// unscreened.
func (g *ContentGate) Check(ctx context.Context, message string) *Result {
	if DetectCodeInjection(message) {
		return &Result{
			Type:    TypeCodeInjection,
			Message: "MENSAJE INVÁLIDO: Se ha detectado un posible intento de inyección de código en el mensaje.",
		}
	}

	label := labelOffDomain
	verdict, err := g.domain.Invoke(ctx, domainInput{Message: message})
	if err != nil {
		g.log.Warn("domain classification failed", "error", err)
	} else {
		label = verdict.Label
	}

	switch label {
	case labelValid:
		return nil
	case labelCompetitor:
		return &Result{
			Type:    TypeForbiddenCompetitor,
			Message: "MENSAJE INVÁLIDO: El mensaje pregunta por otros proveedores o competidores.",
		}
	default:
		return &Result{
			Type:    TypeInvalidConversation,
			Message: "MENSAJE INVÁLIDO: El mensaje contiene contenido fuera de dominio, es decir, el usuario probablemente está preguntando sobre algo que no es de maquinaria.",
		}
	}
}

// DetectCodeInjection runs the regex screen on its own, without a model.
func DetectCodeInjection(message string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(message) {
			return true
		}
	}
	return false
}

// Noop passes every message. Used when no safety backend is configured.
type Noop struct{}

func (Noop) Check(context.Context, string) *Result { return nil }
