package dialogue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/danielmdadu/leadagent/llm"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

const inventorySystemPrompt = `Eres un clasificador que decide si un mensaje de un lead es una pregunta sobre el inventario de maquinaria (disponibilidad, tipos, modelos, precios, ubicaciones de entrega) o no.

REGLAS:
- Pregunta sobre inventario → true
- Respuesta a una pregunta del bot → false
- Información personal del usuario → false
- Pregunta general no relacionada → false

EJEMPLOS DE INVENTARIO: "¿Qué tipos de maquinaria tienen?", "¿Tienen soldadoras?", "¿Cuánto cuesta un compresor?", "¿En qué ubicaciones entregan?"
EJEMPLOS DE NO INVENTARIO: "me llamo Juan", "quiero un compresor", "no tengo página web", "es para venta"`

type inventoryInput struct {
	Message string
}

type inventoryVerdict struct {
	IsInventory bool `json:"es_inventario" jsonschema:"required,description=true si el mensaje pregunta por el inventario"`
}

// InventoryClassifier flags catalogue and availability questions so the
// composer can frame its reply around the catalogue.
type InventoryClassifier struct {
	chain *llm.Chain[inventoryInput, inventoryVerdict]
	log   *slog.Logger
}

func NewInventoryClassifier(chatModel model.ToolCallingChatModel, logger *slog.Logger, opts ...llm.Option) (*InventoryClassifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chain, err := llm.NewChain[inventoryInput, inventoryVerdict](
		chatModel,
		buildInventoryMessages,
		"clasificar_inventario",
		"Indica si el mensaje del usuario es una pregunta sobre el inventario de maquinaria.",
		opts...,
	)
	if err != nil {
		return nil, err
	}
	return &InventoryClassifier{chain: chain, log: logger}, nil
}

func buildInventoryMessages(_ context.Context, in inventoryInput) ([]*schema.Message, error) {
	return []*schema.Message{
		schema.SystemMessage(inventorySystemPrompt),
		schema.UserMessage(fmt.Sprintf("Mensaje del usuario:\n%s", in.Message)),
	}, nil
}

// IsInventoryQuestion reports whether message asks about the catalogue.
// Classifier failures count as "no" so the normal flow continues.
func (c *InventoryClassifier) IsInventoryQuestion(ctx context.Context, message string) bool {
	verdict, err := c.chain.Invoke(ctx, inventoryInput{Message: message})
	if err != nil {
		c.log.Warn("inventory classification failed", "error", err)
		return false
	}
	return verdict.IsInventory
}

// CatalogueText renders the machinery catalogue for inventory replies.
func CatalogueText() string {
	types := leadschema.MachineryTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	var b strings.Builder
	b.WriteString("Actualmente tenemos el siguiente inventario:\n")
	fmt.Fprintf(&b, "- Tipo de maquinaria: %s\n", strings.Join(names, ", "))
	b.WriteString("- Modelo: Cualquier modelo\n")
	b.WriteString("- Ubicación: Cualquier ubicación en México")
	return b.String()
}
