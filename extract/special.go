package extract

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	leadschema "github.com/danielmdadu/leadagent/schema"
)

// Special-answer categories. A negative answer ("no tenemos página") maps
// to the "No tiene" sentinel, an uncertain one ("no estoy seguro") to
// "No especificado". Anything else falls through to full extraction.
const (
	categoryNegative  = "negativa"
	categoryUncertain = "incierta"
	categoryNeither   = "ninguna"
)

const specialSystemPrompt = `Eres un clasificador de respuestas en una conversación de ventas de maquinaria.

Dada la última pregunta del bot y la respuesta del usuario, decide si la respuesta es:
- "negativa": el usuario indica que NO tiene lo que se le pregunta ("no", "no tenemos", "no hay página", "solo Facebook", "no tengo correo").
- "incierta": el usuario no sabe o no quiere responder ("no sé", "no estoy seguro", "aún no lo decido", "prefiero no decir").
- "ninguna": la respuesta aporta información real, cambia de tema, o es una pregunta propia del usuario.

Si es "negativa" o "incierta", indica también el campo al que responde, deducido de la pregunta. Campos posibles: nombre, apellido, tipo_maquinaria, nombre_empresa, giro_empresa, lugar_requerimiento, uso_empresa_o_venta, sitio_web, correo, telefono.

Ejemplos:
- Pregunta "¿Su empresa cuenta con algún sitio web?" + "no tenemos" → negativa, sitio_web
- Pregunta "¿Cuál es su correo electrónico?" + "no estoy seguro" → incierta, correo
- Pregunta "¿Su empresa cuenta con algún sitio web?" + "www.abc.mx" → ninguna`

type specialInput struct {
	Message      string
	LastQuestion string
}

type specialVerdict struct {
	Category string `json:"categoria" jsonschema:"description=Clasificación de la respuesta,enum=negativa,enum=incierta,enum=ninguna"`
	Field    string `json:"campo,omitempty" jsonschema:"description=Campo del lead al que responde el mensaje"`
}

func buildSpecialMessages(_ context.Context, in specialInput) ([]*schema.Message, error) {
	user := fmt.Sprintf("Última pregunta del bot:\n%s\n\nRespuesta del usuario:\n%s", in.LastQuestion, in.Message)
	return []*schema.Message{
		schema.SystemMessage(specialSystemPrompt),
		schema.UserMessage(user),
	}, nil
}

// sentinelFor maps a special-answer verdict onto the one-entry update it
// produces, or ("", "") when the verdict does not short-circuit extraction.
func sentinelFor(v *specialVerdict) (field, sentinel string) {
	if v == nil {
		return "", ""
	}
	switch v.Category {
	case categoryNegative:
		sentinel = leadschema.SentinelNotOwned
	case categoryUncertain:
		sentinel = leadschema.SentinelUnspecified
	default:
		return "", ""
	}
	f, ok := leadschema.FieldByName(v.Field)
	if !ok || f.Name == leadschema.FieldMachineryDetails {
		return "", ""
	}
	return f.Name, sentinel
}
