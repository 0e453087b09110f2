package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"

	"github.com/danielmdadu/leadagent/lead"
	leadschema "github.com/danielmdadu/leadagent/schema"
)

const extractionSystemPrompt = `Eres un asistente experto en extraer información de mensajes de leads interesados en maquinaria ligera.

Analiza el mensaje del usuario y llama a la herramienta con TODA la información nueva disponible.

REGLAS:
1. Solo extrae campos que estén VACÍOS en el estado actual. Si un campo ya tiene valor, NO lo incluyas.
2. Para detalles_maquinaria, solo incluye subcampos que no estén ya llenos.
3. Si el mensaje no contiene información nueva, llama a la herramienta sin argumentos.
4. Usa la última pregunta del bot para interpretar respuestas cortas: si la pregunta apunta a un campo específico, clasifica la respuesta en ese campo.
5. Nombres: "soy Paco" llena solo nombre; "soy Paco Perez Diaz" llena nombre con el nombre completo. Si la última pregunta pedía el apellido, la respuesta llena apellido.
6. uso_empresa_o_venta: "para venta", "para comercializar" → "venta"; "para uso", "trabajo interno" → "uso empresa".
7. Preguntas sobre inventario siguen llenando tipo_maquinaria: "¿tienen generadores?" → tipo_maquinaria: "generador".
8. giro_empresa es la actividad principal de la empresa ("construcción", "venta de maquinaria pesada"), no palabras sueltas.
9. Para detalles_maquinaria usa EXACTAMENTE los nombres de subcampo listados para el tipo actual. No inventes subcampos.`

type extractInput struct {
	Message      string
	LastQuestion string
	Record       *lead.Record
}

// fieldUpdate is the tool-call contract of the general extraction chain.
// Keys mirror the persisted record; absent keys mean "nothing new".
type fieldUpdate struct {
	Name             string            `json:"nombre,omitempty" jsonschema:"description=Nombre de la persona tal como se presentó"`
	Surname          string            `json:"apellido,omitempty" jsonschema:"description=Apellido o apellidos de la persona"`
	MachineryType    string            `json:"tipo_maquinaria,omitempty" jsonschema:"description=Tipo de maquinaria mencionado"`
	MachineryDetails map[string]string `json:"detalles_maquinaria,omitempty" jsonschema:"description=Subcampos de detalle del tipo de maquinaria actual"`
	CompanyName      string            `json:"nombre_empresa,omitempty" jsonschema:"description=Nombre de la empresa"`
	CompanySector    string            `json:"giro_empresa,omitempty" jsonschema:"description=Giro o actividad principal de la empresa"`
	Location         string            `json:"lugar_requerimiento,omitempty" jsonschema:"description=Lugar donde se requiere el equipo"`
	Usage            string            `json:"uso_empresa_o_venta,omitempty" jsonschema:"description=venta o uso empresa"`
	Website          string            `json:"sitio_web,omitempty" jsonschema:"description=URL del sitio web de la empresa"`
	Email            string            `json:"correo,omitempty" jsonschema:"description=Correo electrónico de contacto"`
	Phone            string            `json:"telefono,omitempty" jsonschema:"description=Número telefónico de contacto"`
}

// stateTable renders the scalar slots of r as a markdown table for the
// prompt, so the model can see which fields are still open.
func stateTable(r *lead.Record) string {
	var buf strings.Builder
	table := tablewriter.NewTable(&buf, tablewriter.WithRenderer(renderer.NewMarkdown()))
	table.Header("Campo", "Valor actual")
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

func detailVocabulary(t leadschema.MachineryType) string {
	fields := leadschema.DetailFieldsFor(t)
	if len(fields) == 0 {
		return ""
	}
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}
	return strings.Join(names, ", ")
}

func buildExtractionMessages(_ context.Context, in extractInput) ([]*schema.Message, error) {
	detailsJSON, err := sonic.MarshalString(in.Record.MachineryDetails)
	if err != nil {
		return nil, err
	}

	sections := []string{
		fmt.Sprintf("# Estado actual del lead:\n%s", stateTable(in.Record)),
		fmt.Sprintf("# Detalles de maquinaria ya capturados:\n```json\n%s\n```", detailsJSON),
	}
	if vocab := detailVocabulary(in.Record.MachineryType); vocab != "" {
		sections = append(sections, fmt.Sprintf("# Subcampos válidos para %s:\n%s", in.Record.MachineryType, vocab))
	}
	sections = append(sections, fmt.Sprintf("# Tipos de maquinaria válidos:\n%s", machineryTypeList()))
	lastQ := in.LastQuestion
	if lastQ == "" {
		lastQ = "No hay pregunta previa (inicio de conversación)"
	}
	sections = append(sections,
		fmt.Sprintf("# Última pregunta del bot:\n%s", lastQ),
		fmt.Sprintf("# Mensaje del usuario:\n%s", in.Message),
	)

	return []*schema.Message{
		schema.SystemMessage(extractionSystemPrompt),
		schema.UserMessage(strings.Join(sections, "\n\n")),
	}, nil
}

func machineryTypeList() string {
	types := leadschema.MachineryTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
