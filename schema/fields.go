// Package schema holds the static slot definitions of the lead record: the
// prioritized top-level field registry and the per-machinery-type detail
// sub-schemas. It is pure data; nothing here talks to a model or a store.
package schema

// Registry field names. These double as the JSON keys of the persisted
// record and of the LLM extraction contract.
const (
	FieldName             = "nombre"
	FieldSurname          = "apellido"
	FieldMachineryType    = "tipo_maquinaria"
	FieldMachineryDetails = "detalles_maquinaria"
	FieldCompanyName      = "nombre_empresa"
	FieldCompanySector    = "giro_empresa"
	FieldLocation         = "lugar_requerimiento"
	FieldUsage            = "uso_empresa_o_venta"
	FieldWebsite          = "sitio_web"
	FieldEmail            = "correo"
	FieldPhone            = "telefono"
)

// Sentinel answers. Distinct from unset: the lead deliberately declined or
// could not provide the value.
const (
	SentinelNotOwned    = "No tiene"
	SentinelUnspecified = "No especificado"
)

// IsSentinel reports whether v is one of the reserved non-answer values.
func IsSentinel(v string) bool {
	return v == SentinelNotOwned || v == SentinelUnspecified
}

// Field describes one collectible slot: what to ask, why we ask it, and
// whether the lead cannot be qualified without it.
type Field struct {
	Name     string
	Question string
	Reason   string
	Required bool
}

// fieldRegistry is the single source of truth for question priority: the
// selector walks it top to bottom. The machinery-details slot carries no
// question of its own; it delegates to the per-type detail sub-schema.
var fieldRegistry = []Field{
	{Name: FieldName, Question: "¿Con quién tengo el gusto?", Reason: "Para brindarte atención personalizada", Required: true},
	{Name: FieldSurname, Question: "¿Cuál es tu apellido?", Reason: "Para completar tu información personal", Required: true},
	{Name: FieldMachineryType, Question: "¿Qué tipo de maquinaria requiere?", Reason: "Para revisar nuestro inventario disponible", Required: true},
	{Name: FieldMachineryDetails},
	{Name: FieldCompanyName, Question: "¿Cuál es el nombre de su empresa?", Reason: "Para generar la cotización a nombre de su empresa", Required: true},
	{Name: FieldCompanySector, Question: "¿Cuál es el giro de su empresa?", Reason: "Para entender mejor sus necesidades específicas", Required: true},
	{Name: FieldLocation, Question: "¿En qué ubicación del país necesita el equipo?", Reason: "Para coordinar la entrega del equipo", Required: true},
	{Name: FieldUsage, Question: "¿El equipo es para uso de la empresa o para venta?", Reason: "Para ofrecerle los mejores precios", Required: true},
	{Name: FieldWebsite, Question: "¿Su empresa cuenta con algún sitio web? Si es así, ¿me lo podría compartir?", Reason: "Para conocer mejor su empresa y generar una cotización más precisa", Required: false},
	{Name: FieldEmail, Question: "¿Cuál es su correo electrónico?", Reason: "Para enviarle la cotización", Required: true},
	{Name: FieldPhone, Question: "¿Cuál es su teléfono?", Reason: "Para darle seguimiento personalizado", Required: true},
}

// CombinedCompanyQuestion replaces the company-name question when the
// company sector is also still unknown.
const CombinedCompanyQuestion = "¿Cuál es el nombre de su empresa y a qué se dedica?"

// Fields returns the registry in priority order. Callers must not mutate
// the returned slice.
func Fields() []Field {
	return fieldRegistry
}

// FieldByName looks a field up by its registry name.
func FieldByName(name string) (Field, bool) {
	for _, f := range fieldRegistry {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ScalarFieldNames returns every registry field name except the structured
// machinery-details slot.
func ScalarFieldNames() []string {
	names := make([]string, 0, len(fieldRegistry)-1)
	for _, f := range fieldRegistry {
		if f.Name == FieldMachineryDetails {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}
