package schema

import "strings"

// MachineryType is the closed enumeration of machinery a lead can ask for.
// The string value is the persisted form; anything outside the enumeration
// parses to (MachineryUnknown, false) and is never written to a record.
type MachineryType string

const (
	MachineryUnknown     MachineryType = ""
	MachineryWelder      MachineryType = "soldadora"
	MachineryCompressor  MachineryType = "compresor"
	MachineryLightTower  MachineryType = "torre_iluminacion"
	MachineryPlatform    MachineryType = "plataforma"
	MachineryGenerator   MachineryType = "generador"
	MachineryBreaker     MachineryType = "rompedor"
	MachineryCompactor   MachineryType = "apisonador"
	MachineryForklift    MachineryType = "montacargas"
	MachineryTelehandler MachineryType = "manipulador"
)

// MachineryTypes returns every valid type in a stable order.
func MachineryTypes() []MachineryType {
	return []MachineryType{
		MachineryWelder,
		MachineryCompressor,
		MachineryLightTower,
		MachineryPlatform,
		MachineryGenerator,
		MachineryBreaker,
		MachineryCompactor,
		MachineryForklift,
		MachineryTelehandler,
	}
}

// aliases maps the plural and colloquial forms an extraction may produce
// onto the canonical enum value.
var aliases = map[string]MachineryType{
	"soldadoras":           MachineryWelder,
	"compresores":          MachineryCompressor,
	"torres de iluminacion": MachineryLightTower,
	"torre de iluminacion": MachineryLightTower,
	"torre de luz":         MachineryLightTower,
	"plataformas":          MachineryPlatform,
	"plataforma de elevacion": MachineryPlatform,
	"generadores":          MachineryGenerator,
	"rompedores":           MachineryBreaker,
	"martillo neumatico":   MachineryBreaker,
	"apisonadores":         MachineryCompactor,
	"manipuladores":        MachineryTelehandler,
}

// ParseMachineryType normalizes s against the enumeration. The second
// return is false when s names no known type.
func ParseMachineryType(s string) (MachineryType, bool) {
	n := strings.ToLower(strings.TrimSpace(s))
	n = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u").Replace(n)
	n = strings.ReplaceAll(n, "_", " ")
	for _, t := range MachineryTypes() {
		if n == strings.ReplaceAll(string(t), "_", " ") {
			return t, true
		}
	}
	if t, ok := aliases[n]; ok {
		return t, true
	}
	return MachineryUnknown, false
}

// machineryDetails holds the ordered detail sub-schema per type. The order
// is the order the detail questions are asked in.
var machineryDetails = map[MachineryType][]Field{
	MachineryWelder: {
		{Name: "amperaje", Question: "¿cuál es el amperaje que necesitas?", Reason: "Para recomendarte el modelo adecuado según tu trabajo", Required: true},
		{Name: "electrodo", Question: "¿qué tipo de electrodo quemas?", Reason: "Para asegurar compatibilidad con tus materiales", Required: true},
	},
	MachineryCompressor: {
		{Name: "capacidad_volumen", Question: "¿cuál es la capacidad de volumen de aire que necesitas?", Reason: "Para seleccionar la potencia correcta", Required: true},
		{Name: "herramientas_conectar", Question: "¿qué herramientas le vas a conectar?", Reason: "Para verificar compatibilidad con tus equipos", Required: true},
	},
	MachineryLightTower: {
		{Name: "es_led", Question: "¿prefieres iluminación LED?", Reason: "Para determinar el tipo de iluminación necesario", Required: true},
	},
	MachineryPlatform: {
		{Name: "altura_trabajo", Question: "¿cuál es la altura de trabajo que necesitas?", Reason: "Para asegurar que la máquina alcance la altura necesaria", Required: true},
		{Name: "actividad", Question: "¿qué actividad vas a realizar?", Reason: "Para entender el contexto de uso", Required: true},
		{Name: "ubicacion", Question: "¿es para interior o exterior?", Reason: "Para determinar el modelo más conveniente", Required: true},
	},
	MachineryGenerator: {
		{Name: "actividad", Question: "¿para qué actividad lo requiere?", Reason: "Para entender el contexto de uso", Required: true},
		{Name: "capacidad", Question: "¿qué capacidad en kvas o kw necesitas?", Reason: "Para determinar la potencia necesaria", Required: true},
	},
	MachineryBreaker: {
		{Name: "uso", Question: "¿para qué lo va a utilizar?", Reason: "Para entender el contexto de uso", Required: true},
		{Name: "tipo", Question: "¿lo requiere eléctrico o neumático?", Reason: "Para determinar el tipo de energía necesaria", Required: true},
	},
	MachineryCompactor: {
		{Name: "uso", Question: "¿para qué lo va a utilizar?", Reason: "Para entender el contexto de uso", Required: true},
		{Name: "motor", Question: "¿qué tipo de motor debe tener?", Reason: "Para determinar las características del equipo", Required: true},
		{Name: "es_diafragma", Question: "¿el equipo debe ser de diafragma?", Reason: "Para determinar si lo requiere", Required: true},
	},
	MachineryForklift: {
		{Name: "capacidad", Question: "¿qué peso requiere levantar?", Reason: "Para determinar la capacidad necesaria", Required: true},
		{Name: "tipo_energia", Question: "¿lo requiere eléctrico, a combustión a gasolina o gas lp?", Reason: "Para determinar el tipo de energía adecuado", Required: true},
		{Name: "posicion_operador", Question: "¿lo requiere para hombre parado o sentado?", Reason: "Para determinar la posición del operador", Required: true},
		{Name: "altura", Question: "¿qué altura requiere?", Reason: "Para determinar la altura necesaria", Required: true},
	},
	MachineryTelehandler: {
		{Name: "capacidad", Question: "¿qué peso requiere mover?", Reason: "Para determinar la capacidad necesaria", Required: true},
		{Name: "altura", Question: "¿qué altura necesita?", Reason: "Para determinar la altura necesaria", Required: true},
		{Name: "actividad", Question: "¿qué actividad va a realizar?", Reason: "Para entender el contexto de uso", Required: true},
		{Name: "tipo_energia", Question: "¿lo requiere eléctrico o a combustión?", Reason: "Para determinar el tipo de energía adecuado", Required: true},
	},
}

// DetailFieldsFor returns the ordered detail sub-schema for t. Unknown
// types return an empty list, not an error.
func DetailFieldsFor(t MachineryType) []Field {
	return machineryDetails[t]
}

// RequiredDetailFieldsFor returns the names of the required detail fields
// for t, in question order.
func RequiredDetailFieldsFor(t MachineryType) []string {
	fields := machineryDetails[t]
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// IsDetailField reports whether name belongs to t's detail sub-schema.
func IsDetailField(t MachineryType, name string) bool {
	for _, f := range machineryDetails[t] {
		if f.Name == name {
			return true
		}
	}
	return false
}
