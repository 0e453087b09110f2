package schema

import "testing"

func TestFieldRegistryOrder(t *testing.T) {
	want := []string{
		FieldName, FieldSurname, FieldMachineryType, FieldMachineryDetails,
		FieldCompanyName, FieldCompanySector, FieldLocation, FieldUsage,
		FieldWebsite, FieldEmail, FieldPhone,
	}
	got := Fields()
	if len(got) != len(want) {
		t.Fatalf("registry has %d fields, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("position %d: got %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestFieldRegistryRequiredFlags(t *testing.T) {
	for _, f := range Fields() {
		switch f.Name {
		case FieldWebsite, FieldMachineryDetails:
			if f.Required {
				t.Errorf("%s should be optional", f.Name)
			}
		default:
			if !f.Required {
				t.Errorf("%s should be required", f.Name)
			}
			if f.Question == "" || f.Reason == "" {
				t.Errorf("%s is missing question or reason", f.Name)
			}
		}
	}
}

func TestParseMachineryType(t *testing.T) {
	cases := []struct {
		in   string
		want MachineryType
		ok   bool
	}{
		{"soldadora", MachineryWelder, true},
		{"soldadoras", MachineryWelder, true},
		{"Compresor", MachineryCompressor, true},
		{"compresores", MachineryCompressor, true},
		{"torre_iluminacion", MachineryLightTower, true},
		{"torre de iluminación", MachineryLightTower, true},
		{"torre de luz", MachineryLightTower, true},
		{"generadores", MachineryGenerator, true},
		{"  montacargas ", MachineryForklift, true},
		{"manipulador", MachineryTelehandler, true},
		{"excavadora", MachineryUnknown, false},
		{"", MachineryUnknown, false},
	}
	for _, c := range cases {
		got, ok := ParseMachineryType(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseMachineryType(%q) = (%q, %v), want (%q, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestDetailFieldsForUnknownType(t *testing.T) {
	if got := DetailFieldsFor(MachineryUnknown); len(got) != 0 {
		t.Errorf("unknown type should have no detail fields, got %d", len(got))
	}
	if got := RequiredDetailFieldsFor(MachineryType("excavadora")); len(got) != 0 {
		t.Errorf("invalid type should have no required detail fields, got %d", len(got))
	}
}

func TestDetailSchemaPerType(t *testing.T) {
	cases := []struct {
		tipo MachineryType
		want []string
	}{
		{MachineryWelder, []string{"amperaje", "electrodo"}},
		{MachineryCompressor, []string{"capacidad_volumen", "herramientas_conectar"}},
		{MachineryLightTower, []string{"es_led"}},
		{MachineryPlatform, []string{"altura_trabajo", "actividad", "ubicacion"}},
		{MachineryGenerator, []string{"actividad", "capacidad"}},
		{MachineryBreaker, []string{"uso", "tipo"}},
		{MachineryCompactor, []string{"uso", "motor", "es_diafragma"}},
		{MachineryForklift, []string{"capacidad", "tipo_energia", "posicion_operador", "altura"}},
		{MachineryTelehandler, []string{"capacidad", "altura", "actividad", "tipo_energia"}},
	}
	for _, c := range cases {
		got := RequiredDetailFieldsFor(c.tipo)
		if len(got) != len(c.want) {
			t.Fatalf("%s: got %d required fields, want %d", c.tipo, len(got), len(c.want))
		}
		for i := range c.want {
			if got[i] != c.want[i] {
				t.Errorf("%s: field %d = %q, want %q", c.tipo, i, got[i], c.want[i])
			}
		}
		for _, f := range DetailFieldsFor(c.tipo) {
			if f.Question == "" || f.Reason == "" {
				t.Errorf("%s/%s is missing question or reason", c.tipo, f.Name)
			}
			if !IsDetailField(c.tipo, f.Name) {
				t.Errorf("IsDetailField(%s, %s) = false", c.tipo, f.Name)
			}
		}
	}
	if IsDetailField(MachineryWelder, "capacidad") {
		t.Error("capacidad is not a welder detail field")
	}
}

func TestIsSentinel(t *testing.T) {
	if !IsSentinel(SentinelNotOwned) || !IsSentinel(SentinelUnspecified) {
		t.Error("sentinel values must be recognized")
	}
	if IsSentinel("") || IsSentinel("Monterrey") {
		t.Error("regular values must not be sentinels")
	}
}
