package lead

import (
	"log/slog"
	"testing"

	"github.com/danielmdadu/leadagent/schema"
)

// checkAgreement asserts the selector and the completion checker tell the
// same story about r.
func checkAgreement(t *testing.T, r *Record, step string) {
	t.Helper()
	q := Next(r)
	complete := IsComplete(r)
	if complete && q != nil {
		t.Fatalf("%s: record complete but selector still asks %q", step, q.Text)
	}
	if !complete && q == nil {
		t.Fatalf("%s: record incomplete but selector has no question", step)
	}
}

func TestNextFollowsRegistryOrder(t *testing.T) {
	r := NewRecord()
	q := Next(r)
	if q == nil || q.FieldID != schema.FieldName {
		t.Fatalf("empty record should ask for the name first, got %+v", q)
	}

	r.Name = "Paco"
	q = Next(r)
	if q == nil || q.FieldID != schema.FieldSurname {
		t.Fatalf("want surname question, got %+v", q)
	}
}

func TestNextDelegatesToDetailSubSelector(t *testing.T) {
	r := NewRecord()
	r.Name = "Paco Perez"
	r.Surname = "Perez"
	r.MachineryType = schema.MachineryWelder

	q := Next(r)
	if q == nil || q.FieldID != schema.FieldMachineryDetails {
		t.Fatalf("want a machinery detail question, got %+v", q)
	}
	if q.Text != "¿cuál es el amperaje que necesitas?" {
		t.Errorf("want the first welder detail question, got %q", q.Text)
	}

	r.MachineryDetails["amperaje"] = "200"
	q = Next(r)
	if q == nil || q.Text != "¿qué tipo de electrodo quemas?" {
		t.Fatalf("want the second welder detail question, got %+v", q)
	}
}

func TestNextCombinedCompanyQuestion(t *testing.T) {
	r := NewRecord()
	r.Name = "Paco Perez"
	r.Surname = "Perez"
	r.MachineryType = schema.MachineryLightTower
	r.MachineryDetails["es_led"] = "sí"

	q := Next(r)
	if q == nil || q.FieldID != schema.FieldCompanyName {
		t.Fatalf("want company question, got %+v", q)
	}
	if q.Text != schema.CombinedCompanyQuestion {
		t.Errorf("sector empty: want combined question, got %q", q.Text)
	}

	// A bare company-name answer leaves the sector pending.
	r.CompanyName = "Constructora ABC"
	q = Next(r)
	if q == nil || q.FieldID != schema.FieldCompanySector {
		t.Fatalf("sector must still be asked, got %+v", q)
	}

	// With the sector already known, the plain question is used.
	r2 := NewRecord()
	r2.Name = "Ana Lopez"
	r2.Surname = "Lopez"
	r2.MachineryType = schema.MachineryLightTower
	r2.MachineryDetails["es_led"] = "no"
	r2.CompanySector = "construcción"
	q = Next(r2)
	if q == nil || q.FieldID != schema.FieldCompanyName || q.Text == schema.CombinedCompanyQuestion {
		t.Fatalf("sector known: want plain company-name question, got %+v", q)
	}
}

func TestSentinelHandling(t *testing.T) {
	r := NewRecord()
	r.Name = "Paco Perez"
	r.Surname = "Perez"
	r.MachineryType = schema.MachineryGenerator
	r.MachineryDetails["actividad"] = "obra"
	r.MachineryDetails["capacidad"] = "50 kva"
	r.CompanyName = "ABC"
	r.CompanySector = "construcción"
	r.Location = "CDMX"
	r.Usage = "venta"
	r.Email = "a@b.mx"
	r.Phone = "555"

	// Optional website: empty still gets asked...
	if q := Next(r); q == nil || q.FieldID != schema.FieldWebsite {
		t.Fatalf("empty website should be asked, got %+v", q)
	}
	if IsComplete(r) {
		t.Error("record with unanswered website must not be complete")
	}

	// ...but a sentinel counts as answered for an optional field.
	r.Website = schema.SentinelNotOwned
	if q := Next(r); q != nil {
		t.Fatalf("website sentinel should satisfy the optional slot, still asks %+v", q)
	}
	if !IsComplete(r) {
		t.Error("record should be complete once the website is declined")
	}

	// A sentinel on a required field keeps it pending.
	r.Email = schema.SentinelUnspecified
	q := Next(r)
	if q == nil || q.FieldID != schema.FieldEmail {
		t.Fatalf("required sentinel should be re-asked, got %+v", q)
	}
	if IsComplete(r) {
		t.Error("required sentinel must block completion")
	}

	// Same rule inside the detail map.
	r.Email = "a@b.mx"
	r.MachineryDetails["capacidad"] = schema.SentinelUnspecified
	q = Next(r)
	if q == nil || q.FieldID != schema.FieldMachineryDetails {
		t.Fatalf("unspecified detail should be re-asked, got %+v", q)
	}
	if IsComplete(r) {
		t.Error("unspecified detail must block completion")
	}
}

// TestHappyPathAgreement drives an empty record through a full welder
// qualification, asserting after every merge that the selector and the
// completion checker agree.
func TestHappyPathAgreement(t *testing.T) {
	m := NewMerger(slog.New(slog.DiscardHandler))
	r := NewRecord()

	steps := []struct {
		name   string
		update Update
	}{
		{"name", Update{Fields: map[string]string{schema.FieldName: "Paco"}}},
		{"surname", Update{Fields: map[string]string{schema.FieldSurname: "Perez"}}},
		{"machinery type", Update{Fields: map[string]string{schema.FieldMachineryType: "soldadora"}}},
		{"amperage", Update{Details: map[string]string{"amperaje": "200"}}},
		{"electrode", Update{Details: map[string]string{"electrodo": "6013"}}},
		{"company and sector", Update{Fields: map[string]string{
			schema.FieldCompanyName:   "Constructora ABC",
			schema.FieldCompanySector: "construcción",
		}}},
		{"location", Update{Fields: map[string]string{schema.FieldLocation: "Guadalajara"}}},
		{"usage", Update{Fields: map[string]string{schema.FieldUsage: "uso empresa"}}},
		{"website", Update{Fields: map[string]string{schema.FieldWebsite: schema.SentinelNotOwned}}},
		{"email", Update{Fields: map[string]string{schema.FieldEmail: "paco@abc.mx"}}},
		{"phone", Update{Fields: map[string]string{schema.FieldPhone: "55 1234 5678"}}},
	}

	checkAgreement(t, r, "empty record")
	for i, s := range steps {
		if IsComplete(r) {
			t.Fatalf("record complete before step %q", s.name)
		}
		m.Apply(r, s.update)
		checkAgreement(t, r, s.name)
		if i < len(steps)-1 && IsComplete(r) {
			t.Fatalf("record complete too early after %q", s.name)
		}
	}

	if !IsComplete(r) {
		t.Fatal("record should be complete after the final message")
	}
	if q := Next(r); q != nil {
		t.Fatalf("selector should be exhausted, still asks %+v", q)
	}
	if r.Name != "Paco Perez" {
		t.Errorf("full name = %q, want %q", r.Name, "Paco Perez")
	}
}
