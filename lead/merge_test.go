package lead

import (
	"log/slog"
	"reflect"
	"testing"

	"github.com/danielmdadu/leadagent/schema"
)

func testMerger() *Merger {
	return NewMerger(slog.New(slog.DiscardHandler))
}

func TestApplyIsIdempotent(t *testing.T) {
	m := testMerger()
	u := Update{
		Fields: map[string]string{
			schema.FieldName:          "Paco",
			schema.FieldSurname:       "Perez Diaz",
			schema.FieldMachineryType: "soldadora",
			schema.FieldEmail:         "paco@empresa.com",
		},
		Details: map[string]string{"amperaje": "200"},
	}

	r := NewRecord()
	m.Apply(r, u)
	once := *r
	onceDetails := map[string]string{}
	for k, v := range r.MachineryDetails {
		onceDetails[k] = v
	}

	m.Apply(r, u)
	if r.Name != once.Name || r.Surname != once.Surname || r.Email != once.Email || r.MachineryType != once.MachineryType {
		t.Errorf("second apply changed the record: %+v vs %+v", *r, once)
	}
	if !reflect.DeepEqual(r.MachineryDetails, onceDetails) {
		t.Errorf("second apply changed details: %v vs %v", r.MachineryDetails, onceDetails)
	}
	if r.Name != "Paco Perez Diaz" {
		t.Errorf("name = %q, want %q", r.Name, "Paco Perez Diaz")
	}
}

func TestApplyNeverClobbersFilledFields(t *testing.T) {
	m := testMerger()
	r := NewRecord()
	r.CompanyName = "Constructora ABC"
	r.Email = "ana@abc.mx"
	r.MachineryType = schema.MachineryGenerator
	r.MachineryDetails["capacidad"] = "50 kva"

	m.Apply(r, Update{
		Fields: map[string]string{
			schema.FieldCompanyName:   "Otra Empresa",
			schema.FieldEmail:         "otro@mail.com",
			schema.FieldMachineryType: "compresor",
		},
		Details: map[string]string{"capacidad": "10 kva", "actividad": "obra"},
	})

	if r.CompanyName != "Constructora ABC" {
		t.Errorf("company name clobbered: %q", r.CompanyName)
	}
	if r.Email != "ana@abc.mx" {
		t.Errorf("email clobbered: %q", r.Email)
	}
	if r.MachineryType != schema.MachineryGenerator {
		t.Errorf("machinery type changed to %q", r.MachineryType)
	}
	if r.MachineryDetails["capacidad"] != "50 kva" {
		t.Errorf("existing detail clobbered: %q", r.MachineryDetails["capacidad"])
	}
	// New sub-keys still merge in.
	if r.MachineryDetails["actividad"] != "obra" {
		t.Errorf("new detail not merged: %v", r.MachineryDetails)
	}
}

func TestApplySentinelYieldsToRealValue(t *testing.T) {
	m := testMerger()
	r := NewRecord()
	r.Location = schema.SentinelUnspecified

	m.Apply(r, Update{Fields: map[string]string{schema.FieldLocation: "Monterrey"}})
	if r.Location != "Monterrey" {
		t.Errorf("sentinel should yield to a real answer, got %q", r.Location)
	}
}

func TestApplySurnameAfterName(t *testing.T) {
	m := testMerger()
	r := NewRecord()
	m.Apply(r, Update{Fields: map[string]string{schema.FieldName: "Paco"}})
	m.Apply(r, Update{Fields: map[string]string{schema.FieldSurname: "Perez Diaz"}})

	if r.Name != "Paco Perez Diaz" {
		t.Errorf("name = %q, want %q", r.Name, "Paco Perez Diaz")
	}
	if r.Surname != "Perez Diaz" {
		t.Errorf("standalone surname = %q, want %q", r.Surname, "Perez Diaz")
	}
}

func TestApplyNameAfterSurname(t *testing.T) {
	m := testMerger()
	r := NewRecord()
	m.Apply(r, Update{Fields: map[string]string{schema.FieldSurname: "Martinez"}})
	if r.Surname != "Martinez" || r.Name != "" {
		t.Fatalf("surname alone should not touch name: %+v", *r)
	}
	m.Apply(r, Update{Fields: map[string]string{schema.FieldName: "Laura"}})
	if r.Name != "Laura Martinez" {
		t.Errorf("name = %q, want %q", r.Name, "Laura Martinez")
	}
}

func TestApplyInvalidMachineryTypeSkipped(t *testing.T) {
	m := testMerger()
	r := NewRecord()
	m.Apply(r, Update{Fields: map[string]string{
		schema.FieldMachineryType: "excavadora",
		schema.FieldLocation:      "CDMX",
	}})
	if r.MachineryType != schema.MachineryUnknown {
		t.Errorf("invalid type written: %q", r.MachineryType)
	}
	// The rest of the update still lands.
	if r.Location != "CDMX" {
		t.Errorf("location lost when type was invalid: %q", r.Location)
	}
}

func TestApplyDetailsRespectClosedVocabulary(t *testing.T) {
	m := testMerger()
	r := NewRecord()

	// Details before the type is known are dropped.
	m.Apply(r, Update{Details: map[string]string{"amperaje": "200"}})
	if len(r.MachineryDetails) != 0 {
		t.Errorf("detail accepted before type was set: %v", r.MachineryDetails)
	}

	// Type and detail in the same update: type lands first, detail sticks.
	m.Apply(r, Update{
		Fields:  map[string]string{schema.FieldMachineryType: "soldadora"},
		Details: map[string]string{"amperaje": "200", "proyecto": "nave industrial"},
	})
	if r.MachineryDetails["amperaje"] != "200" {
		t.Errorf("valid detail not applied: %v", r.MachineryDetails)
	}
	if _, ok := r.MachineryDetails["proyecto"]; ok {
		t.Error("detail outside the welder schema must be dropped")
	}
}

func TestApplySkipsEmptyValues(t *testing.T) {
	m := testMerger()
	r := NewRecord()
	r.Phone = "555-1234"
	m.Apply(r, Update{
		Fields:  map[string]string{schema.FieldPhone: "", schema.FieldEmail: ""},
		Details: map[string]string{"amperaje": ""},
	})
	if r.Phone != "555-1234" || r.Email != "" {
		t.Errorf("empty values must be skipped: %+v", *r)
	}
}
