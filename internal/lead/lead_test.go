package lead

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRow_LookupSynonyms(t *testing.T) {
	tests := []struct {
		name  string
		row   Row
		field Field
		want  string
		ok    bool
	}{
		{"exact", Row{"Phone": "5125550100"}, FieldPhone, "5125550100", true},
		{"lowercase", Row{"phone": "5125550100"}, FieldPhone, "5125550100", true},
		{"synonym with space", Row{"Phone Number": "5125550100"}, FieldPhone, "5125550100", true},
		{"snake case", Row{"phone_number": "5125550100"}, FieldPhone, "5125550100", true},
		{"placeholder skipped", Row{"Phone": "N/A", "Mobile": "5125550100"}, FieldPhone, "5125550100", true},
		{"only placeholder", Row{"Phone": "EMPTY"}, FieldPhone, "", false},
		{"numeric value", Row{"Age": float64(42)}, FieldAge, "42", true},
		{"json number", Row{"Zip": json.Number("78701")}, FieldZip, "78701", true},
		{"missing", Row{"Name": "Jane"}, FieldEmail, "", false},
		{"trimmed", Row{"City": "  Austin "}, FieldCity, "Austin", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.row.Lookup(tt.field)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRow_SynonymOrder(t *testing.T) {
	row := Row{"Mobile": "5125550111", "Phone": "5125550100"}
	assert.Equal(t, "5125550100", row.Get(FieldPhone))
}

func TestRow_SetUsesExistingColumn(t *testing.T) {
	row := Row{"phone number": "N/A"}
	row.Set(FieldPhone, "5125550100")
	assert.Equal(t, "5125550100", row["phone number"])
	_, added := row["Phone"]
	assert.False(t, added)

	row.Set(FieldAge, "41")
	assert.Equal(t, "41", row["Age"])
}

func TestRow_Clone(t *testing.T) {
	row := Row{"Name": "Jane Doe"}
	c := row.Clone()
	c["Name"] = "John"
	assert.Equal(t, "Jane Doe", row["Name"])
}

func TestIsPlaceholder(t *testing.T) {
	for _, v := range []string{"", "  ", "EMPTY", "empty", "N/A", "n/a"} {
		assert.True(t, IsPlaceholder(v), v)
	}
	assert.False(t, IsPlaceholder("Austin"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"5125550100", "5125550100", true},
		{"(512) 555-0100", "5125550100", true},
		{"+1 512-555-0100", "5125550100", true},
		{"555-0100", "", false},
		{"", "", false},
		{"N/A", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizePhone(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("jane@example.com"))
	assert.False(t, ValidEmail("jane.example.com"))
	assert.False(t, ValidEmail("@example.com"))
	assert.False(t, ValidEmail("jane@"))
	assert.False(t, ValidEmail(""))
}

func TestBestPhone(t *testing.T) {
	tests := []struct {
		name, existing, fresh, want string
	}{
		{"fresh empty keeps existing", "5551234567", "", "5551234567"},
		{"fresh valid wins", "5551234567", "5125550100", "5125550100"},
		{"fresh invalid keeps valid existing", "5551234567", "12345", "5551234567"},
		{"existing empty takes fresh", "", "5125550100", "5125550100"},
		{"existing placeholder takes fresh", "N/A", "5125550100", "5125550100"},
		{"both invalid keeps existing", "555-1234", "", "555-1234"},
		{"both empty", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BestPhone(tt.existing, tt.fresh))
		})
	}
}

func TestBestEmail(t *testing.T) {
	assert.Equal(t, "old@example.com", BestEmail("old@example.com", ""))
	assert.Equal(t, "new@example.com", BestEmail("old@example.com", "new@example.com"))
	assert.Equal(t, "old@example.com", BestEmail("old@example.com", "not-an-email"))
	assert.Equal(t, "new@example.com", BestEmail("EMPTY", "new@example.com"))
}

func TestSplitName(t *testing.T) {
	first, last := SplitName("Jane Q. Doe, MBA")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = SplitName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Empty(t, last)

	first, last = SplitName("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}

func TestRow_Names(t *testing.T) {
	first, last := Row{"Name": "Jane Doe"}.Names()
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = Row{"First Name": "Janet", "Name": "Jane Doe"}.Names()
	assert.Equal(t, "Janet", first)
	assert.Equal(t, "Doe", last)
}

func TestRow_CityState(t *testing.T) {
	city, state := Row{"City": "Austin", "State": "TX"}.CityState()
	assert.Equal(t, "Austin", city)
	assert.Equal(t, "TX", state)

	city, state = Row{"Location": "Austin, Texas, United States"}.CityState()
	assert.Equal(t, "Austin", city)
	assert.Equal(t, "Texas", state)

	city, state = Row{"Location": "Greater Austin Area"}.CityState()
	assert.Empty(t, city)
	assert.Empty(t, state)
}

func TestKey(t *testing.T) {
	tests := []struct {
		name string
		row  Row
		want string
	}{
		{
			"profile url",
			Row{"Name": "Jane Doe", "LinkedIn URL": "https://www.linkedin.com/in/JaneDoe/?trk=feed"},
			"url:linkedin.com/in/janedoe",
		},
		{
			"url without scheme",
			Row{"Profile URL": "linkedin.com/in/janedoe"},
			"url:linkedin.com/in/janedoe",
		},
		{
			"name and email",
			Row{"Name": "Jane Doe", "Email": "Jane@Example.com", "Phone": "5125550100"},
			"contact:jane doe|jane@example.com",
		},
		{
			"name and phone",
			Row{"First Name": "José", "Last Name": "Núñez", "Phone": "(512) 555-0100"},
			"contact:jose nunez|5125550100",
		},
		{
			"name only",
			Row{"Name": "Jane  Doe", "City": "Austin"},
			"unknown:jane doe",
		},
		{
			"invalid contact falls to name",
			Row{"Name": "Jane Doe", "Email": "nope", "Phone": "123"},
			"unknown:jane doe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.row))
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	row := Row{"Name": "Jane Doe", "Phone": "5125550100"}
	require.Equal(t, Key(row), Key(row.Clone()))
}

func TestIsStrongKey(t *testing.T) {
	assert.True(t, IsStrongKey("url:linkedin.com/in/janedoe"))
	assert.True(t, IsStrongKey("contact:jane doe|5125550100"))
	assert.False(t, IsStrongKey("unknown:jane doe"))
	assert.False(t, IsStrongKey(""))
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "renee obrien", NormalizeName("  Renée  O'Brien "))
	assert.Equal(t, "jane doe", NormalizeName("Jane.Doe"))
}

func TestResult_AddError(t *testing.T) {
	var r Result
	r.AddError("telnyx", nil)
	assert.Empty(t, r.Error)
	assert.Nil(t, r.Errors())

	r.AddError("phone-discovery", assert.AnError)
	r.AddError("telnyx", assert.AnError)
	assert.Equal(t, "phone-discovery: "+assert.AnError.Error()+"; telnyx: "+assert.AnError.Error(), r.Error)
	assert.Len(t, r.Errors(), 2)
}
