// Package lead defines the semi-structured lead row harvested from social
// platforms, the synonym table used to resolve its columns, contact
// validation, and the stable lead key used for deduplication.
package lead

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Field is a canonical lead attribute.
type Field string

// Canonical fields.
const (
	FieldFirstName  Field = "first_name"
	FieldLastName   Field = "last_name"
	FieldFullName   Field = "full_name"
	FieldPhone      Field = "phone"
	FieldEmail      Field = "email"
	FieldCity       Field = "city"
	FieldState      Field = "state"
	FieldZip        Field = "zip"
	FieldAddress    Field = "address"
	FieldLocation   Field = "location"
	FieldProfileURL Field = "profile_url"
	FieldAge        Field = "age"
	FieldDOB        Field = "dob"
	FieldCompany    Field = "company"
	FieldTitle      Field = "title"
)

// FieldSpec maps a canonical field to the column name written for it when
// the row has none, and the ordered list of accepted synonyms.
type FieldSpec struct {
	Column   string
	Synonyms []string
}

// Fields is the declarative synonym table. Synonyms are compared after
// lowercasing and removing spaces, underscores, and hyphens.
var Fields = map[Field]FieldSpec{
	FieldFirstName:  {"First Name", []string{"First Name", "FirstName", "First", "Given Name"}},
	FieldLastName:   {"Last Name", []string{"Last Name", "LastName", "Last", "Surname", "Family Name"}},
	FieldFullName:   {"Name", []string{"Name", "Full Name", "Contact Name", "Person Name"}},
	FieldPhone:      {"Phone", []string{"Phone", "Phone Number", "Mobile", "Mobile Phone", "Cell", "Cell Phone", "Telephone", "Tel"}},
	FieldEmail:      {"Email", []string{"Email", "Email Address", "E-mail", "Work Email", "Personal Email"}},
	FieldCity:       {"City", []string{"City", "Location City", "Town"}},
	FieldState:      {"State", []string{"State", "Location State", "Region", "Province"}},
	FieldZip:        {"Zip", []string{"Zip", "Zip Code", "Zipcode", "Postal Code", "Postcode"}},
	FieldAddress:    {"Address", []string{"Address", "Street Address", "Street", "Address Line 1"}},
	FieldLocation:   {"Location", []string{"Location", "Geo", "Locality"}},
	FieldProfileURL: {"Profile URL", []string{"LinkedIn URL", "LinkedIn", "Profile URL", "Profile", "LinkedIn Profile", "URL"}},
	FieldAge:        {"Age", []string{"Age"}},
	FieldDOB:        {"DOB", []string{"DOB", "Date of Birth", "Birthdate", "Birthday"}},
	FieldCompany:    {"Company", []string{"Company", "Company Name", "Organization", "Employer"}},
	FieldTitle:      {"Title", []string{"Title", "Job Title", "Headline", "Position"}},
}

// Row is one lead as received from a scrape: column name to scalar value.
type Row map[string]any

func normalizeColumn(name string) string {
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(name)))
}

// Clone returns a shallow copy of r.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Column returns the first column in r matching one of the field's synonyms,
// regardless of its value.
func (r Row) Column(f Field) (string, bool) {
	def, ok := Fields[f]
	if !ok {
		return "", false
	}
	index := make(map[string]string, len(r))
	for k := range r {
		n := normalizeColumn(k)
		if prev, dup := index[n]; !dup || k < prev {
			index[n] = k
		}
	}
	for _, syn := range def.Synonyms {
		if col, ok := index[normalizeColumn(syn)]; ok {
			return col, true
		}
	}
	return "", false
}

// Lookup returns the first non-placeholder value among the field's synonym
// columns, in synonym order.
func (r Row) Lookup(f Field) (string, bool) {
	def, ok := Fields[f]
	if !ok {
		return "", false
	}
	byNorm := make(map[string][]string, len(r))
	for k := range r {
		n := normalizeColumn(k)
		byNorm[n] = append(byNorm[n], k)
	}
	for _, syn := range def.Synonyms {
		for _, col := range byNorm[normalizeColumn(syn)] {
			if v := Stringify(r[col]); !IsPlaceholder(v) {
				return v, true
			}
		}
	}
	return "", false
}

// Get is Lookup without the presence flag.
func (r Row) Get(f Field) string {
	v, _ := r.Lookup(f)
	return v
}

// Set writes v into the existing synonym column for f, or the field's
// default column when the row has none.
func (r Row) Set(f Field, v string) {
	col, ok := r.Column(f)
	if !ok {
		col = Fields[f].Column
	}
	r[col] = v
}

// Stringify renders a scalar cell as a trimmed string.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return strings.Trim(string(b), `"`)
	}
}

// IsPlaceholder reports whether v is blank or one of the scrape sentinels.
func IsPlaceholder(v string) bool {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "", "EMPTY", "N/A":
		return true
	}
	return false
}
