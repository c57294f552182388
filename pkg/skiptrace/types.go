package skiptrace

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexString decodes a JSON string, number, or null into a string. The
// search API reports ages either way.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// SearchResponse is the body of a name search.
type SearchResponse struct {
	Status  int            `json:"Status"`
	Records int            `json:"Records"`
	People  []SearchPerson `json:"PeopleDetails"`

	Raw json.RawMessage `json:"-"`
}

// SearchPerson is one candidate from a name search.
type SearchPerson struct {
	Name         string     `json:"Name"`
	Age          FlexString `json:"Age"`
	PersonID     FlexString `json:"Person ID"`
	Telephone    string     `json:"Telephone"`
	Email        string     `json:"Email"`
	LivesIn      string     `json:"Lives in"`
	UsedToLiveIn string     `json:"Used to live in"`
	Link         string     `json:"Link"`
}

// DetailsResponse is the body of a person detail lookup.
type DetailsResponse struct {
	Person    []PersonDetail  `json:"Person Details"`
	Phones    []PhoneRecord   `json:"All Phone Details"`
	Emails    []string        `json:"Email Addresses"`
	Addresses []AddressRecord `json:"Current Address Details List"`

	Raw json.RawMessage `json:"-"`
}

// PersonDetail holds identity fields from a detail lookup.
type PersonDetail struct {
	Name      string     `json:"Person_name"`
	Age       FlexString `json:"Age"`
	Born      string     `json:"Born"`
	Telephone string     `json:"Telephone"`
	LivesIn   string     `json:"Lives in"`
}

// PhoneRecord is one phone number known for a person.
type PhoneRecord struct {
	Number       string `json:"phone_number"`
	Type         string `json:"phone_type"`
	LastReported string `json:"last_reported"`
}

// IsWireless reports whether the record is classified as a mobile line.
func (p PhoneRecord) IsWireless() bool {
	t := strings.ToLower(p.Type)
	return strings.Contains(t, "wireless") || strings.Contains(t, "mobile") || strings.Contains(t, "cell")
}

var reportedLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"Jan 2006",
	"January 2006",
	"2006-01",
	"2006",
}

// LastReportedAt parses the report date. ok is false for blank or
// unrecognised dates.
func (p PhoneRecord) LastReportedAt() (t time.Time, ok bool) {
	s := strings.TrimSpace(p.LastReported)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range reportedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil && unix > 1e9 {
		return time.Unix(unix, 0).UTC(), true
	}
	return time.Time{}, false
}

// AddressRecord is a current address entry.
type AddressRecord struct {
	Street   string `json:"street_address"`
	Locality string `json:"address_locality"`
	Region   string `json:"address_region"`
	Postal   string `json:"postal_code"`
}
