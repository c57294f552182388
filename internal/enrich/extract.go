package enrich

import (
	"sort"
	"strings"
	"time"

	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/internal/postal"
	"github.com/sells-group/lead-enrichment/pkg/skiptrace"
	"github.com/sells-group/lead-enrichment/pkg/telnyx"
)

// Each extractor pulls one value out of an external payload and reports
// whether it was present. Nil payloads are absent.

// searchCandidate picks the search result to follow: the first person who
// lives in the lead's state, else the first person.
func searchCandidate(resp *skiptrace.SearchResponse, state string) (skiptrace.SearchPerson, bool) {
	if resp == nil || len(resp.People) == 0 {
		return skiptrace.SearchPerson{}, false
	}
	if code := postal.StateCode(state); code != "" {
		for _, p := range resp.People {
			if _, st := splitLocality(p.LivesIn); postal.StateCode(st) == code {
				return p, true
			}
		}
	}
	return resp.People[0], true
}

func searchPhone(p skiptrace.SearchPerson) (string, bool) {
	return lead.NormalizePhone(p.Telephone)
}

func searchEmail(p skiptrace.SearchPerson) (string, bool) {
	e := strings.TrimSpace(p.Email)
	return e, lead.ValidEmail(e)
}

func searchAge(p skiptrace.SearchPerson) (string, bool) {
	return ageValue(p.Age.String())
}

func searchLocality(p skiptrace.SearchPerson) (city, state string) {
	return splitLocality(p.LivesIn)
}

// splitLocality parses "Austin, TX" or "Austin, TX 78701".
func splitLocality(s string) (city, state string) {
	parts := strings.Split(s, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(s), ""
	}
	city = strings.TrimSpace(parts[0])
	fields := strings.Fields(parts[1])
	if len(fields) > 0 {
		state = fields[0]
	}
	return city, state
}

// detailPhone picks the best phone record: wireless lines first, then the
// most recently reported. Records without a usable number are ignored.
func detailPhone(d *skiptrace.DetailsResponse) (string, bool) {
	if d == nil {
		return "", false
	}
	type candidate struct {
		number   string
		wireless bool
		reported time.Time
	}
	var cands []candidate
	for _, rec := range d.Phones {
		n, ok := lead.NormalizePhone(rec.Number)
		if !ok {
			continue
		}
		at, _ := rec.LastReportedAt()
		cands = append(cands, candidate{number: n, wireless: rec.IsWireless(), reported: at})
	}
	if len(cands) == 0 {
		if len(d.Person) > 0 {
			return lead.NormalizePhone(d.Person[0].Telephone)
		}
		return "", false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].wireless != cands[j].wireless {
			return cands[i].wireless
		}
		return cands[i].reported.After(cands[j].reported)
	})
	return cands[0].number, true
}

func detailEmail(d *skiptrace.DetailsResponse) (string, bool) {
	if d == nil {
		return "", false
	}
	for _, e := range d.Emails {
		if e = strings.TrimSpace(e); lead.ValidEmail(e) {
			return e, true
		}
	}
	return "", false
}

func detailAddress(d *skiptrace.DetailsResponse) (skiptrace.AddressRecord, bool) {
	if d == nil || len(d.Addresses) == 0 {
		return skiptrace.AddressRecord{}, false
	}
	return d.Addresses[0], true
}

func detailAge(d *skiptrace.DetailsResponse) (string, bool) {
	if d == nil || len(d.Person) == 0 {
		return "", false
	}
	return ageValue(d.Person[0].Age.String())
}

func detailDOB(d *skiptrace.DetailsResponse) (string, bool) {
	if d == nil || len(d.Person) == 0 {
		return "", false
	}
	dob := strings.TrimSpace(d.Person[0].Born)
	return dob, dob != ""
}

// ageValue keeps the leading number of values such as "41" or "41 years".
func ageValue(s string) (string, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 || s[:end] == "0" {
		return "", false
	}
	return s[:end], true
}

func lineType(r *telnyx.LookupResponse) (string, bool) {
	if r == nil {
		return "", false
	}
	lt := r.LineType()
	return lt, lt != ""
}

func carrierName(r *telnyx.LookupResponse) (string, bool) {
	if r == nil {
		return "", false
	}
	c := r.CarrierName()
	return c, c != ""
}
