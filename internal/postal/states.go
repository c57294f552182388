package postal

import "strings"

type stateInfo struct {
	name     string
	centroid string // ZIP near the population centroid
}

var states = map[string]stateInfo{
	"AL": {"alabama", "35203"}, "AK": {"alaska", "99501"}, "AZ": {"arizona", "85004"},
	"AR": {"arkansas", "72201"}, "CA": {"california", "93721"}, "CO": {"colorado", "80202"},
	"CT": {"connecticut", "06103"}, "DE": {"delaware", "19901"}, "DC": {"district of columbia", "20001"},
	"FL": {"florida", "32801"}, "GA": {"georgia", "30303"}, "HI": {"hawaii", "96813"},
	"ID": {"idaho", "83702"}, "IL": {"illinois", "60601"}, "IN": {"indiana", "46204"},
	"IA": {"iowa", "50309"}, "KS": {"kansas", "67202"}, "KY": {"kentucky", "40202"},
	"LA": {"louisiana", "70112"}, "ME": {"maine", "04101"}, "MD": {"maryland", "21201"},
	"MA": {"massachusetts", "02108"}, "MI": {"michigan", "48226"}, "MN": {"minnesota", "55401"},
	"MS": {"mississippi", "39201"}, "MO": {"missouri", "65101"}, "MT": {"montana", "59601"},
	"NE": {"nebraska", "68102"}, "NV": {"nevada", "89101"}, "NH": {"new hampshire", "03301"},
	"NJ": {"new jersey", "08608"}, "NM": {"new mexico", "87102"}, "NY": {"new york", "10001"},
	"NC": {"north carolina", "27601"}, "ND": {"north dakota", "58501"}, "OH": {"ohio", "43215"},
	"OK": {"oklahoma", "73102"}, "OR": {"oregon", "97204"}, "PA": {"pennsylvania", "17101"},
	"RI": {"rhode island", "02903"}, "SC": {"south carolina", "29201"}, "SD": {"south dakota", "57501"},
	"TN": {"tennessee", "37203"}, "TX": {"texas", "76701"}, "UT": {"utah", "84101"},
	"VT": {"vermont", "05602"}, "VA": {"virginia", "23219"}, "WA": {"washington", "98101"},
	"WV": {"west virginia", "25301"}, "WI": {"wisconsin", "53703"}, "WY": {"wyoming", "82001"},
}

var stateByName = func() map[string]string {
	m := make(map[string]string, len(states))
	for code, s := range states {
		m[s.name] = code
	}
	return m
}()

// StateCode converts a state name or abbreviation to its two-letter code.
// Unknown input yields "".
func StateCode(s string) string {
	s = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), ".")))
	if s == "" {
		return ""
	}
	if code := strings.ToUpper(s); len(code) == 2 {
		if _, ok := states[code]; ok {
			return code
		}
	}
	s = strings.TrimSuffix(s, " state")
	return stateByName[s]
}
