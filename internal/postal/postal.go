// Package postal resolves a best-effort ZIP code from a city and state
// using an embedded table, falling back to a per-state centroid.
package postal

import "strings"

// Source describes how a ZIP was resolved.
type Source string

const (
	SourceCity     Source = "city"
	SourceCentroid Source = "state_centroid"
)

var cities = map[string]string{
	"AL|birmingham": "35203", "AL|montgomery": "36104", "AL|huntsville": "35801", "AL|mobile": "36602",
	"AK|anchorage": "99501", "AK|juneau": "99801", "AK|fairbanks": "99701",
	"AZ|phoenix": "85004", "AZ|tucson": "85701", "AZ|mesa": "85201", "AZ|scottsdale": "85251", "AZ|tempe": "85281", "AZ|chandler": "85225",
	"AR|little rock": "72201", "AR|fayetteville": "72701", "AR|bentonville": "72712",
	"CA|los angeles": "90012", "CA|san francisco": "94102", "CA|san diego": "92101", "CA|san jose": "95113",
	"CA|sacramento": "95814", "CA|oakland": "94612", "CA|fresno": "93721", "CA|long beach": "90802",
	"CA|irvine": "92614", "CA|palo alto": "94301", "CA|santa monica": "90401", "CA|pasadena": "91101",
	"CO|denver": "80202", "CO|boulder": "80302", "CO|colorado springs": "80903", "CO|fort collins": "80521",
	"CT|hartford": "06103", "CT|new haven": "06510", "CT|stamford": "06901",
	"DE|wilmington": "19801", "DE|dover": "19901",
	"DC|washington": "20001",
	"FL|miami":      "33130", "FL|orlando": "32801", "FL|tampa": "33602", "FL|jacksonville": "32202",
	"FL|fort lauderdale": "33301", "FL|tallahassee": "32301", "FL|st. petersburg": "33701", "FL|boca raton": "33432",
	"GA|atlanta": "30303", "GA|savannah": "31401", "GA|augusta": "30901", "GA|alpharetta": "30009",
	"HI|honolulu": "96813",
	"ID|boise":    "83702",
	"IL|chicago":  "60601", "IL|springfield": "62701", "IL|naperville": "60540", "IL|evanston": "60201",
	"IN|indianapolis": "46204", "IN|fort wayne": "46802", "IN|carmel": "46032",
	"IA|des moines": "50309", "IA|cedar rapids": "52401",
	"KS|wichita": "67202", "KS|overland park": "66204", "KS|topeka": "66603",
	"KY|louisville": "40202", "KY|lexington": "40507",
	"LA|new orleans": "70112", "LA|baton rouge": "70801", "LA|shreveport": "71101",
	"ME|portland":  "04101",
	"MD|baltimore": "21201", "MD|bethesda": "20814", "MD|annapolis": "21401",
	"MA|boston": "02108", "MA|cambridge": "02139", "MA|worcester": "01608",
	"MI|detroit": "48226", "MI|grand rapids": "49503", "MI|ann arbor": "48104", "MI|lansing": "48933",
	"MN|minneapolis": "55401", "MN|saint paul": "55101", "MN|st. paul": "55101", "MN|rochester": "55901",
	"MS|jackson":     "39201",
	"MO|kansas city": "64106", "MO|st. louis": "63101", "MO|saint louis": "63101", "MO|springfield": "65806",
	"MT|billings": "59101", "MT|bozeman": "59715", "MT|helena": "59601",
	"NE|omaha": "68102", "NE|lincoln": "68508",
	"NV|las vegas": "89101", "NV|reno": "89501", "NV|henderson": "89002",
	"NH|manchester": "03101", "NH|concord": "03301",
	"NJ|newark": "07102", "NJ|jersey city": "07302", "NJ|princeton": "08540", "NJ|hoboken": "07030",
	"NM|albuquerque": "87102", "NM|santa fe": "87501",
	"NY|new york": "10001", "NY|brooklyn": "11201", "NY|buffalo": "14202", "NY|rochester": "14604",
	"NY|albany": "12207", "NY|syracuse": "13202",
	"NC|charlotte": "28202", "NC|raleigh": "27601", "NC|durham": "27701", "NC|greensboro": "27401",
	"ND|fargo": "58102", "ND|bismarck": "58501",
	"OH|columbus": "43215", "OH|cleveland": "44113", "OH|cincinnati": "45202", "OH|toledo": "43604", "OH|dayton": "45402",
	"OK|oklahoma city": "73102", "OK|tulsa": "74103",
	"OR|portland": "97204", "OR|eugene": "97401", "OR|salem": "97301",
	"PA|philadelphia": "19102", "PA|pittsburgh": "15222", "PA|harrisburg": "17101",
	"RI|providence": "02903",
	"SC|charleston": "29401", "SC|columbia": "29201", "SC|greenville": "29601",
	"SD|sioux falls": "57104",
	"TN|nashville":   "37203", "TN|memphis": "38103", "TN|knoxville": "37902", "TN|chattanooga": "37402",
	"TX|austin": "78701", "TX|houston": "77002", "TX|dallas": "75201", "TX|san antonio": "78205",
	"TX|fort worth": "76102", "TX|el paso": "79901", "TX|plano": "75023", "TX|round rock": "78664",
	"TX|arlington": "76010", "TX|frisco": "75034", "TX|irving": "75038", "TX|the woodlands": "77380",
	"UT|salt lake city": "84101", "UT|provo": "84601", "UT|lehi": "84043",
	"VT|burlington": "05401",
	"VA|richmond":   "23219", "VA|virginia beach": "23451", "VA|arlington": "22201", "VA|alexandria": "22314", "VA|norfolk": "23510",
	"WA|seattle": "98101", "WA|spokane": "99201", "WA|tacoma": "98402", "WA|bellevue": "98004", "WA|redmond": "98052",
	"WV|charleston": "25301",
	"WI|milwaukee":  "53202", "WI|madison": "53703",
	"WY|cheyenne": "82001",
}

// Resolver looks up ZIP codes. The zero value uses the built-in table.
type Resolver struct {
	extra map[string]string
}

// New returns a Resolver. Extra entries keyed "ST|city" take precedence
// over the built-in table.
func New(extra map[string]string) *Resolver {
	r := &Resolver{extra: make(map[string]string, len(extra))}
	for k, v := range extra {
		st, city, ok := strings.Cut(k, "|")
		if !ok {
			continue
		}
		r.extra[tableKey(StateCode(st), city)] = v
	}
	return r
}

// ResolveZIP returns a ZIP for city and state. ok is false when the state
// is unknown.
func (r *Resolver) ResolveZIP(city, state string) (zip string, src Source, ok bool) {
	code := StateCode(state)
	if code == "" {
		return "", "", false
	}
	key := tableKey(code, city)
	if r != nil {
		if z, hit := r.extra[key]; hit {
			return z, SourceCity, true
		}
	}
	if z, hit := cities[key]; hit {
		return z, SourceCity, true
	}
	return states[code].centroid, SourceCentroid, true
}

func tableKey(code, city string) string {
	city = strings.Join(strings.Fields(strings.ToLower(city)), " ")
	city = strings.TrimPrefix(city, "greater ")
	city = strings.TrimSuffix(city, " area")
	return code + "|" + city
}
