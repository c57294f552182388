package enrich

import (
	"strings"

	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/internal/postal"
)

// DefaultJunkCarriers lists carriers whose numbers are mostly disposable or
// virtual. Matching is a case-insensitive substring test.
var DefaultJunkCarriers = []string{
	"bandwidth",
	"onvoy",
	"level 3",
	"twilio",
	"google voice",
	"textnow",
	"pinger",
	"inteliquent",
	"peerless",
	"telnyx",
	"vonage",
	"ringcentral",
	"sinch",
}

// Gate reasons.
const (
	ReasonNoPhone       = "no phone"
	ReasonVoIP          = "voip line"
	ReasonJunkCarrier   = "junk carrier"
	ReasonStateMismatch = "state mismatch"
	ReasonCityMismatch  = "city mismatch"
)

// GateInput is everything the gate looks at.
type GateInput struct {
	Phone    string
	LineType string
	Carrier  string

	// LeadCity and LeadState come from the lead row; FoundCity and
	// FoundState from phone discovery.
	LeadCity   string
	LeadState  string
	FoundCity  string
	FoundState string
}

// Gatekeep decides whether a lead is worth the age lookup. Checks run in a
// fixed order and the first failure wins: phone, line type, carrier, geo.
func Gatekeep(in GateInput, junkCarriers []string) (passed bool, reason string) {
	if !lead.ValidPhone(in.Phone) {
		return false, ReasonNoPhone
	}
	if strings.Contains(strings.ToLower(in.LineType), "voip") {
		return false, ReasonVoIP
	}
	if c := junkCarrier(in.Carrier, junkCarriers); c != "" {
		return false, ReasonJunkCarrier + ": " + c
	}
	if reason := geoMismatch(in); reason != "" {
		return false, reason
	}
	return true, ""
}

func junkCarrier(carrier string, junk []string) string {
	c := strings.ToLower(strings.TrimSpace(carrier))
	if c == "" {
		return ""
	}
	for _, j := range junk {
		if j = strings.ToLower(strings.TrimSpace(j)); j != "" && strings.Contains(c, j) {
			return j
		}
	}
	return ""
}

// geoMismatch compares discovered locality with the lead's. Cities match
// when either contains the other.
func geoMismatch(in GateInput) string {
	if ls, fs := stateKey(in.LeadState), stateKey(in.FoundState); ls != "" && fs != "" && ls != fs {
		return ReasonStateMismatch
	}
	lc := strings.ToLower(strings.TrimSpace(in.LeadCity))
	fc := strings.ToLower(strings.TrimSpace(in.FoundCity))
	if lc != "" && fc != "" && !strings.Contains(lc, fc) && !strings.Contains(fc, lc) {
		return ReasonCityMismatch
	}
	return ""
}

func stateKey(s string) string {
	if code := postal.StateCode(s); code != "" {
		return code
	}
	return strings.ToLower(strings.TrimSpace(s))
}
