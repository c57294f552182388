package lead

import (
	"encoding/json"
	"strings"
)

// Raw holds the unmodified payloads returned by each external call, kept
// for audit.
type Raw struct {
	Search     json.RawMessage `json:"search,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	PhoneIntel json.RawMessage `json:"phone_intel,omitempty"`
	AgeDetail  json.RawMessage `json:"age_detail,omitempty"`
}

// Result is the enrichment outcome attached to one lead.
type Result struct {
	FirstName         string `json:"first_name,omitempty"`
	LastName          string `json:"last_name,omitempty"`
	Phone             string `json:"phone,omitempty"`
	Email             string `json:"email,omitempty"`
	ZIP               string `json:"zip,omitempty"`
	Address           string `json:"address,omitempty"`
	City              string `json:"city,omitempty"`
	State             string `json:"state,omitempty"`
	LineType          string `json:"line_type,omitempty"`
	Carrier           string `json:"carrier,omitempty"`
	CarrierType       string `json:"carrier_type,omitempty"`
	NormalizedCarrier string `json:"normalized_carrier,omitempty"`
	Age               string `json:"age,omitempty"`
	DOB               string `json:"dob,omitempty"`
	GatePassed        bool   `json:"gate_passed"`
	GateReason        string `json:"gate_reason,omitempty"`
	Raw               Raw    `json:"raw"`
	Error             string `json:"error,omitempty"`
}

// ErrorSeparator joins step errors in Result.Error.
const ErrorSeparator = "; "

// AddError appends a step-prefixed message to the accumulated error.
func (r *Result) AddError(step string, err error) {
	if err == nil {
		return
	}
	msg := step + ": " + err.Error()
	if r.Error == "" {
		r.Error = msg
		return
	}
	r.Error += ErrorSeparator + msg
}

// Errors splits the accumulated error string.
func (r *Result) Errors() []string {
	if strings.TrimSpace(r.Error) == "" {
		return nil
	}
	return strings.Split(r.Error, ErrorSeparator)
}
