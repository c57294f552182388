package sink

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/pkg/salesforce"
)

// LeadSource is stamped on every Lead this sink writes.
const LeadSource = "Lead Enrichment"

// Salesforce upserts a Lead sObject per enriched lead, matched by email or
// phone.
type Salesforce struct {
	client salesforce.Client
}

// NewSalesforce returns a Salesforce sink.
func NewSalesforce(c salesforce.Client) *Salesforce {
	return &Salesforce{client: c}
}

func (s *Salesforce) Name() string { return "salesforce" }

func (s *Salesforce) Send(ctx context.Context, sum checkpoint.Summary) error {
	if _, err := salesforce.UpsertLead(ctx, s.client, leadFields(sum)); err != nil {
		return eris.Wrap(err, "sink: salesforce")
	}
	return nil
}

func leadFields(sum checkpoint.Summary) map[string]any {
	r := sum.Result
	fields := map[string]any{
		"FirstName":  r.FirstName,
		"LastName":   r.LastName,
		"LeadSource": LeadSource,
	}
	put := func(k, v string) {
		if v != "" {
			fields[k] = v
		}
	}
	put("Phone", r.Phone)
	put("Email", r.Email)
	put("City", r.City)
	put("State", r.State)
	put("PostalCode", r.ZIP)
	put("Street", r.Address)
	if c, ok := sum.Row.Lookup(lead.FieldCompany); ok {
		put("Company", c)
	}
	if t, ok := sum.Row.Lookup(lead.FieldTitle); ok {
		put("Title", t)
	}
	return fields
}
