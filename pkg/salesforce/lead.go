package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Lead is the subset of the Salesforce Lead object read back when matching.
type Lead struct {
	ID     string `json:"Id" salesforce:"Id"`
	Email  string `json:"Email" salesforce:"Email"`
	Phone  string `json:"Phone" salesforce:"Phone"`
	Status string `json:"Status" salesforce:"Status"`
}

// FindLead returns the first Lead matching email, or phone when email is
// blank. It returns nil when nothing matches.
func FindLead(ctx context.Context, c Client, email, phone string) (*Lead, error) {
	var where string
	switch {
	case email != "":
		where = fmt.Sprintf("Email = '%s'", escapeSoql(email))
	case phone != "":
		where = fmt.Sprintf("Phone = '%s'", escapeSoql(phone))
	default:
		return nil, nil
	}
	var leads []Lead
	soql := "SELECT Id, Email, Phone, Status FROM Lead WHERE " + where + " LIMIT 1"
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, "sf: find lead")
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// UpsertLead updates the Lead matching the record's Email or Phone, or
// inserts a new one. LastName and Company are required by Salesforce and
// default to placeholders when blank. It returns the Lead id.
func UpsertLead(ctx context.Context, c Client, fields map[string]any) (string, error) {
	if s, _ := fields["LastName"].(string); strings.TrimSpace(s) == "" {
		fields["LastName"] = "Unknown"
	}
	if s, _ := fields["Company"].(string); strings.TrimSpace(s) == "" {
		fields["Company"] = "Individual"
	}
	email, _ := fields["Email"].(string)
	phone, _ := fields["Phone"].(string)

	existing, err := FindLead(ctx, c, email, phone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		if err := c.UpdateOne(ctx, "Lead", existing.ID, fields); err != nil {
			return "", eris.Wrap(err, "sf: upsert lead")
		}
		return existing.ID, nil
	}
	id, err := c.InsertOne(ctx, "Lead", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: upsert lead")
	}
	return id, nil
}

// escapeSoql escapes single quotes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`)
}
