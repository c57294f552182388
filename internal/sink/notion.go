package sink

import (
	"context"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enrichment/internal/checkpoint"
	"github.com/sells-group/lead-enrichment/internal/lead"
	"github.com/sells-group/lead-enrichment/pkg/notion"
)

// NotionKeyProperty is the rich-text property used to find a lead's page.
const NotionKeyProperty = "Lead Key"

// Notion writes one page per lead, updating it on re-delivery.
type Notion struct {
	client notion.Client
	dbID   string
}

// NewNotion returns a Notion sink for database dbID.
func NewNotion(c notion.Client, dbID string) *Notion {
	return &Notion{client: c, dbID: dbID}
}

func (n *Notion) Name() string { return "notion" }

func (n *Notion) Send(ctx context.Context, s checkpoint.Summary) error {
	_, err := notion.UpsertByText(ctx, n.client, n.dbID, NotionKeyProperty, s.Key, notionProperties(s))
	switch {
	case notion.IsRateLimited(err):
		return eris.Wrap(err, "sink: notion rate limited, lower output.notion.rps")
	case err != nil:
		return eris.Wrap(err, "sink: notion")
	}
	return nil
}

func notionProperties(s checkpoint.Summary) notionapi.Properties {
	r := s.Result
	name := strings.TrimSpace(r.FirstName + " " + r.LastName)
	if name == "" {
		name, _ = s.Row.Lookup(lead.FieldFullName)
	}

	props := notionapi.Properties{
		"Name":            notion.Title(name),
		NotionKeyProperty: notion.Text(s.Key),
		"Gate Passed":     notion.Checkbox(r.GatePassed),
	}
	setText := func(prop, v string) {
		if v != "" {
			props[prop] = notion.Text(v)
		}
	}
	if r.Phone != "" {
		props["Phone"] = notion.Phone(r.Phone)
	}
	if r.Email != "" {
		props["Email"] = notion.Email(r.Email)
	}
	if u, ok := s.Row.Lookup(lead.FieldProfileURL); ok {
		props["Profile URL"] = notion.URL(u)
	}
	if r.LineType != "" {
		props["Line Type"] = notion.Select(r.LineType)
	}
	if age, err := strconv.Atoi(r.Age); err == nil {
		props["Age"] = notion.Number(float64(age))
	}
	setText("City", r.City)
	setText("State", r.State)
	setText("ZIP", r.ZIP)
	setText("Carrier", r.Carrier)
	setText("Gate Reason", r.GateReason)
	setText("Error", r.Error)
	return props
}
