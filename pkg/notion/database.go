package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// MaxPages bounds pagination so a misbehaving cursor cannot loop forever.
const MaxPages = 1000

// QueryAll fetches every page of a database query, following cursors.
// Filter, sorts and page size are copied from base when it is non-nil.
func QueryAll(ctx context.Context, c Client, dbID string, base *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var (
		all    []notionapi.Page
		cursor notionapi.Cursor
	)
	for range MaxPages {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if base != nil {
			req.Filter = base.Filter
			req.Sorts = base.Sorts
			req.PageSize = base.PageSize
		}

		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all")
		}
		all = append(all, resp.Results...)

		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		cursor = resp.NextCursor
	}
	return nil, eris.Errorf("notion: query all: more than %d result pages", MaxPages)
}

// FindByText returns the first page whose rich-text property equals value,
// or nil when none matches.
func FindByText(ctx context.Context, c Client, dbID, property, value string) (*notionapi.Page, error) {
	resp, err := c.QueryDatabase(ctx, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: property,
			RichText: &notionapi.TextFilterCondition{Equals: value},
		},
		PageSize: 1,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "notion: find %s", property)
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}
	page := resp.Results[0]
	return &page, nil
}

// LoadRows reads every page of a lead database and flattens each into a row.
func LoadRows(ctx context.Context, c Client, dbID string) ([]map[string]any, error) {
	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "notion: load rows")
	}
	rows := make([]map[string]any, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, Flatten(p.Properties))
	}
	return rows, nil
}

// UpsertByText updates the page whose rich-text key property equals key, or
// creates one in dbID when none exists. It returns the page ID.
func UpsertByText(ctx context.Context, c Client, dbID, keyProperty, key string, props notionapi.Properties) (string, error) {
	existing, err := FindByText(ctx, c, dbID, keyProperty, key)
	if err != nil {
		return "", err
	}
	if existing != nil {
		page, err := c.UpdatePage(ctx, string(existing.ID), &notionapi.PageUpdateRequest{Properties: props})
		if err != nil {
			return "", eris.Wrap(err, "notion: upsert")
		}
		return string(page.ID), nil
	}

	page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: upsert")
	}
	return string(page.ID), nil
}
