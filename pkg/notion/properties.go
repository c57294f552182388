package notion

import (
	"strings"

	"github.com/jomei/notionapi"
)

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

// Title builds a title property.
func Title(s string) notionapi.Property {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: richText(s)}
}

// Text builds a rich-text property.
func Text(s string) notionapi.Property {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(s)}
}

// URL builds a url property.
func URL(s string) notionapi.Property {
	return notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: s}
}

// Phone builds a phone_number property.
func Phone(s string) notionapi.Property {
	return notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: s}
}

// Email builds an email property.
func Email(s string) notionapi.Property {
	return notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: s}
}

// Number builds a number property.
func Number(n float64) notionapi.Property {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: n}
}

// Select builds a select property.
func Select(name string) notionapi.Property {
	return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}
}

// Checkbox builds a checkbox property.
func Checkbox(v bool) notionapi.Property {
	return notionapi.CheckboxProperty{Type: notionapi.PropertyTypeCheckbox, Checkbox: v}
}

func plain(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, t := range rt {
		switch {
		case t.PlainText != "":
			b.WriteString(t.PlainText)
		case t.Text != nil:
			b.WriteString(t.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

// Flatten converts page properties into a column -> scalar map. Text-like
// properties become strings, numbers stay float64, and property types with
// no scalar form (relations, files, people) are dropped.
func Flatten(props notionapi.Properties) map[string]any {
	row := make(map[string]any, len(props))
	for name, p := range props {
		if v, ok := scalar(p); ok {
			row[name] = v
		}
	}
	return row
}

func scalar(p notionapi.Property) (any, bool) {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return plain(v.Title), true
	case notionapi.TitleProperty:
		return plain(v.Title), true
	case *notionapi.RichTextProperty:
		return plain(v.RichText), true
	case notionapi.RichTextProperty:
		return plain(v.RichText), true
	case *notionapi.URLProperty:
		return v.URL, true
	case notionapi.URLProperty:
		return v.URL, true
	case *notionapi.PhoneNumberProperty:
		return v.PhoneNumber, true
	case notionapi.PhoneNumberProperty:
		return v.PhoneNumber, true
	case *notionapi.EmailProperty:
		return v.Email, true
	case notionapi.EmailProperty:
		return v.Email, true
	case *notionapi.SelectProperty:
		return v.Select.Name, true
	case notionapi.SelectProperty:
		return v.Select.Name, true
	case *notionapi.StatusProperty:
		return v.Status.Name, true
	case notionapi.StatusProperty:
		return v.Status.Name, true
	case *notionapi.NumberProperty:
		return v.Number, true
	case notionapi.NumberProperty:
		return v.Number, true
	case *notionapi.CheckboxProperty:
		return v.Checkbox, true
	case notionapi.CheckboxProperty:
		return v.Checkbox, true
	}
	return nil, false
}
