package notion

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxBlockDepth caps recursion into nested blocks. Content below this
// depth is dropped.
const maxBlockDepth = 3

func richTextPlain(parts []RichText) string {
	var b strings.Builder
	for _, rt := range parts {
		b.WriteString(rt.PlainText)
	}
	return b.String()
}

// renderBlocks flattens a block tree into text lines, one per block.
// Headings get a "## " prefix, list items "- ", and to_do items a checkbox
// marker. Table rows render their cells pipe separated.
func (c *Client) renderBlocks(ctx context.Context, blockID string, depth int) ([]string, error) {
	if depth > maxBlockDepth {
		return nil, nil
	}

	blocks, err := c.BlockChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}

	var lines []string
	for _, block := range blocks {
		if text := richTextPlain(block.Payload.RichText); text != "" {
			lines = append(lines, blockPrefix(block)+text)
		}

		if block.Type == "table_row" && len(block.Payload.Cells) > 0 {
			cells := make([]string, len(block.Payload.Cells))
			empty := true
			for i, cell := range block.Payload.Cells {
				cells[i] = richTextPlain(cell)
				if cells[i] != "" {
					empty = false
				}
			}
			if !empty {
				lines = append(lines, strings.Join(cells, " | "))
			}
		}

		if block.HasChildren {
			children, err := c.renderBlocks(ctx, block.ID, depth+1)
			if err != nil {
				c.logger.Warn("skipping nested blocks", "block_id", block.ID, "error", err)
				continue
			}
			lines = append(lines, children...)
		}
	}
	return lines, nil
}

func blockPrefix(block Block) string {
	switch {
	case block.Type == "to_do" && block.Payload.Checked:
		return "[x] "
	case block.Type == "to_do":
		return "[ ] "
	case block.Type == "bulleted_list_item", block.Type == "numbered_list_item":
		return "- "
	case strings.HasPrefix(block.Type, "heading"):
		return "## "
	default:
		return ""
	}
}

// pageTitle returns the page's title property or "Untitled".
func pageTitle(page Page) string {
	for _, prop := range page.Properties {
		if prop.Type == "title" {
			if title := richTextPlain(prop.Title); title != "" {
				return title
			}
		}
	}
	return "Untitled"
}

// pageProperties renders the non-title properties as "name: value" lines.
// Properties with no renderable value are omitted. Lines are sorted by
// property name for stable output.
func pageProperties(page Page) string {
	var lines []string
	for name, prop := range page.Properties {
		if prop.Type == "title" {
			continue
		}
		if value := propertyValue(prop); value != "" {
			lines = append(lines, name+": "+value)
		}
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

func propertyValue(prop Property) string {
	switch prop.Type {
	case "rich_text":
		return richTextPlain(prop.RichText)
	case "number":
		if prop.Number == nil {
			return ""
		}
		return strconv.FormatFloat(*prop.Number, 'f', -1, 64)
	case "select":
		if prop.Select == nil {
			return ""
		}
		return prop.Select.Name
	case "multi_select":
		names := make([]string, len(prop.MultiSelect))
		for i, opt := range prop.MultiSelect {
			names[i] = opt.Name
		}
		return strings.Join(names, ", ")
	case "status":
		if prop.Status == nil {
			return ""
		}
		return prop.Status.Name
	case "date":
		if prop.Date == nil || prop.Date.Start == "" {
			return ""
		}
		if prop.Date.End != "" {
			return prop.Date.Start + " → " + prop.Date.End
		}
		return prop.Date.Start
	case "checkbox":
		if prop.Checkbox {
			return "Yes"
		}
		return "No"
	case "url":
		return prop.URL
	case "email":
		return prop.Email
	case "phone_number":
		return prop.PhoneNumber
	case "people":
		names := make([]string, len(prop.People))
		for i, p := range prop.People {
			if p.Name != "" {
				names[i] = p.Name
			} else {
				names[i] = "Unknown"
			}
		}
		return strings.Join(names, ", ")
	case "relation":
		return fmt.Sprintf("%d linked items", len(prop.Relation))
	case "formula":
		return formulaValue(prop.Formula)
	default:
		return ""
	}
}

func formulaValue(f *Formula) string {
	if f == nil {
		return ""
	}
	switch f.Type {
	case "string":
		if f.String != nil {
			return *f.String
		}
	case "number":
		if f.Number != nil {
			return strconv.FormatFloat(*f.Number, 'f', -1, 64)
		}
	case "boolean":
		if f.Boolean != nil {
			return strconv.FormatBool(*f.Boolean)
		}
	case "date":
		if f.Date != nil {
			return f.Date.Start
		}
	}
	return ""
}

// PageContent renders a full page: its properties followed by its block
// tree, with blank lines between parts.
func (c *Client) PageContent(ctx context.Context, page Page) (string, error) {
	var parts []string
	if props := pageProperties(page); props != "" {
		parts = append(parts, props)
	}

	lines, err := c.renderBlocks(ctx, page.ID, 0)
	if err != nil {
		return "", err
	}
	parts = append(parts, lines...)

	return strings.Join(parts, "\n\n"), nil
}
