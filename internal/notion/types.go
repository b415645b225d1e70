package notion

import "encoding/json"

// RichText is one styled text fragment. Only the plain text matters here.
type RichText struct {
	PlainText string `json:"plain_text"`
}

// Option is a named value used by select, multi_select and status
// properties.
type Option struct {
	Name string `json:"name"`
}

// DateValue is a date or date range property value.
type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Person is a user referenced by a people property.
type Person struct {
	Name string `json:"name"`
}

// Relation is a reference to another page.
type Relation struct {
	ID string `json:"id"`
}

// Formula is a computed property value. Type names the populated field.
type Formula struct {
	Type    string     `json:"type"`
	String  *string    `json:"string"`
	Number  *float64   `json:"number"`
	Boolean *bool      `json:"boolean"`
	Date    *DateValue `json:"date"`
}

// Property is one page property. Type names the populated field.
type Property struct {
	Type        string     `json:"type"`
	Title       []RichText `json:"title"`
	RichText    []RichText `json:"rich_text"`
	Number      *float64   `json:"number"`
	Select      *Option    `json:"select"`
	MultiSelect []Option   `json:"multi_select"`
	Status      *Option    `json:"status"`
	Date        *DateValue `json:"date"`
	Checkbox    bool       `json:"checkbox"`
	URL         string     `json:"url"`
	Email       string     `json:"email"`
	PhoneNumber string     `json:"phone_number"`
	People      []Person   `json:"people"`
	Relation    []Relation `json:"relation"`
	Formula     *Formula   `json:"formula"`
}

// Page is a Notion page as returned by search.
type Page struct {
	ID             string              `json:"id"`
	URL            string              `json:"url"`
	LastEditedTime string              `json:"last_edited_time"`
	Properties     map[string]Property `json:"properties"`
}

// blockPayload is the type-specific part of a block. Every text-bearing
// block type carries rich_text; to_do adds checked and table_row carries
// cells instead.
type blockPayload struct {
	RichText []RichText   `json:"rich_text"`
	Checked  bool         `json:"checked"`
	Cells    [][]RichText `json:"cells"`
}

// Block is one content block. The payload lives under a key named after
// Type in the wire format, so unmarshaling resolves it dynamically.
type Block struct {
	ID          string
	Type        string
	HasChildren bool
	Payload     blockPayload
}

func (b *Block) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var header struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return err
	}
	b.ID = header.ID
	b.Type = header.Type
	b.HasChildren = header.HasChildren

	if payload, ok := raw[b.Type]; ok {
		if err := json.Unmarshal(payload, &b.Payload); err != nil {
			return err
		}
	}
	return nil
}

// searchRequest is the body of POST /v1/search.
type searchRequest struct {
	Filter      *searchFilter `json:"filter,omitempty"`
	PageSize    int           `json:"page_size"`
	StartCursor string        `json:"start_cursor,omitempty"`
}

type searchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type searchResponse struct {
	Results    []json.RawMessage `json:"results"`
	HasMore    bool              `json:"has_more"`
	NextCursor string            `json:"next_cursor"`
}

type blockChildrenResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}
