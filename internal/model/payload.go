package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// eventPayload is the wire shape published per posting. The source is not
// carried; consumers resolve it from the topic.
type eventPayload struct {
	ID          eventID      `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	URL         string       `json:"url"`
	Budget      *eventBudget `json:"budget"`
}

type eventBudget struct {
	Minimum  *float64 `json:"minimum"`
	Maximum  *float64 `json:"maximum"`
	Currency *string  `json:"currency"`
}

// eventID accepts both JSON strings and numbers. Upstream producers have
// published numeric ids for some marketplaces.
type eventID string

func (id *eventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = eventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		*id = eventID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = eventID(n.String())
	return nil
}

// EncodePosting renders p as the JSON event payload.
func EncodePosting(p Posting) ([]byte, error) {
	if !p.Valid() {
		return nil, ErrInvalidPosting
	}
	ev := eventPayload{
		ID:     eventID(p.ID),
		Title:  p.Title,
		URL:    p.URL,
		Budget: &eventBudget{Minimum: p.Budget.Minimum, Maximum: p.Budget.Maximum, Currency: p.Budget.Currency},
	}
	if p.Description != "" {
		desc := p.Description
		ev.Description = &desc
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encoding posting %s: %w", p.ID, err)
	}
	return data, nil
}

// DecodePosting parses an event payload received on a source topic.
func DecodePosting(source Source, data []byte) (Posting, error) {
	var ev eventPayload
	if err := json.Unmarshal(data, &ev); err != nil {
		return Posting{}, fmt.Errorf("decoding posting: %w", err)
	}
	p := Posting{
		ID:     string(ev.ID),
		Source: source,
		Title:  ev.Title,
		URL:    ev.URL,
	}
	if ev.Description != nil {
		p.Description = *ev.Description
	}
	if ev.Budget != nil {
		p.Budget = Budget{Minimum: ev.Budget.Minimum, Maximum: ev.Budget.Maximum, Currency: ev.Budget.Currency}
	}
	if !p.Valid() {
		return Posting{}, ErrInvalidPosting
	}
	return p, nil
}
