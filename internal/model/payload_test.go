package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func floatPtr(f float64) *float64 { return &f }
func strPtr(s string) *string     { return &s }

func TestEncodePosting_WireShape(t *testing.T) {
	p := Posting{
		ID:          "42",
		Source:      SourceKwork,
		Title:       "Landing page",
		Description: "Need a landing page",
		URL:         "https://kwork.ru/projects/42",
		Budget:      Budget{Minimum: floatPtr(1000), Maximum: floatPtr(3000), Currency: strPtr("₽")},
	}

	data, err := EncodePosting(p)
	if err != nil {
		t.Fatalf("EncodePosting: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"id", "title", "description", "url", "budget"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("payload missing %q: %s", key, data)
		}
	}
	if _, ok := raw["source"]; ok {
		t.Errorf("payload should not carry source: %s", data)
	}
	budget := raw["budget"].(map[string]any)
	if budget["minimum"] != 1000.0 || budget["maximum"] != 3000.0 || budget["currency"] != "₽" {
		t.Errorf("budget = %v", budget)
	}
}

func TestEncodePosting_AbsentBudgetIsNull(t *testing.T) {
	data, err := EncodePosting(Posting{ID: "1", Title: "t", URL: "u"})
	if err != nil {
		t.Fatalf("EncodePosting: %v", err)
	}
	want := `{"id":"1","title":"t","description":null,"url":"u","budget":{"minimum":null,"maximum":null,"currency":null}}`
	if string(data) != want {
		t.Errorf("payload = %s\nwant      %s", data, want)
	}
}

func TestEncodePosting_RejectsEmptyID(t *testing.T) {
	if _, err := EncodePosting(Posting{Title: "no id"}); !errors.Is(err, ErrInvalidPosting) {
		t.Errorf("err = %v, want ErrInvalidPosting", err)
	}
}

func TestDecodePosting_NumericID(t *testing.T) {
	p, err := DecodePosting(SourceFreelancer, []byte(`{"id": 39000123, "title": "Go dev", "url": "https://x", "budget": {"minimum": 30, "maximum": 250, "currency": "$"}}`))
	if err != nil {
		t.Fatalf("DecodePosting: %v", err)
	}
	if p.ID != "39000123" {
		t.Errorf("ID = %q, want 39000123", p.ID)
	}
	if p.Source != SourceFreelancer {
		t.Errorf("Source = %q", p.Source)
	}
	if p.Budget.Minimum == nil || *p.Budget.Minimum != 30 {
		t.Errorf("Minimum = %v", p.Budget.Minimum)
	}
	if p.Description != "" {
		t.Errorf("Description = %q, want empty", p.Description)
	}
}

func TestDecodePosting_RoundTripKeepsText(t *testing.T) {
	in := Posting{ID: "abc", Source: SourceFL, Title: "Бот", Description: "Телеграм бот на Python", URL: "https://fl.ru/p/abc"}
	data, err := EncodePosting(in)
	if err != nil {
		t.Fatalf("EncodePosting: %v", err)
	}
	out, err := DecodePosting(SourceFL, data)
	if err != nil {
		t.Fatalf("DecodePosting: %v", err)
	}
	if out.Title != in.Title || out.Description != in.Description || out.URL != in.URL {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
	if !out.Budget.Empty() || out.Budget.Currency != nil {
		t.Errorf("budget = %+v, want all nil", out.Budget)
	}
}

func TestDecodePosting_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing id", `{"title": "x"}`},
		{"null id", `{"id": null, "title": "x"}`},
		{"not json", `true-ish`},
		{"object id", `{"id": {"a": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePosting(SourceFL, []byte(tt.data)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
