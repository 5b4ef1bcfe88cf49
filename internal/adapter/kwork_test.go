package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

// kworkPage wraps projects JSON the way the board inlines it.
func kworkPage(projectsJSON string) string {
	return `<!DOCTYPE html><html><head><title>Kwork</title>
<script>window.stateData = {"user": {"name": "guest {x}"}, "wantsListData": {"pagination": {"current_page": 1, "data": ` + projectsJSON + `}}, "other": 1};</script>
</head><body><div id="app"></div></body></html>`
}

// fixedNow is 15:00 MSK.
const kworkRecent = `[
	{"id": 2900001, "name": " Парсер на Go ", "description": "Нужен парсер сайта, текст с {скобками} и \"кавычками\"", "date_create": "2026-03-10 14:58:00", "priceLimit": "5000.00", "possiblePriceLimit": 15000},
	{"id": 2900002, "name": "Лендинг", "description": "<b>Вёрстка</b> по макету", "date_create": "2026-03-10 14:50:00", "priceLimit": null, "possiblePriceLimit": null},
	{"id": 2800000, "name": "Старый", "description": "old", "date_create": "2026-03-09 10:00:00", "priceLimit": 100},
	{"id": 2800001, "name": "No date", "description": "x"}
]`

type fakeRenderer struct {
	pages map[string]string
	calls atomic.Int32
	err   error
}

func (r *fakeRenderer) Render(_ context.Context, url string) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	page, ok := r.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return page, nil
}

func newKworkTestAdapter(renderer PageRenderer, pages int) *KworkAdapter {
	a := NewKworkAdapter("https://kwork.test", pages, 5*time.Minute, renderer, discardLogger())
	a.now = func() time.Time { return fixedNow }
	return a
}

func TestKworkAdapter_FetchRecent(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{
		"https://kwork.test/projects?a=1&view=0&page=1": kworkPage(kworkRecent),
	}}
	postings, err := newKworkTestAdapter(r, 1).FetchRecent(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings, got %d: %+v", len(postings), postings)
	}

	p := postings[0]
	if p.ID != "2900001" {
		t.Errorf("ID = %q, want 2900001", p.ID)
	}
	if p.Title != "Парсер на Go" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.URL != "https://kwork.test/projects/2900001" {
		t.Errorf("URL = %q", p.URL)
	}
	if p.Budget.Minimum == nil || *p.Budget.Minimum != 5000 {
		t.Errorf("Minimum = %v, want 5000 from quoted price", p.Budget.Minimum)
	}
	if p.Budget.Maximum == nil || *p.Budget.Maximum != 15000 {
		t.Errorf("Maximum = %v, want 15000", p.Budget.Maximum)
	}
	if p.Budget.Currency == nil || *p.Budget.Currency != "₽" {
		t.Errorf("Currency = %v, want ₽", p.Budget.Currency)
	}
	if !strings.Contains(p.Description, "{скобками}") {
		t.Errorf("Description = %q, braces inside strings must survive", p.Description)
	}
	if want := time.Date(2026, 3, 10, 11, 58, 0, 0, time.UTC); !p.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v (MSK converted to UTC)", p.PublishedAt, want)
	}

	p2 := postings[1]
	if !p2.Budget.Empty() || p2.Budget.Currency != nil {
		t.Errorf("budget = %+v, want all nil", p2.Budget)
	}
	if p2.Description != "Вёрстка по макету" {
		t.Errorf("Description = %q", p2.Description)
	}
}

func TestKworkAdapter_PagingStopsWithoutRecent(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{
		"https://kwork.test/projects?a=1&view=0&page=1": kworkPage(kworkRecent),
		"https://kwork.test/projects?a=1&view=0&page=2": kworkPage(`[{"id": 1, "name": "old", "date_create": "2026-03-01 10:00:00"}]`),
		"https://kwork.test/projects?a=1&view=0&page=3": kworkPage(kworkRecent),
	}}
	postings, err := newKworkTestAdapter(r, 3).FetchRecent(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Errorf("expected 2 postings, got %d", len(postings))
	}
	if got := r.calls.Load(); got != 2 {
		t.Errorf("render calls = %d, want 2 (stop after page without recent)", got)
	}
}

func TestKworkAdapter_MissingData(t *testing.T) {
	r := &fakeRenderer{pages: map[string]string{
		"https://kwork.test/projects?a=1&view=0&page=1": "<html><body>captcha</body></html>",
	}}
	_, err := newKworkTestAdapter(r, 1).FetchRecent(context.Background(), time.Hour)
	if !errors.Is(err, errKworkNoData) {
		t.Errorf("err = %v, want errKworkNoData", err)
	}
}

func TestKworkAdapter_RenderError(t *testing.T) {
	r := &fakeRenderer{err: errors.New("timeout")}
	postings, err := newKworkTestAdapter(r, 2).FetchRecent(context.Background(), time.Hour)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(postings) != 0 {
		t.Errorf("postings = %d, want 0", len(postings))
	}
}

func TestKworkAdapter_HTTPRenderer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects" || r.URL.Query().Get("page") != "1" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(kworkPage(kworkRecent)))
	}))
	defer srv.Close()

	a := NewKworkAdapter(srv.URL, 1, time.Minute, NewHTTPRenderer(srv.Client()), discardLogger())
	a.now = func() time.Time { return fixedNow }
	postings, err := a.FetchRecent(context.Background(), 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(postings) != 2 {
		t.Errorf("expected 2 postings, got %d", len(postings))
	}
	if a.Name() != model.SourceKwork {
		t.Errorf("Name = %q", a.Name())
	}
}

func TestBalancedObject(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"simple", `{"a":1} trailing`, `{"a":1}`},
		{"nested", `{"a":{"b":{}}}}`, `{"a":{"b":{}}}`},
		{"brace in string", `{"a":"}"}`, `{"a":"}"}`},
		{"escaped quote", `{"a":"\"}"}x`, `{"a":"\"}"}`},
		{"unclosed", `{"a":{`, ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := balancedObject(tt.text, 0); got != tt.want {
				t.Errorf("balancedObject(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
