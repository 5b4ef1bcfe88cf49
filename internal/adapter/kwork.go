package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/gigradar/internal/model"
)

const (
	kworkBaseURL     = "https://kwork.ru"
	kworkDataMarker  = `"wantsListData":`
	kworkDateLayout  = "2006-01-02 15:04:05"
	kworkDefaultPage = 1
)

// Kwork timestamps are Moscow time.
var kworkZone = time.FixedZone("MSK", 3*60*60)

var errKworkNoData = errors.New("wantsListData not found in page")

type kworkProject struct {
	ID                 flexString `json:"id"`
	Name               string     `json:"name"`
	Description        string     `json:"description"`
	DateCreate         string     `json:"date_create"`
	PriceLimit         flexFloat  `json:"priceLimit"`
	PossiblePriceLimit flexFloat  `json:"possiblePriceLimit"`
}

type kworkWantsList struct {
	Pagination struct {
		Data []kworkProject `json:"data"`
	} `json:"pagination"`
}

// KworkAdapter scrapes the Kwork projects board. The page embeds its listing
// as a JSON object in an inline script; recency is judged by date_create.
type KworkAdapter struct {
	baseURL  string
	pages    int
	interval time.Duration
	renderer PageRenderer
	logger   *slog.Logger
	now      func() time.Time
}

// NewKworkAdapter creates an adapter that reads the first pages listing pages.
func NewKworkAdapter(baseURL string, pages int, interval time.Duration, renderer PageRenderer, logger *slog.Logger) *KworkAdapter {
	if baseURL == "" {
		baseURL = kworkBaseURL
	}
	if pages < kworkDefaultPage {
		pages = kworkDefaultPage
	}
	return &KworkAdapter{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pages:    pages,
		interval: interval,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *KworkAdapter) Name() model.Source          { return model.SourceKwork }
func (a *KworkAdapter) PollInterval() time.Duration { return a.interval }

// FetchRecent renders each listing page and returns projects created within
// window. Paging stops at the first page with nothing recent on it.
func (a *KworkAdapter) FetchRecent(ctx context.Context, window time.Duration) ([]model.Posting, error) {
	var postings []model.Posting
	now := a.now()

	for page := 1; page <= a.pages; page++ {
		url := fmt.Sprintf("%s/projects?a=1&view=0&page=%d", a.baseURL, page)
		html, err := a.renderer.Render(ctx, url)
		if err != nil {
			if page > 1 {
				a.logger.Warn("kwork page failed, keeping earlier pages", "page", page, "error", err)
				break
			}
			return nil, fmt.Errorf("kwork fetch page %d: %w", page, err)
		}

		projects, err := extractKworkProjects(html)
		if err != nil {
			if page > 1 {
				a.logger.Warn("kwork page unparseable, keeping earlier pages", "page", page, "error", err)
				break
			}
			return nil, fmt.Errorf("kwork fetch page %d: %w", page, err)
		}

		recent := 0
		for _, pr := range projects {
			p, ok := a.normalize(pr, now, window)
			if !ok {
				continue
			}
			postings = append(postings, p)
			recent++
		}
		if recent == 0 {
			break
		}
	}

	return postings, nil
}

func (a *KworkAdapter) normalize(pr kworkProject, now time.Time, window time.Duration) (model.Posting, bool) {
	if pr.DateCreate == "" {
		return model.Posting{}, false
	}
	created, err := time.ParseInLocation(kworkDateLayout, pr.DateCreate, kworkZone)
	if err != nil {
		a.logger.Debug("kwork bad date_create", "value", pr.DateCreate, "error", err)
		return model.Posting{}, false
	}
	if !withinWindow(created, now, window) {
		return model.Posting{}, false
	}

	id := string(pr.ID)
	budget := model.Budget{
		Minimum: pr.PriceLimit.value,
		Maximum: pr.PossiblePriceLimit.value,
	}
	if !budget.Empty() {
		budget.Currency = strPtr(defaultCurrency)
	}

	t := created.UTC()
	return model.Posting{
		ID:          id,
		Source:      model.SourceKwork,
		Title:       strings.TrimSpace(pr.Name),
		Description: extractText(pr.Description),
		URL:         fmt.Sprintf("%s/projects/%s", a.baseURL, id),
		Budget:      budget,
		PublishedAt: &t,
	}, true
}

// extractKworkProjects locates the inline script carrying wantsListData and
// decodes its pagination.data array. The whole page is searched when no
// script element matches, since the payload is sometimes inlined elsewhere.
func extractKworkProjects(page string) ([]kworkProject, error) {
	source := page
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err == nil {
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := s.Text()
			if strings.Contains(text, kworkDataMarker) {
				source = text
				return false
			}
			return true
		})
	}

	idx := strings.Index(source, kworkDataMarker)
	if idx == -1 {
		return nil, errKworkNoData
	}
	start := strings.IndexByte(source[idx+len(kworkDataMarker):], '{')
	if start == -1 {
		return nil, fmt.Errorf("no object after wantsListData")
	}
	start += idx + len(kworkDataMarker)

	raw := balancedObject(source, start)
	if raw == "" {
		return nil, fmt.Errorf("unbalanced wantsListData object")
	}

	var list kworkWantsList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decoding wantsListData: %w", err)
	}
	return list.Pagination.Data, nil
}

// balancedObject returns the JSON object starting at text[start], matching
// braces outside of string literals. Returns "" if the object never closes.
func balancedObject(text string, start int) string {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}
