package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/amishk599/gigradar/internal/model"
)

const (
	DefaultFreelancerURL   = "https://www.freelancer.com"
	freelancerProjectsPath = "/api/projects/0.1/projects/active/"
	freelancerOAuthHeader  = "freelancer-oauth-v1"
	freelancerDefaultLimit = 50
)

type freelancerProject struct {
	ID                 flexString `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	PreviewDescription string     `json:"preview_description"`
	SeoURL             string     `json:"seo_url"`
	SubmitDate         int64      `json:"submitdate"`
	TimeUpdated        int64      `json:"time_updated"`
	Budget             *struct {
		Minimum flexFloat `json:"minimum"`
		Maximum flexFloat `json:"maximum"`
	} `json:"budget"`
	Currency *struct {
		Sign string `json:"sign"`
		Code string `json:"code"`
	} `json:"currency"`
}

type freelancerResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Result  struct {
		Projects []freelancerProject `json:"projects"`
	} `json:"result"`
}

// FreelancerAdapter queries the Freelancer.com projects API sorted by last
// update. Recency is judged by the server-side time_updated field.
type FreelancerAdapter struct {
	apiURL     string
	siteURL    string
	oauthToken string
	interval   time.Duration
	client     *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewFreelancerAdapter creates an adapter for the API at apiURL. Project links
// are built against siteURL, which defaults to apiURL.
func NewFreelancerAdapter(apiURL, siteURL, oauthToken string, interval time.Duration, client *http.Client, logger *slog.Logger) *FreelancerAdapter {
	if apiURL == "" {
		apiURL = DefaultFreelancerURL
	}
	if siteURL == "" {
		siteURL = apiURL
	}
	return &FreelancerAdapter{
		apiURL:     strings.TrimRight(apiURL, "/"),
		siteURL:    strings.TrimRight(siteURL, "/"),
		oauthToken: oauthToken,
		interval:   interval,
		client:     client,
		logger:     logger,
		now:        time.Now,
	}
}

func (a *FreelancerAdapter) Name() model.Source          { return model.SourceFreelancer }
func (a *FreelancerAdapter) PollInterval() time.Duration { return a.interval }

// FetchRecent returns active projects updated within window.
func (a *FreelancerAdapter) FetchRecent(ctx context.Context, window time.Duration) ([]model.Posting, error) {
	q := url.Values{}
	q.Set("compact", "true")
	q.Set("full_description", "true")
	q.Set("sort_field", "time_updated")
	q.Set("limit", fmt.Sprint(freelancerDefaultLimit))
	endpoint := a.apiURL + freelancerProjectsPath + "?" + q.Encode()

	header := http.Header{}
	if a.oauthToken != "" {
		header.Set(freelancerOAuthHeader, a.oauthToken)
	}

	body, err := get(ctx, a.client, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("freelancer fetch: %w", err)
	}

	var resp freelancerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("freelancer fetch: decoding response: %w", err)
	}
	if resp.Status != "" && resp.Status != "success" {
		return nil, fmt.Errorf("freelancer fetch: status %q: %s", resp.Status, resp.Message)
	}

	now := a.now()
	postings := make([]model.Posting, 0, len(resp.Result.Projects))
	for _, pr := range resp.Result.Projects {
		ts := pr.TimeUpdated
		if ts == 0 {
			ts = pr.SubmitDate
		}
		if ts == 0 {
			continue
		}
		updated := time.Unix(ts, 0).UTC()
		if !withinWindow(updated, now, window) {
			continue
		}
		postings = append(postings, a.normalize(pr, updated))
	}

	return postings, nil
}

func (a *FreelancerAdapter) normalize(pr freelancerProject, updated time.Time) model.Posting {
	description := pr.Description
	if description == "" {
		description = pr.PreviewDescription
	}

	link := ""
	if pr.SeoURL != "" {
		link = a.siteURL + "/projects/" + strings.TrimLeft(pr.SeoURL, "/")
	} else if pr.ID != "" {
		link = a.siteURL + "/projects/" + string(pr.ID)
	}

	var budget model.Budget
	if pr.Budget != nil {
		budget.Minimum = pr.Budget.Minimum.value
		budget.Maximum = pr.Budget.Maximum.value
	}
	if pr.Currency != nil && pr.Currency.Sign != "" {
		budget.Currency = strPtr(pr.Currency.Sign)
	}

	return model.Posting{
		ID:          string(pr.ID),
		Source:      model.SourceFreelancer,
		Title:       strings.TrimSpace(pr.Title),
		Description: strings.TrimSpace(description),
		URL:         link,
		Budget:      budget,
		PublishedAt: &updated,
	}
}
