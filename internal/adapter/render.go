package adapter

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"
)

// PageRenderer returns the HTML of a page.
type PageRenderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// HTTPRenderer fetches pages with a plain GET.
type HTTPRenderer struct {
	client *http.Client
}

// NewHTTPRenderer returns a renderer backed by client.
func NewHTTPRenderer(client *http.Client) *HTTPRenderer {
	return &HTTPRenderer{client: client}
}

func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	body, err := get(ctx, r.client, url, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ChromeRenderer runs headless Chrome as a child process and returns the
// DOM after scripts ran. The process group is bound to ctx: cancelling ctx
// kills Chrome and every helper process it spawned.
type ChromeRenderer struct {
	path      string
	waitDelay time.Duration
}

// NewChromeRenderer returns a renderer that runs the Chrome binary at path.
func NewChromeRenderer(path string) *ChromeRenderer {
	if path == "" {
		path = "chromium"
	}
	return &ChromeRenderer{path: path, waitDelay: 2 * time.Second}
}

func (r *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	cmd := exec.CommandContext(ctx, r.path,
		"--headless",
		"--disable-gpu",
		"--no-sandbox",
		"--user-agent="+userAgent,
		"--dump-dom",
		url,
	)
	killProcessGroup(cmd)
	cmd.WaitDelay = r.waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("chrome render %s: %w", url, ctx.Err())
		}
		return "", fmt.Errorf("chrome render %s: %w: %s", url, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
