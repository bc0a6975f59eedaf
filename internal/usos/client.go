// Package usos fetches course-group availability from the USOS
// registration pages. It logs in through the university CAS frontend and
// scrapes the per-subject group tables into normalized models.Group
// values, so the rest of the application never touches raw markup.
package usos

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/codeGROOVE-dev/retry"

	"seatwatch/internal/models"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Registration identifies one monitored registration round.
type Registration struct {
	Code string // rej_kod
	Term string // cdyd_kod
	Name string
}

// Fetcher is the collaborator contract consumed by the checker.
type Fetcher interface {
	// FetchAvailability logs in and returns one Group per meeting window
	// across all monitored registrations.
	FetchAvailability(ctx context.Context) ([]models.Group, error)
}

// Client talks to the USOS web frontend using a cookie-backed session.
type Client struct {
	log           *slog.Logger
	client        *http.Client
	baseURL       string
	casURL        string
	username      string
	password      string
	registrations []Registration
	pace          time.Duration
	attempts      uint
}

// NewClient creates a Client. pace is the fixed delay inserted between
// consecutive page fetches to avoid hammering the site.
func NewClient(log *slog.Logger, baseURL, casURL, username, password string,
	registrations []Registration, pace time.Duration,
) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	return &Client{
		log:           log,
		client:        &http.Client{Jar: jar, Timeout: 30 * time.Second},
		baseURL:       baseURL,
		casURL:        casURL,
		username:      username,
		password:      password,
		registrations: registrations,
		pace:          pace,
		attempts:      4,
	}, nil
}

// FetchAvailability performs login, then walks every monitored
// registration: subject list first, then each subject's group table.
func (c *Client) FetchAvailability(ctx context.Context) ([]models.Group, error) {
	const opn = "usos.FetchAvailability"
	log := c.log.With("op", opn)

	if err := c.login(ctx); err != nil {
		return nil, fmt.Errorf("%s: login failed: %w", opn, err)
	}

	var all []models.Group
	for _, reg := range c.registrations {
		log.InfoContext(ctx, "Fetching registration", "code", reg.Code, "name", reg.Name)

		subjects, err := c.fetchSubjects(ctx, reg)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to fetch subjects for %s: %w", opn, reg.Code, err)
		}
		if len(subjects) == 0 {
			return nil, fmt.Errorf("%s: no subjects found for registration %s", opn, reg.Code)
		}
		log.InfoContext(ctx, "Found subjects", "count", len(subjects), "registration", reg.Code)

		for i, subject := range subjects {
			groups, err := c.fetchGroups(ctx, reg, subject)
			if err != nil {
				return nil, fmt.Errorf("%s: failed to fetch groups for %s: %w", opn, subject.Code, err)
			}
			all = append(all, groups...)

			if i < len(subjects)-1 {
				if err := sleep(ctx, c.pace); err != nil {
					return nil, fmt.Errorf("%s: %w", opn, err)
				}
			}
		}
	}

	log.InfoContext(ctx, "Fetched all group records", "count", len(all))
	return all, nil
}

// login authenticates the session through the CAS frontend: follow the
// login redirect, locate the CAS form, replay its hidden execution token
// with the credentials, then verify we are actually logged in.
func (c *Client) login(ctx context.Context) error {
	loginURL := fmt.Sprintf("%s?_action=logowanie", c.baseURL)
	body, finalURL, err := c.get(ctx, loginURL)
	if err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	if !strings.Contains(finalURL.Host, "cas") {
		casLink := findCASLink(body, finalURL)
		if casLink == "" {
			service := url.QueryEscape(fmt.Sprintf("%s?_action=logowaniecas/index", c.baseURL))
			casLink = fmt.Sprintf("%s?service=%s", c.casURL, service)
		}
		body, finalURL, err = c.get(ctx, casLink)
		if err != nil {
			return fmt.Errorf("failed to open CAS page: %w", err)
		}
	}

	action, execution, err := parseCASForm(body, finalURL)
	if err != nil {
		return err
	}

	form := url.Values{
		"username":    {c.username},
		"password":    {c.password},
		"execution":   {execution},
		"_eventId":    {"submit"},
		"geolocation": {""},
	}

	body, _, err = c.postForm(ctx, action, form)
	if err != nil {
		return fmt.Errorf("failed to submit credentials: %w", err)
	}
	if loggedIn(body) {
		c.log.InfoContext(ctx, "Logged in to USOS")
		return nil
	}

	// Some CAS variants bounce through an extra redirect before the
	// session cookie is honored; probe an authenticated page to be sure.
	probe, _, err := c.get(ctx, fmt.Sprintf("%s?_action=dla_stud/rejestracja/kalendarz", c.baseURL))
	if err == nil && (loggedIn(probe) || strings.Contains(strings.ToLower(string(probe)), "kalendarz rejestracji")) {
		c.log.InfoContext(ctx, "Logged in to USOS")
		return nil
	}

	return fmt.Errorf("CAS rejected the credentials for user %s", c.username)
}

// get fetches a page with bounded retries on transient failures.
// Returns the body and the final URL after redirects.
func (c *Client) get(ctx context.Context, pageURL string) ([]byte, *url.URL, error) {
	return c.request(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request %s: %w", pageURL, err)
		}
		return req, nil
	})
}

func (c *Client) postForm(ctx context.Context, pageURL string, form url.Values) ([]byte, *url.URL, error) {
	return c.request(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, pageURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request %s: %w", pageURL, err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *Client) request(ctx context.Context, build func() (*http.Request, error)) ([]byte, *url.URL, error) {
	var body []byte
	var finalURL *url.URL

	err := retry.Do(
		func() error {
			req, err := build()
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)

			res, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				return fmt.Errorf("status code error: [%d] %s", res.StatusCode, res.Status)
			}

			body, err = io.ReadAll(res.Body)
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			finalURL = res.Request.URL
			return nil
		},
		retry.Attempts(c.attempts),
		retry.Delay(2*time.Second),
		retry.MaxDelay(30*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.log.WarnContext(ctx, "Retrying page fetch", "attempt", n, "error", err)
		}),
	)
	if err != nil {
		return nil, nil, err
	}
	return body, finalURL, nil
}

// findCASLink locates a CAS login link on an intermediate page, either as
// an anchor or a meta-refresh target.
func findCASLink(body []byte, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	link := ""
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if strings.Contains(strings.ToLower(href), "cas") {
			link = href
			return false
		}
		return true
	})

	if meta, ok := doc.Find(`meta[http-equiv="refresh"]`).Attr("content"); ok {
		lower := strings.ToLower(meta)
		if idx := strings.Index(lower, "url="); idx >= 0 {
			link = strings.Trim(meta[idx+len("url="):], "'\" ")
		}
	}

	return resolveRef(base, link)
}

// parseCASForm extracts the form action and hidden execution token from
// the CAS login page.
func parseCASForm(body []byte, pageURL *url.URL) (action, execution string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", "", fmt.Errorf("CAS page cannot be parsed as HTML: %w", err)
	}

	form := doc.Find("form").First()
	if form.Length() == 0 {
		return "", "", fmt.Errorf("could not find login form on %s", pageURL)
	}

	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		if name, _ := s.Attr("name"); name == "execution" {
			execution, _ = s.Attr("value")
		}
	})

	rawAction, _ := form.Attr("action")
	action = resolveRef(pageURL, rawAction)
	if action == "" {
		action = pageURL.String()
	}
	if pageURL.RawQuery != "" && !strings.Contains(action, "?") {
		action = fmt.Sprintf("%s?%s", action, pageURL.RawQuery)
	}

	return action, execution, nil
}

func resolveRef(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return parsed.String()
	}
	return base.ResolveReference(parsed).String()
}

func loggedIn(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "wyloguj") || strings.Contains(lower, "zalogowany")
}

// sleep waits the pacing delay but honors cancellation.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
