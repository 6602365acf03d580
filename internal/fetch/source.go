package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"fadapulse/pkg/contracts/domain"
)

// LinkSource yields the press-release documents currently published by the
// association. Implementations must be safe to call concurrently.
type LinkSource interface {
	Discover(ctx context.Context) ([]domain.DocumentDescriptor, error)
}

// HTMLSource scrapes the paginated press-release listing. Only anchors whose
// href ends in .pdf and whose filename names a month are kept; everything
// else on the page is circulars and event notices.
type HTMLSource struct {
	client      *http.Client
	basePageURL string
	baseSiteURL string
	maxPages    int
	userAgent   string
	logger      *slog.Logger
}

// HTMLSourceConfig configures the listing scraper.
type HTMLSourceConfig struct {
	BasePageURL string
	BaseSiteURL string
	MaxPages    int
	UserAgent   string
	Client      *http.Client
}

// NewHTMLSource creates a scraper for the press-release listing pages.
func NewHTMLSource(cfg HTMLSourceConfig, logger *slog.Logger) *HTMLSource {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 10
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &HTMLSource{
		client:      cfg.Client,
		basePageURL: cfg.BasePageURL,
		baseSiteURL: cfg.BaseSiteURL,
		maxPages:    cfg.MaxPages,
		userAgent:   cfg.UserAgent,
		logger:      logger,
	}
}

// Discover walks the listing pages in order and returns every retail-data
// document found, deduplicated by href. A page that fails to load is logged
// and skipped; Discover only fails when the context is cancelled or no page
// could be fetched at all.
func (s *HTMLSource) Discover(ctx context.Context) ([]domain.DocumentDescriptor, error) {
	base, err := url.Parse(s.baseSiteURL)
	if err != nil {
		return nil, fmt.Errorf("parse base site url: %w", err)
	}

	var descriptors []domain.DocumentDescriptor
	seen := make(map[string]struct{})
	pagesFetched := 0

	for page := 1; page <= s.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pageURL := s.basePageURL + strconv.Itoa(page)
		hrefs, err := s.fetchPage(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.WarnContext(ctx, "listing page fetch failed",
				"page", page,
				"url", pageURL,
				"error", err,
			)
			continue
		}
		pagesFetched++

		for _, href := range hrefs {
			if _, dup := seen[href]; dup {
				continue
			}
			seen[href] = struct{}{}

			filename := href
			if idx := strings.LastIndex(href, "/"); idx >= 0 {
				filename = href[idx+1:]
			}
			if !mentionsMonth(filename) {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				s.logger.DebugContext(ctx, "skipping malformed href", "href", href)
				continue
			}

			desc := domain.DocumentDescriptor{
				Identity: filename,
				URL:      base.ResolveReference(ref).String(),
				Filename: filename,
			}
			if period, ok := ParsePeriod(filename); ok {
				desc.Period = period
			}
			descriptors = append(descriptors, desc)
		}
	}

	if pagesFetched == 0 {
		return nil, fmt.Errorf("no listing pages reachable (tried %d)", s.maxPages)
	}

	s.logger.InfoContext(ctx, "link discovery complete",
		"pages", pagesFetched,
		"documents", len(descriptors),
	)
	return descriptors, nil
}

func (s *HTMLSource) fetchPage(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if strings.HasSuffix(strings.ToLower(attr.Val), ".pdf") {
					hrefs = append(hrefs, attr.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return hrefs, nil
}
