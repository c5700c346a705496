package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/indexlab/backend/internal/domain"
	"github.com/indexlab/backend/pkg/httputil"
	"github.com/indexlab/backend/pkg/logger"
)

// Profile holds classification metadata scraped from the reference site.
type Profile struct {
	Symbol   string `json:"symbol"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
}

// ReferenceScraper fills sector/industry metadata from the reference
// data site's profile pages.
type ReferenceScraper struct {
	client     *httputil.Client
	securities domain.SecurityRepository
	baseURL    string
	logger     *logger.Logger
}

// NewReferenceScraper creates a new reference data scraper
func NewReferenceScraper(client *httputil.Client, securities domain.SecurityRepository, baseURL string, log *logger.Logger) *ReferenceScraper {
	return &ReferenceScraper{
		client:     client,
		securities: securities,
		baseURL:    baseURL,
		logger:     log,
	}
}

// FetchProfile scrapes the profile page for one symbol
func (s *ReferenceScraper) FetchProfile(ctx context.Context, symbol string) (*Profile, error) {
	resp, err := s.client.Get(ctx, fmt.Sprintf("%s/profile/%s", s.baseURL, symbol))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("profile page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse profile page: %w", err)
	}

	profile := &Profile{Symbol: symbol}
	doc.Find("dl.company-profile dt").Each(func(_ int, dt *goquery.Selection) {
		value := strings.TrimSpace(dt.Next().Text())
		switch strings.ToLower(strings.TrimSpace(dt.Text())) {
		case "sector":
			profile.Sector = value
		case "industry":
			profile.Industry = value
		}
	})

	if profile.Sector == "" && profile.Industry == "" {
		return nil, fmt.Errorf("profile page had no classification data")
	}
	return profile, nil
}

// EnrichSecurities scrapes profiles for active securities missing a
// sector and updates them. Scrape failures are logged and skipped.
func (s *ReferenceScraper) EnrichSecurities(ctx context.Context) (int, error) {
	active := true
	securities, err := s.securities.List(ctx, domain.SecurityFilter{IsActive: &active})
	if err != nil {
		return 0, fmt.Errorf("load securities: %w", err)
	}

	enriched := 0
	for _, security := range securities {
		if security.Sector != "" {
			continue
		}

		profile, err := s.FetchProfile(ctx, security.Symbol)
		if err != nil {
			s.logger.WithError(err).WithField("symbol", security.Symbol).Warn("Profile scrape failed")
			continue
		}

		update := domain.SecurityUpdate{}
		if profile.Sector != "" {
			update.Sector = &profile.Sector
		}
		if profile.Industry != "" {
			update.Industry = &profile.Industry
		}
		if _, err := s.securities.Update(ctx, security.ID, update); err != nil {
			s.logger.WithError(err).WithField("symbol", security.Symbol).Warn("Profile update failed")
			continue
		}
		enriched++
	}

	s.logger.WithField("enriched", enriched).Info("Reference data enrichment completed")
	return enriched, nil
}
