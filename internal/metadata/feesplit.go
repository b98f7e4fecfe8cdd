package metadata

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"bagwatch/internal/domain"
	"bagwatch/internal/normalize"
)

// Proximity extraction defaults.
const (
	// DefaultProximityWindow is the half-width, in bytes, of the markup
	// window inspected around each handle occurrence.
	DefaultProximityWindow = 300

	// DefaultMaxRoyaltyPercent is the ceiling above which a percent token is
	// rejected as noise. Site convention, not a protocol rule; configurable.
	DefaultMaxRoyaltyPercent = 50.0
)

// Page is a rendered token page: raw markup plus the visible text.
type Page struct {
	Markup string
	Text   string
}

// PageFetcher loads the rendered token page for a mint. The rendering engine
// behind it is a collaborator; this package only consumes its output.
type PageFetcher interface {
	FetchPage(ctx context.Context, mint domain.Mint) (*Page, error)
}

// profileLinkRe matches social-profile hrefs and captures the handle.
var profileLinkRe = regexp.MustCompile(`(?:twitter\.com|x\.com)/([A-Za-z0-9_\.]+)`)

// percentRe matches numeric percent tokens in visible text.
var percentRe = regexp.MustCompile(`(\d+(?:\.\d+)?)%`)

// serviceHandles are platform paths that look like handles but are not.
var serviceHandles = map[string]bool{
	"intent": true,
	"share":  true,
	"home":   true,
}

// FeeSplitSource extracts creator and fee-recipient handles plus the royalty
// percentage from the launchpad's token page using a proximity heuristic:
// a handle is classified by the anchor phrases found within a fixed window
// around its occurrences in the markup. No positional guessing happens here;
// a role without a phrase-anchored match stays absent.
type FeeSplitSource struct {
	pages             PageFetcher
	window            int
	maxRoyaltyPercent float64
}

// FeeSplitOption configures FeeSplitSource.
type FeeSplitOption func(*FeeSplitSource)

// WithProximityWindow overrides the half-width of the inspection window.
func WithProximityWindow(n int) FeeSplitOption {
	return func(s *FeeSplitSource) { s.window = n }
}

// WithMaxRoyaltyPercent overrides the royalty noise ceiling.
func WithMaxRoyaltyPercent(limit float64) FeeSplitOption {
	return func(s *FeeSplitSource) { s.maxRoyaltyPercent = limit }
}

// NewFeeSplitSource creates a fee-split page adapter.
func NewFeeSplitSource(pages PageFetcher, opts ...FeeSplitOption) *FeeSplitSource {
	s := &FeeSplitSource{
		pages:             pages,
		window:            DefaultProximityWindow,
		maxRoyaltyPercent: DefaultMaxRoyaltyPercent,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *FeeSplitSource) Name() string { return "feesplit" }

// Fetch implements Source.
func (s *FeeSplitSource) Fetch(ctx context.Context, mint domain.Mint) (*domain.PartialMetadataRecord, error) {
	page, err := s.pages.FetchPage(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("fetch page for %s: %w", mint, err)
	}
	if page == nil || page.Markup == "" {
		return nil, fmt.Errorf("%w: empty page for %s", ErrNotIndexed, mint)
	}
	return s.Extract(page), nil
}

// Extract runs the proximity heuristic over an already-fetched page.
// Split out from Fetch so captured markup fixtures can exercise it directly.
func (s *FeeSplitSource) Extract(page *Page) *domain.PartialMetadataRecord {
	rec := &domain.PartialMetadataRecord{}

	creator, fee := s.classifyHandles(page.Markup)
	if creator != "" {
		rec.CreatorHandle = domain.StrPtr(creator)
	}
	if fee != "" {
		rec.FeeHandle = domain.StrPtr(fee)
	}

	if pct, ok := s.findRoyalty(page.Text); ok {
		rec.RoyaltyPercent = domain.FloatPtr(pct)
	}
	return rec
}

// classifyHandles assigns handles to the creator and fee-recipient roles.
// For each profile link found anywhere in the markup, every occurrence of
// the handle is inspected inside a ±window slice. First phrase-anchored
// match wins per role. The same handle may legitimately take both roles;
// two different handles can never share one.
func (s *FeeSplitSource) classifyHandles(markup string) (creator, fee string) {
	lower := strings.ToLower(markup)

	for _, handle := range s.collectHandles(markup) {
		if creator != "" && fee != "" {
			break
		}

		needle := strings.ToLower(handle)
		for _, pos := range allOccurrences(lower, needle) {
			if creator != "" && fee != "" {
				break
			}
			window := sliceWindow(lower, pos, s.window)

			if creator == "" && (strings.Contains(window, "created by") || strings.Contains(window, "earns 0%")) {
				creator = handle
			}
			if fee == "" && (strings.Contains(window, "royalties to") || strings.Contains(window, "earns 100%")) {
				fee = handle
			}
		}
	}
	return creator, fee
}

// collectHandles returns the distinct profile handles linked from the
// markup, in document order, with platform service paths filtered out.
func (s *FeeSplitSource) collectHandles(markup string) []string {
	var handles []string
	seen := make(map[string]bool)

	for _, m := range profileLinkRe.FindAllStringSubmatch(markup, -1) {
		handle := normalize.CleanHandle(m[1])
		if handle == "" || serviceHandles[strings.ToLower(handle)] {
			continue
		}
		key := strings.ToLower(handle)
		if seen[key] {
			continue
		}
		seen[key] = true
		handles = append(handles, handle)
	}
	return handles
}

// findRoyalty scans visible text for percent tokens and accepts the first
// value strictly within (0, ceiling]. Values above the ceiling are logged
// as uncertain rather than silently swallowed.
func (s *FeeSplitSource) findRoyalty(text string) (float64, bool) {
	for _, m := range percentRe.FindAllStringSubmatch(text, -1) {
		pct, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if pct > 0 && pct <= s.maxRoyaltyPercent {
			return pct, true
		}
		if pct > s.maxRoyaltyPercent && pct <= 100 {
			logrus.WithField("percent", pct).Debug("percent token above royalty ceiling, skipping")
		}
	}
	return 0, false
}

// allOccurrences returns every byte offset of needle in haystack.
func allOccurrences(haystack, needle string) []int {
	var offsets []int
	for start := 0; ; {
		i := strings.Index(haystack[start:], needle)
		if i < 0 {
			return offsets
		}
		offsets = append(offsets, start+i)
		start += i + 1
	}
}

// sliceWindow returns the ±half slice of s around pos, clamped to bounds.
func sliceWindow(s string, pos, half int) string {
	lo := pos - half
	if lo < 0 {
		lo = 0
	}
	hi := pos + half
	if hi > len(s) {
		hi = len(s)
	}
	return s[lo:hi]
}
