package domain

import "strings"

// Display defaults used when no source resolves a field.
const (
	DefaultName   = "Unknown Token"
	DefaultSymbol = "UNKNOWN"
)

// PartialMetadataRecord is one adapter's sparse contribution to the display
// record. Nil means the source had no opinion, which is distinct from an
// empty string.
type PartialMetadataRecord struct {
	Name           *string
	Symbol         *string
	ImageURI       *string
	WebsiteURI     *string
	CreatorHandle  *string
	FeeHandle      *string
	RoyaltyPercent *float64 // (0, 100] when present
}

// IsEmpty reports whether the record carries no fields at all.
func (r *PartialMetadataRecord) IsEmpty() bool {
	return r == nil || (r.Name == nil && r.Symbol == nil && r.ImageURI == nil &&
		r.WebsiteURI == nil && r.CreatorHandle == nil && r.FeeHandle == nil &&
		r.RoyaltyPercent == nil)
}

// TokenDisplayRecord is the reconciled record handed to the notifier.
// Created once per mint, immutable afterward.
type TokenDisplayRecord struct {
	Mint           Mint
	Name           string
	Symbol         string
	ImageURI       *string
	WebsiteURI     *string
	CreatorHandle  *string
	FeeHandle      *string
	RoyaltyPercent *float64
}

// IsSplit reports whether creator and fee recipient are distinct handles.
// Comparison is case-insensitive. Returns false unless both are present.
func (r *TokenDisplayRecord) IsSplit() bool {
	if r.CreatorHandle == nil || r.FeeHandle == nil {
		return false
	}
	return !strings.EqualFold(*r.CreatorHandle, *r.FeeHandle)
}

// Empty reports whether reconciliation resolved nothing displayable: no name,
// no symbol, no image. Callers use this to pick a minimal fallback message.
func (r *TokenDisplayRecord) Empty() bool {
	return r.Name == DefaultName && r.Symbol == DefaultSymbol && r.ImageURI == nil
}

// StrPtr returns a pointer to s. Helper for building sparse records.
func StrPtr(s string) *string { return &s }

// FloatPtr returns a pointer to f.
func FloatPtr(f float64) *float64 { return &f }
