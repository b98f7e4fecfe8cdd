package metadata

import (
	"bagwatch/internal/domain"
)

// Parts carries the per-adapter partials for one mint. A nil field means
// that adapter produced nothing, whether by failure or by absence.
type Parts struct {
	Asset    *domain.PartialMetadataRecord
	URIDoc   *domain.PartialMetadataRecord
	FeeSplit *domain.PartialMetadataRecord
}

// Reconcile merges adapter partials into a display record. Each field has a
// fixed authority order rather than a generic first-wins merge:
//
//	name, symbol   asset, overridden by a strictly longer uridoc value
//	image, website asset, then uridoc
//	handles, royalty  feesplit only
//
// A lone fee recipient is surfaced as the creator so downstream callers
// always see the single-party branch instead of a fee-only one.
func Reconcile(parts Parts) *domain.TokenDisplayRecord {
	asset := orEmpty(parts.Asset)
	uridoc := orEmpty(parts.URIDoc)
	feesplit := orEmpty(parts.FeeSplit)

	rec := &domain.TokenDisplayRecord{
		Name:   domain.DefaultName,
		Symbol: domain.DefaultSymbol,
	}

	rec.Name = pickNamelike(asset.Name, uridoc.Name, domain.DefaultName)
	rec.Symbol = pickNamelike(asset.Symbol, uridoc.Symbol, domain.DefaultSymbol)

	rec.ImageURI = pickFirst(asset.ImageURI, uridoc.ImageURI)
	rec.WebsiteURI = pickFirst(asset.WebsiteURI, uridoc.WebsiteURI)

	rec.CreatorHandle = feesplit.CreatorHandle
	rec.FeeHandle = feesplit.FeeHandle
	rec.RoyaltyPercent = feesplit.RoyaltyPercent

	if rec.CreatorHandle == nil && rec.FeeHandle != nil {
		rec.CreatorHandle = rec.FeeHandle
	}
	return rec
}

// pickNamelike prefers the primary value but lets a strictly longer
// secondary override it. Off-chain documents routinely carry the full name
// where the on-chain account holds a truncated one.
func pickNamelike(primary, secondary *string, fallback string) string {
	switch {
	case primary == nil && secondary == nil:
		return fallback
	case primary == nil:
		return *secondary
	case secondary != nil && len(*secondary) > len(*primary):
		return *secondary
	default:
		return *primary
	}
}

func pickFirst(ptrs ...*string) *string {
	for _, p := range ptrs {
		if p != nil && *p != "" {
			return p
		}
	}
	return nil
}

func orEmpty(p *domain.PartialMetadataRecord) *domain.PartialMetadataRecord {
	if p == nil {
		return &domain.PartialMetadataRecord{}
	}
	return p
}
