package metadata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bagwatch/internal/domain"
	"bagwatch/internal/solana"
)

// AssetSource reads token metadata from the chain's asset registry via the
// getAsset RPC method. It claims name, symbol, image, and website; social
// handles found in the attribute list are NOT claimed here — the fee-split
// page is the authority for those.
type AssetSource struct {
	rpc solana.RPCClient
}

// NewAssetSource creates an asset registry adapter.
func NewAssetSource(rpc solana.RPCClient) *AssetSource {
	return &AssetSource{rpc: rpc}
}

// Name implements Source.
func (s *AssetSource) Name() string { return "asset" }

// Fetch implements Source. A missing asset is ErrNotIndexed so callers can
// distinguish "not yet indexed" from "indexed but empty". Each field is
// extracted independently; one absent field never blocks the others.
func (s *AssetSource) Fetch(ctx context.Context, mint domain.Mint) (*domain.PartialMetadataRecord, error) {
	asset, err := s.rpc.GetAsset(ctx, string(mint))
	if err != nil {
		if errors.Is(err, solana.ErrRateLimited) {
			return nil, fmt.Errorf("%w: getAsset %s", ErrRateLimited, mint)
		}
		return nil, fmt.Errorf("getAsset %s: %w", mint, err)
	}
	if asset == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotIndexed, mint)
	}

	rec := &domain.PartialMetadataRecord{}

	// Providers sometimes echo the mint back as the name; that is noise.
	if name := strings.TrimSpace(asset.Name); name != "" && name != string(mint) {
		rec.Name = domain.StrPtr(name)
	}
	if symbol := strings.TrimSpace(asset.Symbol); symbol != "" {
		rec.Symbol = domain.StrPtr(symbol)
	}
	if image := strings.TrimSpace(asset.Image); image != "" {
		rec.ImageURI = domain.StrPtr(image)
	}
	if site := strings.TrimSpace(asset.ExternalURL); site != "" {
		rec.WebsiteURI = domain.StrPtr(site)
	}

	// The attribute list occasionally carries a website trait when
	// external_url is absent.
	if rec.WebsiteURI == nil {
		for _, attr := range asset.Attributes {
			if strings.EqualFold(attr.TraitType, "website") && strings.TrimSpace(attr.Value) != "" {
				rec.WebsiteURI = domain.StrPtr(strings.TrimSpace(attr.Value))
				break
			}
		}
	}

	return rec, nil
}

// MetadataURI returns the asset's off-chain metadata document URI, or ""
// when the asset (or its URI) is unavailable. Used by the URI document
// adapter, which fetches the asset shape itself to stay independent.
func MetadataURI(asset *solana.Asset) string {
	if asset == nil {
		return ""
	}
	return strings.TrimSpace(asset.JSONURI)
}
