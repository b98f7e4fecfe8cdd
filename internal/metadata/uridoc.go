package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"bagwatch/internal/domain"
	"bagwatch/internal/solana"
)

// DefaultIPFSGateway resolves ipfs:// URIs.
const DefaultIPFSGateway = "https://ipfs.io/ipfs/"

// maxDocumentBytes caps how much of a metadata document we read.
const maxDocumentBytes = 1 << 20

// URIDocSource fetches the JSON document behind the asset's metadata URI and
// contributes name/symbol/image as secondary enrichment. It resolves the URI
// via its own getAsset call so it can run concurrently with the other
// adapters.
type URIDocSource struct {
	rpc     solana.RPCClient
	client  *http.Client
	gateway string
}

// NewURIDocSource creates a metadata-URI document adapter.
func NewURIDocSource(rpc solana.RPCClient, client *http.Client) *URIDocSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &URIDocSource{rpc: rpc, client: client, gateway: DefaultIPFSGateway}
}

// Name implements Source.
func (s *URIDocSource) Name() string { return "uridoc" }

// uriDoc is the expected document shape. Anything else present is ignored.
type uriDoc struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Image       string `json:"image"`
	ExternalURL string `json:"external_url"`
	Website     string `json:"website"`
}

// Fetch implements Source.
func (s *URIDocSource) Fetch(ctx context.Context, mint domain.Mint) (*domain.PartialMetadataRecord, error) {
	asset, err := s.rpc.GetAsset(ctx, string(mint))
	if err != nil {
		if errors.Is(err, solana.ErrRateLimited) {
			return nil, fmt.Errorf("%w: getAsset %s", ErrRateLimited, mint)
		}
		return nil, fmt.Errorf("getAsset %s: %w", mint, err)
	}
	uri := MetadataURI(asset)
	if uri == "" {
		return nil, fmt.Errorf("%w: no metadata uri for %s", ErrNotIndexed, mint)
	}

	doc, err := s.fetchDoc(ctx, uri)
	if err != nil {
		return nil, err
	}

	rec := &domain.PartialMetadataRecord{}
	if name := strings.TrimSpace(doc.Name); name != "" {
		rec.Name = domain.StrPtr(name)
	}
	if symbol := strings.TrimSpace(doc.Symbol); symbol != "" {
		rec.Symbol = domain.StrPtr(symbol)
	}
	if image := strings.TrimSpace(doc.Image); image != "" {
		rec.ImageURI = domain.StrPtr(s.ResolveURI(image))
	}
	site := strings.TrimSpace(doc.ExternalURL)
	if site == "" {
		site = strings.TrimSpace(doc.Website)
	}
	if site != "" {
		rec.WebsiteURI = domain.StrPtr(site)
	}
	return rec, nil
}

// fetchDoc retrieves and decodes the metadata document.
func (s *URIDocSource) fetchDoc(ctx context.Context, uri string) (*uriDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ResolveURI(uri), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: bad uri %q", ErrMalformed, uri)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch metadata document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, uri)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: document %s", ErrNotIndexed, uri)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch metadata document: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read metadata document: %w", err)
	}

	var doc uriDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, uri)
	}
	return &doc, nil
}

// ResolveURI rewrites decentralized-storage schemes to a fetchable HTTP URL.
func (s *URIDocSource) ResolveURI(uri string) string {
	if rest, ok := strings.CutPrefix(uri, "ipfs://"); ok {
		return s.gateway + rest
	}
	return uri
}
