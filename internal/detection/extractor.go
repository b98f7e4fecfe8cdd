// Package detection identifies token launches from chain activity: it
// inspects transactions touching the launchpad's update authority, extracts
// candidate mints, and deduplicates across concurrent detection paths.
package detection

import (
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"bagwatch/internal/domain"
)

// Well-known program addresses.
const (
	// MetadataProgramID is the Metaplex token metadata program.
	MetadataProgramID = "metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s"

	// DefaultUpdateAuthority is the launchpad's metadata update authority.
	// Every launch funnels through it, which is what makes log-level
	// detection possible at all.
	DefaultUpdateAuthority = "BAGSB9TpGrZxQbEsrEznv5jXXdwyP6AXerN8aVRiAmcv"
)

// minMintLength filters truncated base58 keys before decoding.
const minMintLength = 44

// Extractor decides whether a transaction is a launch and which account in
// it is the new mint.
type Extractor struct {
	authority string
}

// NewExtractor creates an extractor keyed to the given update authority.
func NewExtractor(authority string) *Extractor {
	if authority == "" {
		authority = DefaultUpdateAuthority
	}
	return &Extractor{authority: authority}
}

// Extract returns the mint created by the event, if the event is a launch.
// Failed transactions are discarded outright: a reverted create leaves no
// token behind.
func (e *Extractor) Extract(ev *domain.RawChainEvent) (domain.Mint, bool) {
	if ev == nil || ev.Failed() {
		return "", false
	}
	if !e.isLaunch(ev.Logs, ev.AccountKeys) {
		return "", false
	}
	return e.candidateMint(ev.AccountKeys)
}

// isLaunch requires both a metadata-creation marker in the logs and the
// authority among the account keys. The marker alone is not enough; other
// projects create metadata through the same program constantly.
func (e *Extractor) isLaunch(logs []string, accountKeys []string) bool {
	marker := false
	for _, line := range logs {
		if strings.Contains(line, "CreateMetadataAccount") ||
			strings.Contains(strings.ToLower(line), "metaq") {
			marker = true
			break
		}
	}
	if !marker {
		return false
	}
	for _, key := range accountKeys {
		if key == e.authority {
			return true
		}
	}
	return false
}

// candidateMint picks the new mint from the account list. The create
// instruction places the mint among the leading writable accounts, so the
// first key that is neither the program nor the authority, decodes to 32
// bytes, and sits on the ed25519 curve is taken. Keys that decode but sit
// off the curve (PDAs) are kept as a fallback in case the provider reordered
// the list.
func (e *Extractor) candidateMint(accountKeys []string) (domain.Mint, bool) {
	fallback := ""
	for _, key := range accountKeys {
		if key == MetadataProgramID || key == e.authority || len(key) < minMintLength {
			continue
		}
		raw, err := base58.Decode(key)
		if err != nil || len(raw) != 32 {
			continue
		}
		if isOnCurve(raw) {
			return domain.Mint(key), true
		}
		if fallback == "" {
			fallback = key
		}
	}
	if fallback != "" {
		return domain.Mint(fallback), true
	}
	return "", false
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
