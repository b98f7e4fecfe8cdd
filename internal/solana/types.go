// Package solana provides the JSON-RPC and WebSocket access layer for the
// watched chain.
package solana

import "context"

// RPCClient defines the Solana HTTP JSON-RPC surface the watcher needs.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature.
	// Returns (nil, nil) when the node has no record of the signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves the most recent signatures for an
	// address, newest first.
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)

	// GetAsset retrieves DAS asset metadata keyed by mint.
	// Returns (nil, nil) when the asset is not indexed yet.
	GetAsset(ctx context.Context, mint string) (*Asset, error)
}

// SignatureInfo is one entry from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// Transaction is a fetched transaction, reduced to the fields the detector
// inspects.
type Transaction struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix seconds
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta carries execution status and program logs.
type TransactionMeta struct {
	Err         interface{}
	LogMessages []string
}

// TransactionMessage carries the transaction's account list.
type TransactionMessage struct {
	AccountKeys []string
}

// Asset is the parsed getAsset result. Empty string means the provider did
// not supply the field.
type Asset struct {
	Name        string
	Symbol      string
	Image       string
	ExternalURL string
	JSONURI     string
	Attributes  []AssetAttribute
}

// AssetAttribute is one {trait_type, value} pair from the asset's attribute
// list. Value is kept as a string regardless of the provider's JSON type.
type AssetAttribute struct {
	TraitType string
	Value     string
}

// WSClient defines the Solana WebSocket subscription surface.
type WSClient interface {
	// SubscribeLogs subscribes to logs mentioning the filter addresses.
	// The returned channel is closed when the client shuts down.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close tears down the connection and all subscriptions.
	Close() error
}

// LogsFilter selects which transactions the subscription delivers.
type LogsFilter struct {
	// Mentions filters logs that mention any of these addresses.
	Mentions []string
}

// LogNotification is one logsNotification message.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}
