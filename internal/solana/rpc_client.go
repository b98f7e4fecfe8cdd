package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// DefaultTimeout bounds every RPC call issued by HTTPClient.
const DefaultTimeout = 10 * time.Second

// ErrRateLimited is returned when the provider answers 429. Callers apply a
// longer backoff instead of an immediate retry.
var ErrRateLimited = errors.New("rpc: rate limited")

// HTTPClient implements RPCClient over HTTP JSON-RPC 2.0.
// Each call is a single attempt with a bounded timeout; retry policy belongs
// to the callers, which know which failures are worth retrying.
type HTTPClient struct {
	endpoint  string
	client    *http.Client
	requestID atomic.Uint64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-call HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a Solana RPC client for the given endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC call and unmarshals the result into result.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		if rpcResp.Error.Code == 429 {
			return ErrRateLimited
		}
		return rpcResp.Error
	}

	if result != nil && rpcResp.Result != nil {
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// GetTransaction retrieves a transaction by signature.
func (c *HTTPClient) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	params := []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	var result *getTransactionResult
	if err := c.call(ctx, "getTransaction", params, &result); err != nil {
		return nil, err
	}
	if result == nil {
		// Signature unknown to this node.
		return nil, nil
	}

	tx := &Transaction{
		Signature: signature,
		Slot:      result.Slot,
	}
	if result.BlockTime != nil {
		tx.BlockTime = *result.BlockTime
	}
	if result.Meta != nil {
		tx.Meta = &TransactionMeta{
			Err:         result.Meta.Err,
			LogMessages: result.Meta.LogMessages,
		}
	}
	if result.Transaction != nil && result.Transaction.Message != nil {
		tx.Message = &TransactionMessage{
			AccountKeys: result.Transaction.Message.AccountKeys,
		}
	}
	return tx, nil
}

type getTransactionResult struct {
	Slot        int64               `json:"slot"`
	BlockTime   *int64              `json:"blockTime"`
	Meta        *getTransactionMeta `json:"meta"`
	Transaction *getTransactionTx   `json:"transaction"`
}

type getTransactionMeta struct {
	Err         interface{} `json:"err"`
	LogMessages []string    `json:"logMessages"`
}

type getTransactionTx struct {
	Message *getTransactionMessage `json:"message"`
}

type getTransactionMessage struct {
	AccountKeys []string `json:"accountKeys"`
}

// GetSignaturesForAddress retrieves the most recent signatures for an address.
func (c *HTTPClient) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	params := []interface{}{address}
	if limit > 0 {
		params = append(params, map[string]interface{}{"limit": limit})
	}

	var result []getSignaturesResult
	if err := c.call(ctx, "getSignaturesForAddress", params, &result); err != nil {
		return nil, err
	}

	sigs := make([]SignatureInfo, len(result))
	for i, r := range result {
		sigs[i] = SignatureInfo{
			Signature: r.Signature,
			Slot:      r.Slot,
			BlockTime: r.BlockTime,
			Err:       r.Err,
		}
	}
	return sigs, nil
}

type getSignaturesResult struct {
	Signature string      `json:"signature"`
	Slot      int64       `json:"slot"`
	BlockTime *int64      `json:"blockTime"`
	Err       interface{} `json:"err"`
}

// GetAsset retrieves DAS asset metadata keyed by mint. Field extraction is
// tolerant: a missing sub-object leaves the corresponding Asset fields empty
// rather than failing the whole call.
func (c *HTTPClient) GetAsset(ctx context.Context, mint string) (*Asset, error) {
	var result *getAssetResult
	if err := c.call(ctx, "getAsset", []interface{}{mint}, &result); err != nil {
		// DAS providers report an unindexed asset as a JSON-RPC error
		// rather than a null result.
		var rpcErr *rpcError
		if errors.As(err, &rpcErr) && strings.Contains(strings.ToLower(rpcErr.Message), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if result == nil || result.Content == nil {
		return nil, nil
	}

	asset := &Asset{JSONURI: result.Content.JSONURI}

	if md := result.Content.Metadata; md != nil {
		asset.Name = md.Name
		asset.Symbol = md.Symbol
		asset.Image = md.Image
		asset.ExternalURL = md.ExternalURL
		for _, attr := range md.Attributes {
			asset.Attributes = append(asset.Attributes, AssetAttribute{
				TraitType: attr.TraitType,
				Value:     attrValueString(attr.Value),
			})
		}
	}
	if links := result.Content.Links; links != nil {
		if asset.Image == "" {
			asset.Image = links.Image
		}
		if asset.ExternalURL == "" {
			asset.ExternalURL = links.ExternalURL
		}
	}
	if asset.Image == "" {
		for _, f := range result.Content.Files {
			if f.URI != "" {
				asset.Image = f.URI
				break
			}
		}
	}
	return asset, nil
}

// attrValueString renders an attribute value that may arrive as a JSON
// string, number, or bool.
func attrValueString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

type getAssetResult struct {
	Content *getAssetContent `json:"content"`
}

type getAssetContent struct {
	JSONURI  string            `json:"json_uri"`
	Metadata *getAssetMetadata `json:"metadata"`
	Links    *getAssetLinks    `json:"links"`
	Files    []getAssetFile    `json:"files"`
}

type getAssetMetadata struct {
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Image       string              `json:"image"`
	ExternalURL string              `json:"external_url"`
	Attributes  []getAssetAttribute `json:"attributes"`
}

type getAssetAttribute struct {
	TraitType string      `json:"trait_type"`
	Value     interface{} `json:"value"`
}

type getAssetLinks struct {
	Image       string `json:"image"`
	ExternalURL string `json:"external_url"`
}

type getAssetFile struct {
	URI string `json:"uri"`
}
