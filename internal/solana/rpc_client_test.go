package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// rpcServer returns a test server answering every call with the given result.
func rpcServer(t *testing.T, result string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":` + result + `}`))
	}))
}

func TestHTTPClient_GetTransaction(t *testing.T) {
	server := rpcServer(t, `{
		"slot": 12345,
		"blockTime": 1700000000,
		"meta": {"err": null, "logMessages": ["Program metaq invoke [1]"]},
		"transaction": {"message": {"accountKeys": ["Key1", "Key2"]}}
	}`)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "Sig1")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx == nil {
		t.Fatal("expected transaction")
	}
	if tx.Slot != 12345 {
		t.Errorf("Slot = %d, want 12345", tx.Slot)
	}
	if tx.BlockTime != 1700000000 {
		t.Errorf("BlockTime = %d, want 1700000000", tx.BlockTime)
	}
	if tx.Meta == nil || len(tx.Meta.LogMessages) != 1 {
		t.Errorf("unexpected meta: %+v", tx.Meta)
	}
	if tx.Message == nil || len(tx.Message.AccountKeys) != 2 {
		t.Errorf("unexpected message: %+v", tx.Message)
	}
}

func TestHTTPClient_GetTransaction_NotFound(t *testing.T) {
	server := rpcServer(t, `null`)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	tx, err := client.GetTransaction(context.Background(), "Unknown")
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil transaction for unknown signature, got %+v", tx)
	}
}

func TestHTTPClient_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetAsset(context.Background(), "Mint1")
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetTransaction(context.Background(), "Sig1")
	if err == nil {
		t.Fatal("expected RPC error")
	}
}

func TestHTTPClient_GetSignaturesForAddress(t *testing.T) {
	server := rpcServer(t, `[
		{"signature": "SigA", "slot": 100, "blockTime": 1700000100, "err": null},
		{"signature": "SigB", "slot": 99, "blockTime": 1700000000, "err": {"InstructionError": []}}
	]`)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	sigs, err := client.GetSignaturesForAddress(context.Background(), "Addr1", 3)
	if err != nil {
		t.Fatalf("GetSignaturesForAddress: %v", err)
	}
	if len(sigs) != 2 {
		t.Fatalf("len = %d, want 2", len(sigs))
	}
	if sigs[0].Signature != "SigA" {
		t.Errorf("first signature = %q, want SigA", sigs[0].Signature)
	}
	if sigs[1].Err == nil {
		t.Error("second signature should carry an error")
	}
}

func TestHTTPClient_GetAsset(t *testing.T) {
	server := rpcServer(t, `{
		"content": {
			"json_uri": "ipfs://QmMeta",
			"metadata": {
				"name": "Foo Token",
				"symbol": "FOO",
				"attributes": [
					{"trait_type": "twitter", "value": "@alice"},
					{"trait_type": "royalty", "value": 10}
				]
			},
			"links": {"image": "https://cdn/img.png", "external_url": "https://foo.example"},
			"files": [{"uri": "https://cdn/file.png"}]
		}
	}`)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	asset, err := client.GetAsset(context.Background(), "Mint1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset == nil {
		t.Fatal("expected asset")
	}
	if asset.Name != "Foo Token" || asset.Symbol != "FOO" {
		t.Errorf("name/symbol = %q/%q", asset.Name, asset.Symbol)
	}
	// metadata.image absent, links.image fills in
	if asset.Image != "https://cdn/img.png" {
		t.Errorf("Image = %q", asset.Image)
	}
	if asset.ExternalURL != "https://foo.example" {
		t.Errorf("ExternalURL = %q", asset.ExternalURL)
	}
	if asset.JSONURI != "ipfs://QmMeta" {
		t.Errorf("JSONURI = %q", asset.JSONURI)
	}
	if len(asset.Attributes) != 2 {
		t.Fatalf("attributes = %d, want 2", len(asset.Attributes))
	}
	if asset.Attributes[1].Value != "10" {
		t.Errorf("numeric attribute rendered as %q, want \"10\"", asset.Attributes[1].Value)
	}
}

func TestHTTPClient_GetAsset_NotIndexed(t *testing.T) {
	server := rpcServer(t, `null`)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	asset, err := client.GetAsset(context.Background(), "Mint1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset != nil {
		t.Errorf("expected nil asset, got %+v", asset)
	}
}

// Some DAS providers signal an unindexed asset with a JSON-RPC error
// instead of a null result.
func TestHTTPClient_GetAsset_NotFoundError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"Asset Not Found"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	asset, err := client.GetAsset(context.Background(), "Mint1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset != nil {
		t.Errorf("expected nil asset, got %+v", asset)
	}
}

func TestHTTPClient_GetAsset_OtherRPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"invalid params"}}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	_, err := client.GetAsset(context.Background(), "Mint1")
	if err == nil {
		t.Fatal("expected RPC error")
	}
}

// Missing sub-objects must not abort extraction of the present fields.
func TestHTTPClient_GetAsset_PartialContent(t *testing.T) {
	server := rpcServer(t, `{"content": {"metadata": {"name": "Bare"}}}`)
	defer server.Close()

	client := NewHTTPClient(server.URL)
	asset, err := client.GetAsset(context.Background(), "Mint1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if asset.Name != "Bare" {
		t.Errorf("Name = %q, want Bare", asset.Name)
	}
	if asset.Symbol != "" || asset.Image != "" {
		t.Errorf("absent fields should stay empty: %+v", asset)
	}
}
