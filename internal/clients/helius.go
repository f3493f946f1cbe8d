package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const assetsPageLimit = 1000

// HeliusClient queries the DAS indexing API of a Helius RPC endpoint.
type HeliusClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHeliusClient creates a client for the given RPC endpoint (API key included in the URL).
func NewHeliusClient(endpoint string, timeout time.Duration) *HeliusClient {
	return &HeliusClient{endpoint: endpoint, httpClient: newHTTPClient(timeout)}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type assetsByOwnerParams struct {
	OwnerAddress   string         `json:"ownerAddress"`
	Page           int            `json:"page"`
	Limit          int            `json:"limit"`
	DisplayOptions displayOptions `json:"displayOptions"`
}

type displayOptions struct {
	ShowFungible      bool `json:"showFungible"`
	ShowNativeBalance bool `json:"showNativeBalance"`
}

// TokenInfo fungible token details of an indexed asset.
type TokenInfo struct {
	// Balance amount in smallest units.
	Balance json.Number `json:"balance"`
}

// IndexedAsset one asset owned by a wallet.
type IndexedAsset struct {
	ID        string     `json:"id"`
	TokenInfo *TokenInfo `json:"token_info"`
}

// NativeBalance lamports held by the wallet.
type NativeBalance struct {
	Lamports json.Number `json:"lamports"`
}

// AssetsByOwner result of getAssetsByOwner.
type AssetsByOwner struct {
	Items         []IndexedAsset `json:"items"`
	NativeBalance *NativeBalance `json:"nativeBalance"`
}

type assetsByOwnerResponse struct {
	Result *AssetsByOwner `json:"result"`
	Error  *rpcError      `json:"error"`
}

// GetAssetsByOwner returns fungible holdings and the native balance of owner.
func (c *HeliusClient) GetAssetsByOwner(ctx context.Context, owner string) (*AssetsByOwner, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      "basket",
		Method:  "getAssetsByOwner",
		Params: assetsByOwnerParams{
			OwnerAddress: owner,
			Page:         1,
			Limit:        assetsPageLimit,
			DisplayOptions: displayOptions{
				ShowFungible:      true,
				ShowNativeBalance: true,
			},
		},
	}

	var resp assetsByOwnerResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.endpoint, req, &resp); err != nil {
		return nil, errors.Wrap(err, "getAssetsByOwner")
	}
	if resp.Error != nil {
		return nil, errors.Errorf("getAssetsByOwner API error: %s", resp.Error.Message)
	}
	if resp.Result == nil {
		return nil, errors.New("getAssetsByOwner: unexpected response format, result is missing")
	}

	return resp.Result, nil
}
