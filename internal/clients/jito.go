package clients

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// JitoClient submits transaction bundles to a Jito block engine.
type JitoClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewJitoClient creates a client for the bundles endpoint,
// e.g. https://mainnet.block-engine.jito.wtf/api/v1/bundles.
func NewJitoClient(endpoint string, timeout time.Duration) *JitoClient {
	return &JitoClient{endpoint: strings.TrimRight(endpoint, "/"), httpClient: newHTTPClient(timeout)}
}

type sendBundleResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

// SendBundle submits base58-encoded signed transactions as one all-or-nothing
// bundle and returns the bundle id assigned by the block engine.
func (c *JitoClient) SendBundle(ctx context.Context, encoded []string) (string, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendBundle",
		Params:  [][]string{encoded},
	}

	var resp sendBundleResponse
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.endpoint, req, &resp); err != nil {
		return "", errors.Wrap(err, "sendBundle")
	}
	if resp.Error != nil {
		return "", errors.Errorf("sendBundle API error %d: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == "" {
		return "", errors.New("sendBundle: empty bundle id")
	}

	return resp.Result, nil
}
