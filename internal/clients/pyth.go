package clients

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const pythLatestPricePath = "/v2/updates/price/latest"

// PythClient reads parsed price updates from a Pyth Hermes endpoint.
type PythClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPythClient creates a Hermes client, e.g. for https://hermes.pyth.network.
func NewPythClient(baseURL string, timeout time.Duration) *PythClient {
	return &PythClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: newHTTPClient(timeout)}
}

// PythPrice fixed-point price: Price × 10^Expo.
type PythPrice struct {
	Price string `json:"price"`
	Conf  string `json:"conf"`
	Expo  int32  `json:"expo"`
}

// PythPriceUpdate parsed price of one feed.
type PythPriceUpdate struct {
	ID    string     `json:"id"`
	Price *PythPrice `json:"price"`
}

type latestPriceResponse struct {
	Parsed []PythPriceUpdate `json:"parsed"`
}

// LatestPrices fetches the latest parsed prices for all feed ids in one request.
func (c *PythClient) LatestPrices(ctx context.Context, ids []string) ([]PythPriceUpdate, error) {
	params := url.Values{}
	for _, id := range ids {
		params.Add("ids[]", id)
	}
	params.Set("parsed", "true")

	var resp latestPriceResponse
	endpoint := c.baseURL + pythLatestPricePath + "?" + params.Encode()
	if err := doJSON(ctx, c.httpClient, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, errors.Wrap(err, "latest price update")
	}

	return resp.Parsed, nil
}
