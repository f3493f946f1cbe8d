package clients

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeliusClient_GetAssetsByOwner(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":"basket","result":{
			"items":[{"id":"mint-a","token_info":{"balance":123456789012345678}}],
			"nativeBalance":{"lamports":1500000000}}}`))
	}))
	defer srv.Close()

	c := NewHeliusClient(srv.URL, time.Second)
	res, err := c.GetAssetsByOwner(context.Background(), "owner-1")
	require.NoError(t, err)

	assert.Equal(t, "getAssetsByOwner", got["method"])
	params := got["params"].(map[string]any)
	assert.Equal(t, "owner-1", params["ownerAddress"])
	assert.EqualValues(t, 1, params["page"])
	assert.EqualValues(t, 1000, params["limit"])
	opts := params["displayOptions"].(map[string]any)
	assert.Equal(t, true, opts["showFungible"])
	assert.Equal(t, true, opts["showNativeBalance"])

	require.Len(t, res.Items, 1)
	assert.Equal(t, "mint-a", res.Items[0].ID)
	assert.Equal(t, "123456789012345678", res.Items[0].TokenInfo.Balance.String(), "large balances keep every digit")
	require.NotNil(t, res.NativeBalance)
	assert.Equal(t, "1500000000", res.NativeBalance.Lamports.String())
}

func TestHeliusClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "api error", status: http.StatusOK, body: `{"error":{"code":-32602,"message":"invalid owner"}}`, wantErr: "invalid owner"},
		{name: "missing result", status: http.StatusOK, body: `{"jsonrpc":"2.0"}`, wantErr: "result is missing"},
		{name: "bad status", status: http.StatusTooManyRequests, body: `slow down`, wantErr: "429"},
		{name: "malformed", status: http.StatusOK, body: `{"result":`, wantErr: "unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHeliusClient(srv.URL, time.Second).GetAssetsByOwner(context.Background(), "owner")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPythClient_LatestPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pythLatestPricePath, r.URL.Path)
		assert.Equal(t, []string{"feed-a", "feed-b"}, r.URL.Query()["ids[]"])
		assert.Equal(t, "true", r.URL.Query().Get("parsed"))
		_, _ = w.Write([]byte(`{"parsed":[
			{"id":"feed-a","price":{"price":"15012345678","conf":"1","expo":-8}},
			{"id":"feed-b","price":{"price":"80000000","conf":"1","expo":-8}}]}`))
	}))
	defer srv.Close()

	updates, err := NewPythClient(srv.URL+"/", time.Second).LatestPrices(context.Background(), []string{"feed-a", "feed-b"})
	require.NoError(t, err)
	require.Len(t, updates, 2)
	assert.Equal(t, "feed-a", updates[0].ID)
	assert.Equal(t, "15012345678", updates[0].Price.Price)
	assert.EqualValues(t, -8, updates[0].Price.Expo)
}
