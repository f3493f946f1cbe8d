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

const quoteBody = `{"inputMint":"in","outputMint":"out","inAmount":"1000000","outAmount":"6650000","routePlan":[]}`

func TestJupiterClient_QuoteAndInstructions(t *testing.T) {
	var swapReq map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			q := r.URL.Query()
			assert.Equal(t, "in", q.Get("inputMint"))
			assert.Equal(t, "out", q.Get("outputMint"))
			assert.Equal(t, "1000000", q.Get("amount"))
			assert.Equal(t, "100", q.Get("slippageBps"))
			assert.Equal(t, "true", q.Get("onlyDirectRoutes"))
			_, _ = w.Write([]byte(quoteBody))
		case "/swap-instructions":
			assert.Equal(t, http.MethodPost, r.Method)
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &swapReq))
			_, _ = w.Write([]byte(`{
				"computeBudgetInstructions":[{"programId":"cb","accounts":[],"data":"AA=="}],
				"setupInstructions":[],
				"swapInstruction":{"programId":"jup","accounts":[{"pubkey":"acc","isSigner":true,"isWritable":true}],"data":"AQI="},
				"cleanupInstruction":null}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewJupiterClient(srv.URL, time.Second, WithJupiterRateLimit(100, 2))
	quote, err := c.Quote(context.Background(), QuoteRequest{
		InputMint: "in", OutputMint: "out", Amount: 1_000_000, SlippageBps: 100, OnlyDirectRoutes: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "6650000", quote.OutAmount)

	ixs, err := c.SwapInstructions(context.Background(), "user-1", quote)
	require.NoError(t, err)
	require.Len(t, ixs.ComputeBudgetInstructions, 1)
	require.NotNil(t, ixs.SwapInstruction)
	assert.Equal(t, "jup", ixs.SwapInstruction.ProgramID)
	assert.Nil(t, ixs.CleanupInstruction)

	assert.JSONEq(t, `"user-1"`, string(swapReq["userPublicKey"]))
	assert.JSONEq(t, quoteBody, string(swapReq["quoteResponse"]), "quote is passed through verbatim")
	assert.JSONEq(t, `true`, string(swapReq["wrapAndUnwrapSol"]))
	assert.JSONEq(t, `0`, string(swapReq["prioritizationFeeLamports"]))
	assert.JSONEq(t, `true`, string(swapReq["dynamicComputeUnitLimit"]))
}

func TestJupiterClient_Failures(t *testing.T) {
	t.Run("quote without route", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"No routes found"}`))
		}))
		defer srv.Close()

		_, err := NewJupiterClient(srv.URL, time.Second).Quote(context.Background(), QuoteRequest{Amount: 1})
		require.Error(t, err)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadRequest, statusErr.Code)
	})

	t.Run("instructions non-success status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := NewJupiterClient(srv.URL, time.Second).SwapInstructions(context.Background(), "user", &Quote{Raw: json.RawMessage(quoteBody)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
	})

	t.Run("missing swap instruction", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"computeBudgetInstructions":[]}`))
		}))
		defer srv.Close()

		_, err := NewJupiterClient(srv.URL, time.Second).SwapInstructions(context.Background(), "user", &Quote{Raw: json.RawMessage(quoteBody)})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "swapInstruction is missing")
	})
}
