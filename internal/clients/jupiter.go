package clients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// JupiterClient talks to the Jupiter v6 swap API.
type JupiterClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// JupiterOption configures the Jupiter client.
type JupiterOption func(*JupiterClient)

// WithJupiterRateLimit paces requests to rps with the given burst.
func WithJupiterRateLimit(rps float64, burst int) JupiterOption {
	return func(c *JupiterClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewJupiterClient creates a client, e.g. for https://quote-api.jup.ag/v6.
func NewJupiterClient(baseURL string, timeout time.Duration, opts ...JupiterOption) *JupiterClient {
	c := &JupiterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// QuoteRequest input of the quote endpoint. Amount is in input base units.
type QuoteRequest struct {
	InputMint        string
	OutputMint       string
	Amount           uint64
	SlippageBps      int
	OnlyDirectRoutes bool
}

// Quote indicative route. Raw is passed back verbatim to the swap-instructions endpoint.
type Quote struct {
	InAmount  string
	OutAmount string
	Raw       json.RawMessage
}

type quoteFields struct {
	InAmount  string `json:"inAmount"`
	OutAmount string `json:"outAmount"`
}

// Quote requests an indicative quote for an exact input amount.
func (c *JupiterClient) Quote(ctx context.Context, r QuoteRequest) (*Quote, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("inputMint", r.InputMint)
	params.Set("outputMint", r.OutputMint)
	params.Set("amount", strconv.FormatUint(r.Amount, 10))
	params.Set("slippageBps", strconv.Itoa(r.SlippageBps))
	params.Set("onlyDirectRoutes", strconv.FormatBool(r.OnlyDirectRoutes))

	var raw json.RawMessage
	if err := doJSON(ctx, c.httpClient, http.MethodGet, c.baseURL+"/quote?"+params.Encode(), nil, &raw); err != nil {
		return nil, errors.Wrap(err, "quote")
	}

	var fields quoteFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "decode quote")
	}
	if fields.OutAmount == "" {
		return nil, errors.New("quote: no route returned")
	}

	return &Quote{InAmount: fields.InAmount, OutAmount: fields.OutAmount, Raw: raw}, nil
}

type swapInstructionsRequest struct {
	UserPublicKey             string          `json:"userPublicKey"`
	QuoteResponse             json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol          bool            `json:"wrapAndUnwrapSol"`
	PrioritizationFeeLamports uint64          `json:"prioritizationFeeLamports"`
	DynamicComputeUnitLimit   bool            `json:"dynamicComputeUnitLimit"`
}

// AccountMeta account reference of a Jupiter instruction.
type AccountMeta struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

// Instruction instruction as returned by Jupiter; Data is base64.
type Instruction struct {
	ProgramID string        `json:"programId"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      string        `json:"data"`
}

// SwapInstructions instructions that perform a quoted swap.
type SwapInstructions struct {
	ComputeBudgetInstructions []Instruction `json:"computeBudgetInstructions"`
	SetupInstructions         []Instruction `json:"setupInstructions"`
	SwapInstruction           *Instruction  `json:"swapInstruction"`
	CleanupInstruction        *Instruction  `json:"cleanupInstruction"`
	Error                     string        `json:"error"`
}

// SwapInstructions requests executable instructions for quote bound to user.
// Native SOL is wrapped and unwrapped automatically.
func (c *JupiterClient) SwapInstructions(ctx context.Context, user string, quote *Quote) (*SwapInstructions, error) {
	if quote == nil {
		return nil, errors.New("swap instructions: quote is nil")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req := swapInstructionsRequest{
		UserPublicKey:             user,
		QuoteResponse:             quote.Raw,
		WrapAndUnwrapSol:          true,
		PrioritizationFeeLamports: 0,
		DynamicComputeUnitLimit:   true,
	}

	var resp SwapInstructions
	if err := doJSON(ctx, c.httpClient, http.MethodPost, c.baseURL+"/swap-instructions", req, &resp); err != nil {
		return nil, errors.Wrap(err, "swap instructions")
	}
	if resp.Error != "" {
		return nil, errors.Errorf("swap instructions API error: %s", resp.Error)
	}
	if resp.SwapInstruction == nil {
		return nil, errors.New("swap instructions: swapInstruction is missing")
	}

	return &resp, nil
}

func (c *JupiterClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return errors.Wrap(c.limiter.Wait(ctx), "jupiter rate limiter")
}
