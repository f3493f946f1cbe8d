// Package marketdata fetches wallet holdings and asset prices and converts them
// into domain snapshots. It never retries; the caller decides what to do next.
package marketdata

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/basket/internal/clients"
	"github.com/vadiminshakov/basket/internal/domain"
)

// Fetch sources.
const (
	SourceBalances = "balances"
	SourcePrices   = "prices"
)

// FetchError data source unreachable or returned a malformed response.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type indexer interface {
	GetAssetsByOwner(ctx context.Context, owner string) (*clients.AssetsByOwner, error)
}

type priceFeed interface {
	LatestPrices(ctx context.Context, ids []string) ([]clients.PythPriceUpdate, error)
}

// Client reads balances from the indexer and prices from the price feed.
type Client struct {
	table   domain.AssetTable
	indexer indexer
	feed    priceFeed
}

// NewClient creates a market data client for the assets in table.
func NewClient(table domain.AssetTable, indexer indexer, feed priceFeed) *Client {
	return &Client{table: table, indexer: indexer, feed: feed}
}

// FetchBalances returns holdings of owner for every configured asset.
// Assets missing from the response are zero.
func (c *Client) FetchBalances(ctx context.Context, owner string) (domain.Balances, error) {
	res, err := c.indexer.GetAssetsByOwner(ctx, owner)
	if err != nil {
		return nil, &FetchError{Source: SourceBalances, Err: err}
	}

	balances := make(domain.Balances, len(c.table.Assets))
	byMint := make(map[string]domain.Asset, len(c.table.Assets))
	for _, a := range c.table.Assets {
		balances[a.Symbol] = decimal.Zero
		byMint[a.Mint] = a
	}

	for _, item := range res.Items {
		a, ok := byMint[item.ID]
		if !ok {
			continue
		}
		if item.TokenInfo == nil {
			return nil, &FetchError{Source: SourceBalances, Err: errors.Errorf("asset %s has no token info", a.Symbol)}
		}
		balance, err := domain.ParseBaseUnits(item.TokenInfo.Balance.String(), a.Decimals)
		if err != nil {
			return nil, &FetchError{Source: SourceBalances, Err: errors.Wrapf(err, "asset %s", a.Symbol)}
		}
		balances[a.Symbol] = balance
	}

	if res.NativeBalance != nil && c.table.Native != "" {
		native, _ := c.table.Get(c.table.Native)
		lamports, err := domain.ParseBaseUnits(res.NativeBalance.Lamports.String(), native.Decimals)
		if err != nil {
			return nil, &FetchError{Source: SourceBalances, Err: errors.Wrap(err, "native balance")}
		}
		balances[native.Symbol] = lamports
	}

	return balances, nil
}

// FetchPrices returns the price of every configured asset in the valuation
// currency. The stable asset is priced at exactly 1 and is not requested.
func (c *Client) FetchPrices(ctx context.Context) (domain.Prices, error) {
	ids := make([]string, 0, len(c.table.Assets))
	byFeed := make(map[string]string, len(c.table.Assets))
	for _, a := range c.table.Assets {
		if a.Symbol == c.table.Stable {
			continue
		}
		ids = append(ids, a.PriceFeedID)
		byFeed[normalizeFeedID(a.PriceFeedID)] = a.Symbol
	}

	prices := domain.Prices{c.table.Stable: decimal.NewFromInt(1)}
	if len(ids) == 0 {
		return prices, nil
	}

	updates, err := c.feed.LatestPrices(ctx, ids)
	if err != nil {
		return nil, &FetchError{Source: SourcePrices, Err: err}
	}

	for _, u := range updates {
		symbol, ok := byFeed[normalizeFeedID(u.ID)]
		if !ok {
			continue
		}
		if u.Price == nil {
			return nil, &FetchError{Source: SourcePrices, Err: errors.Errorf("feed for %s has no price", symbol)}
		}
		mantissa, err := decimal.NewFromString(u.Price.Price)
		if err != nil {
			return nil, &FetchError{Source: SourcePrices, Err: errors.Errorf("feed for %s: invalid price %q", symbol, u.Price.Price)}
		}
		price := domain.ScaleByExponent(mantissa, u.Price.Expo)
		if price.IsNegative() {
			return nil, &FetchError{Source: SourcePrices, Err: errors.Errorf("feed for %s: negative price %s", symbol, price)}
		}
		prices[symbol] = price
	}

	for _, a := range c.table.Assets {
		if _, ok := prices[a.Symbol]; !ok {
			return nil, &FetchError{Source: SourcePrices, Err: errors.Errorf("no price for %s", a.Symbol)}
		}
	}

	return prices, nil
}

// feed ids may come back with or without the 0x prefix
func normalizeFeedID(id string) string {
	if len(id) >= 2 && (id[:2] == "0x" || id[:2] == "0X") {
		return id[2:]
	}
	return id
}
