package feeds

import (
	"context"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// RestSource reads spot prices from a JSON price API:
//
//	GET /v1/prices?symbols=KNC,OMG
//	{"prices":[{"symbol":"KNC","price":"0.00415","timestamp":1724700000}]}
type RestSource struct {
	client *resty.Client
}

// NewRestSource builds a source against baseURL. retryCount 0 disables
// retries.
func NewRestSource(baseURL string, timeout time.Duration, retryCount int) *RestSource {
	baseURL = strings.TrimSuffix(baseURL, "/")
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)
	return &RestSource{client: client}
}

type priceEntry struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`
	Timestamp int64  `json:"timestamp"`
}

type pricesResponse struct {
	Prices []priceEntry `json:"prices"`
}

// Quotes fetches the current price for each symbol. Symbols the API does
// not know are simply missing from the result; the caller decides whether
// that is fatal.
func (s *RestSource) Quotes(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}

	var body pricesResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("symbols", strings.Join(symbols, ",")).
		SetResult(&body).
		Get("/v1/prices")
	if err != nil {
		return nil, errors.Wrap(err, "feeds: fetch prices")
	}
	if resp.IsError() {
		return nil, errors.Errorf("feeds: price API returned %s: %s", resp.Status(), resp.String())
	}

	out := make(map[string]Quote, len(body.Prices))
	for _, entry := range body.Prices {
		price, err := decimal.NewFromString(entry.Price)
		if err != nil {
			return nil, errors.Wrapf(err, "feeds: bad price %q for %s", entry.Price, entry.Symbol)
		}
		out[entry.Symbol] = Quote{
			Symbol:    entry.Symbol,
			Price:     price,
			Timestamp: time.Unix(entry.Timestamp, 0).UTC(),
		}
	}
	return out, nil
}
