package data

// This file contains a Massive-backed Provider that reads option chain
// snapshots and daily aggregates over raw HTTP.

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/contactkeval/option-greeks/internal/logger"
	"github.com/contactkeval/option-greeks/internal/pricing"
	"github.com/contactkeval/option-greeks/internal/smile"
)

// maxRateLimitRetries bounds the number of 429 retries per request.
const maxRateLimitRetries = 5

// massiveDataProvider implements the Provider interface using Massive APIs.
type massiveDataProvider struct {
	// APIKey used for authenticating requests with Massive.
	APIKey string

	// Client is the HTTP client used to make API requests.
	Client *http.Client

	// BaseURL is the root endpoint for Massive APIs
	// (e.g., https://api.massive.com).
	BaseURL string

	// sleep waits out a rate limit window.
	sleep func(time.Duration)

	// now is the observation time stamped on snapshots.
	now func() time.Time

	// secondary is an optional fallback provider.
	secondary Provider
}

// massiveSnapshot is one contract of the option chain snapshot endpoint.
type massiveSnapshot struct {
	Details struct {
		ContractType   string  `json:"contract_type"`
		ExpirationDate string  `json:"expiration_date"`
		StrikePrice    float64 `json:"strike_price"`
		Ticker         string  `json:"ticker"`
	} `json:"details"`
	Day struct {
		Close float64 `json:"close"`
	} `json:"day"`
	LastQuote struct {
		Bid      float64 `json:"bid"`
		Ask      float64 `json:"ask"`
		Midpoint float64 `json:"midpoint"`
	} `json:"last_quote"`
	UnderlyingAsset struct {
		Price  float64 `json:"price"`
		Ticker string  `json:"ticker"`
	} `json:"underlying_asset"`
}

// price returns the quote midpoint, the bid/ask average or the day close,
// whichever is available first.
func (s massiveSnapshot) price() float64 {
	switch {
	case s.LastQuote.Midpoint > 0:
		return s.LastQuote.Midpoint
	case s.LastQuote.Bid > 0 && s.LastQuote.Ask > 0:
		return (s.LastQuote.Bid + s.LastQuote.Ask) / 2
	}
	return s.Day.Close
}

// massiveSnapshotResp models the paginated chain snapshot response.
type massiveSnapshotResp struct {
	Results   []massiveSnapshot `json:"results"`
	Status    string            `json:"status"`
	RequestID string            `json:"request_id"`
	NextURL   string            `json:"next_url"`
}

// massiveAggsResp models the paginated aggregates response.
type massiveAggsResp struct {
	Ticker  string `json:"ticker"`
	Results []struct {
		Open      float64 `json:"o"`
		Close     float64 `json:"c"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Volume    float64 `json:"v"`
		Trades    int64   `json:"n"`
		Timestamp int64   `json:"t"` // epoch millis
	} `json:"results"`
	Status  string `json:"status"`
	NextURL string `json:"next_url"`
}

// NewMassiveDataProvider constructs a Massive-backed data provider.
//
// Parameters:
//   - apiKey: Massive API key for authentication
//   - secondary: provider used when Massive has no data or fails, may be nil
//
// Returns:
//   - *massiveDataProvider: initialized provider instance
func NewMassiveDataProvider(apiKey string, secondary Provider) *massiveDataProvider {
	logger.Infof("initializing Massive data provider")

	return &massiveDataProvider{
		APIKey: apiKey,
		Client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 30 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
				ForceAttemptHTTP2:     true,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
			},
		},
		BaseURL:   "https://api.massive.com",
		sleep:     time.Sleep,
		now:       time.Now,
		secondary: secondary,
	}
}

// Secondary returns the configured secondary Provider, if any.
func (massiveDataProv *massiveDataProvider) Secondary() Provider {
	return massiveDataProv.secondary
}

// GetChain retrieves every contract of underlying expiring on expiry from
// the option chain snapshot endpoint, following next_url pagination.
//
// Contracts without a usable price are skipped. The spot is taken from the
// snapshot's underlying asset. On request failure or an empty chain the
// secondary provider, when configured, is asked instead.
//
// Parameters:
//   - underlying: underlying ticker symbol
//   - expiry: expiration date
//
// Returns:
//   - Chain: quotes observed now
//   - error: if retrieval or decoding fails
func (massiveDataProv *massiveDataProvider) GetChain(underlying string, expiry time.Time) (Chain, error) {
	chain, err := massiveDataProv.fetchChain(underlying, expiry)
	if err == nil && len(chain.Quotes) == 0 {
		err = fmt.Errorf("%w: massive has no quotes for %s expiring %s", ErrNotFound, underlying, expiry.Format(DateLayout))
	}
	if err != nil {
		if massiveDataProv.secondary != nil {
			logger.Infof("massive chain unavailable (%v), delegating", err)
			return massiveDataProv.secondary.GetChain(underlying, expiry)
		}
		return Chain{}, err
	}
	return chain, nil
}

func (massiveDataProv *massiveDataProvider) fetchChain(underlying string, expiry time.Time) (Chain, error) {
	u, err := url.Parse(massiveDataProv.BaseURL + "/v3/snapshot/options/" + url.PathEscape(strings.ToUpper(underlying)))
	if err != nil {
		return Chain{}, err
	}
	query := u.Query()
	query.Set("expiration_date", expiry.Format(DateLayout))
	query.Set("limit", "250")
	query.Set("apiKey", massiveDataProv.APIKey)
	u.RawQuery = query.Encode()

	chain := Chain{
		Underlying: strings.ToUpper(underlying),
		AsOf:       massiveDataProv.now().UTC(),
		Expiry:     expiry,
	}
	for reqURL := u.String(); reqURL != ""; {
		logger.Debugf("chain snapshot request URL: %s", redact(reqURL))

		var page massiveSnapshotResp
		if err := massiveDataProv.getJSON(reqURL, &page); err != nil {
			return Chain{}, err
		}
		logger.Tracef("received %d snapshot contracts", len(page.Results))

		for _, s := range page.Results {
			if chain.Spot == 0 && s.UnderlyingAsset.Price > 0 {
				chain.Spot = s.UnderlyingAsset.Price
			}
			typ, err := pricing.ParseOptionType(s.Details.ContractType)
			if err != nil {
				continue
			}
			p := s.price()
			if p <= 0 || s.Details.StrikePrice <= 0 {
				continue
			}
			chain.Quotes = append(chain.Quotes, smile.Quote{Strike: s.Details.StrikePrice, MarketPrice: p, Type: typ})
		}
		reqURL = page.NextURL
	}

	if len(chain.Quotes) > 0 && chain.Spot == 0 {
		return Chain{}, fmt.Errorf("massive snapshot for %s has no underlying price", underlying)
	}
	return chain, nil
}

// GetBars retrieves daily OHLCV bars for the given symbol and date range.
//
// Parameters:
//   - underlying: ticker symbol
//   - fromDate: start date
//   - toDate: end date
//
// Returns:
//   - []Bar: time-ordered bars
//   - error: if retrieval or decoding fails
func (massiveDataProv *massiveDataProvider) GetBars(underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	logger.Debugf(
		"fetching bars: %s from=%s to=%s",
		underlying,
		fromDate.Format(DateLayout),
		toDate.Format(DateLayout),
	)

	reqURL := fmt.Sprintf(
		"%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&limit=50000&apiKey=%s",
		massiveDataProv.BaseURL,
		url.PathEscape(strings.ToUpper(underlying)),
		fromDate.Format(DateLayout),
		toDate.Format(DateLayout),
		url.QueryEscape(massiveDataProv.APIKey),
	)

	var out []Bar
	for reqURL != "" {
		var page massiveAggsResp
		if err := massiveDataProv.getJSON(reqURL, &page); err != nil {
			if massiveDataProv.secondary != nil {
				logger.Infof("massive bars unavailable (%v), delegating", err)
				return massiveDataProv.secondary.GetBars(underlying, fromDate, toDate)
			}
			return nil, fmt.Errorf("massive api request failed: %w", err)
		}
		logger.Tracef("bars received: %d records", len(page.Results))

		for _, r := range page.Results {
			out = append(out, Bar{
				Date:  time.UnixMilli(r.Timestamp).UTC(),
				Open:  r.Open,
				High:  r.High,
				Low:   r.Low,
				Close: r.Close,
				Vol:   r.Volume,
				Count: r.Trades,
			})
		}
		reqURL = page.NextURL
	}
	return out, nil
}

// getJSON performs a GET against reqURL and decodes a 200 response into out.
func (massiveDataProv *massiveDataProvider) getJSON(reqURL string, out any) error {
	req, err := http.NewRequest(http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+massiveDataProv.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := massiveDataProv.processGetRequest(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return fmt.Errorf("empty response body")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing massive response: %w", err)
	}
	return nil
}

// processGetRequest executes an HTTP GET request with rate-limit handling.
//
// Behavior:
//   - Retries on HTTP 429, sleeping until the next minute boundary
//   - Returns immediately on success (<400)
//   - Returns an error carrying the API message for other status codes
func (massiveDataProv *massiveDataProvider) processGetRequest(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := massiveDataProv.Client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 400 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			resp.Body.Close()

			now := time.Now()
			sleepDuration := time.Until(now.Truncate(time.Minute).Add(time.Minute))
			logger.Infof("rate limit hit, sleeping for %s", sleepDuration)
			massiveDataProv.sleep(sleepDuration)
			continue
		}

		var dbg struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&dbg)
		resp.Body.Close()

		logger.Errorf("massive API error status=%d message=%s", resp.StatusCode, dbg.Message)
		return nil, fmt.Errorf("massive returned status %d: %s", resp.StatusCode, dbg.Message)
	}
}

// redact hides the apiKey query parameter in logged URLs.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("apiKey") {
		q.Set("apiKey", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}
