package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"RegimeTrader/internal/domain/models"
	domrepo "RegimeTrader/internal/domain/repository"
	xhttp "RegimeTrader/pkg/http"
	applogger "RegimeTrader/pkg/logger"
	"RegimeTrader/pkg/util"
)

// YahooBarStore fetches bars from the public Yahoo Finance chart endpoint.
type YahooBarStore struct {
	client  *xhttp.Client
	baseURL string
	l       *applogger.Logger
}

func NewYahooBarStore(client *xhttp.Client, baseURL string, l *applogger.Logger) *YahooBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &YahooBarStore{client: client, baseURL: baseURL, l: l}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (s *YahooBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	symbol = util.NormalizeSymbol(symbol)
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", s.baseURL, url.PathEscape(symbol))

	var resp chartResponse
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    endpoint,
		QueryParams: map[string][]string{
			"period1":        {strconv.FormatInt(from.Unix(), 10)},
			"period2":        {strconv.FormatInt(to.Unix(), 10)},
			"interval":       {string(tf)},
			"includePrePost": {"false"},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
		}
		return nil, fmt.Errorf("yahoo chart: %w", err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart: %s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}

	res := resp.Chart.Result[0]
	q := res.Indicators.Quote[0]
	out := make([]models.Bar, 0, len(res.Timestamp))
	dropped := 0
	for i, ts := range res.Timestamp {
		o, h, lo, c, v, ok := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i), at(q.Volume, i), true
		for _, p := range []*float64{o, h, lo, c, v} {
			if p == nil {
				ok = false
			}
		}
		if !ok {
			dropped++
			continue
		}
		out = append(out, models.Bar{
			Timestamp:  time.Unix(ts, 0).UTC(),
			Open:       *o,
			High:       *h,
			Low:        *lo,
			Close:      *c,
			Volume:     *v,
			Indicators: models.UndefinedIndicators(),
		})
	}
	s.l.Debug("yahoo get_bars ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Int("dropped", dropped),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

var _ domrepo.BarStore = (*YahooBarStore)(nil)
