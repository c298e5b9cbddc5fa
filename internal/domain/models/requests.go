package models

// Requests for the HTTP API. Bound from the query string, then defaulted,
// then validated.

type BacktestRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Days   int    `query:"days" json:"days" default:"730" validate:"gte=30,lte=730"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 15m 1h 1d"`
	Fresh  bool   `query:"fresh" json:"fresh"`
}

type RegimeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,ticker"`
	Days   int    `query:"days" json:"days" default:"730" validate:"gte=30,lte=730"`
	TF     string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 15m 1h 1d"`
}

type WatchlistRequest struct {
	// Symbols is a comma separated override of the configured watchlist.
	Symbols string `query:"symbols" json:"symbols"`
	Days    int    `query:"days" json:"days" default:"730" validate:"gte=30,lte=730"`
	TF      string `query:"tf" json:"tf" default:"1h" validate:"oneof=5m 15m 1h 1d"`
}
