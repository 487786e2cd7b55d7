package domain

import "time"

// Ticker is the 24h market summary for a symbol.
type Ticker struct {
	Symbol    string `json:"symbol"`
	Last      string `json:"last"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Change24h string `json:"change24h"`
	Volume    string `json:"volume"`
}

// MarketAnalysis is the backend's read of current market conditions.
type MarketAnalysis struct {
	Symbol              string  `json:"symbol"`
	Trend               string  `json:"trend"`
	Volatility          float64 `json:"volatility"`
	Volume24h           float64 `json:"volume24h"`
	RecommendedStrategy string  `json:"recommendedStrategy"`
	Confidence          float64 `json:"confidence"`
}

// BotStatus is the running-status payload of the bot for a symbol. Config is
// nil when the backend does not embed the running configuration.
type BotStatus struct {
	Symbol  string     `json:"symbol"`
	Running bool       `json:"running"`
	State   string     `json:"state,omitempty"`
	Uptime  float64    `json:"uptime,omitempty"`
	Config  ConfigTree `json:"config,omitempty"`
}

// Recommendation is advisory input to configuration resolution.
type Recommendation struct {
	Strategy string `json:"recommendedStrategy"`
}

// ConfigSave is one recorded configuration save.
type ConfigSave struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	BaseOrigin Origin     `json:"baseOrigin"`
	Config     ConfigTree `json:"config"`
	SavedAt    time.Time  `json:"savedAt"`
}
