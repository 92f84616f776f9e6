package hyperliquid

// subscribeRequest is the per-coin subscription message sent on connect.
type subscribeRequest struct {
	Method       string       `json:"method"`
	Subscription subscription `json:"subscription"`
}

type subscription struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

// infoRequest is the POST body for account-state lookups.
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// ClearinghouseState is the account-state response from the info endpoint.
// Numeric fields arrive as strings; liquidationPx may be null.
type ClearinghouseState struct {
	AssetPositions []AssetPosition `json:"assetPositions"`
}

// AssetPosition wraps one open position.
type AssetPosition struct {
	Type     string   `json:"type"`
	Position Position `json:"position"`
}

// Position is one open position as reported by the clearinghouse.
type Position struct {
	Coin          string   `json:"coin"`
	PositionValue string   `json:"positionValue"`
	Szi           string   `json:"szi"`
	EntryPx       string   `json:"entryPx"`
	LiquidationPx string   `json:"liquidationPx"`
	MarginUsed    string   `json:"marginUsed"`
	UnrealizedPnl string   `json:"unrealizedPnl"`
	Leverage      Leverage `json:"leverage"`
}

// Leverage carries the leverage mode and multiplier of a position.
type Leverage struct {
	Type  string  `json:"type"`
	Value float64 `json:"value"`
}
