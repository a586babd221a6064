package webview

import (
	"encoding/json"

	"astromine-go/internal/models"
)

// Message types exchanged with the webview.
const (
	TypeWebViewReady  = "webViewReady"
	TypeInitialData   = "initialData"
	TypeMiningStart   = "miningStart"
	TypeMiningResult  = "miningResult"
	TypeMiningError   = "miningError"
	TypeLeaderboard   = "leaderboard"
	TypeError         = "error"
	ErrorKindUnknown  = "UnknownMessage"
	ErrorKindLimited  = "RateLimited"
	ErrorKindBadInput = models.ErrorKindBadRequest
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type outgoing struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type MiningStartData struct {
	Tool string `json:"tool"`
}

type LeaderboardRequestData struct {
	Limit int `json:"limit"`
}

type LeaderboardData struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}

func encode(msgType string, data interface{}) ([]byte, error) {
	return json.Marshal(outgoing{Type: msgType, Data: data})
}
