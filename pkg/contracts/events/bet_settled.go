package events

import "time"

// Evento emitido pelo dice-service após cada aposta liquidada.
// Valores monetários trafegam como string decimal para não perder precisão.
type BetSettled struct {
	BetID          string    `json:"bet_id"`
	AccountID      string    `json:"account_id"`
	Currency       string    `json:"currency"`
	Wager          string    `json:"wager"`
	WinChance      uint32    `json:"win_chance"` // centésimos de porcento
	Outcome        uint32    `json:"outcome"`    // [0, 10000)
	Won            bool      `json:"won"`
	Payout         string    `json:"payout"`
	ServerSeedHash string    `json:"server_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Nonce          uint64    `json:"nonce"`
	CreatedAt      time.Time `json:"created_at"`
	TsUnixMs       int64     `json:"ts_unix_ms"`
}
