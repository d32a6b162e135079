package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/seeds"
)

// PlaceBetResponse traz o contrato mínimo (result, updatedBalance, betId, payout)
// e o material para o jogador conferir a aposta depois.
type PlaceBetResponse struct {
	Result         bool            `json:"result"`
	UpdatedBalance decimal.Decimal `json:"updatedBalance"`
	BetID          string          `json:"betId"`
	Payout         decimal.Decimal `json:"payout"`

	Currency       string          `json:"currency"`
	Wager          decimal.Decimal `json:"wager"`
	WinChance      string          `json:"winChance"`
	Outcome        string          `json:"outcome"`
	Multiplier     decimal.Decimal `json:"multiplier"`
	ServerSeedHash string          `json:"serverSeedHash"`
	ClientSeed     string          `json:"clientSeed"`
	Nonce          uint64          `json:"nonce"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type RotateSeedsResponse struct {
	Revealed seeds.SeedPair `json:"revealed"`
	Next     seeds.SeedPair `json:"next"`
}

type VerifyResponse struct {
	Valid        bool   `json:"valid"`
	Outcome      uint32 `json:"outcome"`
	Roll         string `json:"roll"`
	ComputedHash string `json:"computedHash"`
	HashMatches  bool   `json:"hashMatches"`
	OutcomeMatch bool   `json:"outcomeMatch"`
}

type WalletResponse struct {
	AccountID string                     `json:"accountId"`
	Balances  map[string]decimal.Decimal `json:"balances"`
}

type DepositResponse struct {
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
