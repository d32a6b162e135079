package dto

import "github.com/shopspring/decimal"

// PlaceBetRequest é o corpo de POST /v1/bets. A conta vem do header X-Account-ID.
type PlaceBetRequest struct {
	WagerAmount decimal.Decimal `json:"wagerAmount"`
	WinChance   decimal.Decimal `json:"winChance"` // 0–100, até 2 casas
	ClientSeed  string          `json:"clientSeed,omitempty"`
	Currency    string          `json:"currency"`
}

type RotateSeedsRequest struct {
	ClientSeed string `json:"clientSeed,omitempty"` // vazio = gerado pelo servidor
}

// VerifyRequest confere uma aposta antiga a partir do seed revelado.
type VerifyRequest struct {
	ServerSeed     string  `json:"serverSeed"`
	ServerSeedHash string  `json:"serverSeedHash"`
	ClientSeed     string  `json:"clientSeed"`
	Nonce          uint64  `json:"nonce"`
	Outcome        *uint32 `json:"outcome,omitempty"`
}

// DepositRequest credita saldo; Ref torna a operação idempotente.
type DepositRequest struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
	Ref      string          `json:"ref"`
}
