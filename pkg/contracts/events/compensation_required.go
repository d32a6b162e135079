package events

import "time"

// Evento enviado para a DLQ quando a compensação inline de uma aposta falhou.
// O compensation-worker reaplica Delta com a mesma Ref (idempotente no ledger).
type CompensationRequired struct {
	BetID     string    `json:"bet_id"`
	AccountID string    `json:"account_id"`
	Currency  string    `json:"currency"`
	Delta     string    `json:"delta"`
	Ref       string    `json:"ref"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	Ts        time.Time `json:"ts"`
}
