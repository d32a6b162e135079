package events

import "time"

// Evento emitido quando um par de seeds é encerrado e o server seed é revelado.
type SeedRotated struct {
	AccountID          string    `json:"account_id"`
	RevealedServerSeed string    `json:"revealed_server_seed"`
	RevealedSeedHash   string    `json:"revealed_seed_hash"`
	ClientSeed         string    `json:"client_seed"`
	FinalNonce         uint64    `json:"final_nonce"`
	NextServerSeedHash string    `json:"next_server_seed_hash"`
	Ts                 time.Time `json:"ts"`
}
