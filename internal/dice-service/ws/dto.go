package ws

import "encoding/json"

// AllCurrencies assina o feed de todas as moedas.
const AllCurrencies = "*"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// Currency: obrigatório para subscribe/unsubscribe ("*" = todas)
type ClientMsg struct {
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// FeedUpdate é uma aposta liquidada enviada aos clientes do feed
type FeedUpdate struct {
	Currency string          `json:"currency"`
	Payload  json.RawMessage `json:"payload"`
}
