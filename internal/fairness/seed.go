package fairness

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

const (
	// ServerSeedBytes garante 256 bits de entropia no server seed.
	ServerSeedBytes = 32
	ClientSeedBytes = 16
)

// GenerateServerSeed cria um server seed hex a partir do CSPRNG do processo.
// Só deve ser chamado na criação de um par, nunca durante a derivação.
func GenerateServerSeed() (string, error) {
	return randomHex(rand.Reader, ServerSeedBytes)
}

// GenerateClientSeed cria um client seed quando o jogador não informa um.
func GenerateClientSeed() (string, error) {
	return randomHex(rand.Reader, ClientSeedBytes)
}

// HashServerSeed é o compromisso publicado: sha256(serverSeed) em hex.
func HashServerSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}

func randomHex(r io.Reader, n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}
