package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"
	"strconv"
)

// OutcomeRange é o tamanho do espaço de resultados: centésimos de porcento, [0, 10000).
const OutcomeRange = 10000

// rejectAbove é o maior múltiplo de OutcomeRange que cabe em uint32.
// Palavras >= rejectAbove são descartadas para não enviesar o módulo.
const rejectAbove = (1 << 32) - ((1 << 32) % OutcomeRange)

// Outcome é o valor sorteado em centésimos de porcento (4217 = 42.17).
type Outcome uint32

// Percent formata o resultado com duas casas, como exibido ao jogador.
func (o Outcome) Percent() string {
	return fmt.Sprintf("%d.%02d", o/100, o%100)
}

// Algorithm identifica o hash usado no HMAC.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// ParseAlgorithm aceita os valores de OUTCOME_HMAC.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case SHA256, "":
		return SHA256, nil
	case SHA512:
		return SHA512, nil
	}
	return "", fmt.Errorf("unsupported outcome hmac %q", s)
}

func (a Algorithm) newHash() func() hash.Hash {
	if a == SHA512 {
		return sha512.New
	}
	return sha256.New
}

// Deriver transforma (serverSeed, clientSeed, nonce) em um Outcome.
// É puro: não lê relógio nem estado aleatório, então qualquer parte
// consegue refazer o cálculo depois que o server seed é revelado.
type Deriver struct {
	Algorithm Algorithm
}

// Derive calcula HMAC(key=serverSeed, msg="clientSeed:nonce:round") e lê o digest
// em palavras uint32 big-endian, aceitando a primeira abaixo de rejectAbove.
// Se todas as palavras de uma rodada forem rejeitadas, passa para a próxima rodada.
func (d Deriver) Derive(serverSeed, clientSeed string, nonce uint64) Outcome {
	newHash := d.Algorithm.newHash()
	for round := uint64(0); ; round++ {
		mac := hmac.New(newHash, []byte(serverSeed))
		mac.Write(message(clientSeed, nonce, round))
		sum := mac.Sum(nil)
		for i := 0; i+4 <= len(sum); i += 4 {
			w := binary.BigEndian.Uint32(sum[i : i+4])
			if w < rejectAbove {
				return Outcome(w % OutcomeRange)
			}
		}
	}
}

func message(clientSeed string, nonce, round uint64) []byte {
	b := make([]byte, 0, len(clientSeed)+42)
	b = append(b, clientSeed...)
	b = append(b, ':')
	b = strconv.AppendUint(b, nonce, 10)
	b = append(b, ':')
	b = strconv.AppendUint(b, round, 10)
	return b
}
