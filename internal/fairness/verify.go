package fairness

import (
	"crypto/subtle"
	"strings"
)

// Proof reúne o que o jogador precisa para conferir uma aposta antiga.
// ExpectedOutcome é opcional; quando informado também é comparado.
type Proof struct {
	ServerSeed      string
	ServerSeedHash  string
	ClientSeed      string
	Nonce           uint64
	ExpectedOutcome *Outcome
}

// Verification é o resultado da conferência.
type Verification struct {
	Outcome      Outcome
	ComputedHash string
	HashMatches  bool
	OutcomeMatch bool
}

// Valid é verdadeiro quando o compromisso confere e, se informado, o resultado também.
func (v Verification) Valid() bool { return v.HashMatches && v.OutcomeMatch }

// Verify refaz a derivação e confere hash(serverSeed) contra o hash publicado.
func (d Deriver) Verify(p Proof) Verification {
	computed := HashServerSeed(p.ServerSeed)
	published := strings.ToLower(strings.TrimSpace(p.ServerSeedHash))
	out := d.Derive(p.ServerSeed, p.ClientSeed, p.Nonce)

	v := Verification{
		Outcome:      out,
		ComputedHash: computed,
		HashMatches:  subtle.ConstantTimeCompare([]byte(computed), []byte(published)) == 1,
		OutcomeMatch: true,
	}
	if p.ExpectedOutcome != nil {
		v.OutcomeMatch = *p.ExpectedOutcome == out
	}
	return v
}
