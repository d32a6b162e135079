package accounts

import (
	"context"
	"strings"

	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
)

var ErrAccountNotFound = apperr.New(apperr.NotFound, "account not found")

// Profile é a visão somente leitura de uma conta usada na validação das apostas.
type Profile struct {
	AccountID  string   `json:"accountId"`
	Suspended  bool     `json:"suspended"`
	Currencies []string `json:"currencies"`
}

// Enabled indica se a moeda está habilitada para a conta.
func (p Profile) Enabled(currency string) bool {
	for _, c := range p.Currencies {
		if strings.EqualFold(c, currency) {
			return true
		}
	}
	return false
}

// Directory resolve perfis de conta. O core nunca escreve aqui.
type Directory interface {
	Lookup(ctx context.Context, accountID string) (Profile, error)
}

// Static serve perfis do catálogo. Sem contas no catálogo, qualquer conta
// é aceita com todas as moedas (modo de desenvolvimento).
type Static struct {
	open       bool
	currencies []string
	profiles   map[string]Profile
}

func NewStatic(cat config.Catalog) *Static {
	s := &Static{open: len(cat.Accounts) == 0, profiles: make(map[string]Profile, len(cat.Accounts))}
	for _, c := range cat.Currencies {
		s.currencies = append(s.currencies, c.Code)
	}
	for _, a := range cat.Accounts {
		s.profiles[a.ID] = Profile{
			AccountID:  a.ID,
			Suspended:  a.Suspended,
			Currencies: append([]string(nil), a.Currencies...),
		}
	}
	return s
}

func (s *Static) Lookup(_ context.Context, accountID string) (Profile, error) {
	if accountID == "" {
		return Profile{}, ErrAccountNotFound
	}
	if p, ok := s.profiles[accountID]; ok {
		return p, nil
	}
	if s.open {
		return Profile{AccountID: accountID, Currencies: append([]string(nil), s.currencies...)}, nil
	}
	return Profile{}, ErrAccountNotFound
}
