package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Currency descreve uma moeda aceita nas apostas.
// Decimals é a unidade mínima (8 = satoshi para BTC).
type Currency struct {
	Code     string          `yaml:"code"`
	Decimals int32           `yaml:"decimals"`
	MinWager decimal.Decimal `yaml:"-"`

	RawMinWager string `yaml:"min_wager"`
}

// Account é um perfil estático, usado quando não há diretório externo (STORE_BACKEND=memory).
type Account struct {
	ID         string   `yaml:"id"`
	Currencies []string `yaml:"currencies"`
	Suspended  bool     `yaml:"suspended"`
}

// Catalog é o conteúdo do arquivo CATALOG_FILE
type Catalog struct {
	Currencies []Currency `yaml:"currencies"`
	Accounts   []Account  `yaml:"accounts"`
}

// DefaultCatalog é usado quando nenhum arquivo é informado.
func DefaultCatalog() Catalog {
	return Catalog{
		Currencies: []Currency{
			{Code: "BTC", Decimals: 8},
			{Code: "ETH", Decimals: 8},
			{Code: "USD", Decimals: 2},
		},
	}
}

// LoadCatalog lê e valida o catálogo YAML. Caminho vazio devolve DefaultCatalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	return ParseCatalog(b)
}

// ParseCatalog decodifica e normaliza o catálogo (códigos em maiúsculas, min_wager decimal).
func ParseCatalog(b []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Currencies) == 0 {
		c.Currencies = DefaultCatalog().Currencies
	}

	seen := make(map[string]bool, len(c.Currencies))
	for i := range c.Currencies {
		cur := &c.Currencies[i]
		cur.Code = strings.ToUpper(strings.TrimSpace(cur.Code))
		if cur.Code == "" {
			return Catalog{}, fmt.Errorf("catalog: currency %d without code", i)
		}
		if seen[cur.Code] {
			return Catalog{}, fmt.Errorf("catalog: duplicated currency %s", cur.Code)
		}
		seen[cur.Code] = true
		if cur.Decimals < 0 || cur.Decimals > 18 {
			return Catalog{}, fmt.Errorf("catalog: currency %s decimals %d out of range", cur.Code, cur.Decimals)
		}
		if cur.RawMinWager != "" {
			d, err := decimal.NewFromString(cur.RawMinWager)
			if err != nil {
				return Catalog{}, fmt.Errorf("catalog: currency %s min_wager: %w", cur.Code, err)
			}
			cur.MinWager = d
		}
	}

	for i := range c.Accounts {
		acc := &c.Accounts[i]
		if acc.ID == "" {
			return Catalog{}, fmt.Errorf("catalog: account %d without id", i)
		}
		for j, code := range acc.Currencies {
			code = strings.ToUpper(strings.TrimSpace(code))
			if !seen[code] {
				return Catalog{}, fmt.Errorf("catalog: account %s uses unknown currency %s", acc.ID, code)
			}
			acc.Currencies[j] = code
		}
	}
	return c, nil
}

// Lookup devolve a moeda pelo código.
func (c Catalog) Lookup(code string) (Currency, bool) {
	code = strings.ToUpper(code)
	for _, cur := range c.Currencies {
		if cur.Code == code {
			return cur, true
		}
	}
	return Currency{}, false
}
