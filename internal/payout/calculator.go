package payout

import (
	"github.com/shopspring/decimal"

	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
)

// MaxHouseEdge limita a margem configurável (centésimos de porcento).
const MaxHouseEdge = fairness.OutcomeRange - 1

var scale = decimal.NewFromInt(fairness.OutcomeRange)

// Calculator aplica a regra de pagamento com margem da casa.
// HouseEdge e a chance de vitória usam a mesma escala do Outcome: 100 = 1%.
type Calculator struct {
	HouseEdge uint32
}

// Compute decide vitória (outcome < winChance) e calcula o pagamento:
// wager * 10000/winChance * (1 - edge), truncado para a unidade mínima da moeda.
// Em derrota o pagamento é zero, a aposta já foi debitada.
func (c Calculator) Compute(wager decimal.Decimal, winChance uint32, outcome fairness.Outcome, decimals int32) (bool, decimal.Decimal, error) {
	if err := c.Validate(wager, winChance, decimals); err != nil {
		return false, decimal.Zero, err
	}
	if uint32(outcome) >= winChance {
		return false, decimal.Zero, nil
	}
	return true, c.Payout(wager, winChance, decimals), nil
}

// Payout calcula o valor pago em caso de vitória sem validar a entrada.
// wager*(10000-edge)/winChance é algebricamente igual à fórmula com a escala
// e evita arredondar resultados intermediários.
func (c Calculator) Payout(wager decimal.Decimal, winChance uint32, decimals int32) decimal.Decimal {
	num := wager.Mul(decimal.NewFromInt(int64(fairness.OutcomeRange - c.HouseEdge)))
	q, _ := num.QuoRem(decimal.NewFromInt(int64(winChance)), decimals)
	return q
}

// Multiplier é o fator bruto pago em vitória, com 4 casas, para exibição.
func (c Calculator) Multiplier(winChance uint32) decimal.Decimal {
	if winChance == 0 {
		return decimal.Zero
	}
	edge := scale.Sub(decimal.NewFromInt(int64(c.HouseEdge)))
	q, _ := edge.QuoRem(decimal.NewFromInt(int64(winChance)), 4)
	return q
}

// Validate confere a forma da aposta antes de qualquer efeito.
func (c Calculator) Validate(wager decimal.Decimal, winChance uint32, decimals int32) error {
	if winChance == 0 || winChance >= fairness.OutcomeRange {
		return apperr.Errorf(apperr.InvalidArgument, "payout.validate", "win chance %d must be strictly between 0 and %d", winChance, fairness.OutcomeRange)
	}
	if !wager.IsPositive() {
		return apperr.Errorf(apperr.InvalidArgument, "payout.validate", "wager must be positive")
	}
	if !wager.Equal(wager.Truncate(decimals)) {
		return apperr.Errorf(apperr.InvalidArgument, "payout.validate", "wager has more than %d decimal places", decimals)
	}
	if c.HouseEdge > MaxHouseEdge {
		return apperr.Errorf(apperr.InvalidArgument, "payout.validate", "house edge %d out of range", c.HouseEdge)
	}
	return nil
}

// ChanceFromPercent converte a chance pedida (0–100, até 2 casas) para centésimos.
func ChanceFromPercent(p decimal.Decimal) (uint32, error) {
	h := p.Shift(2)
	if !h.Equal(h.Truncate(0)) {
		return 0, apperr.Errorf(apperr.InvalidArgument, "payout.chance", "win chance %s has more than two decimal places", p)
	}
	if !h.IsPositive() || h.GreaterThanOrEqual(scale) {
		return 0, apperr.Errorf(apperr.InvalidArgument, "payout.chance", "win chance %s must be strictly between 0 and 100", p)
	}
	return uint32(h.IntPart()), nil
}
