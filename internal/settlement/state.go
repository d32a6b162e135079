package settlement

// State é a etapa em que uma liquidação está.
// Received → Validated → SeedBound → Derived → LedgerDebited → Resolved → Persisted → Completed;
// Failed pode ser alcançado de qualquer etapa.
type State string

const (
	Received      State = "received"
	Validated     State = "validated"
	LedgerDebited State = "ledger_debited"
	SeedBound     State = "seed_bound"
	Derived       State = "derived"
	Resolved      State = "resolved"
	Persisted     State = "persisted"
	Completed     State = "completed"
	Failed        State = "failed"
)

// Os efeitos no ledger começam no débito: só a partir daqui há o que compensar.
func (s State) hasLedgerEffects() bool {
	switch s {
	case LedgerDebited, SeedBound, Derived, Resolved, Persisted:
		return true
	}
	return false
}
