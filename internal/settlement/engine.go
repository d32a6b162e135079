package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/accounts"
	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/history"
	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/payout"
	"github.com/radieske/provably-fair-dice/internal/seeds"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// Request é a aposta pedida pelo jogador. WinChance vem em porcento (0–100, até 2 casas).
// ClientSeed é opcional; se informado deve ser o client seed do par ativo.
type Request struct {
	AccountID  string
	Currency   string
	Wager      decimal.Decimal
	WinChance  decimal.Decimal
	ClientSeed string
}

// Result é devolvido quando a aposta chega a Completed.
type Result struct {
	BetID          string
	AccountID      string
	Currency       string
	Wager          decimal.Decimal
	WinChance      uint32
	Multiplier     decimal.Decimal
	Outcome        fairness.Outcome
	Won            bool
	Payout         decimal.Decimal
	NewBalance     decimal.Decimal
	ServerSeedHash string
	ClientSeed     string
	Nonce          uint64
	CreatedAt      time.Time
}

// SeedBinder é o recorte do seeds.Manager usado na liquidação.
type SeedBinder interface {
	Commit(ctx context.Context, accountID, clientSeed string) (seeds.SeedPair, error)
	Bind(ctx context.Context, accountID string) (seeds.Binding, error)
}

// Publisher recebe os eventos do motor. Publicação de BetSettled é best effort.
type Publisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
	PublishCompensationRequired(ctx context.Context, e events.CompensationRequired) error
}

// Deps são os colaboradores do motor. Publisher e Metrics são opcionais.
type Deps struct {
	Seeds     SeedBinder
	Ledger    ledger.Store
	History   history.Store
	Accounts  accounts.Directory
	Publisher Publisher
	Metrics   *Metrics
}

// Options são os parâmetros do jogo.
type Options struct {
	Catalog             config.Catalog
	Algorithm           fairness.Algorithm
	HouseEdge           uint32
	Timeout             time.Duration // 0 = sem prazo próprio
	CompensationRetries int
	RetryBackoff        time.Duration
	CompensationTimeout time.Duration
}

// Engine liquida apostas de ponta a ponta. É seguro para uso concorrente;
// a exclusão mútua fica no ledger (conta+moeda) e no seeds (conta).
type Engine struct {
	seeds    SeedBinder
	ledger   ledger.Store
	history  history.Store
	accounts accounts.Directory
	publ     Publisher
	metrics  *Metrics
	log      *zap.Logger

	catalog  config.Catalog
	deriver  fairness.Deriver
	calc     payout.Calculator
	timeout  time.Duration
	retries  int
	backoff  time.Duration
	compTime time.Duration

	now   func() time.Time
	newID func() string
}

func NewEngine(d Deps, o Options, log *zap.Logger) *Engine {
	e := &Engine{
		seeds:    d.Seeds,
		ledger:   d.Ledger,
		history:  d.History,
		accounts: d.Accounts,
		publ:     d.Publisher,
		metrics:  d.Metrics,
		log:      log,
		catalog:  o.Catalog,
		deriver:  fairness.Deriver{Algorithm: o.Algorithm},
		calc:     payout.Calculator{HouseEdge: o.HouseEdge},
		timeout:  o.Timeout,
		retries:  o.CompensationRetries,
		backoff:  o.RetryBackoff,
		compTime: o.CompensationTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(prometheus.NewRegistry())
	}
	if e.backoff <= 0 {
		e.backoff = 50 * time.Millisecond
	}
	if e.compTime <= 0 {
		e.compTime = 5 * time.Second
	}
	return e
}

// Calculator expõe a regra de pagamento configurada (multiplicador na API).
func (e *Engine) Calculator() payout.Calculator { return e.calc }

// Deriver expõe a derivação configurada (verificação na API).
func (e *Engine) Deriver() fairness.Deriver { return e.deriver }

// run acompanha uma liquidação: estado atual e deltas já aplicados no ledger.
type run struct {
	betID    string
	req      Request
	currency config.Currency
	chance   uint32
	state    State
	applied  []decimal.Decimal
	balance  decimal.Decimal
	log      *zap.Logger
}

func (r *run) advance(s State) {
	r.state = s
	r.log.Debug("settlement state", zap.String("state", string(s)))
}

// Settle executa a aposta. Em qualquer falha depois do débito os deltas aplicados
// são revertidos antes de devolver o erro, mesmo com ctx cancelado.
func (e *Engine) Settle(ctx context.Context, req Request) (Result, error) {
	start := e.now()
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	r := &run{betID: e.newID(), req: req, state: Received}
	r.log = e.log.With(zap.String("betId", r.betID), zap.String("accountId", req.AccountID))

	res, err := e.execute(ctx, r)
	e.metrics.Latency.Observe(e.now().Sub(start).Seconds())
	if err == nil {
		return res, nil
	}

	failedAt := r.state
	if failedAt.hasLedgerEffects() {
		if cerr := e.compensate(ctx, r, err); cerr != nil {
			err = apperr.Wrap(apperr.StorageError, "settlement.compensate", errors.Join(err, cerr))
		}
	}
	r.state = Failed
	kind := apperr.KindOf(err)
	e.metrics.Failures.WithLabelValues(string(kind), string(failedAt)).Inc()
	if kind == apperr.StorageError {
		r.log.Error("settlement failed", zap.String("state", string(failedAt)), zap.Error(err))
	} else {
		r.log.Info("settlement rejected", zap.String("state", string(failedAt)), zap.String("kind", string(kind)))
	}
	return Result{}, err
}

func (e *Engine) execute(ctx context.Context, r *run) (Result, error) {
	req := r.req

	// 1) validação: nenhuma falha aqui toca o ledger
	if err := e.validate(ctx, r); err != nil {
		return Result{}, err
	}
	r.advance(Validated)
	if err := checkpoint(ctx); err != nil {
		return Result{}, err
	}

	// 2) débito antecipado da aposta
	bal, err := e.ledger.ApplyDelta(ctx, ledger.Mutation{
		AccountID: req.AccountID,
		Currency:  r.currency.Code,
		Delta:     req.Wager.Neg(),
		Ref:       ref(r.betID, "debit"),
	})
	if err != nil {
		return Result{}, err
	}
	r.applied = append(r.applied, req.Wager.Neg())
	r.balance = bal
	r.advance(LedgerDebited)
	e.metrics.Wagered.WithLabelValues(r.currency.Code).Add(req.Wager.InexactFloat64())

	// 3) par de seeds + nonce, derivação
	if err := checkpoint(ctx); err != nil {
		return Result{}, err
	}
	b, err := e.seeds.Bind(ctx, req.AccountID)
	if err != nil {
		return Result{}, err
	}
	r.advance(SeedBound)
	if req.ClientSeed != "" && req.ClientSeed != b.ClientSeed {
		// o par foi rotacionado entre a validação e o bind
		return Result{}, apperr.Errorf(apperr.InvalidArgument, "settlement.bind", "client seed changed during settlement")
	}
	outcome := e.deriver.Derive(b.ServerSeed, b.ClientSeed, b.Nonce)
	r.advance(Derived)

	// 4) resolução e crédito do pagamento
	if err := checkpoint(ctx); err != nil {
		return Result{}, err
	}
	won, pay, err := e.calc.Compute(req.Wager, r.chance, outcome, r.currency.Decimals)
	if err != nil {
		return Result{}, err
	}
	if won && pay.IsPositive() {
		bal, err = e.ledger.ApplyDelta(ctx, ledger.Mutation{
			AccountID: req.AccountID,
			Currency:  r.currency.Code,
			Delta:     pay,
			Ref:       ref(r.betID, "payout"),
		})
		if err != nil {
			return Result{}, err
		}
		r.applied = append(r.applied, pay)
		r.balance = bal
	}
	r.advance(Resolved)

	// 5) registro imutável
	if err := checkpoint(ctx); err != nil {
		return Result{}, err
	}
	created := e.now().UTC()
	bet := history.Bet{
		ID:             r.betID,
		AccountID:      req.AccountID,
		Currency:       r.currency.Code,
		Wager:          req.Wager,
		WinChance:      r.chance,
		ServerSeedHash: b.ServerSeedHash,
		ClientSeed:     b.ClientSeed,
		Nonce:          b.Nonce,
		Outcome:        uint32(outcome),
		Won:            won,
		Payout:         pay,
		CreatedAt:      created,
	}
	if err := e.history.Append(ctx, bet); err != nil {
		return Result{}, err
	}
	r.advance(Persisted)

	// 6) concluída
	r.advance(Completed)
	result := "lost"
	if won {
		result = "won"
	}
	e.metrics.Settled.WithLabelValues(result, r.currency.Code).Inc()
	r.log.Info("bet settled",
		zap.String("currency", r.currency.Code),
		zap.String("wager", req.Wager.String()),
		zap.Uint32("winChance", r.chance),
		zap.Uint32("outcome", uint32(outcome)),
		zap.Bool("won", won),
		zap.String("payout", pay.String()),
		zap.Uint64("nonce", b.Nonce))

	e.publishSettled(ctx, bet)

	return Result{
		BetID:          r.betID,
		AccountID:      req.AccountID,
		Currency:       r.currency.Code,
		Wager:          req.Wager,
		WinChance:      r.chance,
		Multiplier:     e.calc.Multiplier(r.chance),
		Outcome:        outcome,
		Won:            won,
		Payout:         pay,
		NewBalance:     r.balance,
		ServerSeedHash: b.ServerSeedHash,
		ClientSeed:     b.ClientSeed,
		Nonce:          b.Nonce,
		CreatedAt:      created,
	}, nil
}

func (e *Engine) validate(ctx context.Context, r *run) error {
	const op = "settlement.validate"
	req := r.req

	cur, ok := e.catalog.Lookup(req.Currency)
	if !ok {
		return apperr.Errorf(apperr.InvalidArgument, op, "unknown currency %q", req.Currency)
	}
	r.currency = cur

	chance, err := payout.ChanceFromPercent(req.WinChance)
	if err != nil {
		return err
	}
	r.chance = chance
	if err := e.calc.Validate(req.Wager, chance, cur.Decimals); err != nil {
		return err
	}
	if cur.MinWager.IsPositive() && req.Wager.LessThan(cur.MinWager) {
		return apperr.Errorf(apperr.InvalidArgument, op, "wager below minimum %s %s", cur.MinWager, cur.Code)
	}

	prof, err := e.accounts.Lookup(ctx, req.AccountID)
	if err != nil {
		return err
	}
	if prof.Suspended {
		return apperr.Errorf(apperr.InvalidArgument, op, "account is suspended")
	}
	if !prof.Enabled(cur.Code) {
		return apperr.Errorf(apperr.InvalidArgument, op, "currency %s is not enabled for the account", cur.Code)
	}

	sp, err := e.seeds.Commit(ctx, req.AccountID, req.ClientSeed)
	if err != nil {
		return err
	}
	if req.ClientSeed != "" && req.ClientSeed != sp.ClientSeed {
		return apperr.Errorf(apperr.InvalidArgument, op, "client seed differs from the active pair; rotate seeds to change it")
	}
	return nil
}

func (e *Engine) publishSettled(ctx context.Context, b history.Bet) {
	if e.publ == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	err := e.publ.PublishBetSettled(pctx, events.BetSettled{
		BetID:          b.ID,
		AccountID:      b.AccountID,
		Currency:       b.Currency,
		Wager:          b.Wager.String(),
		WinChance:      b.WinChance,
		Outcome:        b.Outcome,
		Won:            b.Won,
		Payout:         b.Payout.String(),
		ServerSeedHash: b.ServerSeedHash,
		ClientSeed:     b.ClientSeed,
		Nonce:          b.Nonce,
		CreatedAt:      b.CreatedAt,
	})
	if err != nil {
		e.log.Warn("publish bet_settled failed", zap.String("betId", b.ID), zap.Error(err))
	}
}

// checkpoint transforma cancelamento/timeout do chamador em StorageError.
func checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperr.Wrap(apperr.StorageError, "settlement", err)
	}
	return nil
}

// ref monta as referências idempotentes do ledger: bet:<id>:<etapa>
func ref(betID, step string) string { return "bet:" + betID + ":" + step }
