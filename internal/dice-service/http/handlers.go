package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/dice-service/dto"
	"github.com/radieske/provably-fair-dice/internal/fairness"
	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/settlement"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// placeBet liquida a aposta de ponta a ponta e devolve o resultado
func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceBetRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	res, err := a.Engine.Settle(r.Context(), settlement.Request{
		AccountID:  accountID(r),
		Currency:   strings.ToUpper(req.Currency),
		Wager:      req.WagerAmount,
		WinChance:  req.WinChance,
		ClientSeed: req.ClientSeed,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PlaceBetResponse{
		Result:         res.Won,
		UpdatedBalance: res.NewBalance,
		BetID:          res.BetID,
		Payout:         res.Payout,
		Currency:       res.Currency,
		Wager:          res.Wager,
		WinChance:      fairness.Outcome(res.WinChance).Percent(),
		Outcome:        res.Outcome.Percent(),
		Multiplier:     res.Multiplier,
		ServerSeedHash: res.ServerSeedHash,
		ClientSeed:     res.ClientSeed,
		Nonce:          res.Nonce,
		CreatedAt:      res.CreatedAt,
	})
}

// recentBets devolve o feed de apostas, mais novas primeiro
func (a *API) recentBets(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	bets, err := a.History.Recent(r.Context(), limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) myBets(w http.ResponseWriter, r *http.Request) {
	limit, offset := paging(r)
	bets, err := a.History.ByAccount(r.Context(), accountID(r), limit, offset)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bets)
}

func (a *API) getBet(w http.ResponseWriter, r *http.Request) {
	bet, err := a.History.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// currentSeeds devolve o compromisso do par ativo, criando um se preciso
func (a *API) currentSeeds(w http.ResponseWriter, r *http.Request) {
	sp, err := a.Seeds.Commit(r.Context(), accountID(r), "")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sp)
}

// rotateSeeds encerra o par ativo, revela o server seed e publica seed_rotated
func (a *API) rotateSeeds(w http.ResponseWriter, r *http.Request) {
	var req dto.RotateSeedsRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	acct := accountID(r)
	// sem par ativo ainda: cria um para ter o que revelar
	if _, err := a.Seeds.Commit(r.Context(), acct, ""); err != nil {
		a.writeError(w, r, err)
		return
	}
	rot, err := a.Seeds.Rotate(r.Context(), acct, req.ClientSeed)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	if a.Events != nil && rot.Revealed.ServerSeed != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
		err := a.Events.PublishSeedRotated(ctx, events.SeedRotated{
			AccountID:          acct,
			RevealedServerSeed: *rot.Revealed.ServerSeed,
			RevealedSeedHash:   rot.Revealed.ServerSeedHash,
			ClientSeed:         rot.Revealed.ClientSeed,
			FinalNonce:         rot.Revealed.Nonce,
			NextServerSeedHash: rot.Next.ServerSeedHash,
			Ts:                 time.Now().UTC(),
		})
		cancel()
		if err != nil {
			a.Log.Warn("publish seed_rotated failed", zap.String("accountId", acct), zap.Error(err))
		}
	}
	writeJSON(w, http.StatusOK, dto.RotateSeedsResponse{Revealed: rot.Revealed, Next: rot.Next})
}

// verify recalcula o resultado a partir do seed revelado
func (a *API) verify(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.ServerSeed == "" || req.ServerSeedHash == "" {
		a.writeError(w, r, apperr.Errorf(apperr.InvalidArgument, "http.verify", "serverSeed and serverSeedHash are required"))
		return
	}
	p := fairness.Proof{
		ServerSeed:     req.ServerSeed,
		ServerSeedHash: req.ServerSeedHash,
		ClientSeed:     req.ClientSeed,
		Nonce:          req.Nonce,
	}
	if req.Outcome != nil {
		o := fairness.Outcome(*req.Outcome)
		p.ExpectedOutcome = &o
	}
	v := a.Engine.Deriver().Verify(p)
	writeJSON(w, http.StatusOK, dto.VerifyResponse{
		Valid:        v.Valid(),
		Outcome:      uint32(v.Outcome),
		Roll:         v.Outcome.Percent(),
		ComputedHash: v.ComputedHash,
		HashMatches:  v.HashMatches,
		OutcomeMatch: v.OutcomeMatch,
	})
}

func (a *API) wallet(w http.ResponseWriter, r *http.Request) {
	acct := accountID(r)
	bals, err := a.Ledger.Balances(r.Context(), acct)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	// moedas do catálogo sem movimento aparecem com zero
	for _, c := range a.Catalog.Currencies {
		if _, ok := bals[c.Code]; !ok {
			bals[c.Code] = decimal.Zero
		}
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{AccountID: acct, Balances: bals})
}

// deposit credita saldo na conta do path; a ref evita crédito duplicado em retry
func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	cur, ok := a.Catalog.Lookup(req.Currency)
	switch {
	case !ok:
		a.writeError(w, r, apperr.Errorf(apperr.InvalidArgument, "http.deposit", "unknown currency %q", req.Currency))
		return
	case !req.Amount.IsPositive() || !req.Amount.Equal(req.Amount.Truncate(cur.Decimals)):
		a.writeError(w, r, apperr.Errorf(apperr.InvalidArgument, "http.deposit", "amount must be positive with at most %d decimals", cur.Decimals))
		return
	case req.Ref == "":
		a.writeError(w, r, apperr.Errorf(apperr.InvalidArgument, "http.deposit", "ref is required"))
		return
	}
	acct := chi.URLParam(r, "id")
	prof, err := a.Accounts.Lookup(r.Context(), acct)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	switch {
	case prof.Suspended:
		a.writeError(w, r, apperr.Errorf(apperr.InvalidArgument, "http.deposit", "account %s is suspended", acct))
		return
	case !prof.Enabled(cur.Code):
		a.writeError(w, r, apperr.Errorf(apperr.InvalidArgument, "http.deposit", "currency %s not enabled for account", cur.Code))
		return
	}
	bal, err := a.Ledger.ApplyDelta(r.Context(), ledger.Mutation{
		AccountID: acct,
		Currency:  cur.Code,
		Delta:     req.Amount,
		Ref:       "deposit:" + acct + ":" + cur.Code + ":" + req.Ref,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Log.Info("deposit applied", zap.String("accountId", acct), zap.String("currency", cur.Code), zap.String("amount", req.Amount.String()))
	writeJSON(w, http.StatusOK, dto.DepositResponse{Currency: cur.Code, Balance: bal})
}

func paging(r *http.Request) (int, int) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	return limit, offset
}
