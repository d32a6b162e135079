package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/provably-fair-dice/internal/accounts"
	"github.com/radieske/provably-fair-dice/internal/dice-service/dto"
	"github.com/radieske/provably-fair-dice/internal/history"
	"github.com/radieske/provably-fair-dice/internal/ledger"
	"github.com/radieske/provably-fair-dice/internal/seeds"
	"github.com/radieske/provably-fair-dice/internal/settlement"
	"github.com/radieske/provably-fair-dice/internal/shared/apperr"
	"github.com/radieske/provably-fair-dice/internal/shared/config"
	"github.com/radieske/provably-fair-dice/pkg/contracts/events"
)

// AccountHeader carrega a conta autenticada pelo provedor de identidade.
const AccountHeader = "X-Account-ID"

// OperatorHeader carrega o token das rotas de operador (crédito manual).
const OperatorHeader = "X-Operator-Token"

// SeedEvents publica a revelação de seeds (tópico seed_rotated).
type SeedEvents interface {
	PublishSeedRotated(ctx context.Context, e events.SeedRotated) error
}

// API expõe os endpoints REST do dice-service
type API struct {
	Log           *zap.Logger
	Engine        *settlement.Engine
	Seeds         *seeds.Manager
	History       history.Store
	Ledger        ledger.Store
	Accounts      accounts.Directory
	Catalog       config.Catalog
	OperatorToken string       // vazio desliga as rotas de operador
	Events        SeedEvents   // opcional
	Feed          http.Handler // websocket do feed ao vivo, opcional
}

// Router retorna o roteador HTTP com os endpoints REST
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.accessLog)

	// leitura pública: feed, aposta por id e verificação
	r.Get("/v1/bets", a.recentBets)
	r.Get("/v1/bets/{id}", a.getBet)
	r.Post("/v1/verify", a.verify)
	if a.Feed != nil {
		r.Handle("/v1/feed/ws", a.Feed)
	}

	// rotas da conta autenticada
	r.Group(func(r chi.Router) {
		r.Use(requireAccount)
		r.Post("/v1/bets", a.placeBet)
		r.Get("/v1/accounts/me/bets", a.myBets)
		r.Get("/v1/seeds", a.currentSeeds)
		r.Post("/v1/seeds/rotate", a.rotateSeeds)
		r.Get("/v1/wallet", a.wallet)
	})

	// rotas de operador
	r.Group(func(r chi.Router) {
		r.Use(a.requireOperator)
		r.Post("/v1/operator/accounts/{id}/deposit", a.deposit)
	})
	return r
}

type ctxKey struct{}

// requireAccount lê a conta do header; o core confia no valor recebido.
func requireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(AccountHeader)
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing " + AccountHeader, Code: "UNAUTHENTICATED"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

// requireOperator confere o token de operador em tempo constante.
func (a *API) requireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.OperatorToken == "" {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "operator api disabled", Code: "FORBIDDEN"})
			return
		}
		tok := r.Header.Get(OperatorHeader)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "missing " + OperatorHeader, Code: "UNAUTHENTICATED"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(tok), []byte(a.OperatorToken)) != 1 {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "invalid operator token", Code: "FORBIDDEN"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func accountID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (a *API) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		a.Log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("requestId", middleware.GetReqID(r.Context())))
	})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf mapeia o tipo do erro para o status HTTP
func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidArgument:
		return http.StatusBadRequest
	case apperr.InsufficientFunds, apperr.AlreadyRotating:
		return http.StatusConflict
	case apperr.NotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusOf(kind)
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Msg != "" && kind != apperr.StorageError {
		msg = ae.Msg
	}
	if kind == apperr.StorageError {
		// detalhes de storage ficam no log
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "temporarily unavailable, retry"
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Code: string(kind)})
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Errorf(apperr.InvalidArgument, "http.decode", "bad json: %v", err)
	}
	return nil
}
