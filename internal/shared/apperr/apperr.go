package apperr

import (
	"errors"
	"fmt"
)

// Kind é o tipo estável de falha devolvido ao chamador.
type Kind string

const (
	InvalidArgument   Kind = "INVALID_ARGUMENT"
	InsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	StorageError      Kind = "STORAGE_ERROR"
	NotFound          Kind = "NOT_FOUND"
	AlreadyRotating   Kind = "ALREADY_ROTATING"
)

// Retryable indica se o cliente pode repetir a mesma requisição.
func (k Kind) Retryable() bool { return k == StorageError }

// Error carrega o tipo da falha, a operação onde ocorreu e a causa original
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New cria um erro sem causa, útil para sentinelas de pacote.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Errorf cria um erro de validação/negócio com mensagem formatada.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap anexa kind e operação a um erro existente. Retorna nil se err for nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf devolve o Kind mais externo da cadeia; erros desconhecidos viram StorageError.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return StorageError
}

// Is informa se err (ou alguma causa) é do kind pedido.
// Percorre também os ramos de errors.Join.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(*Error); ok && e.Kind == kind {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if Is(inner, kind) {
				return true
			}
		}
	case interface{ Unwrap() error }:
		return Is(u.Unwrap(), kind)
	}
	return false
}
