package alpaca

import "context"

// Transaction is the per-request bookkeeping record handed to handlers.
// It is built once by the Dispatcher and must be treated as read-only.
type Transaction struct {
	ClientTransactionID uint32
	ServerTransactionID uint32
	ClientID            string
	Verb                string
	Path                string
	Method              string
	Params              map[string]string
}

// Param returns a request parameter by its lowercase name.
func (t *Transaction) Param(name string) (string, bool) {
	v, ok := t.Params[name]
	return v, ok
}

// Handler serves one bound method.
type Handler interface {
	Handle(ctx context.Context, tx *Transaction) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, tx *Transaction) Response

// Handle calls f(ctx, tx).
func (f HandlerFunc) Handle(ctx context.Context, tx *Transaction) Response {
	return f(ctx, tx)
}
