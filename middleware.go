package recordperm

import (
	"context"
	"errors"
	"net/http"
)

type decisionCtxKey struct{}

// ContextWithDecision attaches a decision to ctx.
func ContextWithDecision(ctx context.Context, d Decision) context.Context {
	return context.WithValue(ctx, decisionCtxKey{}, d)
}

// DecisionFromContext returns the decision a Guard attached, if any.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	d, ok := ctx.Value(decisionCtxKey{}).(Decision)
	return d, ok
}

// GuardOptions configures the net/http middleware that re-checks a mutation
// server side. Record and User are supplied by the application.
type GuardOptions struct {
	Engine   *Engine
	Profile  string
	Action   Action
	Record   func(r *http.Request) (*Record, error)
	User     func(r *http.Request) *ActingUser
	OnDenied func(w http.ResponseWriter, r *http.Request, d Decision)
	OnError  func(w http.ResponseWriter, r *http.Request, err error)
}

// NewGuard returns middleware that lets the request through only when the
// profile allows action on the record the request targets.
func NewGuard(opts GuardOptions) func(next http.Handler) http.Handler {
	if opts.OnDenied == nil {
		opts.OnDenied = func(w http.ResponseWriter, r *http.Request, d Decision) {
			writeJSON(w, http.StatusForbidden, d)
		}
	}
	if opts.OnError == nil {
		opts.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
			writeError(w, err)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if opts.Engine == nil || opts.Record == nil || opts.User == nil {
				opts.OnError(w, r, errors.New("guard misconfigured: Engine, Record and User are required"))
				return
			}
			rec, err := opts.Record(r)
			if err != nil {
				opts.OnError(w, r, err)
				return
			}
			d, err := opts.Engine.Check(r.Context(), opts.Action, rec, opts.User(r), opts.Profile)
			if err != nil {
				opts.OnError(w, r, err)
				return
			}
			r = r.WithContext(ContextWithDecision(r.Context(), d))
			if !d.Allowed {
				opts.OnDenied(w, r, d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
