package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/nikhilbhutani/speechgateway/internal/apierror"
)

type ctxKey string

const principalKey ctxKey = "principal"

// Guard rejects every request that does not carry a valid bearer key.
type Guard struct {
	keys *KeySet
}

func NewGuard(keys *KeySet) *Guard {
	return &Guard{keys: keys}
}

func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := g.keys.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			apierror.Write(w, apierror.Unauthenticated(failureMessage(err), err))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return "Request is missing required authentication credential."
	case errors.Is(err, ErrMalformedCredential):
		return "Authorization header must use the Bearer scheme."
	default:
		return "API key not valid. Please pass a valid API key."
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}
