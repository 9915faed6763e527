package middleware

import (
	"net/http"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/internal/access"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// RequireAccess runs access.Authorize for action against the context actor
// before the handler. Callers with no identity get UNAUTHORIZED first.
func RequireAccess(action access.Action, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			err := access.Authorize(actor, action, access.Resource{})
			if err != nil && actor.UserID == "" {
				err = pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
			}
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
