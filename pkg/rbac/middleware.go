package rbac

import (
	"context"
	"net/http"

	"github.com/orgkit/orgkit/pkg/contextkeys"
	"github.com/orgkit/orgkit/pkg/observability"
)

// ActorFromContext extracts the resolved actor placed by ActorMiddleware
func ActorFromContext(ctx context.Context) *Actor {
	actor, _ := ctx.Value(contextkeys.ActorKey).(*Actor)
	return actor
}

// ContextWithActor attaches a resolved actor to the context
func ContextWithActor(ctx context.Context, actor *Actor) context.Context {
	return context.WithValue(ctx, contextkeys.ActorKey, actor)
}

// UserIDResolver extracts the authenticated user id from a request. The
// session layer owns authentication; this package only consumes its result.
type UserIDResolver func(r *http.Request) (int64, bool)

// ActorMiddleware resolves the actor for every authenticated request and
// stores it in the request context for the permission gates downstream.
func ActorMiddleware(resolver *Resolver, userID UserIDResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := userID(r)
			if !ok {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			actor, err := resolver.Resolve(r.Context(), id)
			if err != nil {
				if CodeOf(err) == CodeNotFound {
					http.Error(w, "Authentication required", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Actor resolution failed", http.StatusInternalServerError)
				return
			}

			ctx := observability.WithUserID(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ContextWithActor(ctx, actor)))
		})
	}
}

// RequirePermission gates a handler on a single permission slug
func RequirePermission(slug string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if !actor.HasPermission(slug) {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission gates a handler on holding at least one of the slugs
func RequireAnyPermission(slugs ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			for _, slug := range slugs {
				if actor.HasPermission(slug) {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Error(w, "Insufficient permissions", http.StatusForbidden)
		})
	}
}

// RequireSystemUser gates a handler on holding a system role
func RequireSystemUser() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if actor == nil {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			if !actor.IsSystemUser {
				http.Error(w, "Insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
