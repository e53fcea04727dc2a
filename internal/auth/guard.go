package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"neo-guardian/internal/audit"
	"neo-guardian/internal/metrics"
	"neo-guardian/internal/observability"
	"neo-guardian/internal/security"
)

// HeaderAPIKey carries the raw API-key credential.
const HeaderAPIKey = "X-API-Key"

type principalContextKey struct{}
type apiKeyContextKey struct{}

// ContextWithUser returns ctx carrying user as the authenticated principal.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, principalContextKey{}, user)
}

// UserFromContext returns the authenticated principal placed by the guard.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(principalContextKey{}).(User)
	return user, ok
}

// APIKeyFromContext returns the API key the request authenticated with, if
// it used one.
func APIKeyFromContext(ctx context.Context) (APIKey, bool) {
	key, ok := ctx.Value(apiKeyContextKey{}).(APIKey)
	return key, ok
}

// Guard resolves inbound credentials into principals and enforces role and
// scope requirements. Every failure is reported to the caller with the
// minimum information needed to act.
type Guard struct {
	tokens  *TokenManager
	store   Store
	lockout LockoutPolicy
	audit   audit.Recorder
	logger  *observability.Logger
	now     func() time.Time
}

func NewGuard(tokens *TokenManager, store Store, lockout LockoutPolicy, recorder audit.Recorder, logger *observability.Logger) *Guard {
	return &Guard{
		tokens:  tokens,
		store:   store,
		lockout: lockout,
		audit:   recorder,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Test hook.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Authenticate requires a valid bearer token or API key and loads the
// principal into the request context.
func (g *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, apiKey, err := g.resolve(r)
		if err != nil {
			g.deny(w, r, err)
			return
		}

		ctx := ContextWithUser(r.Context(), user)
		if apiKey != nil {
			ctx = context.WithValue(ctx, apiKeyContextKey{}, *apiKey)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Optional resolves a credential when one is presented but never fails the
// request; any resolution error degrades silently to anonymous.
func (g *Guard) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, apiKey, err := g.resolve(r)
		if err == nil {
			ctx := ContextWithUser(r.Context(), user)
			if apiKey != nil {
				ctx = context.WithValue(ctx, apiKeyContextKey{}, *apiKey)
			}
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles passes principals holding the admin role or any of the listed
// roles. Must run inside Authenticate.
func (g *Guard) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if user.HasRole("admin") {
				next.ServeHTTP(w, r)
				return
			}
			for _, role := range roles {
				if user.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.GuardDenialsTotal.WithLabelValues("role").Inc()
			g.audit.Record(r.Context(), audit.Event{
				Action: "authorization_failed",
				Status: audit.StatusFailure,
				UserID: user.ID,
				Detail: "required roles: " + strings.Join(roles, ","),
			})
			writeError(w, http.StatusForbidden, "insufficient permissions")
		})
	}
}

// RequireScope passes requests whose API key grants the scope (or admin).
// Bearer-token requests are rejected: scopes belong to keys, not sessions.
func (g *Guard) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := APIKeyFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "an API key is required for this endpoint")
				return
			}

			if !key.HasScope(scope) {
				metrics.GuardDenialsTotal.WithLabelValues("scope").Inc()
				g.audit.Record(r.Context(), audit.Event{
					Action: "scope_denied",
					Status: audit.StatusFailure,
					UserID: key.UserID,
					Detail: "required scope: " + scope,
				})
				writeError(w, http.StatusForbidden, "required scope: "+scope)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ScopedAccess enforces scope on API-key callers and lets bearer sessions
// through untouched. Must run inside Authenticate.
func (g *Guard) ScopedAccess(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := APIKeyFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if !key.HasScope(scope) {
				metrics.GuardDenialsTotal.WithLabelValues("scope").Inc()
				g.audit.Record(r.Context(), audit.Event{
					Action: "scope_denied",
					Status: audit.StatusFailure,
					UserID: key.UserID,
					Detail: "required scope: " + scope,
				})
				writeError(w, http.StatusForbidden, "required scope: "+scope)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// resolve turns the request's credential into a principal. Bearer tokens win
// over API keys when both are present.
func (g *Guard) resolve(r *http.Request) (User, *APIKey, error) {
	ctx := r.Context()

	if token := bearerToken(r); token != "" {
		claims, ok := g.tokens.Verify(ctx, token, TokenTypeAccess)
		if !ok {
			metrics.TokenVerificationsTotal.WithLabelValues("failure").Inc()
			return User{}, nil, ErrUnauthenticated
		}
		metrics.TokenVerificationsTotal.WithLabelValues("success").Inc()

		user, err := g.loadPrincipal(ctx, claims.Subject)
		if err != nil {
			return User{}, nil, err
		}
		return user, nil, nil
	}

	rawKey := strings.TrimSpace(r.Header.Get(HeaderAPIKey))
	if rawKey == "" {
		return User{}, nil, ErrUnauthenticated
	}

	key, err := g.store.GetAPIKeyByHash(ctx, security.HashToken(rawKey))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, nil, ErrUnauthenticated
		}
		g.logger.Error("api_key_lookup_failed", map[string]any{"error": err.Error()})
		return User{}, nil, ErrUnauthenticated
	}
	if key.IsExpired(g.now()) {
		return User{}, nil, ErrUnauthenticated
	}

	user, err := g.loadPrincipal(ctx, key.UserID)
	if err != nil {
		return User{}, nil, err
	}

	if err := g.store.TouchAPIKeyUsage(ctx, key.ID, g.now()); err != nil {
		g.logger.Error("api_key_touch_failed", map[string]any{"error": err.Error()})
	}

	return user, &key, nil
}

func (g *Guard) loadPrincipal(ctx context.Context, userID string) (User, error) {
	user, err := g.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUnauthenticated
		}
		g.logger.Error("principal_lookup_failed", map[string]any{"error": err.Error()})
		return User{}, ErrUnauthenticated
	}
	if !user.IsActive {
		return User{}, ErrUnauthenticated
	}
	if g.lockout.IsLocked(&user, g.now()) {
		return User{}, ErrAccountLocked{Until: *user.LockedUntil}
	}
	return user, nil
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, err error) {
	var lockedErr ErrAccountLocked
	if errors.As(err, &lockedErr) {
		g.audit.Record(r.Context(), audit.Event{
			Action: "authentication_failed",
			Status: audit.StatusFailure,
			Detail: "account locked",
		})
		retryAfter := int(lockedErr.Until.Sub(g.now()).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusForbidden, "account temporarily locked")
		return
	}

	g.audit.Record(r.Context(), audit.Event{
		Action: "authentication_failed",
		Status: audit.StatusFailure,
		Detail: "invalid or missing credentials",
	})
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "not authenticated")
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
