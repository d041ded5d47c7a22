package authflow

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/yourorg/crmbridge/internal/observability/metrics"
	"github.com/yourorg/crmbridge/internal/session"
)

// authParams are the URL query parameters that establish the auth context.
// They are stripped before any redirect target is persisted so auth material
// never leaks into the post-login URL.
var authParams = []string{"token", "userId", "uid", "tenant", "db", "email", "user"}

// Decision captures what an incoming URL says about how to authenticate.
type Decision struct {
	Method   Method
	Token    string
	UserID   string
	TenantID string
	Email    string
	// RedirectTo is the page the user originally tried to reach, stripped of
	// auth query parameters.
	RedirectTo string
}

// Inspect reads the auth parameters of an incoming URL. A token plus user id
// selects the token method; otherwise an email selects the email method;
// otherwise the user logs in manually.
func Inspect(u *url.URL) Decision {
	q := u.Query()
	d := Decision{
		Method:     MethodManual,
		Token:      q.Get("token"),
		UserID:     pick(q, "userId", "uid"),
		TenantID:   pick(q, "tenant", "db"),
		Email:      pick(q, "email", "user"),
		RedirectTo: stripAuthParams(u),
	}
	switch {
	case d.Token != "":
		d.Method = MethodToken
	case d.Email != "":
		d.Method = MethodEmail
	}
	return d
}

func pick(q url.Values, keys ...string) string {
	for _, k := range keys {
		if v := q.Get(k); v != "" {
			return v
		}
	}
	return ""
}

func stripAuthParams(u *url.URL) string {
	q := u.Query()
	for _, p := range authParams {
		q.Del(p)
	}
	target := u.Path
	if target == "" {
		target = "/"
	}
	if encoded := q.Encode(); encoded != "" {
		target += "?" + encoded
	}
	return target
}

// LoginDriver is the session guard primitive the merger drives.
type LoginDriver interface {
	LoginWithToken(ctx context.Context, userID, secret string) error
	LoginWithCredentials(ctx context.Context, email, password string) error
}

// Outcome reports what the merger decided and whether auto-login succeeded.
type Outcome struct {
	Method     Method
	RedirectTo string
	AutoLogin  bool
	Context    *AuthContext
}

// Merger picks one auth context on application load, drives the matching
// login flow and persists the chosen method for later store operations.
type Merger struct {
	guard    LoginDriver
	store    ContextStore
	fallback session.Credentials
	logger   *slog.Logger
}

// NewMerger creates an auth context merger
func NewMerger(guard LoginDriver, store ContextStore, fallback session.Credentials, logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{guard: guard, store: store, fallback: fallback, logger: logger}
}

// Bootstrap inspects the incoming URL and, for a token or email context,
// attempts the corresponding auto-login. Auto-login failure is non-fatal: it
// is logged and the caller falls back to the manual login form. For a manual
// context nothing is persisted.
func (m *Merger) Bootstrap(ctx context.Context, sessionID string, u *url.URL) Outcome {
	d := Inspect(u)
	out := Outcome{Method: d.Method, RedirectTo: d.RedirectTo}

	switch d.Method {
	case MethodToken:
		ac := &AuthContext{
			AuthMethod: MethodToken,
			AuthToken:  d.Token,
			TenantID:   d.TenantID,
			UserEmail:  d.Email,
		}
		m.persist(ctx, sessionID, ac)
		out.Context = ac

		if d.UserID == "" {
			m.logger.Warn("token present but user id missing, falling back to manual login")
			metrics.ObserveLogin(string(MethodToken), "failed")
			return out
		}
		if err := m.guard.LoginWithToken(ctx, d.UserID, d.Token); err != nil {
			m.logger.Warn("token auto-login failed, falling back to manual login",
				slog.String("error", err.Error()),
			)
			metrics.ObserveLogin(string(MethodToken), "failed")
			return out
		}
		metrics.ObserveLogin(string(MethodToken), "ok")
		out.AutoLogin = true

	case MethodEmail:
		ac := &AuthContext{
			AuthMethod: MethodEmail,
			TenantID:   d.TenantID,
			UserEmail:  d.Email,
		}
		m.persist(ctx, sessionID, ac)
		out.Context = ac

		// The URL email identifies the user; the session itself is created
		// with the configured fallback credentials. Observed behavior of the
		// deployment this replaces, kept as-is.
		if err := m.guard.LoginWithCredentials(ctx, m.fallback.Email, m.fallback.Password); err != nil {
			m.logger.Warn("email auto-login failed, falling back to manual login",
				slog.String("error", err.Error()),
			)
			metrics.ObserveLogin(string(MethodEmail), "failed")
			return out
		}
		metrics.ObserveLogin(string(MethodEmail), "ok")
		out.AutoLogin = true

	default:
		// Manual: nothing is written until the user submits the form.
	}

	return out
}

func (m *Merger) persist(ctx context.Context, sessionID string, ac *AuthContext) {
	if err := m.store.Write(ctx, sessionID, ac); err != nil {
		m.logger.Warn("failed to persist auth context", slog.String("error", err.Error()))
	}
}
