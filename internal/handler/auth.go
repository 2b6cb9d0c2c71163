package handler

import (
	"context"  // context with cancellation for store calls
	"errors"   // sentinel comparison against repository errors
	"net/http" // HTTP status codes and cookie primitives
	"strconv"  // subject <-> user id conversion
	"strings"  // normalization helpers
	"time"     // timeouts for store calls

	"github.com/google/uuid"      // session ids
	"github.com/labstack/echo/v4" // Echo framework for HTTP routing
	"github.com/rs/zerolog/log"   // structured logging for server-side detail

	"github.com/iliyamo/blog-auth-service/internal/apperr"
	"github.com/iliyamo/blog-auth-service/internal/config"
	"github.com/iliyamo/blog-auth-service/internal/model"
	"github.com/iliyamo/blog-auth-service/internal/queue"
	"github.com/iliyamo/blog-auth-service/internal/repository"
	"github.com/iliyamo/blog-auth-service/internal/token"
	"github.com/iliyamo/blog-auth-service/internal/utils"
)

// SessionStore is the slice of the session repository the auth flows use.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	Rotate(ctx context.Context, oldID, presentedDigest string, next *model.Session) error
	Revoke(ctx context.Context, sessionID string) error
	RevokeAllForUser(ctx context.Context, userID uint64, role string) error
}

// UserStore is the slice of the user repository the auth flows use.
type UserStore interface {
	Upsert(ctx context.Context, email, role string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	DeleteByID(ctx context.Context, id uint64) error
}

// OTPFlow runs the passcode request and verify flows.
type OTPFlow interface {
	Request(ctx context.Context, email, sourceIP string) error
	Verify(ctx context.Context, email, code string) (string, error)
}

// LoginThrottle gates the admin password flow per source address.
type LoginThrottle interface {
	IsLocked(ctx context.Context, addr string) (bool, error)
	RecordFailure(ctx context.Context, addr string) (bool, error)
	RecordSuccess(ctx context.Context, addr string) error
}

// PublishFunc sends one security event, best effort. Failures are the
// publisher's problem; handlers never block a response on them.
type PublishFunc func(ctx context.Context, ev queue.SecurityEvent) error

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Issuer   *token.Issuer
	Sessions SessionStore
	Users    UserStore
	OTP      OTPFlow
	Throttle LoginThrottle
	Publish  PublishFunc
}

func NewAuthHandler(cfg config.Config, iss *token.Issuer, s SessionStore, u UserStore, o OTPFlow, t LoginThrottle, p PublishFunc) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Issuer: iss, Sessions: s, Users: u, OTP: o, Throttle: t, Publish: p}
}

// ----- DTOs -----

type adminLoginReq struct {
	Email  string `json:"email"`
	Secret string `json:"secret"`
}
type otpRequestReq struct {
	Email string `json:"email"`
}
type otpVerifyReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type revokeReq struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"role"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}
type authResp struct {
	User      userPart  `json:"user"`
	Access    tokenPart `json:"access"`
	SessionID string    `json:"session_id"`
}

// AdminLogin: password flow for the single admin principal, throttled per
// source address. A locked address gets the same response as a failed
// credential check so probing reveals nothing.
func (h *AuthHandler) AdminLogin(c echo.Context) error {
	var req adminLoginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Secret == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/secret required"})
	}
	addr := c.RealIP()

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	locked, err := h.Throttle.IsLocked(ctx, addr)
	if err != nil {
		return respondError(c, err)
	}
	if locked {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	adminEmail := strings.ToLower(strings.TrimSpace(h.Cfg.AdminEmail))
	if email != adminEmail || !utils.VerifySecret(h.Cfg.AdminSecret, req.Secret) {
		tripped, terr := h.Throttle.RecordFailure(ctx, addr)
		if terr != nil {
			return respondError(c, terr)
		}
		if tripped {
			log.Warn().Str("source_ip", addr).Msg("admin login lockout tripped")
			_ = h.Publish(ctx, queue.SecurityEvent{
				Type:     queue.EventAdminLockout,
				Subject:  adminEmail,
				SourceIP: addr,
				Detail:   "failure threshold reached",
			})
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := h.Throttle.RecordSuccess(ctx, addr); err != nil {
		log.Error().Err(err).Msg("clear login failures")
	}
	u, err := h.Users.Upsert(ctx, email, model.RoleAdmin)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.establishSession(c, ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// RequestOTP: issue and mail a login code. The response is uniform for
// every silent-no-op outcome inside the engine; only a broken mail
// transport surfaces differently.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req otpRequestReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	// wide enough to cover a slow SMTP dial on top of the store calls
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	if err := h.OTP.Request(ctx, req.Email, c.RealIP()); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"message": "accepted"})
}

// VerifyOTP: consume the code and establish a session for the mailbox
// owner. First sight of an address creates its profile row.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	email, err := h.OTP.Verify(ctx, req.Email, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	// keeps the stored role on conflict, so an admin verifying by mail
	// still comes back as ADMIN
	u, err := h.Users.Upsert(ctx, email, model.RoleUser)
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.establishSession(c, ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh: rotate the presented session. Exactly one concurrent caller
// wins the rotation; every loser, replayed token and revoked session
// collapses into the same 401.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshCookie(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	claims, err := h.Issuer.VerifyRefresh(raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || userID == 0 {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	// The successor id goes into the new token before the row is written,
	// so the digest stored is the digest of the final signed token.
	sid := uuid.NewString()
	signed, rexp, err := h.Issuer.IssueRefresh(claims.Subject, claims.Role, sid)
	if err != nil {
		return respondError(c, err)
	}
	next := &model.Session{
		ID:          sid,
		UserID:      userID,
		Role:        claims.Role,
		TokenDigest: utils.TokenDigest(signed),
		UserAgent:   c.Request().UserAgent(),
		SourceIP:    c.RealIP(),
		ExpiresAt:   rexp,
	}

	err = h.Sessions.Rotate(ctx, claims.SessionID, utils.TokenDigest(raw), next)
	switch {
	case errors.Is(err, repository.ErrDigestMismatch):
		// a structurally valid token that is not the session's current one:
		// treat the session as compromised
		log.Error().
			Str("session_id", claims.SessionID).
			Uint64("user_id", userID).
			Str("source_ip", c.RealIP()).
			Msg("refresh token digest mismatch")
		_ = h.Publish(ctx, queue.SecurityEvent{
			Type:      queue.EventFingerprintMismatch,
			Subject:   claims.Subject,
			Role:      claims.Role,
			SessionID: claims.SessionID,
			SourceIP:  c.RealIP(),
			UserAgent: c.Request().UserAgent(),
			Detail:    "presented token is not the session's current token",
		})
		if rerr := h.Sessions.Revoke(ctx, claims.SessionID); rerr != nil {
			log.Error().Err(rerr).Str("session_id", claims.SessionID).Msg("revoke mismatched session")
		}
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, repository.ErrSessionNotFound), errors.Is(err, repository.ErrSessionRevoked):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case err != nil:
		return respondError(c, err)
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// account deleted since the session was minted
			_ = h.Sessions.Revoke(ctx, sid)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return respondError(c, err)
	}

	access, aexp, err := h.Issuer.IssueAccess(claims.Subject, u.Role, u.Email)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.setAuthCookies(c, signed, rexp); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, authResp{
		User:      userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:    tokenPart{Token: access, Expires: aexp},
		SessionID: sid,
	})
}

// Logout: revoke the presented session and drop the cookies. An absent
// or unverifiable cookie still logs out cleanly, there is nothing to
// protect by failing.
func (h *AuthHandler) Logout(c echo.Context) error {
	if raw := h.refreshCookie(c); raw != "" {
		if claims, err := h.Issuer.VerifyRefresh(raw); err == nil {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			if err := h.Sessions.Revoke(ctx, claims.SessionID); err != nil {
				return respondError(c, err)
			}
		}
	}
	h.clearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// DeleteAccount: revoke every session first, then drop the profile row.
// Ordering matters: a failure in between leaves a logged-out account, not
// a deleted account with live sessions.
func (h *AuthHandler) DeleteAccount(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	role, _ := c.Get("role").(string)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.RevokeAllForUser(ctx, userID, role); err != nil {
		return respondError(c, err)
	}
	if err := h.Users.DeleteByID(ctx, userID); err != nil && !errors.Is(err, repository.ErrUserNotFound) {
		return respondError(c, err)
	}
	h.clearAuthCookies(c)
	return c.NoContent(http.StatusNoContent)
}

// RevokeSessions: admin-forced logout everywhere for one subject. The
// subject's access tokens stay valid until they expire; only refresh
// stops working.
func (h *AuthHandler) RevokeSessions(c echo.Context) error {
	var req revokeReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.UserID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id required"})
	}
	role := strings.ToUpper(strings.TrimSpace(req.Role))
	if role == "" {
		role = model.RoleUser
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid role"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Sessions.RevokeAllForUser(ctx, req.UserID, role); err != nil {
		return respondError(c, err)
	}
	_ = h.Publish(ctx, queue.SecurityEvent{
		Type:     queue.EventSessionsRevoked,
		Subject:  strconv.FormatUint(req.UserID, 10),
		Role:     role,
		SourceIP: c.RealIP(),
		Detail:   "forced logout by admin",
	})
	return c.NoContent(http.StatusNoContent)
}

// Me: return the caller's profile row. A valid access token naming a
// deleted account reads as unauthorized.
func (h *AuthHandler) Me(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
		}
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": userPart{ID: u.ID, Email: u.Email, Role: u.Role}})
}

// ----- helpers -----

// establishSession creates a session row, signs both tokens and installs
// the cookies. The session id goes into the refresh token before the row
// is written, so the stored digest is the digest of the final signed
// token.
func (h *AuthHandler) establishSession(c echo.Context, ctx context.Context, u model.User) (authResp, error) {
	sid := uuid.NewString()
	subject := strconv.FormatUint(u.ID, 10)
	signed, rexp, err := h.Issuer.IssueRefresh(subject, u.Role, sid)
	if err != nil {
		return authResp{}, err
	}
	sess := &model.Session{
		ID:          sid,
		UserID:      u.ID,
		Role:        u.Role,
		TokenDigest: utils.TokenDigest(signed),
		UserAgent:   c.Request().UserAgent(),
		SourceIP:    c.RealIP(),
		ExpiresAt:   rexp,
	}
	if err := h.Sessions.Create(ctx, sess); err != nil {
		return authResp{}, err
	}
	access, aexp, err := h.Issuer.IssueAccess(subject, u.Role, u.Email)
	if err != nil {
		return authResp{}, err
	}
	if err := h.setAuthCookies(c, signed, rexp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:      userPart{ID: u.ID, Email: u.Email, Role: u.Role},
		Access:    tokenPart{Token: access, Expires: aexp},
		SessionID: sid,
	}, nil
}

// refreshCookie returns the raw refresh token from the cookie, or "".
func (h *AuthHandler) refreshCookie(c echo.Context) string {
	cookie, err := c.Cookie(h.Cfg.RefreshCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// setAuthCookies installs the HTTP-only refresh cookie and a fresh CSRF
// seed readable by client script.
func (h *AuthHandler) setAuthCookies(c echo.Context, refresh string, expires time.Time) error {
	seed, err := utils.NewCSRFSeed()
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.RefreshCookieName,
		Value:    refresh,
		Path:     "/v1/auth",
		Domain:   h.Cfg.CookieDomain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     h.Cfg.CSRFCookieName,
		Value:    seed,
		Path:     "/",
		Domain:   h.Cfg.CookieDomain,
		Expires:  expires,
		HttpOnly: false, // client script must read it to echo the header
		Secure:   h.Cfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// clearAuthCookies expires both auth cookies.
func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	for _, spec := range []struct {
		name, path string
		httpOnly   bool
	}{
		{h.Cfg.RefreshCookieName, "/v1/auth", true},
		{h.Cfg.CSRFCookieName, "/", false},
	} {
		c.SetCookie(&http.Cookie{
			Name:     spec.name,
			Value:    "",
			Path:     spec.path,
			Domain:   h.Cfg.CookieDomain,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: spec.httpOnly,
			Secure:   h.Cfg.CookieSecure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

// currentUserID pulls the authenticated subject out of the context set by
// the JWT middleware.
func currentUserID(c echo.Context) (uint64, bool) {
	s, ok := c.Get("user_id").(string)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// respondError translates an error into its public JSON shape. Internal
// causes are logged with full detail and surfaced as a generic 500.
func respondError(c echo.Context, err error) error {
	e := apperr.From(err)
	if e.Kind == apperr.Internal {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(e.Kind.Status(), echo.Map{"error": e.Public()})
}
