package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/service"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/ctxutil"
)

type guestTokens interface {
	Sign(guestID string) (string, error)
	Verify(token string) (string, error)
	TTL() time.Duration
}

type cartMerger interface {
	MergeGuestCart(ctx context.Context, userID, guestID string) (service.MergeResult, error)
}

type guestOrderClaimer interface {
	ClaimGuestOrders(ctx context.Context, userID, guestID string) (int, error)
}

type CookieConfig struct {
	Name   string
	Secure bool
}

// SessionHandler owns the signed guest cookie and every endpoint that trusts
// it. Merge and claim never read the guest ID from headers or the body.
type SessionHandler struct {
	tokens  guestTokens
	merger  cartMerger
	claimer guestOrderClaimer
	cookie  CookieConfig
	timeout time.Duration
}

func NewSessionHandler(tokens guestTokens, merger cartMerger, claimer guestOrderClaimer, cookie CookieConfig, timeout time.Duration) *SessionHandler {
	return &SessionHandler{
		tokens:  tokens,
		merger:  merger,
		claimer: claimer,
		cookie:  cookie,
		timeout: timeout,
	}
}

type MergeResponseDTO struct {
	Success bool `json:"success"`
	Merged  bool `json:"merged"`
}

type ClaimResponseDTO struct {
	Success bool `json:"success"`
	Claimed int  `json:"claimed"`
}

type SessionResponseDTO struct {
	Success bool   `json:"success"`
	GuestID string `json:"guestId,omitempty"`
}

// POST /api/guest/session
func (h *SessionHandler) StartGuestSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	var req guestBody
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	guestID, err := requestGuestID(r, req.GuestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	token, err := h.tokens.Sign(guestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, SessionResponseDTO{Success: true, GuestID: guestID})
}

// DELETE /api/guest/session
func (h *SessionHandler) EndGuestSession(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w)
	respondJSON(w, http.StatusOK, SessionResponseDTO{Success: true})
}

// POST /api/cart/merge
func (h *SessionHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	userID, _ := ctxutil.UserIDFromCtx(ctx)
	guestID, ok, err := h.guestFromCookie(r)
	if err != nil {
		h.clearCookie(w)
		handleServiceError(ctx, w, err)
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, MergeResponseDTO{Success: true, Merged: false})
		return
	}

	res, err := h.merger.MergeGuestCart(ctx, userID, guestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, MergeResponseDTO{Success: true, Merged: res.Merged})
}

// POST /api/orders/claim-guest
func (h *SessionHandler) ClaimGuestOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r, h.timeout)
	defer cancel()

	userID, _ := ctxutil.UserIDFromCtx(ctx)
	guestID, ok, err := h.guestFromCookie(r)
	if err != nil {
		h.clearCookie(w)
		handleServiceError(ctx, w, err)
		return
	}
	if !ok {
		respondJSON(w, http.StatusOK, ClaimResponseDTO{Success: true})
		return
	}

	n, err := h.claimer.ClaimGuestOrders(ctx, userID, guestID)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	respondJSON(w, http.StatusOK, ClaimResponseDTO{Success: true, Claimed: n})
}

// guestFromCookie returns the verified guest ID. A missing cookie is not an
// error; a cookie that does not verify is domain.ErrInvalidGuestSession.
func (h *SessionHandler) guestFromCookie(r *http.Request) (string, bool, error) {
	c, err := r.Cookie(h.cookie.Name)
	if errors.Is(err, http.ErrNoCookie) || (err == nil && c.Value == "") {
		return "", false, nil
	}
	if err != nil {
		return "", false, domain.ErrInvalidGuestSession
	}
	guestID, err := h.tokens.Verify(c.Value)
	if err != nil {
		return "", false, err
	}
	return guestID, true, nil
}

func (h *SessionHandler) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
