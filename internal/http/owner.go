package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/ctxutil"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/guestid"
)

var errInvalidJSON = errors.New("invalid JSON body")

// resolveOwner picks the cart owner of a request. An authenticated user always
// wins. Guests are identified by the x-guest-id header, falling back to the
// guestId body field.
func resolveOwner(r *http.Request, bodyGuestID string) (domain.Owner, error) {
	if userID, ok := ctxutil.UserIDFromCtx(r.Context()); ok {
		return domain.UserOwner(userID), nil
	}
	id, err := requestGuestID(r, bodyGuestID)
	if err != nil {
		return domain.Owner{}, err
	}
	return domain.GuestOwner(id), nil
}

// requestGuestID reads the caller-supplied guest ID, header first.
func requestGuestID(r *http.Request, bodyGuestID string) (string, error) {
	id := strings.TrimSpace(r.Header.Get(guestIDHeader))
	if id == "" {
		id = strings.TrimSpace(bodyGuestID)
	}
	if id == "" {
		return "", domain.ErrMissingCartIdentifier
	}
	if !guestid.Valid(id) {
		return "", fmt.Errorf("%w: malformed guest id", domain.ErrMissingCartIdentifier)
	}
	return id, nil
}

// decodeBody decodes an optional JSON body into dst. An empty body is fine.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errInvalidJSON, err)
	}
	return nil
}
