// ABOUTME: Sign-up, sign-in, sign-out and current-user endpoints
// ABOUTME: Sign-in returns a bearer JWT bound to a server-side session

package api

import (
	"errors"
	"net/http"

	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
)

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.gw.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, toUser(user))
	case errors.Is(err, auth.ErrSignupDisabled):
		writeJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrInvalidEmail), errors.Is(err, auth.ErrWeakPassword):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrEmailExists):
		writeJSONError(w, http.StatusConflict, "email already registered")
	default:
		h.writeGatewayError(w, err)
	}
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !decode(w, r, &req) {
		return
	}

	sess, err := h.gw.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		h.writeGatewayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SignInResponse{
		Token:     sess.Token,
		ExpiresAt: sess.TokenExpiresAt,
		User:      toUser(sess.User),
	})
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustFromContext(r.Context())
	if err := h.gw.SignOut(r.Context(), sess.ID); err != nil {
		h.writeGatewayError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := auth.MustFromContext(r.Context())
	writeJSON(w, http.StatusOK, toUser(sess.User))
}
