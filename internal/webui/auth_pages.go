// ABOUTME: Login, registration and logout pages
// ABOUTME: Password sign-in creates an explicit session carried by a cookie

package webui

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2389/taskboard/internal/auth"
	"github.com/2389/taskboard/internal/store"
)

func (u *UI) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, err := u.sessionFromCookie(r); err == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	notice := ""
	if r.URL.Query().Get("registered") == "1" {
		notice = "Registration successful! Please sign in."
	}
	u.renderLogin(w, r, http.StatusOK, "", "", notice)
}

func (u *UI) renderLogin(w http.ResponseWriter, r *http.Request, status int, email, errMsg, notice string) {
	l := u.layout(w, r, "Sign in", "")
	l.Error = errMsg
	u.render(w, status, "login.html", loginData{
		Layout:  l,
		Email:   email,
		Notice:  notice,
		Signup:  u.identity.SignupAllowed(),
		Passkey: u.webauthn != nil,
	})
}

func (u *UI) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		u.renderLogin(w, r, http.StatusBadRequest, "", "Invalid form data", "")
		return
	}
	if !validateCSRF(r) {
		u.renderLogin(w, r, http.StatusForbidden, "", bannerCSRF, "")
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		u.renderLogin(w, r, http.StatusOK, email, "Email and password required", "")
		return
	}

	sess, err := u.gw.SignIn(r.Context(), email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			u.renderLogin(w, r, http.StatusOK, email, "Invalid email or password", "")
			return
		}
		u.logger.Error("sign in failed", "error", err)
		u.renderLogin(w, r, http.StatusInternalServerError, email, bannerGeneric, "")
		return
	}

	setSessionCookie(w, r, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (u *UI) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	u.renderRegister(w, r, http.StatusOK, registerData{})
}

func (u *UI) renderRegister(w http.ResponseWriter, r *http.Request, status int, data registerData) {
	errMsg := data.Error
	data.Layout = u.layout(w, r, "Create your account", "")
	data.Error = errMsg
	data.Disabled = !u.identity.SignupAllowed()
	if data.Disabled && data.Error == "" {
		data.Error = "Sign-up is disabled. Ask an administrator for an account."
	}
	u.render(w, status, "register.html", data)
}

func (u *UI) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		u.renderRegister(w, r, http.StatusBadRequest, registerData{Layout: Layout{Error: "Invalid form data"}})
		return
	}
	data := registerData{
		Email:       strings.TrimSpace(r.FormValue("email")),
		DisplayName: strings.TrimSpace(r.FormValue("display_name")),
	}
	fail := func(msg string) {
		data.Error = msg
		u.renderRegister(w, r, http.StatusOK, data)
	}

	if !validateCSRF(r) {
		fail(bannerCSRF)
		return
	}
	password := r.FormValue("password")
	if password != r.FormValue("confirm_password") {
		fail("Passwords don't match")
		return
	}

	_, err := u.gw.SignUp(r.Context(), data.Email, password, data.DisplayName)
	switch {
	case err == nil:
		http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
	case errors.Is(err, auth.ErrSignupDisabled):
		fail("Sign-up is disabled")
	case errors.Is(err, auth.ErrInvalidEmail):
		fail("Please enter a valid email address")
	case errors.Is(err, auth.ErrWeakPassword):
		fail(fmt.Sprintf("Password must be at least %d characters", auth.MinPasswordLength))
	case errors.Is(err, store.ErrEmailExists):
		fail("An account with this email already exists")
	default:
		u.logger.Error("sign up failed", "error", err)
		fail(bannerGeneric)
	}
}

func (u *UI) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil && !validateCSRF(r) {
		u.logger.Warn("logout request with invalid CSRF token")
	}

	sess := auth.MustFromContext(r.Context())
	if err := u.gw.SignOut(r.Context(), sess.ID); err != nil {
		u.logger.Error("sign out failed", "error", err)
	}
	if u.conversations != nil {
		u.conversations.Discard(sess.ID)
	}

	clearCookie(w, SessionCookieName)
	clearCookie(w, CSRFCookieName)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
