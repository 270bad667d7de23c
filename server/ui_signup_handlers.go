package server

import (
	"fmt"
	"html"
	"net/http"

	apperrors "github.com/jrsteele09/study-assistant/internal/errors"
	"github.com/jrsteele09/study-assistant/users"
	"github.com/rs/zerolog/log"
)

// SignupPageData is the template model for the signup page
type SignupPageData struct {
	AppName string
	Error   string
	Email   string
	Name    string
}

// ValidatePasswordHandler validates password strength for the signup form (HTMX)
func (s *Server) ValidatePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", contentTypeHTML)
		password := r.FormValue("password")
		if password == "" {
			w.WriteHeader(http.StatusOK)
			return
		}

		if err := users.ValidatePasswordStrength(password); err != nil {
			w.Header().Set("HX-Trigger", "passwordInvalid")
			w.WriteHeader(http.StatusOK)
			fmt.Fprintf(w, `<span class="invalid">%s</span>`, html.EscapeString(err.Error()))
			return
		}

		w.Header().Set("HX-Trigger", "passwordValid")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `<span class="valid">Strong password</span>`)
	}
}

// SignupGetHandler renders the signup page
func (s *Server) SignupGetHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		data := SignupPageData{
			AppName: s.config.GetAppName(),
			Error:   query.Get("error"),
			Email:   query.Get("email"),
		}
		s.renderPage(w, pageSignup, data)
	}
}

// SignupPostHandler creates an unverified account and sends its confirmation link
func (s *Server) SignupPostHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		email := r.FormValue("email")
		user, code, err := s.auth.SignUp(r.Context(), email, r.FormValue("password"), r.FormValue("name"))
		switch {
		case err == nil:
		case apperrors.Is(err, apperrors.ErrInvalidEmail):
			redirectWithErrorAndEmail(w, r, RouteSignup, "Please enter a valid email address", email)
			return
		case apperrors.Is(err, apperrors.ErrWeakPassword):
			redirectWithErrorAndEmail(w, r, RouteSignup, "Password must be at least 8 characters with upper case, lower case and a digit", email)
			return
		case apperrors.Is(err, apperrors.ErrUserExists):
			redirectWithErrorAndEmail(w, r, RouteSignup, "An account with this email already exists", email)
			return
		default:
			log.Err(err).Msg("[Signup] failed to create user")
			redirectWithErrorAndEmail(w, r, RouteSignup, "Sign up failed, please try again", email)
			return
		}

		s.sendSignInLink(r.Context(), user.Email, code)
		redirectWithMessage(w, r, s.rules.SignIn, "Check your email to confirm your account")
	}
}
