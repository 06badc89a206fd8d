package web

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"go.uber.org/zap"
	gomponents "maragu.dev/gomponents"
	"maragu.dev/gomponents/html"
)

const (
	csrfCookie = "askcel_csrf"
	csrfHeader = "X-CSRF-Token"
	csrfField  = "csrf_token"
)

// ensureCSRF gives the browser a token cookie and puts the token in the
// request context for the forms.
func ensureCSRF(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := readCSRFCookie(r)
			if token == "" {
				token = randomToken(32)
				http.SetCookie(w, &http.Cookie{
					Name:     csrfCookie,
					Value:    token,
					Path:     "/",
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), csrfKey, token)))
		})
	}
}

// requireCSRF rejects unsafe requests whose header or form token does not
// match the cookie. Multipart bodies are parsed under the upload limit.
func (s *Server) requireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		cookieToken := readCSRFCookie(r)
		if cookieToken == "" {
			renderHTML(w, http.StatusForbidden, errorPage(http.StatusForbidden, "Missing CSRF token cookie. Reload the page and try again."))
			return
		}

		token := strings.TrimSpace(r.Header.Get(csrfHeader))
		if token == "" {
			var err error
			if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
				r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
				err = r.ParseMultipartForm(multipartMemory)
			} else {
				err = r.ParseForm()
			}
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				renderHTML(w, http.StatusRequestEntityTooLarge, errorPage(http.StatusRequestEntityTooLarge, fmt.Sprintf("File is larger than %d MB.", s.cfg.MaxUploadMB)))
				return
			}
			token = strings.TrimSpace(r.Form.Get(csrfField))
		}

		if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(token)) != 1 {
			s.logger.Warn("csrf token rejected", zap.String("path", r.URL.Path), zap.String("session", sessionID(r.Context())))
			renderHTML(w, http.StatusForbidden, errorPage(http.StatusForbidden, "Invalid or missing CSRF token. Reload the page and try again."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func csrfToken(ctx context.Context) string {
	token, _ := ctx.Value(csrfKey).(string)
	return token
}

func csrfInput(token string) gomponents.Node {
	return html.Input(html.Type("hidden"), html.Name(csrfField), html.Value(token))
}

func readCSRFCookie(r *http.Request) string {
	c, err := r.Cookie(csrfCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func randomToken(size int) string {
	b := make([]byte, max(size, 16))
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
