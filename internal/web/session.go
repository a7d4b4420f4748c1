package web

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	sessionCookieName = "atelier_session"
	sessionTTL        = 30 * 24 * time.Hour
)

// The session cookie only identifies a browser so each tab group gets its
// own duplicate workflows. There is no login.
type signedPayload struct {
	Exp int64  `json:"exp"`
	Sub string `json:"sub"`
}

func secretKeyPath(workspaceDir string) string {
	return filepath.Join(filepath.Clean(workspaceDir), "web", "secret.key")
}

func loadOrInitSecretKey(workspaceDir string) ([]byte, error) {
	path := secretKeyPath(workspaceDir)
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		return []byte(strings.TrimSpace(string(b))), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, err
	}
	enc := base64.RawURLEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(enc+"\n"), 0o600); err != nil {
		return nil, err
	}
	return []byte(enc), nil
}

func signToken(secret []byte, payload signedPayload) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	p := base64.RawURLEncoding.EncodeToString(b)
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(p))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	return p + "." + sig, nil
}

func verifyToken(secret []byte, token string) (signedPayload, error) {
	p, sig, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return signedPayload{}, errors.New("invalid token format")
	}

	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write([]byte(p))
	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil || !hmac.Equal(mac.Sum(nil), got) {
		return signedPayload{}, errors.New("invalid token signature")
	}

	raw, err := base64.RawURLEncoding.DecodeString(p)
	if err != nil {
		return signedPayload{}, errors.New("invalid token payload")
	}
	var sp signedPayload
	if err := json.Unmarshal(raw, &sp); err != nil {
		return signedPayload{}, errors.New("invalid token payload")
	}
	if sp.Exp == 0 || time.Now().Unix() > sp.Exp {
		return signedPayload{}, errors.New("token expired")
	}
	if strings.TrimSpace(sp.Sub) == "" {
		return signedPayload{}, errors.New("token missing sub")
	}
	return sp, nil
}

// sessionID returns the browser session id, issuing a new cookie when the
// request has none or an invalid one.
func (s *Server) sessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	secret, err := loadOrInitSecretKey(s.cfgSnapshot().Dir)
	if err != nil {
		return "", err
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if sp, err := verifyToken(secret, c.Value); err == nil {
			return sp.Sub, nil
		}
	}

	id := uuid.NewString()
	tok, err := signToken(secret, signedPayload{Sub: id, Exp: time.Now().Add(sessionTTL).Unix()})
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(sessionTTL),
	})
	return id, nil
}
