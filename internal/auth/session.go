package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"gallery/internal/logging"
	"gallery/internal/models"
)

const (
	keyUserID   = "user_id"
	keyUsername = "username"
	keyRole     = "role"
)

type SessionOptions struct {
	Dir        string
	Secret     string
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Sessions keeps session values in files under Dir; the cookie only carries
// a signed session id.
type Sessions struct {
	store *sessions.FilesystemStore
	name  string
}

func NewSessions(opts SessionOptions) (*Sessions, error) {
	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	if opts.MaxAge <= 0 {
		return nil, errors.New("session max age must be positive")
	}

	key := []byte(opts.Secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
		logging.Warn().Msg("no session secret configured, using a random key; sessions will not survive a restart")
	}

	store := sessions.NewFilesystemStore(opts.Dir, key)
	store.MaxAge(int(opts.MaxAge.Seconds()))
	store.Options.Path = "/"
	store.Options.HttpOnly = true
	store.Options.Secure = opts.Secure
	store.Options.SameSite = http.SameSiteLaxMode

	return &Sessions{store: store, name: opts.CookieName}, nil
}

// Establish starts a fresh session for id, replacing any session the request
// carried.
func (s *Sessions) Establish(w http.ResponseWriter, r *http.Request, id Identity) error {
	sess, _ := s.store.Get(r, s.name)
	if !sess.IsNew {
		s.erase(w, r, sess)
	}
	sess.ID = ""
	sess.IsNew = true
	sess.Values = map[interface{}]interface{}{
		keyUserID:   id.UserID,
		keyUsername: id.Username,
		keyRole:     string(id.Role),
	}
	sess.Options.MaxAge = s.store.Options.MaxAge
	return sess.Save(r, w)
}

// Load returns the identity stored in the request's session.
func (s *Sessions) Load(r *http.Request) (Identity, bool) {
	sess, err := s.store.Get(r, s.name)
	if err != nil || sess.IsNew {
		return Identity{}, false
	}
	userID, ok := sess.Values[keyUserID].(int64)
	if !ok {
		return Identity{}, false
	}
	username, _ := sess.Values[keyUsername].(string)
	role, _ := sess.Values[keyRole].(string)
	return Identity{UserID: userID, Username: username, Role: models.ParseRole(role)}, true
}

// Destroy removes the session file, if any, and expires the cookie.
func (s *Sessions) Destroy(w http.ResponseWriter, r *http.Request) {
	sess, err := s.store.Get(r, s.name)
	if err != nil || sess.IsNew {
		opts := *s.store.Options
		opts.MaxAge = -1
		http.SetCookie(w, sessions.NewCookie(s.name, "", &opts))
		return
	}
	s.erase(w, r, sess)
}

func (s *Sessions) erase(w http.ResponseWriter, r *http.Request, sess *sessions.Session) {
	sess.Options.MaxAge = -1
	if err := sess.Save(r, w); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("failed to remove session file")
	}
}
