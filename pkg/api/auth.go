package api

import (
	"fmt"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// missPassword is hashed into the comparison target for unknown users.
const missPassword = "dbbench-unknown-user"

// loadCredentials hashes configured basic auth users. Passwords that are
// already bcrypt hashes are kept as-is.
func (s *server) loadCredentials() error {
	s.credentials = make(map[string][]byte, len(s.cfg.Auth.Basic.Users))
	s.missHash = nil

	if !s.cfg.Auth.Basic.Enabled {
		return nil
	}

	for _, u := range s.cfg.Auth.Basic.Users {
		if u.Username == "" {
			return fmt.Errorf("basic auth user with empty username")
		}

		if _, err := bcrypt.Cost([]byte(u.Password)); err == nil {
			s.credentials[u.Username] = []byte(u.Password)

			continue
		}

		hash, err := bcrypt.GenerateFromPassword(
			[]byte(u.Password), bcrypt.DefaultCost,
		)
		if err != nil {
			return fmt.Errorf("hashing password for %q: %w", u.Username, err)
		}

		s.credentials[u.Username] = hash
	}

	// Unknown users are compared against a hash of the highest configured
	// cost so a miss takes as long as a wrong password.
	cost := bcrypt.MinCost

	for _, hash := range s.credentials {
		if c, err := bcrypt.Cost(hash); err == nil && c > cost {
			cost = c
		}
	}

	missHash, err := bcrypt.GenerateFromPassword([]byte(missPassword), cost)
	if err != nil {
		return fmt.Errorf("hashing unknown user placeholder: %w", err)
	}

	s.missHash = missHash

	return nil
}

// checkCredentials reports whether username and password match a
// configured user.
func (s *server) checkCredentials(username, password string) bool {
	hash, ok := s.credentials[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.missHash, []byte(password))

		return false
	}

	return bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
}

// requireAuth enforces basic auth when it is enabled.
func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cfg.Auth.Basic.Enabled {
			next.ServeHTTP(w, r)

			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || !s.checkCredentials(username, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dbbench"`)
			writeJSON(w, http.StatusUnauthorized,
				errorResponse{"authentication required"})

			return
		}

		next.ServeHTTP(w, r)
	})
}
