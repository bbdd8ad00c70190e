package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/store"
	"go.uber.org/zap"
)

// Identity is the authenticated user. Exactly one instance represents
// "self"; the Store owns it exclusively and every other component reads it
// through the Store handle.
type Identity struct {
	ID          int64  `json:"id"`
	Email       string `json:"email,omitempty"`
	Username    string `json:"username"`
	FullName    string `json:"fullName,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Status      string `json:"status,omitempty"`
}

// DisplayName returns the name shown for self: full name, falling back to
// username.
func (id Identity) DisplayName() string {
	if id.FullName != "" {
		return id.FullName
	}
	return id.Username
}

// Store owns the authenticated identity and its persisted representation
// (bearer token + identity snapshot in the session cache). No synchronizer
// runs without it.
type Store struct {
	db     *store.DB
	api    *backend.Client
	bus    *bus.Bus
	logger *zap.Logger

	mu       sync.RWMutex
	identity *Identity
	token    string
}

// NewStore creates a session store over the given cache and backend client.
func NewStore(db *store.DB, api *backend.Client, b *bus.Bus, logger *zap.Logger) *Store {
	return &Store{db: db, api: api, bus: b, logger: logger}
}

// Restore loads a previously persisted session. The session is valid only
// when both the token and the identity snapshot are present; anything less
// counts as signed out.
func (s *Store) Restore() (bool, error) {
	rec, err := s.db.LoadSession()
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if rec == nil {
		return false, nil
	}

	var id Identity
	if err := json.Unmarshal([]byte(rec.ProfileJSON), &id); err != nil {
		// Corrupt snapshot: discard the whole session rather than run with
		// a token and no identity.
		s.logger.Warn("discarding corrupt session snapshot", zap.Error(err))
		_ = s.db.ClearSession()
		return false, nil
	}

	s.mu.Lock()
	s.identity = &id
	s.token = rec.Token
	s.mu.Unlock()
	s.api.SetToken(rec.Token)

	s.logger.Info("session restored", zap.Int64("user_id", id.ID), zap.String("username", id.Username))
	return true, nil
}

// SignIn authenticates with the backend and persists the session.
func (s *Store) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.install(resp)
}

// SignUp registers a new account and persists the resulting session.
func (s *Store) SignUp(ctx context.Context, email, password, username, fullName string) (*Identity, error) {
	resp, err := s.api.Register(ctx, email, password, username, fullName)
	if err != nil {
		return nil, err
	}
	return s.install(resp)
}

func (s *Store) install(resp *backend.AuthResponse) (*Identity, error) {
	id := identityFromUser(resp.User)

	snapshot, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode identity snapshot: %w", err)
	}
	if err := s.db.SaveSession(resp.Token, string(snapshot)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	s.mu.Lock()
	s.identity = &id
	s.token = resp.Token
	s.mu.Unlock()
	s.api.SetToken(resp.Token)

	s.bus.Publish(bus.Event{Kind: bus.KindSessionSignedIn, Timestamp: time.Now(), Payload: id})
	return &id, nil
}

// SignOut clears the identity, the token, and their persisted
// representation together. The presence manager's stop hook handles the
// best-effort offline signal before this runs.
func (s *Store) SignOut() error {
	s.mu.Lock()
	s.identity = nil
	s.token = ""
	s.mu.Unlock()
	s.api.ClearToken()

	if err := s.db.ClearSession(); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.bus.Publish(bus.Event{Kind: bus.KindSessionSignedOut, Timestamp: time.Now()})
	return nil
}

// Identity returns a copy of the current identity. ok is false when signed
// out.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// UpdateProfile pushes profile changes to the backend and re-persists the
// snapshot with the backend's view of the result.
func (s *Store) UpdateProfile(ctx context.Context, update *backend.ProfileUpdate) (*Identity, error) {
	user, err := s.api.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}

	id := identityFromUser(*user)

	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("no active session")
	}
	token := s.token
	s.identity = &id
	s.mu.Unlock()

	snapshot, err := json.Marshal(id)
	if err != nil {
		return nil, fmt.Errorf("encode identity snapshot: %w", err)
	}
	if err := s.db.SaveSession(token, string(snapshot)); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &id, nil
}

func identityFromUser(u backend.User) Identity {
	return Identity{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		FullName:    u.FullName,
		PhoneNumber: u.PhoneNumber,
		AvatarURL:   u.AvatarURL,
		Bio:         u.Bio,
		Status:      u.Status,
	}
}
