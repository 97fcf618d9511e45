package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

// TokenInfo holds the metadata for a bearer token. Only the hash is stored.
type TokenInfo struct {
	ID        string    `json:"id"`
	TokenHash string    `json:"token_hash"`
	Desc      string    `json:"description"`
	Actor     string    `json:"actor"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenStore looks up bearer tokens.
type TokenStore interface {
	GetByHash(hash string) (*TokenInfo, error)
	ListTokens() ([]*TokenInfo, error)
}

// FileTokenStore is a JSON-file-based token store.
type FileTokenStore struct {
	path   string
	mu     sync.RWMutex
	tokens map[string]*TokenInfo // keyed by token_hash
	logger *slog.Logger
}

var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a store persisted at path. Call Load to read it.
func NewFileTokenStore(path string, logger *slog.Logger) *FileTokenStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileTokenStore{
		path:   path,
		tokens: make(map[string]*TokenInfo),
		logger: logger,
	}
}

// Load reads the token file
func (s *FileTokenStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var tokens []*TokenInfo
	if err := json.Unmarshal(data, &tokens); err != nil {
		return fmt.Errorf("parse token store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens = make(map[string]*TokenInfo)
	for _, t := range tokens {
		s.tokens[t.TokenHash] = t
	}

	s.logger.Info("loaded tokens", "count", len(tokens))
	return nil
}

// GetByHash returns the token with the given hash, nil when unknown
func (s *FileTokenStore) GetByHash(hash string) (*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[hash], nil
}

// ListTokens returns every token
func (s *FileTokenStore) ListTokens() ([]*TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]*TokenInfo, 0, len(s.tokens))
	for _, t := range s.tokens {
		tokens = append(tokens, t)
	}
	return tokens, nil
}

// Save writes the token file
func (s *FileTokenStore) Save() error {
	tokens, _ := s.ListTokens()
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}
	return os.WriteFile(s.path, data, 0600)
}

// CreateToken issues a new bearer token for actor and persists it. The raw
// token is returned once and never stored.
func (s *FileTokenStore) CreateToken(desc, actor string) (string, *TokenInfo, error) {
	rawToken := fmt.Sprintf("erv_%s", generateID())
	info := &TokenInfo{
		ID:        generateID(),
		TokenHash: HashToken(rawToken),
		Desc:      desc,
		Actor:     actor,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.tokens[info.TokenHash] = info
	s.mu.Unlock()

	if err := s.Save(); err != nil {
		return "", nil, fmt.Errorf("persist token: %w", err)
	}
	return rawToken, info, nil
}

// DeleteToken removes a token by ID
func (s *FileTokenStore) DeleteToken(id string) error {
	s.mu.Lock()
	found := false
	for hash, t := range s.tokens {
		if t.ID == id {
			delete(s.tokens, hash)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if !found {
		return fmt.Errorf("token '%s' not found", id)
	}
	return s.Save()
}

func generateID() string {
	b := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
