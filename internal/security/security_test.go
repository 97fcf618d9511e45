package security

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilupskalvis/entryrev/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*Gate, *Tokens) {
	t.Helper()
	tokens, err := NewTokens("test-secret", time.Hour)
	require.NoError(t, err)

	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ledger.Close() })

	auth := StaticAuthorizer{
		"editor": {CapabilityEditEntries},
		"viewer": {"view_entries"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewGate(auth, tokens, ledger, logger), tokens
}

// ==================== Token Tests ====================

func TestTokens_IssueVerify(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	tok, err := tokens.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)

	claims, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "editor", claims.Actor)
	assert.Equal(t, "rec-1", claims.RecordID)
	assert.Equal(t, "rev-1", claims.RevisionID)
	assert.NotEmpty(t, claims.JWTID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestTokens_UniqueIDs(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	a, err := tokens.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)
	b, err := tokens.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokens_WrongSecret(t *testing.T) {
	issuer, err := NewTokens("one", time.Hour)
	require.NoError(t, err)
	verifier, err := NewTokens("two", time.Hour)
	require.NoError(t, err)

	tok, err := issuer.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)

	_, err = verifier.Verify(tok)
	assert.Error(t, err)
}

func TestTokens_Expired(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Minute)
	require.NoError(t, err)
	issued := time.Now().Add(-time.Hour)
	tokens.now = func() time.Time { return issued }

	tok, err := tokens.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(tok)
	assert.Error(t, err)
}

func TestTokens_RequireSecret(t *testing.T) {
	_, err := NewTokens("  ", time.Hour)
	assert.Error(t, err)
}

// ==================== Ledger Tests ====================

func TestLedger_ConsumeOnce(t *testing.T) {
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	exp := time.Now().Add(time.Hour)
	require.NoError(t, ledger.Consume("jti-1", exp))
	assert.ErrorIs(t, ledger.Consume("jti-1", exp), ErrTokenUsed)

	used, err := ledger.Used("jti-1")
	require.NoError(t, err)
	assert.True(t, used)
}

func TestLedger_PurgesExpired(t *testing.T) {
	ledger, err := OpenLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer ledger.Close()

	require.NoError(t, ledger.Consume("old", time.Now().Add(-time.Minute)))
	require.NoError(t, ledger.Consume("new", time.Now().Add(time.Hour)))

	used, err := ledger.Used("old")
	require.NoError(t, err)
	assert.False(t, used)
}

// ==================== Gate Tests ====================

func TestGate_Authorize(t *testing.T) {
	gate, tokens := newTestGate(t)
	ctx := context.Background()

	tok, err := tokens.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)

	assert.NoError(t, gate.Authorize(ctx, "editor", "rec-1", "rev-1", tok))
	assert.ErrorIs(t, gate.Authorize(ctx, "editor", "rec-1", "rev-1", tok), models.ErrDenied, "token is single use")
}

func TestGate_Denials(t *testing.T) {
	gate, tokens := newTestGate(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		actor      string
		recordID   string
		revisionID string
		token      func() string
	}{
		{"missing capability", "viewer", "rec-1", "rev-1", func() string {
			tok, _ := tokens.Issue("viewer", "rec-1", "rev-1")
			return tok
		}},
		{"anonymous", "", "rec-1", "rev-1", func() string {
			tok, _ := tokens.Issue("", "rec-1", "rev-1")
			return tok
		}},
		{"empty token", "editor", "rec-1", "rev-1", func() string { return "" }},
		{"garbage token", "editor", "rec-1", "rev-1", func() string { return "not.a.jwt" }},
		{"other record", "editor", "rec-2", "rev-1", func() string {
			tok, _ := tokens.Issue("editor", "rec-1", "rev-1")
			return tok
		}},
		{"other revision", "editor", "rec-1", "rev-2", func() string {
			tok, _ := tokens.Issue("editor", "rec-1", "rev-1")
			return tok
		}},
		{"other actor", "editor", "rec-1", "rev-1", func() string {
			tok, _ := tokens.Issue("someone", "rec-1", "rev-1")
			return tok
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authorize(ctx, tt.actor, tt.recordID, tt.revisionID, tt.token())
			assert.Equal(t, models.ErrDenied, err)
		})
	}
}

func TestGate_MismatchDoesNotConsume(t *testing.T) {
	gate, tokens := newTestGate(t)
	ctx := context.Background()

	tok, err := tokens.Issue("editor", "rec-1", "rev-1")
	require.NoError(t, err)

	assert.ErrorIs(t, gate.Authorize(ctx, "editor", "rec-1", "rev-9", tok), models.ErrDenied)
	assert.NoError(t, gate.Authorize(ctx, "editor", "rec-1", "rev-1", tok))
}
