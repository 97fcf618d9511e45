package security

import (
	"context"
	"log/slog"

	"github.com/kilupskalvis/entryrev/internal/models"
)

// CapabilityEditEntries allows changing record content
const CapabilityEditEntries = "edit_entries"

// Authorizer answers capability checks for an actor
type Authorizer interface {
	Can(ctx context.Context, actor, capability string) bool
}

// StaticAuthorizer grants a fixed capability set per actor
type StaticAuthorizer map[string][]string

var _ Authorizer = StaticAuthorizer(nil)

// Can reports whether actor holds capability
func (a StaticAuthorizer) Can(_ context.Context, actor, capability string) bool {
	for _, c := range a[actor] {
		if c == capability {
			return true
		}
	}
	return false
}

// Gate authorizes restore requests
type Gate struct {
	auth   Authorizer
	tokens *Tokens
	ledger *Ledger
	log    *slog.Logger
}

// NewGate creates a Gate
func NewGate(auth Authorizer, tokens *Tokens, ledger *Ledger, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		auth:   auth,
		tokens: tokens,
		ledger: ledger,
		log:    logger.With("component", "security"),
	}
}

// Tokens returns the issuer used by the gate
func (g *Gate) Tokens() *Tokens {
	return g.tokens
}

// Authorize checks that actor may restore revisionID onto recordID with token.
// Every failure returns models.ErrDenied; the reason is only logged.
func (g *Gate) Authorize(ctx context.Context, actor, recordID, revisionID, token string) error {
	deny := func(reason string, args ...any) error {
		args = append([]any{"actor", actor, "record_id", recordID, "revision_id", revisionID, "reason", reason}, args...)
		g.log.Warn("restore denied", args...)
		return models.ErrDenied
	}

	if actor == "" {
		return deny("anonymous")
	}
	if !g.auth.Can(ctx, actor, CapabilityEditEntries) {
		return deny("missing capability", "capability", CapabilityEditEntries)
	}

	claims, err := g.tokens.Verify(token)
	if err != nil {
		return deny("invalid token", "error", err)
	}
	if claims.RecordID == "" || claims.RecordID != recordID {
		return deny("record mismatch", "token_record_id", claims.RecordID)
	}
	if claims.RevisionID == "" || claims.RevisionID != revisionID {
		return deny("revision mismatch", "token_revision_id", claims.RevisionID)
	}
	if claims.Actor != actor {
		return deny("actor mismatch", "token_actor", claims.Actor)
	}

	if err := g.ledger.Consume(claims.JWTID, claims.ExpiresAt); err != nil {
		return deny("token not consumable", "jti", claims.JWTID, "error", err)
	}

	g.log.Debug("restore authorized", "actor", actor, "record_id", recordID, "revision_id", revisionID)
	return nil
}
