package world

import (
	"context"
	"encoding/binary"

	"github.com/google/uuid"

	"garrison.ai/internal/sim/garrison"
)

// TokenStore maps resume tokens to the players they were issued to. A
// player holds at most one token; issuing a new one revokes the old.
type TokenStore interface {
	ResolveToken(ctx context.Context, token string) (playerID uint64, team garrison.Team, ok bool, err error)
	IssueToken(ctx context.Context, token string, playerID uint64, team garrison.Team) error
}

type identity struct {
	playerID uint64
	team     garrison.Team
}

// memTokens is the default TokenStore. Tokens do not survive a restart.
type memTokens struct {
	byToken  map[string]identity
	byPlayer map[uint64]string
}

func newMemTokens() *memTokens {
	return &memTokens{byToken: map[string]identity{}, byPlayer: map[uint64]string{}}
}

func (m *memTokens) ResolveToken(_ context.Context, token string) (uint64, garrison.Team, bool, error) {
	id, ok := m.byToken[token]
	return id.playerID, id.team, ok, nil
}

func (m *memTokens) IssueToken(_ context.Context, token string, playerID uint64, team garrison.Team) error {
	if old, ok := m.byPlayer[playerID]; ok {
		delete(m.byToken, old)
	}
	m.byToken[token] = identity{playerID: playerID, team: team}
	m.byPlayer[playerID] = token
	return nil
}

func newResumeToken() string { return "resume_" + uuid.NewString() }

// randomPlayerID draws a non-zero id that survives a JSON number round trip.
func randomPlayerID() uint64 {
	for {
		u := uuid.New()
		if id := binary.BigEndian.Uint64(u[:8]) & (1<<53 - 1); id != 0 {
			return id
		}
	}
}
