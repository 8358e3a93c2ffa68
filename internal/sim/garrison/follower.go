package garrison

import (
	"math/rand/v2"
	"sort"

	"go.uber.org/zap"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
)

type Follower struct {
	DbID              string
	FollowerID        uint32
	Quality           uint32
	Level             uint32
	ItemLevelWeapon   uint32
	ItemLevelArmor    uint32
	Xp                uint32
	CurrentBuildingID uint32
	CurrentMissionID  uint32
	AbilityIDs        []uint32
	Status            uint32
}

func (f *Follower) PacketInfo() protocol.FollowerInfo {
	return protocol.FollowerInfo{
		DbID:              f.DbID,
		FollowerID:        f.FollowerID,
		Quality:           f.Quality,
		Level:             f.Level,
		ItemLevelWeapon:   f.ItemLevelWeapon,
		ItemLevelArmor:    f.ItemLevelArmor,
		Xp:                f.Xp,
		CurrentBuildingID: f.CurrentBuildingID,
		CurrentMissionID:  f.CurrentMissionID,
		AbilityIDs:        append([]uint32(nil), f.AbilityIDs...),
		Status:            f.Status,
	}
}

// AddFollower recruits followerID. Unknown or already recruited followers
// fail with a generic error.
func (g *Garrison) AddFollower(followerID uint32) {
	result := protocol.AddFollowerResultMsg{
		Type:   protocol.TypeAddFollowerResult,
		Result: protocol.ResultSuccess,
	}
	def, ok := g.cfg.Catalog.Follower(followerID)
	if _, recruited := g.followers[followerID]; recruited || !ok {
		result.Result = protocol.ResultGenericUnknownError
		g.send(result)
		return
	}

	f := &Follower{
		DbID:            g.cfg.IDs.NewFollowerDbID(),
		FollowerID:      followerID,
		Quality:         def.Quality,
		Level:           def.Level,
		ItemLevelWeapon: def.ItemLevelWeapon,
		ItemLevelArmor:  def.ItemLevelArmor,
	}
	f.AbilityIDs = g.cfg.Abilities.RollFollowerAbilities(def, f.Quality, g.Faction(), true)
	g.followers[followerID] = f

	result.Follower = f.PacketInfo()
	g.send(result)
	g.audit(AuditEntry{Action: AuditAddFollower, FollowerID: followerID})
	g.log.Debug("follower added", zap.Uint32("follower_id", followerID), zap.String("db_id", f.DbID))
}

func (g *Garrison) Follower(followerID uint32) (*Follower, bool) {
	f, ok := g.followers[followerID]
	return f, ok
}

// Followers returns the roster ordered by follower id.
func (g *Garrison) Followers() []*Follower {
	out := make([]*Follower, 0, len(g.followers))
	for _, f := range g.followers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FollowerID < out[j].FollowerID })
	return out
}

// RandomAbilityRoller draws abilities from the follower's faction pool.
// Better quality followers roll more abilities. Not safe for concurrent use.
type RandomAbilityRoller struct {
	rng *rand.Rand
}

func NewRandomAbilityRoller(seed uint64) *RandomAbilityRoller {
	return &RandomAbilityRoller{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (r *RandomAbilityRoller) RollFollowerAbilities(def catalogs.Follower, quality uint32, faction Faction, initial bool) []uint32 {
	pool := def.AllianceAbilities
	if faction == FactionHorde {
		pool = def.HordeAbilities
	}
	n := abilityCount(quality)
	if n > len(pool) {
		n = len(pool)
	}
	if n == 0 {
		return nil
	}

	picked := append([]uint32(nil), pool...)
	r.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	picked = picked[:n]
	sort.Slice(picked, func(i, j int) bool { return picked[i] < picked[j] })
	return picked
}

func abilityCount(quality uint32) int {
	switch {
	case quality <= 2:
		return 1
	case quality == 3:
		return 2
	default:
		return 3
	}
}
