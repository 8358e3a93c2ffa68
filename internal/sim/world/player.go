package world

import (
	"go.uber.org/zap"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/garrison"
)

// Player is a connected session. It is the garrison's Owner: identity,
// location and the currency/money ledgers live here.
type Player struct {
	id        uint64
	name      string
	team      garrison.Team
	sessionID string
	mapID     uint32

	money      uint64
	currencies map[uint32]int32

	out   chan []byte
	realm *Realm

	garrison *garrison.Garrison
}

func (p *Player) ID() uint64          { return p.id }
func (p *Player) Name() string        { return p.name }
func (p *Player) Team() garrison.Team { return p.team }
func (p *Player) MapID() uint32       { return p.mapID }
func (p *Player) Money() uint64       { return p.money }

// Garrison is nil until the player creates or loads one.
func (p *Player) Garrison() *garrison.Garrison { return p.garrison }

func (p *Player) Currency(id uint32) int32 { return p.currencies[id] }

func (p *Player) HasCurrency(id uint32, amount int32) bool {
	return p.currencies[id] >= amount
}

func (p *Player) ModifyCurrency(id uint32, delta int32) {
	p.currencies[id] += delta
}

func (p *Player) HasEnoughMoney(amount uint64) bool {
	return p.money >= amount
}

// ModifyMoney clamps at zero.
func (p *Player) ModifyMoney(delta int64) {
	if delta < 0 && uint64(-delta) > p.money {
		p.money = 0
		return
	}
	p.money = uint64(int64(p.money) + delta)
}

func (p *Player) TeleportTo(mapID uint32, seamless bool) {
	p.realm.teleport(p, mapID)
}

// UpdatePhasing only logs; the realm has no visibility phases.
func (p *Player) UpdatePhasing() {
	p.realm.log.Debug("phasing update", zap.Uint64("player_id", p.id), zap.Uint32("map_id", p.mapID))
}

// notifier routes garrison messages through the realm on behalf of one owner.
type notifier struct {
	realm *Realm
	owner uint64
}

func (n notifier) SendToOwner(msg protocol.Message) { n.realm.deliver(n.owner, msg) }

func (n notifier) SendTo(playerID uint64, msg protocol.Message) { n.realm.deliver(playerID, msg) }

func (n notifier) SendToMap(mapID uint32, msg protocol.Message) {
	n.realm.deliverToMap(mapID, n.owner, msg)
}
