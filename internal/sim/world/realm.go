package world

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
	"garrison.ai/internal/sim/garrison"
	"garrison.ai/internal/sim/tuning"
)

// Store is the persistence gateway for garrison rows.
type Store interface {
	Load(ctx context.Context, ownerID uint64) (garrison.Rows, error)
	Save(ctx context.Context, ownerID uint64, rows garrison.Rows) error
}

// Fanout carries messages to players connected to another process.
type Fanout interface {
	Publish(ctx context.Context, playerID uint64, payload []byte) error
	// PublishMap reaches every remote player on mapID except exclude.
	PublishMap(ctx context.Context, mapID uint32, exclude uint64, payload []byte) error
}

const (
	SessionJoin  = "JOIN"
	SessionLeave = "LEAVE"
)

type SessionEntry struct {
	Time      int64  `json:"time"`
	PlayerID  uint64 `json:"player_id"`
	SessionID string `json:"session_id"`
	Event     string `json:"event"`
	Garrison  bool   `json:"garrison"`
}

type SessionLogger interface {
	WriteSession(e SessionEntry) error
}

type RealmConfig struct {
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning
	Store    Store

	// Optional.
	Tokens      TokenStore
	NewPlayerID func() uint64
	Fanout      Fanout
	Audit     garrison.AuditLogger
	Sessions  SessionLogger
	Abilities garrison.AbilityRoller
	Logger    *zap.Logger
	Now       func() time.Time
}

// JoinRequest starts a session. A Token issued by an earlier WELCOME
// resumes that player; an empty or unknown one joins as a new player.
type JoinRequest struct {
	Token string
	Name  string
	Team  garrison.Team
	Out   chan []byte
	Resp  chan JoinResponse
}

// JoinResponse carries either a welcome or the reason the join was refused.
type JoinResponse struct {
	Welcome protocol.WelcomeMsg
	Error   *protocol.ErrorMsg
}

type RequestEnvelope struct {
	PlayerID uint64
	Req      protocol.RequestMsg
}

type remoteDelivery struct {
	playerID uint64
	payload  []byte

	toMap   bool
	mapID   uint32
	exclude uint64
}

// Metrics is a point-in-time view of the realm, safe to read from any goroutine.
type Metrics struct {
	Players    int64
	Garrisons  int64
	Entities   int64
	Instances  int64
	InboxDepth int
	Dropped    int64
	Saves      int64
	SaveErrors int64
}

// Realm owns every connected player, their garrisons and the maps. All
// state is confined to the Run goroutine; other goroutines talk to it
// through channels.
type Realm struct {
	cfg  RealmConfig
	log  *zap.Logger
	maps *Maps

	players map[uint64]*Player

	inbox  chan RequestEnvelope
	join   chan JoinRequest
	leave  chan uint64
	remote chan remoteDelivery
	done   chan struct{}

	// Mirrors for Metrics().
	nPlayers   atomic.Int64
	nGarrisons atomic.Int64
	nEntities  atomic.Int64
	nInstances atomic.Int64
	dropped    atomic.Int64
	saves      atomic.Int64
	saveErrors atomic.Int64
}

func NewRealm(cfg RealmConfig) *Realm {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Tokens == nil {
		cfg.Tokens = newMemTokens()
	}
	if cfg.NewPlayerID == nil {
		cfg.NewPlayerID = randomPlayerID
	}
	return &Realm{
		cfg:     cfg,
		log:     cfg.Logger,
		maps:    NewMaps(cfg.Catalogs),
		players: map[uint64]*Player{},
		inbox:   make(chan RequestEnvelope, 1024),
		join:    make(chan JoinRequest, 64),
		leave:   make(chan uint64, 64),
		remote:  make(chan remoteDelivery, 1024),
		done:    make(chan struct{}),
	}
}

func (r *Realm) Inbox() chan<- RequestEnvelope { return r.inbox }
func (r *Realm) Join() chan<- JoinRequest      { return r.join }
func (r *Realm) Leave() chan<- uint64          { return r.leave }

// Done is closed once Run has returned. Nothing reads the channels after that.
func (r *Realm) Done() <-chan struct{} { return r.done }

// DeliverRemote hands a fan-out payload to the realm loop. It never blocks;
// payloads are dropped when the loop is saturated.
func (r *Realm) DeliverRemote(playerID uint64, payload []byte) {
	select {
	case r.remote <- remoteDelivery{playerID: playerID, payload: payload}:
	default:
		r.dropped.Add(1)
	}
}

// DeliverMap hands a fan-out payload for everyone on mapID except exclude
// to the realm loop. Like DeliverRemote it never blocks.
func (r *Realm) DeliverMap(mapID uint32, exclude uint64, payload []byte) {
	select {
	case r.remote <- remoteDelivery{toMap: true, mapID: mapID, exclude: exclude, payload: payload}:
	default:
		r.dropped.Add(1)
	}
}

func (r *Realm) Metrics() Metrics {
	return Metrics{
		Players:    r.nPlayers.Load(),
		Garrisons:  r.nGarrisons.Load(),
		Entities:   r.nEntities.Load(),
		Instances:  r.nInstances.Load(),
		InboxDepth: len(r.inbox),
		Dropped:    r.dropped.Load(),
		Saves:      r.saves.Load(),
		SaveErrors: r.saveErrors.Load(),
	}
}

// Run processes joins, leaves and requests until ctx is cancelled, then
// saves every online garrison.
func (r *Realm) Run(ctx context.Context) error {
	defer close(r.done)
	every := time.Duration(r.cfg.Tuning.SaveEverySeconds) * time.Second
	if every <= 0 {
		every = time.Minute
	}
	saveTicker := time.NewTicker(every)
	defer saveTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush()
			return ctx.Err()
		case req := <-r.join:
			req.Resp <- r.joinPlayer(ctx, req)
		case id := <-r.leave:
			r.leavePlayer(ctx, id)
		case env := <-r.inbox:
			r.handleRequest(ctx, env)
		case d := <-r.remote:
			if d.toMap {
				r.pushMap(d.mapID, d.exclude, d.payload)
			} else if p, ok := r.players[d.playerID]; ok {
				r.push(p, d.payload)
			}
		case <-saveTicker.C:
			r.saveAll(ctx)
		}
		r.publishMetrics()
	}
}

func (r *Realm) joinPlayer(ctx context.Context, req JoinRequest) JoinResponse {
	who, err := r.identify(ctx, req)
	if err != nil {
		r.log.Error("identify player", zap.Error(err))
		return JoinResponse{Error: errorMsg("", protocol.ErrInternal, "identity unavailable")}
	}
	id := who.playerID
	if _, online := r.players[id]; online {
		return JoinResponse{Error: errorMsg("", protocol.ErrProtoBadRequest, "player already connected")}
	}

	rows, err := r.cfg.Store.Load(ctx, id)
	if err != nil {
		r.log.Error("load garrison", zap.Uint64("player_id", id), zap.Error(err))
		return JoinResponse{Error: errorMsg("", protocol.ErrInternal, "garrison unavailable")}
	}
	token := newResumeToken()
	if err := r.cfg.Tokens.IssueToken(ctx, token, id, who.team); err != nil {
		r.log.Error("issue resume token", zap.Uint64("player_id", id), zap.Error(err))
		return JoinResponse{Error: errorMsg("", protocol.ErrInternal, "identity unavailable")}
	}

	tune := r.cfg.Tuning
	p := &Player{
		id:         id,
		name:       req.Name,
		team:       who.team,
		sessionID:  uuid.NewString(),
		mapID:      tune.StartMapID,
		money:      tune.StartingMoney,
		currencies: map[uint32]int32{},
		out:        req.Out,
		realm:      r,
	}
	for cur, amount := range tune.StartingCurrencies {
		p.currencies[cur] = amount
	}

	if rows.Garrison != nil {
		g := r.newGarrison(p)
		if g.LoadFromDB(rows) {
			p.garrison = g
		} else {
			r.log.Warn("stored garrison not loaded", zap.Uint64("player_id", id), zap.Uint32("site_level_id", rows.Garrison.SiteLevelID))
		}
	}

	r.players[id] = p
	if _, err := r.maps.Create(p.mapID, id); err != nil {
		r.log.Warn("start map", zap.Uint32("map_id", p.mapID), zap.Error(err))
	}
	r.writeSession(p, SessionJoin)
	r.log.Info("player joined",
		zap.Uint64("player_id", id),
		zap.String("name", p.name),
		zap.String("team", p.team.String()),
		zap.Bool("garrison", p.garrison != nil))

	d := r.cfg.Catalogs.Digests
	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       p.sessionID,
		PlayerID:        id,
		ResumeToken:     token,
		MapID:           p.mapID,
		HasGarrison:     p.garrison != nil,
		Catalogs: protocol.CatalogDigests{
			Buildings: d.Buildings,
			Plots:     d.Plots,
			Followers: d.Followers,
			Sites:     d.Sites,
		},
	}}
}

// identify maps the join to a player. A known token resumes its player with
// the team it was issued for. Anything else gets a fresh id that owns no
// stored garrison, so a client can never pick whose rows it loads.
func (r *Realm) identify(ctx context.Context, req JoinRequest) (identity, error) {
	if req.Token != "" {
		id, team, ok, err := r.cfg.Tokens.ResolveToken(ctx, req.Token)
		if err != nil {
			return identity{}, err
		}
		if ok {
			return identity{playerID: id, team: team}, nil
		}
		r.log.Info("unknown resume token, joining as new player")
	}
	for i := 0; i < 8; i++ {
		id := r.cfg.NewPlayerID()
		if _, online := r.players[id]; online || id == 0 {
			continue
		}
		rows, err := r.cfg.Store.Load(ctx, id)
		if err != nil {
			return identity{}, err
		}
		if rows.Garrison == nil {
			return identity{playerID: id, team: req.Team}, nil
		}
	}
	return identity{}, errors.New("no unused player id")
}

func (r *Realm) leavePlayer(ctx context.Context, id uint64) {
	p, ok := r.players[id]
	if !ok {
		return
	}
	r.save(ctx, p)
	r.leaveMap(p)
	delete(r.players, id)
	r.writeSession(p, SessionLeave)
	r.log.Info("player left", zap.Uint64("player_id", id))
}

func (r *Realm) newGarrison(p *Player) *garrison.Garrison {
	return garrison.New(p, garrison.Config{
		Catalog:             r.cfg.Catalogs,
		Notifier:            notifier{realm: r, owner: p.id},
		Placement:           r.maps,
		Abilities:           r.cfg.Abilities,
		Audit:               r.cfg.Audit,
		Logger:              r.log.Named("garrison"),
		Now:                 r.cfg.Now,
		FollowerActivations: r.cfg.Tuning.FollowerActivationsPerDay,
	})
}

// teleport moves p to mapID. Leaving an instanced map destroys it; entering
// the player's own garrison map spawns its plot entities.
func (r *Realm) teleport(p *Player, mapID uint32) bool {
	def, ok := r.cfg.Catalogs.Map(mapID)
	if !ok {
		return false
	}
	if mapID == p.mapID {
		return true
	}
	r.leaveMap(p)
	p.mapID = mapID
	if _, err := r.maps.Create(mapID, p.id); err != nil {
		r.log.Error("create map", zap.Uint32("map_id", mapID), zap.Error(err))
		return false
	}
	if def.Instanced && p.garrison != nil {
		if sl, ok := p.garrison.SiteLevel(); ok && sl.MapID == mapID {
			n := p.garrison.SpawnPlotEntities()
			r.log.Debug("garrison map loaded", zap.Uint64("player_id", p.id), zap.Int("entities", n))
		}
	}
	return true
}

func (r *Realm) leaveMap(p *Player) {
	def, ok := r.cfg.Catalogs.Map(p.mapID)
	if !ok || !def.Instanced {
		return
	}
	r.maps.Destroy(garrison.MapHandle{MapID: p.mapID, InstanceKey: p.id})
	if p.garrison != nil {
		p.garrison.ReleasePlotEntities()
	}
}

func (r *Realm) save(ctx context.Context, p *Player) {
	if p.garrison == nil {
		return
	}
	rows := p.garrison.SaveToDB()
	if rows.Garrison == nil {
		return
	}
	if err := r.cfg.Store.Save(ctx, p.id, rows); err != nil {
		r.saveErrors.Add(1)
		r.log.Error("save garrison", zap.Uint64("player_id", p.id), zap.Error(err))
		return
	}
	r.saves.Add(1)
}

func (r *Realm) saveAll(ctx context.Context) {
	for _, p := range r.players {
		r.save(ctx, p)
	}
}

// flush saves everything on shutdown with a fresh deadline, since the run
// context is already cancelled.
func (r *Realm) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.saveAll(ctx)
}

func (r *Realm) deliver(playerID uint64, msg protocol.Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("encode message", zap.String("type", msg.MessageType()), zap.Error(err))
		return
	}
	if p, ok := r.players[playerID]; ok {
		r.push(p, b)
		return
	}
	if r.cfg.Fanout == nil {
		r.dropped.Add(1)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cfg.Fanout.Publish(ctx, playerID, b); err != nil {
		r.dropped.Add(1)
		r.log.Warn("fanout publish", zap.Uint64("player_id", playerID), zap.Error(err))
	}
}

// deliverToMap reaches every player on mapID except exclude, locally and
// through the fan-out.
func (r *Realm) deliverToMap(mapID uint32, exclude uint64, msg protocol.Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		r.log.Error("encode message", zap.String("type", msg.MessageType()), zap.Error(err))
		return
	}
	r.pushMap(mapID, exclude, b)
	if r.cfg.Fanout == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.cfg.Fanout.PublishMap(ctx, mapID, exclude, b); err != nil {
		r.log.Warn("fanout publish map", zap.Uint32("map_id", mapID), zap.Error(err))
	}
}

func (r *Realm) pushMap(mapID uint32, exclude uint64, b []byte) {
	for id, p := range r.players {
		if id != exclude && p.mapID == mapID {
			r.push(p, b)
		}
	}
}

// push never blocks the loop; a full outbox drops the message.
func (r *Realm) push(p *Player, b []byte) {
	if p.out == nil {
		return
	}
	select {
	case p.out <- b:
	default:
		r.dropped.Add(1)
		r.log.Warn("outbox full", zap.Uint64("player_id", p.id))
	}
}

func (r *Realm) sendError(p *Player, forType, code, message string) {
	b, err := json.Marshal(errorMsg(forType, code, message))
	if err != nil {
		return
	}
	r.push(p, b)
}

func errorMsg(forType, code, message string) *protocol.ErrorMsg {
	return &protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		For:             forType,
		Code:            code,
		Message:         message,
	}
}

func (r *Realm) writeSession(p *Player, event string) {
	if r.cfg.Sessions == nil {
		return
	}
	err := r.cfg.Sessions.WriteSession(SessionEntry{
		Time:      r.cfg.Now().Unix(),
		PlayerID:  p.id,
		SessionID: p.sessionID,
		Event:     event,
		Garrison:  p.garrison != nil,
	})
	if err != nil {
		r.log.Warn("session log", zap.Error(err))
	}
}

func (r *Realm) publishMetrics() {
	garrisons := 0
	for _, p := range r.players {
		if p.garrison != nil {
			garrisons++
		}
	}
	r.nPlayers.Store(int64(len(r.players)))
	r.nGarrisons.Store(int64(garrisons))
	r.nEntities.Store(int64(r.maps.EntityCount()))
	r.nInstances.Store(int64(r.maps.InstanceCount()))
}
