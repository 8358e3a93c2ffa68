package garrison

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
)

const (
	testSite       = 10
	testSiteLevel1 = 1
	testSiteLevel2 = 2
	testMapL1      = 100
	testMapL2      = 101
	testParentMap  = 1

	currencyResources = 824

	plotLarge  = 1 // plot type 2
	plotMedium = 2 // plot type 1
	plotSmall  = 3 // plot type 0
	plotNoObj  = 4 // no world object on either map
	plotSmall2 = 5 // plot type 0, level 1 only

	barracks1   = 10
	barracks2   = 11
	barracks3   = 12
	lumberMill  = 20
	fishShack   = 30 // quest reward
	storehouse1 = 40
	well        = 50
)

func fixtureTables() catalogs.Tables {
	return catalogs.Tables{
		SiteLevels: []catalogs.SiteLevel{
			{ID: testSiteLevel1, SiteID: testSite, Level: 1, MapID: testMapL1},
			{ID: testSiteLevel2, SiteID: testSite, Level: 2, MapID: testMapL2},
		},
		SiteLevelPlots: []catalogs.SiteLevelPlot{
			{ID: 101, SiteLevelID: testSiteLevel1, PlotInstanceID: plotLarge},
			{ID: 102, SiteLevelID: testSiteLevel1, PlotInstanceID: plotMedium},
			{ID: 103, SiteLevelID: testSiteLevel1, PlotInstanceID: plotSmall},
			{ID: 104, SiteLevelID: testSiteLevel1, PlotInstanceID: plotNoObj},
			{ID: 105, SiteLevelID: testSiteLevel1, PlotInstanceID: plotSmall2},
			{ID: 201, SiteLevelID: testSiteLevel2, PlotInstanceID: plotLarge},
			{ID: 202, SiteLevelID: testSiteLevel2, PlotInstanceID: plotMedium},
			{ID: 203, SiteLevelID: testSiteLevel2, PlotInstanceID: plotSmall},
		},
		PlotInstances: []catalogs.PlotInstance{
			{ID: plotLarge, PlotID: 3},
			{ID: plotMedium, PlotID: 2},
			{ID: plotSmall, PlotID: 1},
			{ID: plotNoObj, PlotID: 1},
			{ID: plotSmall2, PlotID: 1},
		},
		Plots: []catalogs.Plot{
			{ID: 1, PlotType: 0, HordeConstructionEntry: 5001, AllianceConstructionEntry: 5002},
			{ID: 2, PlotType: 1, HordeConstructionEntry: 5003, AllianceConstructionEntry: 5004},
			{ID: 3, PlotType: 2, HordeConstructionEntry: 5005, AllianceConstructionEntry: 5006},
		},
		PlotObjects: []catalogs.PlotObject{
			{Entry: 4001, MapID: testMapL1, PlotInstanceID: plotLarge, X: 1, Y: 2, Z: 3, RotationW: 1},
			{Entry: 4002, MapID: testMapL1, PlotInstanceID: plotMedium, X: 4, Y: 5, Z: 6, RotationW: 0},
			{Entry: 4003, MapID: testMapL1, PlotInstanceID: plotSmall, X: 7, Y: 8, Z: 9, RotationW: 0.5},
			{Entry: 4004, MapID: testMapL1, PlotInstanceID: plotSmall2, X: 10, Y: 11, Z: 12, RotationW: 1},
			{Entry: 4011, MapID: testMapL2, PlotInstanceID: plotLarge, X: 1, Y: 2, Z: 3, RotationW: 1},
			{Entry: 4012, MapID: testMapL2, PlotInstanceID: plotMedium, X: 4, Y: 5, Z: 6, RotationW: 0},
			{Entry: 4013, MapID: testMapL2, PlotInstanceID: plotSmall, X: 7, Y: 8, Z: 9, RotationW: 0.5},
		},
		Buildings: []catalogs.Building{
			{ID: barracks1, Type: 1, Level: 1, PlotType: 2, NeedsPlan: true, HordeEntry: 6001, AllianceEntry: 6002,
				CostCurrencyID: currencyResources, CostCurrencyAmount: 100, CostMoney: 50, BuildDuration: 3600},
			{ID: barracks2, Type: 1, Level: 2, PlotType: 2, NeedsPlan: true, HordeEntry: 6011, AllianceEntry: 6012,
				CostCurrencyID: currencyResources, CostCurrencyAmount: 200, CostMoney: 150, BuildDuration: 7200},
			{ID: barracks3, Type: 1, Level: 3, PlotType: 2, NeedsPlan: true, HordeEntry: 6021, AllianceEntry: 6022,
				CostCurrencyID: currencyResources, CostCurrencyAmount: 300, CostMoney: 300, BuildDuration: 14400},
			{ID: lumberMill, Type: 2, Level: 1, PlotType: 1, NeedsPlan: true, HordeEntry: 6101, AllianceEntry: 6102,
				CostCurrencyID: currencyResources, CostCurrencyAmount: 80, CostMoney: 40, BuildDuration: 3600},
			{ID: fishShack, Type: 4, Level: 1, PlotType: 0, NeedsPlan: false, HordeEntry: 6301, AllianceEntry: 6302},
			{ID: storehouse1, Type: 3, Level: 1, PlotType: 0, NeedsPlan: true, HordeEntry: 6201, AllianceEntry: 6202,
				CostCurrencyID: currencyResources, CostCurrencyAmount: 50, CostMoney: 25, BuildDuration: 1800},
			{ID: well, Type: 5, Level: 1, PlotType: 0, NeedsPlan: true, HordeEntry: 6401, AllianceEntry: 6402,
				CostCurrencyID: currencyResources, CostCurrencyAmount: 30, CostMoney: 10, BuildDuration: 900},
		},
		BuildingPlots: []catalogs.BuildingPlot{
			{ID: 9001, BuildingID: barracks1, SiteLevelPlotID: 101},
			{ID: 9002, BuildingID: lumberMill, SiteLevelPlotID: 102},
		},
		Followers: []catalogs.Follower{
			{ID: 34, Quality: 3, Level: 90, ItemLevelWeapon: 600, ItemLevelArmor: 610,
				HordeAbilities: []uint32{6, 101, 232}, AllianceAbilities: []uint32{6, 102, 232}},
		},
		Maps: []catalogs.Map{
			{ID: testParentMap, ParentMapID: -1},
			{ID: testMapL1, ParentMapID: testParentMap, Instanced: true},
			{ID: testMapL2, ParentMapID: testParentMap, Instanced: true},
		},
		EntityTemplates: templates(
			4001, 4002, 4003, 4004, 4011, 4012, 4013,
			5001, 5002, 5003, 5004, 5005, 5006,
			6001, 6002, 6011, 6012, 6021, 6022, 6101, 6102, 6201, 6202, 6301, 6302, 6401, 6402,
		),
	}
}

func templates(entries ...uint32) []catalogs.EntityTemplate {
	out := make([]catalogs.EntityTemplate, 0, len(entries))
	for _, e := range entries {
		out = append(out, catalogs.EntityTemplate{Entry: e})
	}
	return out
}

type fakeOwner struct {
	id         uint64
	team       Team
	mapID      uint32
	currencies map[uint32]int32
	money      uint64

	teleports []uint32
	phasing   int
}

func newOwner() *fakeOwner {
	return &fakeOwner{
		id:         7,
		team:       TeamHorde,
		mapID:      testParentMap,
		currencies: map[uint32]int32{currencyResources: 1000},
		money:      1000 * Gold,
	}
}

func (o *fakeOwner) ID() uint64     { return o.id }
func (o *fakeOwner) Team() Team     { return o.team }
func (o *fakeOwner) MapID() uint32  { return o.mapID }
func (o *fakeOwner) UpdatePhasing() { o.phasing++ }

func (o *fakeOwner) HasCurrency(id uint32, amount int32) bool { return o.currencies[id] >= amount }
func (o *fakeOwner) ModifyCurrency(id uint32, delta int32)    { o.currencies[id] += delta }
func (o *fakeOwner) HasEnoughMoney(amount uint64) bool        { return o.money >= amount }
func (o *fakeOwner) ModifyMoney(delta int64)                  { o.money = uint64(int64(o.money) + delta) }

func (o *fakeOwner) TeleportTo(mapID uint32, seamless bool) {
	o.teleports = append(o.teleports, mapID)
	o.mapID = mapID
}

type recorder struct {
	owner []protocol.Message
	to    map[uint64][]protocol.Message
	onMap map[uint32][]protocol.Message
	// events interleaves sends with world calls so ordering can be asserted.
	events *[]string
}

func (r *recorder) SendToOwner(msg protocol.Message) {
	r.owner = append(r.owner, msg)
	if r.events != nil {
		*r.events = append(*r.events, "send:"+msg.MessageType())
	}
}

func (r *recorder) SendTo(playerID uint64, msg protocol.Message) {
	if r.to == nil {
		r.to = map[uint64][]protocol.Message{}
	}
	r.to[playerID] = append(r.to[playerID], msg)
}

func (r *recorder) SendToMap(mapID uint32, msg protocol.Message) {
	if r.onMap == nil {
		r.onMap = map[uint32][]protocol.Message{}
	}
	r.onMap[mapID] = append(r.onMap[mapID], msg)
}

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.owner))
	for _, m := range r.owner {
		out = append(out, m.MessageType())
	}
	return out
}

func (r *recorder) reset() { r.owner, r.onMap = nil, nil }

type liveEntity struct {
	entry   uint32
	pos     protocol.Position
	faction Faction
}

type fakeWorld struct {
	maps   map[MapHandle]bool
	live   map[EntityHandle]liveEntity
	next   EntityHandle
	events *[]string
}

func newWorld(events *[]string) *fakeWorld {
	return &fakeWorld{maps: map[MapHandle]bool{}, live: map[EntityHandle]liveEntity{}, events: events}
}

func (w *fakeWorld) open(mapID uint32, key uint64) {
	w.maps[MapHandle{MapID: mapID, InstanceKey: key}] = true
}

func (w *fakeWorld) FindMap(mapID uint32, key uint64) (MapHandle, bool) {
	m := MapHandle{MapID: mapID, InstanceKey: key}
	return m, w.maps[m]
}

func (w *fakeWorld) Spawn(m MapHandle, entry uint32, pos protocol.Position, faction Faction) (EntityHandle, error) {
	if !w.maps[m] {
		return 0, errors.New("no such map")
	}
	w.next++
	w.live[w.next] = liveEntity{entry: entry, pos: pos, faction: faction}
	*w.events = append(*w.events, fmt.Sprintf("spawn:%d", entry))
	return w.next, nil
}

func (w *fakeWorld) Despawn(m MapHandle, h EntityHandle) {
	delete(w.live, h)
	*w.events = append(*w.events, fmt.Sprintf("despawn:%d", h))
}

func (w *fakeWorld) entries() map[uint32]int {
	out := map[uint32]int{}
	for _, e := range w.live {
		out[e.entry]++
	}
	return out
}

type firstAbilities struct{}

func (firstAbilities) RollFollowerAbilities(def catalogs.Follower, quality uint32, faction Faction, initial bool) []uint32 {
	if faction == FactionHorde {
		return append([]uint32(nil), def.HordeAbilities[:1]...)
	}
	return append([]uint32(nil), def.AllianceAbilities[:1]...)
}

type seqIDs struct{ n int }

func (s *seqIDs) NewFollowerDbID() string {
	s.n++
	return fmt.Sprintf("follower-%d", s.n)
}

type memAudit struct{ entries []AuditEntry }

func (a *memAudit) WriteAudit(e AuditEntry) error {
	a.entries = append(a.entries, e)
	return nil
}

type harness struct {
	cat    *catalogs.Catalogs
	owner  *fakeOwner
	notify *recorder
	world  *fakeWorld
	audit  *memAudit
	events []string
	now    time.Time
	g      *Garrison
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, fixtureTables())
}

func newHarnessWith(t *testing.T, tables catalogs.Tables) *harness {
	t.Helper()
	cat, err := catalogs.Build(tables)
	require.NoError(t, err)

	h := &harness{
		cat:   cat,
		owner: newOwner(),
		audit: &memAudit{},
		now:   time.Unix(1_700_000_000, 250_000_000),
	}
	h.notify = &recorder{events: &h.events}
	h.world = newWorld(&h.events)
	h.g = New(h.owner, Config{
		Catalog:   cat,
		Notifier:  h.notify,
		Placement: h.world,
		Abilities: firstAbilities{},
		IDs:       &seqIDs{},
		Audit:     h.audit,
		Now:       func() time.Time { return h.now },
	})
	return h
}

// created returns a harness with a level-1 garrison and its map open.
func created(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	require.True(t, h.g.Create(testSite))
	h.world.open(testMapL1, h.owner.id)
	h.g.SpawnPlotEntities()
	h.notify.reset()
	h.events = nil
	return h
}

// loaded returns a harness restored from rows with its map open.
func loaded(t *testing.T, rows Rows) *harness {
	t.Helper()
	h := newHarness(t)
	require.True(t, h.g.LoadFromDB(rows))
	sl, _ := h.g.SiteLevel()
	h.world.open(sl.MapID, h.owner.id)
	h.g.SpawnPlotEntities()
	h.events = nil
	return h
}

func (h *harness) learn(t *testing.T, ids ...uint32) {
	t.Helper()
	for _, id := range ids {
		h.g.LearnBlueprint(id)
		require.True(t, h.g.KnowsBlueprint(id))
	}
	h.notify.reset()
	h.events = nil
}

func (h *harness) liveHandles() int {
	n := 0
	for _, p := range h.g.Plots() {
		if _, ok := p.Entity(); ok {
			n++
		}
	}
	return n
}
