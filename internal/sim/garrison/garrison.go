package garrison

import (
	"errors"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
)

var (
	ErrNoSiteLevel      = errors.New("garrison has no site level")
	ErrPlotsInitialized = errors.New("garrison plots already initialized")
)

// Garrison is a player's base: plots with their buildings, learned
// blueprints and recruited followers.
//
// A Garrison is not safe for concurrent use; the realm loop serializes all
// requests of its owner.
type Garrison struct {
	owner Owner
	cfg   Config
	log   *zap.Logger

	siteLevel                         *catalogs.SiteLevel
	followerActivationsRemainingToday uint32
	knownBuildings                    map[uint32]struct{}
	plots                             map[uint32]*Plot
	followers                         map[uint32]*Follower
}

func New(owner Owner, cfg Config) *Garrison {
	cfg = cfg.withDefaults()
	return &Garrison{
		owner:                             owner,
		cfg:                               cfg,
		log:                               cfg.Logger.With(zap.Uint64("owner_id", owner.ID())),
		followerActivationsRemainingToday: cfg.FollowerActivations,
		knownBuildings:                    map[uint32]struct{}{},
		plots:                             map[uint32]*Plot{},
		followers:                         map[uint32]*Follower{},
	}
}

// Create establishes the garrison at level 1 of siteID.
func (g *Garrison) Create(siteID uint32) bool {
	if g.siteLevel != nil {
		g.log.Warn("create on established garrison", zap.Uint32("site_id", siteID))
		return false
	}
	sl, ok := g.cfg.Catalog.SiteLevelFor(siteID, 1)
	if !ok {
		return false
	}
	g.siteLevel = &sl
	if err := g.InitializePlots(); err != nil {
		g.log.Error("initialize plots", zap.Error(err))
	}

	g.send(protocol.CreateResultMsg{
		Type:        protocol.TypeCreateResult,
		Result:      protocol.ResultSuccess,
		SiteLevelID: sl.ID,
	})
	g.owner.UpdatePhasing()
	g.SendRemoteInfo()
	g.broadcastPresence()
	g.audit(AuditEntry{Action: AuditCreate, SiteLevelID: sl.ID})
	g.log.Debug("garrison created", zap.Uint32("site_level_id", sl.ID), zap.Int("plots", len(g.plots)))
	return true
}

// InitializePlots builds the plot set from the site level's static layout.
// It runs once, from Create or LoadFromDB; a second call would wipe building
// state and is refused.
func (g *Garrison) InitializePlots() error {
	if g.siteLevel == nil {
		return ErrNoSiteLevel
	}
	if len(g.plots) > 0 {
		return ErrPlotsInitialized
	}
	cat := g.cfg.Catalog
	for _, slp := range cat.SiteLevelPlots(g.siteLevel.ID) {
		inst, ok := cat.PlotInstance(slp.PlotInstanceID)
		if !ok {
			continue
		}
		obj, ok := cat.PlotObject(g.siteLevel.MapID, slp.PlotInstanceID)
		if !ok {
			continue
		}
		plot, ok := cat.Plot(inst.PlotID)
		if !ok {
			continue
		}
		g.plots[slp.PlotInstanceID] = &Plot{
			PlotInstanceID: slp.PlotInstanceID,
			Pos: protocol.Position{
				X: obj.X,
				Y: obj.Y,
				Z: obj.Z,
				O: orientation(obj.RotationW),
			},
			PlotType:        plot.PlotType,
			EmptyEntry:      obj.Entry,
			SiteLevelPlotID: slp.ID,
		}
	}
	return nil
}

// orientation recovers a yaw angle from the w component of a rotation
// quaternion about the vertical axis.
func orientation(w float32) float32 {
	c := math.Max(-1, math.Min(1, float64(w)))
	return float32(2 * math.Acos(c))
}

// Upgrade is the site-level upgrade hook; upgrades are not implemented.
func (g *Garrison) Upgrade() {}

func (g *Garrison) Enter() {
	if g.siteLevel == nil {
		return
	}
	if _, ok := g.cfg.Catalog.Map(g.siteLevel.MapID); !ok {
		return
	}
	g.owner.TeleportTo(g.siteLevel.MapID, true)
}

func (g *Garrison) Leave() {
	if g.siteLevel == nil {
		return
	}
	m, ok := g.cfg.Catalog.Map(g.siteLevel.MapID)
	if !ok || m.ParentMapID < 0 {
		return
	}
	g.owner.TeleportTo(uint32(m.ParentMapID), true)
}

func (g *Garrison) Faction() Faction {
	if g.owner.Team() == TeamHorde {
		return FactionHorde
	}
	return FactionAlliance
}

func (g *Garrison) SiteLevel() (catalogs.SiteLevel, bool) {
	if g.siteLevel == nil {
		return catalogs.SiteLevel{}, false
	}
	return *g.siteLevel, true
}

func (g *Garrison) FollowerActivationsRemaining() uint32 {
	return g.followerActivationsRemainingToday
}

// Plots returns all plots ordered by plot instance id.
func (g *Garrison) Plots() []*Plot {
	ids := make([]uint32, 0, len(g.plots))
	for id := range g.plots {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]*Plot, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.plots[id])
	}
	return out
}

func (g *Garrison) Plot(plotInstanceID uint32) (*Plot, bool) {
	p, ok := g.plots[plotInstanceID]
	return p, ok
}

func (g *Garrison) KnowsBlueprint(buildingID uint32) bool {
	_, ok := g.knownBuildings[buildingID]
	return ok
}

// KnownBlueprints returns the learned building ids in ascending order.
func (g *Garrison) KnownBlueprints() []uint32 {
	out := make([]uint32, 0, len(g.knownBuildings))
	for id := range g.knownBuildings {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (g *Garrison) LearnBlueprint(buildingID uint32) {
	msg := protocol.LearnBlueprintResultMsg{
		Type:       protocol.TypeLearnBlueprintResult,
		Result:     protocol.ResultSuccess,
		BuildingID: buildingID,
	}
	if _, ok := g.cfg.Catalog.Building(buildingID); !ok {
		msg.Result = protocol.ResultInvalidBuildingID
	} else if g.KnowsBlueprint(buildingID) {
		msg.Result = protocol.ResultBlueprintKnown
	} else {
		g.knownBuildings[buildingID] = struct{}{}
		g.audit(AuditEntry{Action: AuditLearnBlueprint, BuildingID: buildingID})
	}
	g.send(msg)
}

func (g *Garrison) UnlearnBlueprint(buildingID uint32) {
	msg := protocol.UnlearnBlueprintResultMsg{
		Type:       protocol.TypeUnlearnBlueprintResult,
		Result:     protocol.ResultSuccess,
		BuildingID: buildingID,
	}
	if _, ok := g.cfg.Catalog.Building(buildingID); !ok {
		msg.Result = protocol.ResultInvalidBuildingID
	} else if !g.KnowsBlueprint(buildingID) {
		msg.Result = protocol.ResultBlueprintNotKnown
	} else {
		delete(g.knownBuildings, buildingID)
		g.audit(AuditEntry{Action: AuditUnlearnBlueprint, BuildingID: buildingID})
	}
	g.send(msg)
}

// CheckBuildingPlacement validates placing buildingID on a plot without
// changing any state.
func (g *Garrison) CheckBuildingPlacement(plotInstanceID, buildingID uint32) protocol.Result {
	cat := g.cfg.Catalog
	inst, ok := cat.PlotInstance(plotInstanceID)
	plot, hasPlot := g.plots[plotInstanceID]
	if !ok || !hasPlot {
		return protocol.ResultInvalidPlot
	}

	building, ok := cat.Building(buildingID)
	if !ok {
		return protocol.ResultInvalidBuildingID
	}

	if !cat.PlotMatchesBuilding(inst.PlotID, buildingID) {
		return protocol.ResultInvalidPlotBuilding
	}

	// Cannot place buildings above the garrison's level.
	if g.siteLevel == nil || building.Level > g.siteLevel.Level {
		return protocol.ResultInvalidBuildingID
	}

	if !building.NeedsPlan {
		// Quest reward buildings are never placed directly.
		return protocol.ResultInvalidBuildingID
	}
	if !g.KnowsBlueprint(buildingID) {
		return protocol.ResultBlueprintNotKnown
	}

	for id, p := range g.plots {
		if p.BuildingInfo.Info == nil {
			continue
		}
		existing := mustBuilding(cat, p.BuildingInfo.Info.BuildingID)
		if existing.Type != building.Type {
			continue
		}
		// Only an in-place upgrade to the next level may share a type.
		if id != plotInstanceID || existing.Level+1 != building.Level {
			return protocol.ResultBuildingExists
		}
	}

	if !g.owner.HasCurrency(building.CostCurrencyID, building.CostCurrencyAmount) {
		return protocol.ResultNotEnoughCurrency
	}
	if !g.owner.HasEnoughMoney(uint64(building.CostMoney) * Gold) {
		return protocol.ResultNotEnoughGold
	}

	// A construction site cannot be replaced.
	if info := plot.BuildingInfo.Info; info != nil && !info.Active {
		return protocol.ResultNoBuilding
	}

	return protocol.ResultSuccess
}

func (g *Garrison) PlaceBuilding(plotInstanceID, buildingID uint32) {
	result := protocol.PlaceBuildingResultMsg{
		Type:   protocol.TypePlaceBuildingResult,
		Result: g.CheckBuildingPlacement(plotInstanceID, buildingID),
	}
	if !result.Result.OK() {
		g.send(result)
		return
	}

	info := BuildingInfo{
		BuildingID: buildingID,
		TimeBuilt:  g.now(),
	}
	result.BuildingInfo = info.packet(plotInstanceID)

	plot := g.plots[plotInstanceID]
	building := mustBuilding(g.cfg.Catalog, buildingID)
	m, hasMap := g.FindMap()
	if hasMap {
		plot.DeleteGameObject(g.cfg.Placement, m)
	}

	var oldBuildingID uint32
	replaced := false
	if old := plot.BuildingInfo.Info; old != nil {
		oldBuildingID = old.BuildingID
		replaced = true
		if mustBuilding(g.cfg.Catalog, oldBuildingID).Type != building.Type {
			plot.ClearBuildingInfo(g.cfg.Notifier)
		}
	}

	plot.SetBuildingInfo(info, g.cfg.Notifier)
	if hasMap {
		g.spawn(plot, m)
	}

	g.owner.ModifyCurrency(building.CostCurrencyID, -building.CostCurrencyAmount)
	g.owner.ModifyMoney(-int64(building.CostMoney) * Gold)

	if replaced {
		g.send(protocol.BuildingRemovedMsg{
			Type:           protocol.TypeBuildingRemoved,
			Result:         protocol.ResultSuccess,
			PlotInstanceID: plotInstanceID,
			BuildingID:     oldBuildingID,
		})
	}
	g.send(result)
	g.audit(AuditEntry{Action: AuditPlaceBuilding, PlotInstanceID: plotInstanceID, BuildingID: buildingID})
	g.log.Debug("building placed",
		zap.Uint32("plot_instance_id", plotInstanceID),
		zap.Uint32("building_id", buildingID),
		zap.Uint32("replaced_building_id", oldBuildingID))
}

// CheckBuildingRemoval validates cancelling construction on a plot. Finished
// buildings cannot be cancelled.
func (g *Garrison) CheckBuildingRemoval(plotInstanceID uint32) protocol.Result {
	plot, ok := g.plots[plotInstanceID]
	if !ok {
		return protocol.ResultInvalidPlot
	}
	if plot.BuildingInfo.Info == nil {
		return protocol.ResultNoBuilding
	}
	if plot.BuildingInfo.CanActivate(g.cfg.Catalog, g.cfg.Now()) {
		return protocol.ResultBuildingExists
	}
	return protocol.ResultSuccess
}

// CancelBuildingConstruction aborts construction on a plot and refunds its
// full cost. Cancelling an upgrade restores the previous level, active.
func (g *Garrison) CancelBuildingConstruction(plotInstanceID uint32) {
	removed := protocol.BuildingRemovedMsg{
		Type:   protocol.TypeBuildingRemoved,
		Result: g.CheckBuildingRemoval(plotInstanceID),
	}
	if !removed.Result.OK() {
		g.send(removed)
		return
	}

	plot := g.plots[plotInstanceID]
	removed.PlotInstanceID = plotInstanceID
	removed.BuildingID = plot.BuildingInfo.Info.BuildingID

	m, hasMap := g.FindMap()
	if hasMap {
		plot.DeleteGameObject(g.cfg.Placement, m)
	}

	plot.ClearBuildingInfo(g.cfg.Notifier)
	g.send(removed)

	constructing := mustBuilding(g.cfg.Catalog, removed.BuildingID)
	g.owner.ModifyCurrency(constructing.CostCurrencyID, constructing.CostCurrencyAmount)
	g.owner.ModifyMoney(int64(constructing.CostMoney) * Gold)
	g.audit(AuditEntry{
		Action:         AuditCancelConstruction,
		PlotInstanceID: plotInstanceID,
		BuildingID:     removed.BuildingID,
		Refund:         true,
	})

	var restoredResult *protocol.PlaceBuildingResultMsg
	if constructing.Level > 1 {
		restored, ok := g.cfg.Catalog.PreviousLevelBuilding(constructing.Type, constructing.Level)
		mustFind(ok, "previous level of building", constructing.ID)

		info := BuildingInfo{
			BuildingID: restored.ID,
			TimeBuilt:  g.now(),
			Active:     true,
		}
		plot.SetBuildingInfo(info, g.cfg.Notifier)
		restoredResult = &protocol.PlaceBuildingResultMsg{
			Type:         protocol.TypePlaceBuildingResult,
			Result:       protocol.ResultSuccess,
			BuildingInfo: info.packet(plotInstanceID),
		}
	}

	if hasMap {
		g.spawn(plot, m)
	}
	if restoredResult != nil {
		g.send(*restoredResult)
	}
	g.log.Debug("construction cancelled",
		zap.Uint32("plot_instance_id", plotInstanceID),
		zap.Uint32("building_id", removed.BuildingID),
		zap.Bool("restored", restoredResult != nil))
}

// SpawnPlotEntities (re)spawns every plot's entity on the garrison map, if
// the map exists.
func (g *Garrison) SpawnPlotEntities() int {
	m, ok := g.FindMap()
	if !ok {
		return 0
	}
	n := 0
	for _, p := range g.Plots() {
		p.DeleteGameObject(g.cfg.Placement, m)
		if g.spawn(p, m) {
			n++
		}
	}
	return n
}

// ReleasePlotEntities forgets all entity handles; called when the garrison
// map is torn down together with its entities.
func (g *Garrison) ReleasePlotEntities() {
	for _, p := range g.plots {
		p.forgetGameObject()
	}
}

func (g *Garrison) FindMap() (MapHandle, bool) {
	if g.siteLevel == nil {
		return MapHandle{}, false
	}
	return g.cfg.Placement.FindMap(g.siteLevel.MapID, g.owner.ID())
}

func (g *Garrison) spawn(p *Plot, m MapHandle) bool {
	if _, err := p.CreateGameObject(g.cfg.Catalog, g.cfg.Placement, m, g.Faction()); err != nil {
		if errors.Is(err, ErrNoEntityTemplate) {
			g.log.Error("garrison attempted to spawn entity without template",
				zap.Uint32("plot_instance_id", p.PlotInstanceID), zap.Error(err))
		} else {
			g.log.Error("spawn plot entity", zap.Uint32("plot_instance_id", p.PlotInstanceID), zap.Error(err))
		}
		return false
	}
	return true
}

func (g *Garrison) send(msg protocol.Message) {
	g.cfg.Notifier.SendToOwner(msg)
}

func (g *Garrison) now() time.Time {
	return time.Unix(g.cfg.Now().Unix(), 0)
}

func (g *Garrison) audit(e AuditEntry) {
	if g.cfg.Audit == nil {
		return
	}
	e.Time = g.cfg.Now().Unix()
	e.OwnerID = g.owner.ID()
	if err := g.cfg.Audit.WriteAudit(e); err != nil {
		g.log.Warn("audit write", zap.String("action", e.Action), zap.Error(err))
	}
}
