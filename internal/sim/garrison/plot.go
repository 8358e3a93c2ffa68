package garrison

import (
	"errors"
	"fmt"
	"time"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
)

var (
	ErrNoEntityTemplate = errors.New("entity template missing")
	ErrEntitySpawned    = errors.New("plot entity already spawned")
)

// Plot is one building slot of a garrison.
type Plot struct {
	PlotInstanceID  uint32
	Pos             protocol.Position
	PlotType        uint32
	EmptyEntry      uint32
	SiteLevelPlotID uint32

	BuildingInfo Building
}

// Building is the building slot of a plot. Info is nil while nothing is
// built or under construction. The live entity is tracked separately because
// empty plots have one too.
type Building struct {
	Info *BuildingInfo

	entity  EntityHandle
	spawned bool
}

type BuildingInfo struct {
	BuildingID uint32
	TimeBuilt  time.Time
	Active     bool
}

func (b BuildingInfo) packet(plotInstanceID uint32) protocol.BuildingInfo {
	return protocol.BuildingInfo{
		PlotInstanceID: plotInstanceID,
		BuildingID:     b.BuildingID,
		TimeBuilt:      b.TimeBuilt.Unix(),
		Active:         b.Active,
	}
}

func (p *Plot) PacketInfo() protocol.PlotInfo {
	return protocol.PlotInfo{
		PlotInstanceID: p.PlotInstanceID,
		Pos:            p.Pos,
		PlotType:       p.PlotType,
	}
}

// HasBuilding reports whether a building is built or under construction.
func (p *Plot) HasBuilding() bool { return p.BuildingInfo.Info != nil }

// Entity returns the handle of the plot's live entity, if one is spawned.
func (p *Plot) Entity() (EntityHandle, bool) {
	return p.BuildingInfo.entity, p.BuildingInfo.spawned
}

// CreateGameObject spawns the entity matching the plot's current state: the
// finished building, its construction site, or the empty plot marker.
func (p *Plot) CreateGameObject(cat Catalog, world Placement, m MapHandle, faction Faction) (EntityHandle, error) {
	if p.BuildingInfo.spawned {
		return 0, ErrEntitySpawned
	}

	entry := p.EmptyEntry
	if info := p.BuildingInfo.Info; info != nil {
		inst, ok := cat.PlotInstance(p.PlotInstanceID)
		mustFind(ok, "plot instance", p.PlotInstanceID)
		plot, ok := cat.Plot(inst.PlotID)
		mustFind(ok, "plot", inst.PlotID)
		building := mustBuilding(cat, info.BuildingID)
		switch {
		case info.Active && faction == FactionHorde:
			entry = building.HordeEntry
		case info.Active:
			entry = building.AllianceEntry
		case faction == FactionHorde:
			entry = plot.HordeConstructionEntry
		default:
			entry = plot.AllianceConstructionEntry
		}
	}

	if !cat.HasEntityTemplate(entry) {
		return 0, fmt.Errorf("entry %d: %w", entry, ErrNoEntityTemplate)
	}

	h, err := world.Spawn(m, entry, p.Pos, faction)
	if err != nil {
		return 0, err
	}
	p.BuildingInfo.entity = h
	p.BuildingInfo.spawned = true
	return h, nil
}

// DeleteGameObject removes the plot's live entity, if any.
func (p *Plot) DeleteGameObject(world Placement, m MapHandle) {
	if !p.BuildingInfo.spawned {
		return
	}
	world.Despawn(m, p.BuildingInfo.entity)
	p.BuildingInfo.entity = 0
	p.BuildingInfo.spawned = false
}

// forgetGameObject drops the handle without despawning; used when the map
// holding the entity is gone.
func (p *Plot) forgetGameObject() {
	p.BuildingInfo.entity = 0
	p.BuildingInfo.spawned = false
}

// ClearBuildingInfo announces the now-empty plot, then drops its building.
func (p *Plot) ClearBuildingInfo(n Notifier) {
	n.SendToOwner(protocol.PlotPlacedMsg{
		Type:     protocol.TypePlotPlaced,
		PlotInfo: p.PacketInfo(),
	})
	p.BuildingInfo.Info = nil
}

// SetBuildingInfo stores info on the plot. A plot going from empty to
// occupied is first announced as removed from the client's plot list.
func (p *Plot) SetBuildingInfo(info BuildingInfo, n Notifier) {
	if p.BuildingInfo.Info == nil {
		n.SendToOwner(protocol.PlotRemovedMsg{
			Type:           protocol.TypePlotRemoved,
			PlotInstanceID: p.PlotInstanceID,
		})
	}
	p.BuildingInfo.Info = &info
}

// CanActivate reports whether the building's construction timer has elapsed.
func (b *Building) CanActivate(cat Catalog, now time.Time) bool {
	if b.Info == nil {
		return false
	}
	building := mustBuilding(cat, b.Info.BuildingID)
	done := b.Info.TimeBuilt.Add(time.Duration(building.BuildDuration) * time.Second)
	return !now.Before(done)
}

// mustFind guards lookups of data that earlier validation guarantees.
func mustFind(ok bool, what string, id uint32) {
	if !ok {
		panic(fmt.Sprintf("garrison: %s %d missing from catalog", what, id))
	}
}

func mustBuilding(cat Catalog, id uint32) catalogs.Building {
	b, ok := cat.Building(id)
	mustFind(ok, "building", id)
	return b
}
