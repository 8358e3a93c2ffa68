package garrison

import (
	"time"

	"go.uber.org/zap"
)

// Rows is the durable projection of a garrison. Garrison is nil when the
// owner has none.
type Rows struct {
	Garrison   *GarrisonRow   `json:"garrison"`
	Blueprints []BlueprintRow `json:"blueprints"`
	Buildings  []BuildingRow  `json:"buildings"`
}

type GarrisonRow struct {
	SiteLevelID                  uint32 `json:"site_level_id"`
	FollowerActivationsRemaining uint32 `json:"follower_activations_remaining"`
}

type BlueprintRow struct {
	BuildingID uint32 `json:"building_id"`
}

type BuildingRow struct {
	PlotInstanceID uint32 `json:"plot_instance_id"`
	BuildingID     uint32 `json:"building_id"`
	TimeBuilt      int64  `json:"time_built"`
	Active         bool   `json:"active"`
}

// LoadFromDB restores the garrison from rows. Blueprints and buildings that
// no longer resolve against the catalog or the plot layout are dropped.
func (g *Garrison) LoadFromDB(rows Rows) bool {
	if rows.Garrison == nil || g.siteLevel != nil {
		return false
	}
	sl, ok := g.cfg.Catalog.SiteLevel(rows.Garrison.SiteLevelID)
	if !ok {
		g.log.Warn("stored garrison has unknown site level", zap.Uint32("site_level_id", rows.Garrison.SiteLevelID))
		return false
	}
	g.siteLevel = &sl
	g.followerActivationsRemainingToday = rows.Garrison.FollowerActivationsRemaining
	if err := g.InitializePlots(); err != nil {
		g.log.Error("initialize plots", zap.Error(err))
	}

	for _, bp := range rows.Blueprints {
		if _, ok := g.cfg.Catalog.Building(bp.BuildingID); ok {
			g.knownBuildings[bp.BuildingID] = struct{}{}
		}
	}

	dropped := 0
	for _, b := range rows.Buildings {
		plot, ok := g.plots[b.PlotInstanceID]
		if !ok {
			dropped++
			continue
		}
		if _, ok := g.cfg.Catalog.Building(b.BuildingID); !ok {
			dropped++
			continue
		}
		plot.BuildingInfo.Info = &BuildingInfo{
			BuildingID: b.BuildingID,
			TimeBuilt:  time.Unix(b.TimeBuilt, 0),
			Active:     b.Active,
		}
	}
	if dropped > 0 {
		g.log.Warn("dropped stored buildings", zap.Int("count", dropped))
	}
	return true
}

// SaveToDB returns the rows that replace everything stored for the owner.
func (g *Garrison) SaveToDB() Rows {
	if g.siteLevel == nil {
		return Rows{}
	}
	rows := Rows{
		Garrison: &GarrisonRow{
			SiteLevelID:                  g.siteLevel.ID,
			FollowerActivationsRemaining: g.followerActivationsRemainingToday,
		},
	}
	for _, id := range g.KnownBlueprints() {
		rows.Blueprints = append(rows.Blueprints, BlueprintRow{BuildingID: id})
	}
	for _, p := range g.Plots() {
		if info := p.BuildingInfo.Info; info != nil {
			rows.Buildings = append(rows.Buildings, BuildingRow{
				PlotInstanceID: p.PlotInstanceID,
				BuildingID:     info.BuildingID,
				TimeBuilt:      info.TimeBuilt.Unix(),
				Active:         info.Active,
			})
		}
	}
	return rows
}
