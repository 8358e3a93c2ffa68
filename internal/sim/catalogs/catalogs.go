package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var ErrMissingEntry = errors.New("catalog entry missing")

// Tables is the raw, unindexed content of the catalog files.
type Tables struct {
	SiteLevels      []SiteLevel      `json:"site_levels"`
	SiteLevelPlots  []SiteLevelPlot  `json:"site_level_plots"`
	PlotInstances   []PlotInstance   `json:"plot_instances"`
	Plots           []Plot           `json:"plots"`
	PlotObjects     []PlotObject     `json:"plot_objects"`
	Buildings       []Building       `json:"buildings"`
	BuildingPlots   []BuildingPlot   `json:"building_plots"`
	Followers       []Follower       `json:"followers"`
	Maps            []Map            `json:"maps"`
	EntityTemplates []EntityTemplate `json:"entity_templates"`
}

type SiteLevel struct {
	ID     uint32 `json:"id"`
	SiteID uint32 `json:"site_id"`
	Level  uint32 `json:"level"`
	MapID  uint32 `json:"map_id"`
}

// SiteLevelPlot places one plot instance in a site level's layout.
type SiteLevelPlot struct {
	ID             uint32 `json:"id"`
	SiteLevelID    uint32 `json:"site_level_id"`
	PlotInstanceID uint32 `json:"plot_instance_id"`
}

type PlotInstance struct {
	ID     uint32 `json:"id"`
	PlotID uint32 `json:"plot_id"`
	Name   string `json:"name,omitempty"`
}

type Plot struct {
	ID                        uint32 `json:"id"`
	PlotType                  uint32 `json:"plot_type"`
	HordeConstructionEntry    uint32 `json:"horde_construction_entry"`
	AllianceConstructionEntry uint32 `json:"alliance_construction_entry"`
	Name                      string `json:"name,omitempty"`
}

// PlotObject is the static world entity marking an empty plot on a map.
type PlotObject struct {
	Entry          uint32  `json:"entry"`
	MapID          uint32  `json:"map_id"`
	PlotInstanceID uint32  `json:"plot_instance_id"`
	X              float32 `json:"x"`
	Y              float32 `json:"y"`
	Z              float32 `json:"z"`
	RotationW      float32 `json:"rotation_w"`
}

type Building struct {
	ID                 uint32 `json:"id"`
	Type               uint32 `json:"type"`
	Level              uint32 `json:"level"`
	PlotType           uint32 `json:"plot_type"`
	NeedsPlan          bool   `json:"needs_plan"`
	HordeEntry         uint32 `json:"horde_entry"`
	AllianceEntry      uint32 `json:"alliance_entry"`
	CostCurrencyID     uint32 `json:"cost_currency_id"`
	CostCurrencyAmount int32  `json:"cost_currency_amount"`
	CostMoney          uint32 `json:"cost_money"`     // gold
	BuildDuration      int64  `json:"build_duration"` // seconds
	Name               string `json:"name,omitempty"`
}

// BuildingPlot is the landmark id shown when a building stands on a site-level plot.
type BuildingPlot struct {
	ID              uint32 `json:"id"`
	BuildingID      uint32 `json:"building_id"`
	SiteLevelPlotID uint32 `json:"site_level_plot_id"`
}

type Follower struct {
	ID                uint32   `json:"id"`
	Quality           uint32   `json:"quality"`
	Level             uint32   `json:"level"`
	ItemLevelWeapon   uint32   `json:"item_level_weapon"`
	ItemLevelArmor    uint32   `json:"item_level_armor"`
	HordeAbilities    []uint32 `json:"horde_abilities,omitempty"`
	AllianceAbilities []uint32 `json:"alliance_abilities,omitempty"`
	Name              string   `json:"name,omitempty"`
}

type Map struct {
	ID          uint32 `json:"id"`
	ParentMapID int32  `json:"parent_map_id"` // -1 when the map has no parent
	Instanced   bool   `json:"instanced"`
	Name        string `json:"name,omitempty"`
}

type EntityTemplate struct {
	Entry uint32 `json:"entry"`
	Name  string `json:"name,omitempty"`
}

type plotObjectKey struct {
	mapID          uint32
	plotInstanceID uint32
}

type siteLevelKey struct {
	siteID uint32
	level  uint32
}

type buildingLevelKey struct {
	buildingType uint32
	level        uint32
}

type buildingPlotKey struct {
	buildingID      uint32
	siteLevelPlotID uint32
}

// Catalogs is the indexed, read-only view of Tables. It is safe for
// concurrent readers once built.
type Catalogs struct {
	siteLevels       map[uint32]SiteLevel
	siteLevelsBySite map[siteLevelKey]SiteLevel
	layouts          map[uint32][]SiteLevelPlot
	plotInstances    map[uint32]PlotInstance
	plots            map[uint32]Plot
	plotObjects      map[plotObjectKey]PlotObject
	buildings        map[uint32]Building
	buildingsByLevel map[buildingLevelKey]Building
	buildingPlots    map[buildingPlotKey]uint32
	followers        map[uint32]Follower
	maps             map[uint32]Map
	templates        map[uint32]EntityTemplate

	Digests Digests
}

type Digests struct {
	Sites     string
	Plots     string
	Buildings string
	Followers string
}

// Files are read in order from <configDir>/garrison; each holds a subset of
// the Tables keys.
var Files = []string{
	"site_levels.json",
	"plots.json",
	"buildings.json",
	"followers.json",
	"maps.json",
}

func Load(configDir string) (*Catalogs, error) {
	var t Tables
	digests := map[string]string{}
	for _, name := range Files {
		raw, err := os.ReadFile(filepath.Join(configDir, "garrison", name))
		if err != nil {
			return nil, err
		}
		digests[name] = sha256Hex(raw)
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&t); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	c, err := Build(t)
	if err != nil {
		return nil, err
	}
	c.Digests = Digests{
		Sites:     digests["site_levels.json"] + digests["maps.json"],
		Plots:     digests["plots.json"],
		Buildings: digests["buildings.json"],
		Followers: digests["followers.json"],
	}
	c.Digests.Sites = sha256Hex([]byte(c.Digests.Sites))
	return c, nil
}

// Build indexes t. Duplicate ids are rejected.
func Build(t Tables) (*Catalogs, error) {
	c := &Catalogs{
		siteLevels:       map[uint32]SiteLevel{},
		siteLevelsBySite: map[siteLevelKey]SiteLevel{},
		layouts:          map[uint32][]SiteLevelPlot{},
		plotInstances:    map[uint32]PlotInstance{},
		plots:            map[uint32]Plot{},
		plotObjects:      map[plotObjectKey]PlotObject{},
		buildings:        map[uint32]Building{},
		buildingsByLevel: map[buildingLevelKey]Building{},
		buildingPlots:    map[buildingPlotKey]uint32{},
		followers:        map[uint32]Follower{},
		maps:             map[uint32]Map{},
		templates:        map[uint32]EntityTemplate{},
	}
	for _, s := range t.SiteLevels {
		if _, dup := c.siteLevels[s.ID]; dup {
			return nil, fmt.Errorf("site_levels: duplicate id %d", s.ID)
		}
		c.siteLevels[s.ID] = s
		c.siteLevelsBySite[siteLevelKey{siteID: s.SiteID, level: s.Level}] = s
	}
	for _, p := range t.SiteLevelPlots {
		c.layouts[p.SiteLevelID] = append(c.layouts[p.SiteLevelID], p)
	}
	for _, p := range t.PlotInstances {
		if _, dup := c.plotInstances[p.ID]; dup {
			return nil, fmt.Errorf("plot_instances: duplicate id %d", p.ID)
		}
		c.plotInstances[p.ID] = p
	}
	for _, p := range t.Plots {
		if _, dup := c.plots[p.ID]; dup {
			return nil, fmt.Errorf("plots: duplicate id %d", p.ID)
		}
		c.plots[p.ID] = p
	}
	for _, o := range t.PlotObjects {
		c.plotObjects[plotObjectKey{mapID: o.MapID, plotInstanceID: o.PlotInstanceID}] = o
	}
	for _, b := range t.Buildings {
		if _, dup := c.buildings[b.ID]; dup {
			return nil, fmt.Errorf("buildings: duplicate id %d", b.ID)
		}
		c.buildings[b.ID] = b
		c.buildingsByLevel[buildingLevelKey{buildingType: b.Type, level: b.Level}] = b
	}
	for _, bp := range t.BuildingPlots {
		c.buildingPlots[buildingPlotKey{buildingID: bp.BuildingID, siteLevelPlotID: bp.SiteLevelPlotID}] = bp.ID
	}
	for _, f := range t.Followers {
		if _, dup := c.followers[f.ID]; dup {
			return nil, fmt.Errorf("followers: duplicate id %d", f.ID)
		}
		c.followers[f.ID] = f
	}
	for _, m := range t.Maps {
		c.maps[m.ID] = m
	}
	for _, e := range t.EntityTemplates {
		c.templates[e.Entry] = e
	}
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
