package catalogs

import "sort"

func (c *Catalogs) SiteLevel(id uint32) (SiteLevel, bool) {
	s, ok := c.siteLevels[id]
	return s, ok
}

// SiteLevelFor resolves the site level of siteID at the given level.
func (c *Catalogs) SiteLevelFor(siteID, level uint32) (SiteLevel, bool) {
	s, ok := c.siteLevelsBySite[siteLevelKey{siteID: siteID, level: level}]
	return s, ok
}

// SiteLevelPlots returns the static plot layout of a site level, ordered by id.
func (c *Catalogs) SiteLevelPlots(siteLevelID uint32) []SiteLevelPlot {
	src := c.layouts[siteLevelID]
	out := make([]SiteLevelPlot, len(src))
	copy(out, src)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalogs) PlotInstance(id uint32) (PlotInstance, bool) {
	p, ok := c.plotInstances[id]
	return p, ok
}

func (c *Catalogs) Plot(id uint32) (Plot, bool) {
	p, ok := c.plots[id]
	return p, ok
}

// PlotObject returns the empty-plot entity for a plot instance on a map.
func (c *Catalogs) PlotObject(mapID, plotInstanceID uint32) (PlotObject, bool) {
	o, ok := c.plotObjects[plotObjectKey{mapID: mapID, plotInstanceID: plotInstanceID}]
	return o, ok
}

func (c *Catalogs) Building(id uint32) (Building, bool) {
	b, ok := c.buildings[id]
	return b, ok
}

// PreviousLevelBuilding returns the building of the same type one level below.
func (c *Catalogs) PreviousLevelBuilding(buildingType, level uint32) (Building, bool) {
	if level <= 1 {
		return Building{}, false
	}
	b, ok := c.buildingsByLevel[buildingLevelKey{buildingType: buildingType, level: level - 1}]
	return b, ok
}

// PlotMatchesBuilding reports whether the building may stand on the plot.
func (c *Catalogs) PlotMatchesBuilding(plotID, buildingID uint32) bool {
	p, ok := c.plots[plotID]
	if !ok {
		return false
	}
	b, ok := c.buildings[buildingID]
	if !ok {
		return false
	}
	return p.PlotType == b.PlotType
}

// BuildingPlotInst returns the landmark id of a building placed on a site-level plot.
func (c *Catalogs) BuildingPlotInst(buildingID, siteLevelPlotID uint32) (uint32, bool) {
	id, ok := c.buildingPlots[buildingPlotKey{buildingID: buildingID, siteLevelPlotID: siteLevelPlotID}]
	return id, ok && id != 0
}

func (c *Catalogs) Follower(id uint32) (Follower, bool) {
	f, ok := c.followers[id]
	return f, ok
}

func (c *Catalogs) Map(id uint32) (Map, bool) {
	m, ok := c.maps[id]
	return m, ok
}

func (c *Catalogs) HasEntityTemplate(entry uint32) bool {
	_, ok := c.templates[entry]
	return ok
}

// Counts is used by the metrics endpoint and the startup log line.
type Counts struct {
	SiteLevels int
	Plots      int
	Buildings  int
	Followers  int
	Maps       int
}

func (c *Catalogs) Counts() Counts {
	return Counts{
		SiteLevels: len(c.siteLevels),
		Plots:      len(c.plotInstances),
		Buildings:  len(c.buildings),
		Followers:  len(c.followers),
		Maps:       len(c.maps),
	}
}
