package garrison

import (
	"garrison.ai/internal/protocol"
)

// SendInfo sends the owner a full snapshot of the garrison.
func (g *Garrison) SendInfo() {
	if g.siteLevel == nil {
		return
	}
	msg := protocol.GetInfoResultMsg{
		Type:                            protocol.TypeGetInfoResult,
		SiteID:                          g.siteLevel.SiteID,
		SiteLevelID:                     g.siteLevel.ID,
		FactionIndex:                    uint8(g.Faction()),
		NumFollowerActivationsRemaining: g.followerActivationsRemainingToday,
		Plots:                           []protocol.PlotInfo{},
		Buildings:                       []protocol.BuildingInfo{},
		Followers:                       []protocol.FollowerInfo{},
	}
	for _, p := range g.Plots() {
		msg.Plots = append(msg.Plots, p.PacketInfo())
		if info := p.BuildingInfo.Info; info != nil {
			msg.Buildings = append(msg.Buildings, info.packet(p.PlotInstanceID))
		}
	}
	for _, f := range g.Followers() {
		msg.Followers = append(msg.Followers, f.PacketInfo())
	}
	g.send(msg)
}

// SendRemoteInfo tells the owner which buildings stand in the garrison. It is
// only sent while the owner is on the garrison map's parent map.
func (g *Garrison) SendRemoteInfo() {
	if g.siteLevel == nil {
		return
	}
	m, ok := g.cfg.Catalog.Map(g.siteLevel.MapID)
	if !ok || int64(g.owner.MapID()) != int64(m.ParentMapID) {
		return
	}
	g.send(g.remoteInfo())
}

// broadcastPresence announces the garrison to players on its parent map.
func (g *Garrison) broadcastPresence() {
	if g.siteLevel == nil {
		return
	}
	m, ok := g.cfg.Catalog.Map(g.siteLevel.MapID)
	if !ok || m.ParentMapID < 0 {
		return
	}
	g.cfg.Notifier.SendToMap(uint32(m.ParentMapID), g.remoteInfo())
}

func (g *Garrison) remoteInfo() protocol.RemoteInfoMsg {
	site := protocol.RemoteSiteInfo{
		SiteLevelID: g.siteLevel.ID,
		Buildings:   []protocol.RemoteBuildingInfo{},
	}
	for _, p := range g.Plots() {
		if info := p.BuildingInfo.Info; info != nil {
			site.Buildings = append(site.Buildings, protocol.RemoteBuildingInfo{
				PlotInstanceID: p.PlotInstanceID,
				BuildingID:     info.BuildingID,
			})
		}
	}
	return protocol.RemoteInfoMsg{
		Type:    protocol.TypeRemoteInfo,
		OwnerID: g.owner.ID(),
		Sites:   []protocol.RemoteSiteInfo{site},
	}
}

func (g *Garrison) SendBlueprintAndSpecializationData() {
	g.send(protocol.BlueprintDataResultMsg{
		Type:                 protocol.TypeBlueprintDataResult,
		BlueprintsKnown:      g.KnownBlueprints(),
		SpecializationsKnown: []uint32{},
	})
}

// SendBuildingLandmarks sends receiverID the map landmarks of every placed
// building that has a building-plot instance for its plot.
func (g *Garrison) SendBuildingLandmarks(receiverID uint64) {
	msg := protocol.BuildingLandmarksMsg{
		Type:      protocol.TypeBuildingLandmarks,
		Landmarks: []protocol.BuildingLandmark{},
	}
	for _, p := range g.Plots() {
		info := p.BuildingInfo.Info
		if info == nil {
			continue
		}
		inst, ok := g.cfg.Catalog.BuildingPlotInst(info.BuildingID, p.SiteLevelPlotID)
		if !ok {
			continue
		}
		msg.Landmarks = append(msg.Landmarks, protocol.BuildingLandmark{
			BuildingPlotInstID: inst,
			Pos:                p.Pos,
		})
	}
	g.cfg.Notifier.SendTo(receiverID, msg)
}
