package world

import (
	"context"

	"go.uber.org/zap"

	"garrison.ai/internal/protocol"
)

func (r *Realm) handleRequest(ctx context.Context, env RequestEnvelope) {
	p, ok := r.players[env.PlayerID]
	if !ok {
		return
	}
	req := env.Req

	switch req.Type {
	case protocol.TypeMove:
		if !r.teleport(p, req.MapID) {
			r.sendError(p, req.Type, protocol.ErrProtoBadRequest, "unknown map")
			return
		}
		if p.garrison != nil {
			p.garrison.SendRemoteInfo()
		}
		return
	case protocol.TypeGarrisonCreate:
		r.createGarrison(p, req)
		return
	}

	g := p.garrison
	if g == nil {
		r.sendError(p, req.Type, protocol.ErrNoGarrison, "no garrison")
		return
	}

	switch req.Type {
	case protocol.TypeGarrisonGetInfo:
		g.SendInfo()
	case protocol.TypeGarrisonLearnBlueprint:
		g.LearnBlueprint(req.BuildingID)
	case protocol.TypeGarrisonUnlearnBlueprint:
		g.UnlearnBlueprint(req.BuildingID)
	case protocol.TypeGarrisonPurchaseBuilding:
		g.PlaceBuilding(req.PlotInstanceID, req.BuildingID)
	case protocol.TypeGarrisonCancelConstruction:
		g.CancelBuildingConstruction(req.PlotInstanceID)
	case protocol.TypeGarrisonAddFollower:
		g.AddFollower(req.FollowerID)
	case protocol.TypeGarrisonRequestBlueprints:
		g.SendBlueprintAndSpecializationData()
	case protocol.TypeGarrisonGetLandmarks:
		g.SendBuildingLandmarks(p.id)
	case protocol.TypeGarrisonRemoteInfo:
		g.SendRemoteInfo()
	case protocol.TypeGarrisonEnter:
		g.Enter()
	case protocol.TypeGarrisonLeave:
		g.Leave()
	default:
		r.sendError(p, req.Type, protocol.ErrProtoBadRequest, "unknown request type")
		return
	}
	r.log.Debug("request handled", zap.Uint64("player_id", p.id), zap.String("type", req.Type))
}

func (r *Realm) createGarrison(p *Player, req protocol.RequestMsg) {
	if p.garrison != nil {
		r.sendError(p, req.Type, protocol.ErrGarrisonExists, "garrison already exists")
		return
	}
	siteID := req.SiteID
	if siteID == 0 {
		siteID = r.cfg.Tuning.DefaultSiteID
	}
	g := r.newGarrison(p)
	if !g.Create(siteID) {
		r.sendError(p, req.Type, protocol.ErrProtoBadRequest, "unknown garrison site")
		return
	}
	p.garrison = g
}
