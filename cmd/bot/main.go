package main

import (
	"encoding/json"
	"flag"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"garrison.ai/internal/logging"
	"garrison.ai/internal/protocol"
)

func main() {
	var (
		url      = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name     = flag.String("name", "bot", "player name")
		team     = flag.String("team", "HORDE", "HORDE or ALLIANCE")
		token    = flag.String("token", "", "resume token from a previous WELCOME (empty joins as a new player)")
		building = flag.Uint("building", 0, "building to learn and place on the first free plot (optional)")
	)
	flag.Parse()

	logger, err := logging.New("debug", "console", "garrison-bot")
	if err != nil {
		panic(err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
		Team:            *team,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{Token: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatal("send HELLO", zap.Error(err))
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	b := &bot{conn: conn, log: logger, building: uint32(*building)}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		b.handle(msg)
	}
}

type bot struct {
	conn     *websocket.Conn
	log      *zap.Logger
	building uint32
	placed   bool
}

func (b *bot) send(req protocol.RequestMsg) {
	req.ProtocolVersion = protocol.Version
	if err := b.conn.WriteJSON(req); err != nil {
		b.log.Warn("send", zap.String("type", req.Type), zap.Error(err))
	}
}

func (b *bot) handle(msg []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return
	}
	switch base.Type {
	case protocol.TypeWelcome:
		var w protocol.WelcomeMsg
		if err := json.Unmarshal(msg, &w); err != nil {
			return
		}
		b.log.Info("WELCOME",
			zap.Uint64("player_id", w.PlayerID),
			zap.String("resume_token", w.ResumeToken),
			zap.Bool("has_garrison", w.HasGarrison))
		if !w.HasGarrison {
			b.send(protocol.RequestMsg{Type: protocol.TypeGarrisonCreate})
			return
		}
		b.send(protocol.RequestMsg{Type: protocol.TypeGarrisonGetInfo})

	case protocol.TypeCreateResult:
		b.send(protocol.RequestMsg{Type: protocol.TypeGarrisonGetInfo})

	case protocol.TypeGetInfoResult:
		var info protocol.GetInfoResultMsg
		if err := json.Unmarshal(msg, &info); err != nil {
			return
		}
		b.log.Info("garrison",
			zap.Uint32("site_level_id", info.SiteLevelID),
			zap.Int("plots", len(info.Plots)),
			zap.Int("buildings", len(info.Buildings)),
			zap.Int("followers", len(info.Followers)))
		b.build(info)

	case protocol.TypeError:
		var e protocol.ErrorMsg
		_ = json.Unmarshal(msg, &e)
		b.log.Warn("ERROR", zap.String("for", e.For), zap.String("code", e.Code), zap.String("message", e.Message))

	default:
		b.log.Debug(base.Type, zap.ByteString("msg", msg))
	}
}

// build learns the requested blueprint and places it on the first empty plot.
func (b *bot) build(info protocol.GetInfoResultMsg) {
	if b.building == 0 || b.placed {
		return
	}
	used := map[uint32]bool{}
	for _, bi := range info.Buildings {
		used[bi.PlotInstanceID] = true
	}
	for _, p := range info.Plots {
		if used[p.PlotInstanceID] {
			continue
		}
		b.send(protocol.RequestMsg{Type: protocol.TypeGarrisonLearnBlueprint, BuildingID: b.building})
		b.send(protocol.RequestMsg{Type: protocol.TypeGarrisonPurchaseBuilding, PlotInstanceID: p.PlotInstanceID, BuildingID: b.building})
		b.placed = true
		return
	}
	b.log.Info("no free plot")
}
