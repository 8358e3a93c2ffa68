package garrison

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"garrison.ai/internal/protocol"
	"garrison.ai/internal/sim/catalogs"
)

// Gold is the number of money units (copper) in one gold.
const Gold = 10000

type Team uint8

const (
	TeamAlliance Team = iota
	TeamHorde
)

func ParseTeam(s string) (Team, bool) {
	switch s {
	case "HORDE":
		return TeamHorde, true
	case "ALLIANCE":
		return TeamAlliance, true
	}
	return 0, false
}

func (t Team) String() string {
	if t == TeamHorde {
		return "HORDE"
	}
	return "ALLIANCE"
}

// Faction selects the horde or alliance variant of catalog entities.
type Faction uint8

const (
	FactionHorde    Faction = 0
	FactionAlliance Faction = 1
)

// Catalog is the read-only game data the garrison consumes.
// *catalogs.Catalogs implements it.
type Catalog interface {
	SiteLevel(id uint32) (catalogs.SiteLevel, bool)
	SiteLevelFor(siteID, level uint32) (catalogs.SiteLevel, bool)
	SiteLevelPlots(siteLevelID uint32) []catalogs.SiteLevelPlot
	PlotInstance(id uint32) (catalogs.PlotInstance, bool)
	Plot(id uint32) (catalogs.Plot, bool)
	PlotObject(mapID, plotInstanceID uint32) (catalogs.PlotObject, bool)
	Building(id uint32) (catalogs.Building, bool)
	PreviousLevelBuilding(buildingType, level uint32) (catalogs.Building, bool)
	PlotMatchesBuilding(plotID, buildingID uint32) bool
	BuildingPlotInst(buildingID, siteLevelPlotID uint32) (uint32, bool)
	Follower(id uint32) (catalogs.Follower, bool)
	Map(id uint32) (catalogs.Map, bool)
	HasEntityTemplate(entry uint32) bool
}

// Owner is the player a garrison belongs to: identity, location and the
// currency/money ledgers.
type Owner interface {
	ID() uint64
	Team() Team
	MapID() uint32

	HasCurrency(currencyID uint32, amount int32) bool
	ModifyCurrency(currencyID uint32, delta int32)
	HasEnoughMoney(amount uint64) bool
	ModifyMoney(delta int64)

	TeleportTo(mapID uint32, seamless bool)
	UpdatePhasing()
}

// Notifier delivers outbound messages.
type Notifier interface {
	SendToOwner(msg protocol.Message)
	SendTo(playerID uint64, msg protocol.Message)
	// SendToMap reaches every player on mapID except the owner.
	SendToMap(mapID uint32, msg protocol.Message)
}

type MapHandle struct {
	MapID       uint32
	InstanceKey uint64
}

// EntityHandle identifies a live entity owned by the world, not the garrison.
type EntityHandle uint64

// Placement is the world's entity spawn service.
type Placement interface {
	FindMap(mapID uint32, instanceKey uint64) (MapHandle, bool)
	Spawn(m MapHandle, entry uint32, pos protocol.Position, faction Faction) (EntityHandle, error)
	Despawn(m MapHandle, h EntityHandle)
}

type AbilityRoller interface {
	RollFollowerAbilities(def catalogs.Follower, quality uint32, faction Faction, initial bool) []uint32
}

type IDGenerator interface {
	NewFollowerDbID() string
}

// UUIDs generates follower ids with google/uuid.
type UUIDs struct{}

func (UUIDs) NewFollowerDbID() string { return uuid.NewString() }

const (
	AuditCreate             = "CREATE"
	AuditLearnBlueprint     = "LEARN_BLUEPRINT"
	AuditUnlearnBlueprint   = "UNLEARN_BLUEPRINT"
	AuditPlaceBuilding      = "PLACE_BUILDING"
	AuditCancelConstruction = "CANCEL_CONSTRUCTION"
	AuditAddFollower        = "ADD_FOLLOWER"
)

type AuditEntry struct {
	Time           int64  `json:"time"`
	OwnerID        uint64 `json:"owner_id"`
	Action         string `json:"action"`
	SiteLevelID    uint32 `json:"site_level_id,omitempty"`
	PlotInstanceID uint32 `json:"plot_instance_id,omitempty"`
	BuildingID     uint32 `json:"building_id,omitempty"`
	FollowerID     uint32 `json:"follower_id,omitempty"`
	Refund         bool   `json:"refund,omitempty"`
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type Config struct {
	Catalog   Catalog
	Notifier  Notifier
	Placement Placement

	// Optional.
	Abilities           AbilityRoller
	IDs                 IDGenerator
	Audit               AuditLogger
	Logger              *zap.Logger
	Now                 func() time.Time
	FollowerActivations uint32
}

func (c Config) withDefaults() Config {
	if c.Abilities == nil {
		c.Abilities = NewRandomAbilityRoller(uint64(time.Now().UnixNano()))
	}
	if c.IDs == nil {
		c.IDs = UUIDs{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.FollowerActivations == 0 {
		c.FollowerActivations = 1
	}
	return c
}
