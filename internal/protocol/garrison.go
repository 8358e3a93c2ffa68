package protocol

// Message is one of the garrison's outbound messages. The set is closed:
// only types in this package implement it.
type Message interface {
	MessageType() string
	garrisonMessage()
}

type Position struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	O float32 `json:"o"`
}

type PlotInfo struct {
	PlotInstanceID uint32   `json:"plot_instance_id"`
	Pos            Position `json:"pos"`
	PlotType       uint32   `json:"plot_type"`
}

type BuildingInfo struct {
	PlotInstanceID uint32 `json:"plot_instance_id"`
	BuildingID     uint32 `json:"building_id"`
	TimeBuilt      int64  `json:"time_built"`
	Active         bool   `json:"active"`
}

type FollowerInfo struct {
	DbID              string   `json:"db_id"`
	FollowerID        uint32   `json:"follower_id"`
	Quality           uint32   `json:"quality"`
	Level             uint32   `json:"level"`
	ItemLevelWeapon   uint32   `json:"item_level_weapon"`
	ItemLevelArmor    uint32   `json:"item_level_armor"`
	Xp                uint32   `json:"xp"`
	CurrentBuildingID uint32   `json:"current_building_id"`
	CurrentMissionID  uint32   `json:"current_mission_id"`
	AbilityIDs        []uint32 `json:"ability_ids"`
	Status            uint32   `json:"status"`
}

type CreateResultMsg struct {
	Type        string `json:"type"`
	Result      Result `json:"result"`
	SiteLevelID uint32 `json:"site_level_id"`
}

type LearnBlueprintResultMsg struct {
	Type       string `json:"type"`
	Result     Result `json:"result"`
	BuildingID uint32 `json:"building_id"`
}

type UnlearnBlueprintResultMsg struct {
	Type       string `json:"type"`
	Result     Result `json:"result"`
	BuildingID uint32 `json:"building_id"`
}

type PlaceBuildingResultMsg struct {
	Type         string       `json:"type"`
	Result       Result       `json:"result"`
	BuildingInfo BuildingInfo `json:"building_info"`
}

type BuildingRemovedMsg struct {
	Type           string `json:"type"`
	Result         Result `json:"result"`
	PlotInstanceID uint32 `json:"plot_instance_id"`
	BuildingID     uint32 `json:"building_id"`
}

type AddFollowerResultMsg struct {
	Type     string       `json:"type"`
	Result   Result       `json:"result"`
	Follower FollowerInfo `json:"follower"`
}

// GET_INFO_RESULT is the full garrison snapshot.
type GetInfoResultMsg struct {
	Type                            string         `json:"type"`
	SiteID                          uint32         `json:"site_id"`
	SiteLevelID                     uint32         `json:"site_level_id"`
	FactionIndex                    uint8          `json:"faction_index"`
	NumFollowerActivationsRemaining uint32         `json:"num_follower_activations_remaining"`
	Plots                           []PlotInfo     `json:"plots"`
	Buildings                       []BuildingInfo `json:"buildings"`
	Followers                       []FollowerInfo `json:"followers"`
}

type RemoteBuildingInfo struct {
	PlotInstanceID uint32 `json:"plot_instance_id"`
	BuildingID     uint32 `json:"building_id"`
}

type RemoteSiteInfo struct {
	SiteLevelID uint32               `json:"site_level_id"`
	Buildings   []RemoteBuildingInfo `json:"buildings"`
}

// RemoteInfoMsg goes to the owner and, after Create, to players on the
// garrison's parent map.
type RemoteInfoMsg struct {
	Type    string           `json:"type"`
	OwnerID uint64           `json:"owner_id"`
	Sites   []RemoteSiteInfo `json:"sites"`
}

type BlueprintDataResultMsg struct {
	Type                 string   `json:"type"`
	BlueprintsKnown      []uint32 `json:"blueprints_known"`
	SpecializationsKnown []uint32 `json:"specializations_known"`
}

type BuildingLandmark struct {
	BuildingPlotInstID uint32   `json:"building_plot_inst_id"`
	Pos                Position `json:"pos"`
}

type BuildingLandmarksMsg struct {
	Type      string             `json:"type"`
	Landmarks []BuildingLandmark `json:"landmarks"`
}

type PlotPlacedMsg struct {
	Type     string   `json:"type"`
	PlotInfo PlotInfo `json:"plot_info"`
}

type PlotRemovedMsg struct {
	Type           string `json:"type"`
	PlotInstanceID uint32 `json:"plot_instance_id"`
}

func (CreateResultMsg) MessageType() string           { return TypeCreateResult }
func (LearnBlueprintResultMsg) MessageType() string   { return TypeLearnBlueprintResult }
func (UnlearnBlueprintResultMsg) MessageType() string { return TypeUnlearnBlueprintResult }
func (PlaceBuildingResultMsg) MessageType() string    { return TypePlaceBuildingResult }
func (BuildingRemovedMsg) MessageType() string        { return TypeBuildingRemoved }
func (AddFollowerResultMsg) MessageType() string      { return TypeAddFollowerResult }
func (GetInfoResultMsg) MessageType() string          { return TypeGetInfoResult }
func (RemoteInfoMsg) MessageType() string             { return TypeRemoteInfo }
func (BlueprintDataResultMsg) MessageType() string    { return TypeBlueprintDataResult }
func (BuildingLandmarksMsg) MessageType() string      { return TypeBuildingLandmarks }
func (PlotPlacedMsg) MessageType() string             { return TypePlotPlaced }
func (PlotRemovedMsg) MessageType() string            { return TypePlotRemoved }

func (CreateResultMsg) garrisonMessage()           {}
func (LearnBlueprintResultMsg) garrisonMessage()   {}
func (UnlearnBlueprintResultMsg) garrisonMessage() {}
func (PlaceBuildingResultMsg) garrisonMessage()    {}
func (BuildingRemovedMsg) garrisonMessage()        {}
func (AddFollowerResultMsg) garrisonMessage()      {}
func (GetInfoResultMsg) garrisonMessage()          {}
func (RemoteInfoMsg) garrisonMessage()             {}
func (BlueprintDataResultMsg) garrisonMessage()    {}
func (BuildingLandmarksMsg) garrisonMessage()      {}
func (PlotPlacedMsg) garrisonMessage()             {}
func (PlotRemovedMsg) garrisonMessage()            {}
