package protocol

import "encoding/json"

const Version = "1.0"

// Session message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeError   = "ERROR"
	TypeMove    = "MOVE"
)

// Garrison request types (client -> server).
const (
	TypeGarrisonCreate             = "GARRISON_CREATE"
	TypeGarrisonGetInfo            = "GARRISON_GET_INFO"
	TypeGarrisonLearnBlueprint     = "GARRISON_LEARN_BLUEPRINT"
	TypeGarrisonUnlearnBlueprint   = "GARRISON_UNLEARN_BLUEPRINT"
	TypeGarrisonPurchaseBuilding   = "GARRISON_PURCHASE_BUILDING"
	TypeGarrisonCancelConstruction = "GARRISON_CANCEL_CONSTRUCTION"
	TypeGarrisonAddFollower        = "GARRISON_ADD_FOLLOWER"
	TypeGarrisonRequestBlueprints  = "GARRISON_REQUEST_BLUEPRINT_DATA"
	TypeGarrisonGetLandmarks       = "GARRISON_GET_BUILDING_LANDMARKS"
	TypeGarrisonRemoteInfo         = "GARRISON_REMOTE_INFO"
	TypeGarrisonEnter              = "GARRISON_ENTER"
	TypeGarrisonLeave              = "GARRISON_LEAVE"
)

// Garrison message types (server -> client).
const (
	TypeCreateResult           = "GARRISON_CREATE_RESULT"
	TypeLearnBlueprintResult   = "GARRISON_LEARN_BLUEPRINT_RESULT"
	TypeUnlearnBlueprintResult = "GARRISON_UNLEARN_BLUEPRINT_RESULT"
	TypePlaceBuildingResult    = "GARRISON_PLACE_BUILDING_RESULT"
	TypeBuildingRemoved        = "GARRISON_BUILDING_REMOVED"
	TypeAddFollowerResult      = "GARRISON_ADD_FOLLOWER_RESULT"
	TypeGetInfoResult          = "GARRISON_GET_INFO_RESULT"
	TypeRemoteInfo             = "GARRISON_REMOTE_INFO_RESULT"
	TypeBlueprintDataResult    = "GARRISON_BLUEPRINT_DATA_RESULT"
	TypeBuildingLandmarks      = "GARRISON_BUILDING_LANDMARKS"
	TypePlotPlaced             = "GARRISON_PLOT_PLACED"
	TypePlotRemoved            = "GARRISON_PLOT_REMOVED"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

var requestTypes = map[string]struct{}{
	TypeMove:                       {},
	TypeGarrisonCreate:             {},
	TypeGarrisonGetInfo:            {},
	TypeGarrisonLearnBlueprint:     {},
	TypeGarrisonUnlearnBlueprint:   {},
	TypeGarrisonPurchaseBuilding:   {},
	TypeGarrisonCancelConstruction: {},
	TypeGarrisonAddFollower:        {},
	TypeGarrisonRequestBlueprints:  {},
	TypeGarrisonGetLandmarks:       {},
	TypeGarrisonRemoteInfo:         {},
	TypeGarrisonEnter:              {},
	TypeGarrisonLeave:              {},
}

// IsRequestType reports whether t names a message a client may send after HELLO.
func IsRequestType(t string) bool {
	_, ok := requestTypes[t]
	return ok
}
