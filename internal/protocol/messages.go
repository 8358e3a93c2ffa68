package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	PlayerName      string            `json:"player_name"`
	Team            string            `json:"team"` // "HORDE" or "ALLIANCE"
	Capabilities    HelloCapabilities `json:"capabilities"`

	// Auth resumes an existing player with the token from a previous WELCOME.
	// Without it the server allocates a new player.
	Auth *HelloAuth `json:"auth,omitempty"`
}

type HelloAuth struct {
	Token string `json:"token"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	ResumeToken     string         `json:"resume_token"` // rotated on every join
	PlayerID        uint64         `json:"player_id"`
	MapID           uint32         `json:"map_id"`
	HasGarrison     bool           `json:"has_garrison"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Buildings string `json:"buildings"`
	Plots     string `json:"plots"`
	Followers string `json:"followers"`
	Sites     string `json:"sites"`
}

// ERROR (server -> client): request rejected before reaching the garrison.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	For             string `json:"for,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// RequestMsg is the single shape of every client request; Type selects
// which of the optional fields are meaningful.
type RequestMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SiteID          uint32 `json:"site_id,omitempty"`
	PlotInstanceID  uint32 `json:"plot_instance_id,omitempty"`
	BuildingID      uint32 `json:"building_id,omitempty"`
	FollowerID      uint32 `json:"follower_id,omitempty"`
	MapID           uint32 `json:"map_id,omitempty"`
}
