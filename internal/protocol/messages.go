package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	Claims          int    `json:"claims"`
}

// QUERY (client -> server). Which fields matter depends on Op.
type QueryMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReqID           string  `json:"req_id"`
	Op              string  `json:"op"`
	Dimension       int     `json:"dimension"`
	ID              *int64  `json:"id,omitempty"`
	Pos             *[3]int `json:"pos,omitempty"`
	Min             *[3]int `json:"min,omitempty"`
	Max             *[3]int `json:"max,omitempty"`
	Radius          int     `json:"radius,omitempty"`
	Player          string  `json:"player,omitempty"`
	Perm            string  `json:"perm,omitempty"`
}

// RESULT (server -> client)
type ResultMsg struct {
	Type    string      `json:"type"`
	ReqID   string      `json:"req_id"`
	Claims  []ClaimView `json:"claims"`
	Allowed *bool       `json:"allowed,omitempty"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	ReqID   string `json:"req_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ClaimView struct {
	ID        int64   `json:"id"`
	Dimension int     `json:"dimension"`
	Min       [3]int  `json:"min"`
	Max       [3]int  `json:"max"`
	Is3D      bool    `json:"is_3d"`
	Owner     string  `json:"owner"`
	Name      string  `json:"name,omitempty"`
	Kind      string  `json:"kind"`
	ParentID  int64   `json:"parent_id"`
	Children  []int64 `json:"children,omitempty"`
	Depth     int     `json:"depth"`
}
