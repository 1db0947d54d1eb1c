package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeQuery   = "QUERY"
	TypeResult  = "RESULT"
	TypeError   = "ERROR"
)

// Query operations.
const (
	OpClaim        = "claim"
	OpClaimAt      = "claim_at"
	OpClaimsIn     = "claims_in"
	OpClaimsNear   = "claims_near"
	OpAllowed      = "allowed"
	OpFamilyTree   = "family_tree"
	OpPlayerClaims = "player_claims"
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
