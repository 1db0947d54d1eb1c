package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voxellands.ai/internal/geom"
	"voxellands.ai/internal/hierarchy"
	"voxellands.ai/internal/land"
	"voxellands.ai/internal/protocol"
	"voxellands.ai/internal/registry"
	"voxellands.ai/internal/spatial"
)

// Server answers claim queries for the rule layer over a websocket. It only reads
// from the registry.
type Server struct {
	reg *registry.Registry
	log *zap.Logger

	upgrader websocket.Upgrader
}

func NewServer(reg *registry.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		reg: reg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		session := s.handshake(conn)
		if session == "" {
			return
		}
		log := s.log.With(zap.String("session", session))
		log.Debug("query session opened")

		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				_ = writeJSON(conn, errorMsg("", protocol.ErrProtoBadRequest, "malformed message"))
				continue
			}
			if base.Type != protocol.TypeQuery {
				_ = writeJSON(conn, errorMsg("", protocol.ErrProtoBadRequest, "expected QUERY"))
				continue
			}
			var q protocol.QueryMsg
			if err := json.Unmarshal(msg, &q); err != nil {
				_ = writeJSON(conn, errorMsg("", protocol.ErrProtoBadRequest, err.Error()))
				continue
			}
			if q.ProtocolVersion != protocol.Version {
				_ = writeJSON(conn, errorMsg(q.ReqID, protocol.ErrProtoBadRequest, "bad protocol_version"))
				continue
			}
			if err := writeJSON(conn, s.Answer(q)); err != nil {
				break
			}
		}
		log.Debug("query session closed")
	}
}

func (s *Server) handshake(conn *websocket.Conn) string {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return ""
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected HELLO"), time.Now().Add(time.Second))
		return ""
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return ""
	}
	if hello.ProtocolVersion != protocol.Version {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "bad protocol_version"), time.Now().Add(time.Second))
		return ""
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       uuid.NewString(),
		Claims:          s.reg.Stats().Claims,
	}
	if err := writeJSON(conn, welcome); err != nil {
		return ""
	}
	s.log.Info("query client connected", zap.String("client", hello.ClientName), zap.String("session", welcome.SessionID))
	return welcome.SessionID
}

// Answer resolves one query. The result is a *protocol.ResultMsg or a *protocol.ErrorMsg.
func (s *Server) Answer(q protocol.QueryMsg) any {
	res := &protocol.ResultMsg{Type: protocol.TypeResult, ReqID: q.ReqID, Claims: []protocol.ClaimView{}}
	switch q.Op {
	case protocol.OpClaim:
		if q.ID == nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "id required")
		}
		c, ok := s.reg.GetClaim(*q.ID)
		if !ok {
			return errorMsg(q.ReqID, protocol.ErrNotFound, fmt.Sprintf("claim %d", *q.ID))
		}
		res.Claims = append(res.Claims, View(c))

	case protocol.OpClaimAt:
		if q.Pos == nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "pos required")
		}
		if msg := checkPos(*q.Pos); msg != "" {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, msg)
		}
		if c := s.reg.GetClaimAt(geom.FromArray(*q.Pos), q.Dimension); c != nil {
			res.Claims = append(res.Claims, View(c))
		}

	case protocol.OpClaimsIn:
		if q.Min == nil || q.Max == nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "min and max required")
		}
		bb := geom.Box(geom.FromArray(*q.Min), geom.FromArray(*q.Max))
		if msg := s.checkBox(bb); msg != "" {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, msg)
		}
		res.Claims = views(s.reg.GetClaimsAt(bb, q.Dimension))

	case protocol.OpClaimsNear:
		if q.Pos == nil || q.Radius < 0 {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "pos and radius >= 0 required")
		}
		if msg := checkPos(*q.Pos); msg != "" {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, msg)
		}
		if q.Radius > s.reg.Limits().MaxEdge {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, fmt.Sprintf("radius above %d", s.reg.Limits().MaxEdge))
		}
		if msg := s.checkBox(geom.Around(geom.FromArray(*q.Pos), q.Radius)); msg != "" {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, msg)
		}
		res.Claims = views(s.reg.GetClaimsNear(geom.FromArray(*q.Pos), q.Radius, q.Dimension))

	case protocol.OpAllowed:
		if q.Pos == nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "pos required")
		}
		kind, ok := land.ParsePermKind(q.Perm)
		if !ok {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "unknown perm "+q.Perm)
		}
		if msg := checkPos(*q.Pos); msg != "" {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, msg)
		}
		player, err := uuid.Parse(q.Player)
		if err != nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "player: "+err.Error())
		}
		allowed := true
		if c := s.reg.GetClaimAt(geom.FromArray(*q.Pos), q.Dimension); c != nil {
			res.Claims = append(res.Claims, View(c))
			allowed = s.reg.IsOperator(player) || c.Allowed(kind, player)
		}
		res.Allowed = &allowed

	case protocol.OpFamilyTree:
		if q.ID == nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "id required")
		}
		c, ok := s.reg.GetClaim(*q.ID)
		if !ok {
			return errorMsg(q.ReqID, protocol.ErrNotFound, fmt.Sprintf("claim %d", *q.ID))
		}
		res.Claims = views(hierarchy.FamilyTree(s.reg, c))

	case protocol.OpPlayerClaims:
		player, err := uuid.Parse(q.Player)
		if err != nil {
			return errorMsg(q.ReqID, protocol.ErrBadRequest, "player: "+err.Error())
		}
		res.Claims = views(s.reg.GetClaims(func(c *land.Claim) bool { return c.IsOwner(player) }))

	default:
		return errorMsg(q.ReqID, protocol.ErrBadRequest, "unknown op "+q.Op)
	}
	return res
}

func checkPos(p [3]int) string {
	if !spatial.InDomain(p[0], p[2]) {
		return fmt.Sprintf("pos %v outside the world", p)
	}
	return ""
}

// checkBox keeps region queries inside the world and no wider than the largest claim.
func (s *Server) checkBox(bb geom.AABB) string {
	if !spatial.InDomain(bb.Min.X, bb.Min.Z) || !spatial.InDomain(bb.Max.X, bb.Max.Z) {
		return fmt.Sprintf("region %s outside the world", bb)
	}
	if edge := s.reg.Limits().MaxEdge; bb.SizeX() > edge || bb.SizeZ() > edge {
		return fmt.Sprintf("region %s wider than %d", bb, edge)
	}
	return ""
}

// View converts a claim to its wire form.
func View(c *land.Claim) protocol.ClaimView {
	rec := c.Record()
	return protocol.ClaimView{
		ID:        rec.ID,
		Dimension: rec.Dimension,
		Min:       rec.Min,
		Max:       rec.Max,
		Is3D:      rec.Is3D,
		Owner:     rec.Owner,
		Name:      rec.Name,
		Kind:      c.Type().String(),
		ParentID:  rec.ParentID,
		Children:  rec.Children,
		Depth:     c.CachedDepth(),
	}
}

func views(cs []*land.Claim) []protocol.ClaimView {
	out := make([]protocol.ClaimView, 0, len(cs))
	for _, c := range cs {
		out = append(out, View(c))
	}
	return out
}

func errorMsg(reqID, code, msg string) *protocol.ErrorMsg {
	return &protocol.ErrorMsg{Type: protocol.TypeError, ReqID: reqID, Code: code, Message: msg}
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
