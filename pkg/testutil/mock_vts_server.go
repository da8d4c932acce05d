package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// VTSModel is a model known to MockVTSServer.
type VTSModel struct {
	Name string
	ID   string
}

// VTSExpression is an expression of the mock's current model.
type VTSExpression struct {
	Name   string
	File   string
	Active bool
}

// VTSHotkey is a hotkey of the mock's current model.
type VTSHotkey struct {
	Name string
	Type string
	ID   string
}

// VTSPosition is the last position set with MoveModelRequest.
type VTSPosition struct {
	X, Y, Rotation, Size, Time float64
}

type vtsMessage struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// MockVTSServer simulates the VTube Studio public API on an httptest server.
type MockVTSServer struct {
	server *httptest.Server

	mu          sync.Mutex
	version     string
	denyTokens  bool
	tokens      map[string]bool
	issued      int
	models      []VTSModel
	loaded      string
	expressions []VTSExpression
	hotkeys     []VTSHotkey
	triggered   []string
	position    VTSPosition
	requests    []string
	connections int
	dropNext    bool
	conns       []*websocket.Conn
}

// NewMockVTSServer starts a mock VTube Studio with two models (Akari loaded,
// Hiyori available), two expressions and two hotkeys.
func NewMockVTSServer() *MockVTSServer {
	s := &MockVTSServer{
		version: "1.28.15",
		tokens:  make(map[string]bool),
		models: []VTSModel{
			{Name: "Akari", ID: "akari-id"},
			{Name: "Hiyori", ID: "hiyori-id"},
		},
		loaded: "akari-id",
		expressions: []VTSExpression{
			{Name: "Smile", File: "smile.exp3.json"},
			{Name: "Angry", File: "angry.exp3.json"},
		},
		hotkeys: []VTSHotkey{
			{Name: "Wave", Type: "TriggerAnimation", ID: "hk-wave"},
			{Name: "Spin", Type: "TriggerAnimation", ID: "hk-spin"},
		},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	return s
}

// URL returns the ws:// address of the server.
func (s *MockVTSServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// Close shuts the server and every open connection down.
func (s *MockVTSServer) Close() {
	s.DropConnections()
	s.server.Close()
}

// DropConnections closes every open websocket without a close frame.
func (s *MockVTSServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// DropNext makes the server hang up instead of answering the next request.
func (s *MockVTSServer) DropNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropNext = true
}

// AddToken marks token as already approved.
func (s *MockVTSServer) AddToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = true
}

// RevokeTokens forgets every approved token.
func (s *MockVTSServer) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool)
}

// DenyTokens makes AuthenticationTokenRequest fail as if the user clicked deny.
func (s *MockVTSServer) DenyTokens(deny bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.denyTokens = deny
}

// IssuedTokens returns how many tokens have been handed out.
func (s *MockVTSServer) IssuedTokens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

func (s *MockVTSServer) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// LoadedModel returns the ID of the loaded model, empty if none.
func (s *MockVTSServer) LoadedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// ExpressionActive reports whether the expression file is active.
func (s *MockVTSServer) ExpressionActive(file string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.expressions {
		if e.File == file {
			return e.Active
		}
	}
	return false
}

// Triggered returns the IDs of every hotkey triggered so far.
func (s *MockVTSServer) Triggered() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.triggered...)
}

func (s *MockVTSServer) Position() VTSPosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Connections returns how many websocket sessions were opened.
func (s *MockVTSServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Requests returns the messageType of every request received so far.
func (s *MockVTSServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *MockVTSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.connections++
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	authenticated := false
	for {
		var req vtsMessage
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, req.MessageType)
		drop := s.dropNext
		s.dropNext = false
		s.mu.Unlock()
		if drop {
			return
		}

		msgType, data := s.handleRequest(req, &authenticated)
		raw, err := json.Marshal(data)
		if err != nil {
			return
		}
		resp := vtsMessage{
			APIName:     "VTubeStudioPublicAPI",
			APIVersion:  "1.0",
			RequestID:   req.RequestID,
			MessageType: msgType,
			Data:        raw,
		}
		if err := conn.WriteJSON(resp); err != nil {
			return
		}
	}
}

func apiError(id int, msg string) (string, any) {
	return "APIError", map[string]any{"errorID": id, "message": msg}
}

func (s *MockVTSServer) handleRequest(req vtsMessage, authenticated *bool) (string, any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.MessageType {
	case "AuthenticationTokenRequest":
		if s.denyTokens {
			return apiError(50, "User has denied API access for your plugin.")
		}
		s.issued++
		token := fmt.Sprintf("token-%d", s.issued)
		s.tokens[token] = true
		return "AuthenticationTokenResponse", map[string]string{"authenticationToken": token}
	case "AuthenticationRequest":
		var data struct {
			AuthenticationToken string `json:"authenticationToken"`
		}
		json.Unmarshal(req.Data, &data)
		if s.tokens[data.AuthenticationToken] {
			*authenticated = true
			return "AuthenticationResponse", map[string]any{"authenticated": true, "reason": "Token valid. The plugin is authenticated for the duration of this session."}
		}
		return "AuthenticationResponse", map[string]any{"authenticated": false, "reason": "Token invalid."}
	}

	if !*authenticated {
		return apiError(8, "Plugin has not been authenticated yet.")
	}

	switch req.MessageType {
	case "StatisticsRequest":
		return "StatisticsResponse", map[string]any{"vTubeStudioVersion": s.version, "uptime": 1000}
	case "CurrentModelRequest":
		m, ok := s.model(s.loaded)
		p := s.position
		return "CurrentModelResponse", map[string]any{
			"modelLoaded": ok,
			"modelName":   m.Name,
			"modelID":     m.ID,
			"modelPosition": map[string]float64{
				"positionX": p.X, "positionY": p.Y, "rotation": p.Rotation, "size": p.Size,
			},
		}
	case "AvailableModelsRequest":
		models := make([]map[string]any, 0, len(s.models))
		for _, m := range s.models {
			models = append(models, map[string]any{"modelLoaded": m.ID == s.loaded, "modelName": m.Name, "modelID": m.ID})
		}
		return "AvailableModelsResponse", map[string]any{"numberOfModels": len(models), "availableModels": models}
	case "ModelLoadRequest":
		var data struct {
			ModelID string `json:"modelID"`
		}
		json.Unmarshal(req.Data, &data)
		if _, ok := s.model(data.ModelID); !ok {
			return apiError(153, "No model with that ID found.")
		}
		s.loaded = data.ModelID
		return "ModelLoadResponse", map[string]string{"modelID": data.ModelID}
	case "ExpressionStateRequest":
		var data struct {
			ExpressionFile string `json:"expressionFile"`
		}
		json.Unmarshal(req.Data, &data)
		exprs := make([]map[string]any, 0, len(s.expressions))
		for _, e := range s.expressions {
			if data.ExpressionFile != "" && e.File != data.ExpressionFile {
				continue
			}
			exprs = append(exprs, map[string]any{"name": e.Name, "file": e.File, "active": e.Active})
		}
		return "ExpressionStateResponse", map[string]any{"modelLoaded": s.loaded != "", "expressions": exprs}
	case "ExpressionActivationRequest":
		var data struct {
			ExpressionFile string `json:"expressionFile"`
			Active         bool   `json:"active"`
		}
		json.Unmarshal(req.Data, &data)
		for i := range s.expressions {
			if s.expressions[i].File == data.ExpressionFile {
				s.expressions[i].Active = data.Active
				return "ExpressionActivationResponse", map[string]any{}
			}
		}
		return apiError(452, "No expression with that file found.")
	case "HotkeysInCurrentModelRequest":
		hotkeys := make([]map[string]string, 0, len(s.hotkeys))
		for _, h := range s.hotkeys {
			hotkeys = append(hotkeys, map[string]string{"name": h.Name, "type": h.Type, "hotkeyID": h.ID})
		}
		return "HotkeysInCurrentModelResponse", map[string]any{"modelLoaded": s.loaded != "", "availableHotkeys": hotkeys}
	case "HotkeyTriggerRequest":
		var data struct {
			HotkeyID string `json:"hotkeyID"`
		}
		json.Unmarshal(req.Data, &data)
		for _, h := range s.hotkeys {
			if h.ID == data.HotkeyID || h.Name == data.HotkeyID {
				s.triggered = append(s.triggered, h.ID)
				return "HotkeyTriggerResponse", map[string]string{"hotkeyID": h.ID}
			}
		}
		return apiError(302, "No hotkey with that ID or name found.")
	case "MoveModelRequest":
		var data struct {
			TimeInSeconds float64 `json:"timeInSeconds"`
			PositionX     float64 `json:"positionX"`
			PositionY     float64 `json:"positionY"`
			Rotation      float64 `json:"rotation"`
			Size          float64 `json:"size"`
		}
		json.Unmarshal(req.Data, &data)
		s.position = VTSPosition{X: data.PositionX, Y: data.PositionY, Rotation: data.Rotation, Size: data.Size, Time: data.TimeInSeconds}
		return "MoveModelResponse", map[string]any{}
	default:
		return apiError(4, "Unknown message type: "+req.MessageType)
	}
}

func (s *MockVTSServer) model(id string) (VTSModel, bool) {
	for _, m := range s.models {
		if m.ID == id {
			return m, true
		}
	}
	return VTSModel{}, false
}
