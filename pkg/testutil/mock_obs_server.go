// Package testutil provides mock OBS Studio and VTube Studio websocket
// servers for connector and end-to-end tests. The mocks implement the wire
// protocols independently of the clients under test.
package testutil

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// obs-websocket close code for a failed Identify
const obsAuthFailed = 4009

const (
	obsChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
	obsSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
)

// OBSRequest is one request received by MockOBSServer.
type OBSRequest struct {
	Type string
	Data json.RawMessage
}

type obsMessage struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type obsRequest struct {
	RequestType string          `json:"requestType"`
	RequestID   string          `json:"requestId"`
	RequestData json.RawMessage `json:"requestData"`
}

// MockOBSServer simulates obs-websocket v5 on an httptest server.
type MockOBSServer struct {
	server   *httptest.Server
	password string

	mu          sync.Mutex
	version     string
	scenes      []string
	current     string
	streaming   bool
	recording   bool
	requests    []OBSRequest
	connections int
	dropNext    bool
	conns       []*websocket.Conn
}

// NewMockOBSServer starts a mock OBS. An empty password disables
// authentication. The scene list starts as Main, BRB and Live with Main on
// program.
func NewMockOBSServer(password string) *MockOBSServer {
	s := &MockOBSServer{
		password: password,
		version:  "30.1.2",
		scenes:   []string{"Main", "BRB", "Live"},
		current:  "Main",
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	return s
}

// URL returns the ws:// address of the server.
func (s *MockOBSServer) URL() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

// HostPort returns the listening host and port.
func (s *MockOBSServer) HostPort() (string, int) {
	return splitHostPort(s.server.URL)
}

// Close shuts the server and every open connection down.
func (s *MockOBSServer) Close() {
	s.DropConnections()
	s.server.Close()
}

// DropConnections closes every open websocket without a close frame.
func (s *MockOBSServer) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

// DropNext makes the server hang up instead of answering the next request.
func (s *MockOBSServer) DropNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropNext = true
}

func (s *MockOBSServer) SetVersion(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version = v
}

// SetScenes replaces the scene list (in display order).
func (s *MockOBSServer) SetScenes(scenes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scenes = append([]string(nil), scenes...)
}

func (s *MockOBSServer) SetCurrentScene(scene string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = scene
}

func (s *MockOBSServer) CurrentScene() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *MockOBSServer) SetStreaming(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaming = active
}

func (s *MockOBSServer) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming
}

func (s *MockOBSServer) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Connections returns how many sessions completed the handshake.
func (s *MockOBSServer) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections
}

// Requests returns every request received so far.
func (s *MockOBSServer) Requests() []OBSRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]OBSRequest(nil), s.requests...)
}

// RequestTypes returns the requestType of every request received so far.
func (s *MockOBSServer) RequestTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.requests))
	for _, r := range s.requests {
		types = append(types, r.Type)
	}
	return types
}

func (s *MockOBSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if !s.identify(conn) {
		return
	}

	s.mu.Lock()
	s.connections++
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	for {
		var msg obsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		if msg.Op != 6 {
			continue
		}
		var req obsRequest
		if err := json.Unmarshal(msg.D, &req); err != nil {
			return
		}

		s.mu.Lock()
		s.requests = append(s.requests, OBSRequest{Type: req.RequestType, Data: req.RequestData})
		drop := s.dropNext
		s.dropNext = false
		s.mu.Unlock()
		if drop {
			return
		}

		ok, code, comment, data := s.handleRequest(req)
		status := map[string]any{"result": ok, "code": code}
		if comment != "" {
			status["comment"] = comment
		}
		resp := map[string]any{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": status,
		}
		if data != nil {
			resp["responseData"] = data
		}
		if err := writeOBS(conn, 7, resp); err != nil {
			return
		}
	}
}

func (s *MockOBSServer) identify(conn *websocket.Conn) bool {
	hello := map[string]any{"obsWebSocketVersion": "5.4.2", "rpcVersion": 1}
	if s.password != "" {
		hello["authentication"] = map[string]string{"challenge": obsChallenge, "salt": obsSalt}
	}
	if err := writeOBS(conn, 0, hello); err != nil {
		return false
	}

	var msg obsMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Op != 1 {
		return false
	}
	var id struct {
		RPCVersion     int    `json:"rpcVersion"`
		Authentication string `json:"authentication"`
	}
	if err := json.Unmarshal(msg.D, &id); err != nil {
		return false
	}
	if s.password != "" && id.Authentication != obsAuth(s.password) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(obsAuthFailed, "Authentication failed."))
		return false
	}
	return writeOBS(conn, 2, map[string]int{"negotiatedRpcVersion": 1}) == nil
}

func (s *MockOBSServer) handleRequest(req obsRequest) (bool, int, string, any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.RequestType {
	case "GetVersion":
		return true, 100, "", map[string]any{
			"obsVersion":          s.version,
			"obsWebSocketVersion": "5.4.2",
			"rpcVersion":          1,
			"platform":            "linux",
		}
	case "GetCurrentProgramScene":
		return true, 100, "", map[string]string{"currentProgramSceneName": s.current, "sceneName": s.current}
	case "SetCurrentProgramScene":
		var data struct {
			SceneName string `json:"sceneName"`
		}
		json.Unmarshal(req.RequestData, &data)
		for _, scene := range s.scenes {
			if scene == data.SceneName {
				s.current = scene
				return true, 100, "", nil
			}
		}
		return false, 600, "No source was found by the name of `" + data.SceneName + "`.", nil
	case "GetSceneList":
		// obs-websocket lists scenes bottom-up
		scenes := make([]map[string]any, 0, len(s.scenes))
		for i := len(s.scenes) - 1; i >= 0; i-- {
			scenes = append(scenes, map[string]any{"sceneName": s.scenes[i], "sceneIndex": len(s.scenes) - 1 - i})
		}
		return true, 100, "", map[string]any{"currentProgramSceneName": s.current, "scenes": scenes}
	case "StartStream":
		return toggleOutput(&s.streaming, true)
	case "StopStream":
		return toggleOutput(&s.streaming, false)
	case "ToggleStream":
		s.streaming = !s.streaming
		return true, 100, "", map[string]bool{"outputActive": s.streaming}
	case "GetStreamStatus":
		return true, 100, "", map[string]bool{"outputActive": s.streaming}
	case "StartRecord":
		return toggleOutput(&s.recording, true)
	case "StopRecord":
		return toggleOutput(&s.recording, false)
	case "ToggleRecord":
		s.recording = !s.recording
		return true, 100, "", map[string]bool{"outputActive": s.recording}
	case "GetRecordStatus":
		return true, 100, "", map[string]bool{"outputActive": s.recording}
	default:
		return false, 204, "Your request type is not valid.", nil
	}
}

func toggleOutput(state *bool, want bool) (bool, int, string, any) {
	if *state == want {
		if want {
			return false, 500, "The output is already running.", nil
		}
		return false, 501, "The output is not running.", nil
	}
	*state = want
	return true, 100, "", nil
}

func writeOBS(conn *websocket.Conn, op int, d any) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return conn.WriteJSON(obsMessage{Op: op, D: raw})
}

func obsAuth(password string) string {
	secret := sha256.Sum256([]byte(password + obsSalt))
	auth := sha256.Sum256([]byte(base64.StdEncoding.EncodeToString(secret[:]) + obsChallenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func splitHostPort(rawURL string) (string, int) {
	host, port, _ := net.SplitHostPort(strings.TrimPrefix(rawURL, "http://"))
	p, _ := strconv.Atoi(port)
	return host, p
}
