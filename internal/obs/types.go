package obs

import (
	"encoding/json"
	"fmt"
)

// obs-websocket v5 op codes
const (
	OpHello           = 0
	OpIdentify        = 1
	OpIdentified      = 2
	OpEvent           = 5
	OpRequest         = 6
	OpRequestResponse = 7
)

// RPCVersion is the obs-websocket RPC version this client speaks.
const RPCVersion = 1

// Message is the outer frame of every obs-websocket message.
type Message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// Hello is sent by the server right after the socket opens.
type Hello struct {
	ObsWebSocketVersion string          `json:"obsWebSocketVersion"`
	RPCVersion          int             `json:"rpcVersion"`
	Authentication      *Authentication `json:"authentication,omitempty"`
}

// Authentication carries the challenge when the server requires a password.
type Authentication struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

// Identify answers Hello.
type Identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

// Identified confirms the session.
type Identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

// Request is the payload of an OpRequest message.
type Request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

// RequestResponse is the payload of an OpRequestResponse message.
type RequestResponse struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus RequestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

// RequestStatus reports whether OBS accepted a request.
type RequestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// StatusError is returned when OBS rejects a request.
type StatusError struct {
	RequestType string
	Code        int
	Comment     string
}

func (e *StatusError) Error() string {
	if e.Comment != "" {
		return fmt.Sprintf("OBS rejected %s (code %d): %s", e.RequestType, e.Code, e.Comment)
	}
	return fmt.Sprintf("OBS rejected %s (code %d)", e.RequestType, e.Code)
}

// VersionResponse is the response to GetVersion.
type VersionResponse struct {
	ObsVersion          string `json:"obsVersion"`
	ObsWebSocketVersion string `json:"obsWebSocketVersion"`
	Platform            string `json:"platform"`
}

// Scene is one entry of GetSceneList.
type Scene struct {
	SceneName  string `json:"sceneName"`
	SceneIndex int    `json:"sceneIndex"`
}

// SceneListResponse is the response to GetSceneList.
type SceneListResponse struct {
	CurrentProgramSceneName string  `json:"currentProgramSceneName"`
	Scenes                  []Scene `json:"scenes"`
}

type currentProgramScene struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
}

type setCurrentProgramScene struct {
	SceneName string `json:"sceneName"`
}

type outputStatus struct {
	OutputActive bool `json:"outputActive"`
}
