package vts

import (
	"encoding/json"
	"fmt"
)

const (
	APIName    = "VTubeStudioPublicAPI"
	APIVersion = "1.0"

	PluginName      = "VTScuffCommander"
	PluginDeveloper = "ScuffCommanderDevs"
)

// Message is the envelope of every VTube Studio API message.
type Message struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	Timestamp   int64           `json:"timestamp,omitempty"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// APIError is the payload of an "APIError" response.
type APIError struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("VTube Studio error %d: %s", e.ErrorID, e.Message)
}

type authenticationTokenRequest struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type authenticationTokenResponse struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type authenticationRequest struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	AuthenticationToken string `json:"authenticationToken"`
}

type authenticationResponse struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"`
}

type statisticsResponse struct {
	VTubeStudioVersion string `json:"vTubeStudioVersion"`
	Uptime             int64  `json:"uptime"`
}

// Position is a model's placement in the VTube Studio window.
type Position struct {
	PositionX float64 `json:"positionX"`
	PositionY float64 `json:"positionY"`
	Rotation  float64 `json:"rotation"`
	Size      float64 `json:"size"`
}

// Model describes a VTube Studio model.
type Model struct {
	ModelLoaded bool   `json:"modelLoaded"`
	ModelName   string `json:"modelName"`
	ModelID     string `json:"modelID"`
}

type currentModelResponse struct {
	Model
	ModelPosition Position `json:"modelPosition"`
}

type availableModelsResponse struct {
	NumberOfModels  int     `json:"numberOfModels"`
	AvailableModels []Model `json:"availableModels"`
}

type modelLoadRequest struct {
	ModelID string `json:"modelID"`
}

// Expression is one expression file of the current model.
type Expression struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Active bool   `json:"active"`
}

type expressionStateRequest struct {
	Details        bool   `json:"details"`
	ExpressionFile string `json:"expressionFile,omitempty"`
}

type expressionStateResponse struct {
	ModelLoaded bool         `json:"modelLoaded"`
	Expressions []Expression `json:"expressions"`
}

type expressionActivationRequest struct {
	ExpressionFile string `json:"expressionFile"`
	Active         bool   `json:"active"`
}

// Hotkey is one hotkey of the current model.
type Hotkey struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	HotkeyID string `json:"hotkeyID"`
}

type hotkeysResponse struct {
	ModelLoaded      bool     `json:"modelLoaded"`
	AvailableHotkeys []Hotkey `json:"availableHotkeys"`
}

type hotkeyTriggerRequest struct {
	HotkeyID string `json:"hotkeyID"`
}

// Move is a MoveModelRequest. Positions are absolute unless
// ValuesAreRelativeToModel is set.
type Move struct {
	TimeInSeconds            float64 `json:"timeInSeconds"`
	ValuesAreRelativeToModel bool    `json:"valuesAreRelativeToModel"`
	PositionX                float64 `json:"positionX"`
	PositionY                float64 `json:"positionY"`
	Rotation                 float64 `json:"rotation"`
	Size                     float64 `json:"size"`
}
