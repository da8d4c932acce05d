// Package vts is a VTube Studio public API client with plugin
// authentication and the model, expression, hotkey and movement requests
// used by the VTS connector.
package vts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scuffcommander/internal/wsrpc"
)

// ErrNotAuthenticated is returned when VTube Studio refuses the plugin.
var ErrNotAuthenticated = errors.New("plugin not authenticated")

// Config holds the connection parameters for one VTube Studio instance.
type Config struct {
	URL string
	// Token is the stored authentication token, empty on first use.
	Token string
	// OnToken is called with every token VTube Studio issues. It must not block.
	OnToken func(token string)
}

// Client is an authenticated VTube Studio session.
type Client struct {
	conn   *wsrpc.Conn
	logger *zap.Logger
}

// Dial connects and authenticates. When the stored token is missing or
// rejected a new one is requested, which VTube Studio confirms with the user.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := wsrpc.Dial(ctx, cfg.URL, logger)
	if err != nil {
		return nil, err
	}
	conn.Start(matchResponse)

	c := &Client{conn: conn, logger: logger}
	if err := c.authenticate(ctx, cfg); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func matchResponse(raw []byte) (string, bool) {
	var msg struct {
		RequestID string `json:"requestID"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.RequestID == "" {
		return "", false
	}
	return msg.RequestID, true
}

func (c *Client) authenticate(ctx context.Context, cfg Config) error {
	if cfg.Token != "" {
		ok, reason, err := c.authenticateWith(ctx, cfg.Token)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		c.logger.Info("Stored token rejected, requesting a new one", zap.String("reason", reason))
	}

	var tok authenticationTokenResponse
	req := authenticationTokenRequest{PluginName: PluginName, PluginDeveloper: PluginDeveloper}
	if err := c.request(ctx, "AuthenticationTokenRequest", req, &tok); err != nil {
		return fmt.Errorf("request authentication token: %w", err)
	}
	if cfg.OnToken != nil {
		cfg.OnToken(tok.AuthenticationToken)
	}

	ok, reason, err := c.authenticateWith(ctx, tok.AuthenticationToken)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotAuthenticated, reason)
	}
	return nil
}

func (c *Client) authenticateWith(ctx context.Context, token string) (bool, string, error) {
	var resp authenticationResponse
	req := authenticationRequest{PluginName: PluginName, PluginDeveloper: PluginDeveloper, AuthenticationToken: token}
	if err := c.request(ctx, "AuthenticationRequest", req, &resp); err != nil {
		return false, "", fmt.Errorf("authenticate: %w", err)
	}
	return resp.Authenticated, resp.Reason, nil
}

func (c *Client) request(ctx context.Context, messageType string, data, out any) error {
	msg := Message{
		APIName:     APIName,
		APIVersion:  APIVersion,
		Timestamp:   time.Now().UnixMilli(),
		RequestID:   uuid.NewString(),
		MessageType: messageType,
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		msg.Data = raw
	}

	raw, err := c.conn.Call(ctx, msg.RequestID, msg)
	if err != nil {
		return fmt.Errorf("%s: %w", messageType, err)
	}

	var resp Message
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", messageType, err)
	}
	if resp.MessageType == "APIError" {
		var apiErr APIError
		if err := json.Unmarshal(resp.Data, &apiErr); err != nil {
			return fmt.Errorf("%s: failed to decode error: %w", messageType, err)
		}
		return &apiErr
	}
	if out != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			return fmt.Errorf("%s: failed to decode response data: %w", messageType, err)
		}
	}
	return nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the session has ended.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

// Version returns the VTube Studio version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp statisticsResponse
	if err := c.request(ctx, "StatisticsRequest", nil, &resp); err != nil {
		return "", err
	}
	return resp.VTubeStudioVersion, nil
}

// CurrentModel returns the loaded model and its position. Model.ModelLoaded
// is false when no model is loaded.
func (c *Client) CurrentModel(ctx context.Context) (Model, Position, error) {
	var resp currentModelResponse
	if err := c.request(ctx, "CurrentModelRequest", nil, &resp); err != nil {
		return Model{}, Position{}, err
	}
	return resp.Model, resp.ModelPosition, nil
}

func (c *Client) AvailableModels(ctx context.Context) ([]Model, error) {
	var resp availableModelsResponse
	if err := c.request(ctx, "AvailableModelsRequest", nil, &resp); err != nil {
		return nil, err
	}
	return resp.AvailableModels, nil
}

func (c *Client) LoadModel(ctx context.Context, modelID string) error {
	return c.request(ctx, "ModelLoadRequest", modelLoadRequest{ModelID: modelID}, nil)
}

// Expressions returns the expressions of the current model. A non-empty file
// limits the result to that expression; the slice is empty if it does not exist.
func (c *Client) Expressions(ctx context.Context, file string) ([]Expression, error) {
	var resp expressionStateResponse
	if err := c.request(ctx, "ExpressionStateRequest", expressionStateRequest{ExpressionFile: file}, &resp); err != nil {
		return nil, err
	}
	return resp.Expressions, nil
}

func (c *Client) SetExpression(ctx context.Context, file string, active bool) error {
	return c.request(ctx, "ExpressionActivationRequest", expressionActivationRequest{ExpressionFile: file, Active: active}, nil)
}

func (c *Client) Hotkeys(ctx context.Context) ([]Hotkey, error) {
	var resp hotkeysResponse
	if err := c.request(ctx, "HotkeysInCurrentModelRequest", nil, &resp); err != nil {
		return nil, err
	}
	return resp.AvailableHotkeys, nil
}

func (c *Client) TriggerHotkey(ctx context.Context, hotkeyID string) error {
	return c.request(ctx, "HotkeyTriggerRequest", hotkeyTriggerRequest{HotkeyID: hotkeyID}, nil)
}

func (c *Client) MoveModel(ctx context.Context, m Move) error {
	return c.request(ctx, "MoveModelRequest", m, nil)
}
