// Package obs is a minimal obs-websocket v5 client covering the scene,
// stream and record requests used by the OBS connector.
package obs

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"scuffcommander/internal/wsrpc"
)

// Config holds the connection parameters for one OBS instance.
type Config struct {
	URL      string
	Password string
}

// Client is an identified obs-websocket session. It is safe for concurrent
// use; a Client that failed once stays failed and must be replaced.
type Client struct {
	conn   *wsrpc.Conn
	logger *zap.Logger
}

// Dial connects to OBS and completes the Hello/Identify handshake.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	conn, err := wsrpc.Dial(ctx, cfg.URL, logger)
	if err != nil {
		return nil, err
	}

	if err := identify(ctx, conn, cfg.Password); err != nil {
		conn.Close()
		return nil, err
	}

	conn.Start(matchResponse)
	logger.Debug("Identified with OBS", zap.String("url", cfg.URL))
	return &Client{conn: conn, logger: logger}, nil
}

func identify(ctx context.Context, conn *wsrpc.Conn, password string) error {
	var msg Message
	if err := conn.ReadJSON(ctx, &msg); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if msg.Op != OpHello {
		return fmt.Errorf("expected hello, got op %d", msg.Op)
	}
	var hello Hello
	if err := json.Unmarshal(msg.D, &hello); err != nil {
		return fmt.Errorf("failed to decode hello: %w", err)
	}

	id := Identify{RPCVersion: RPCVersion}
	if hello.Authentication != nil {
		if password == "" {
			return fmt.Errorf("OBS requires a password")
		}
		id.Authentication = AuthResponse(password, hello.Authentication.Salt, hello.Authentication.Challenge)
	}
	d, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(ctx, Message{Op: OpIdentify, D: d}); err != nil {
		return fmt.Errorf("failed to send identify: %w", err)
	}

	if err := conn.ReadJSON(ctx, &msg); err != nil {
		// OBS closes the socket with code 4009 on a bad password
		return fmt.Errorf("authentication failed: %w", err)
	}
	if msg.Op != OpIdentified {
		return fmt.Errorf("expected identified, got op %d", msg.Op)
	}
	return nil
}

// AuthResponse computes the obs-websocket authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func AuthResponse(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	auth := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(auth[:])
}

func matchResponse(raw []byte) (string, bool) {
	var msg struct {
		Op int `json:"op"`
		D  struct {
			RequestID string `json:"requestId"`
		} `json:"d"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Op != OpRequestResponse {
		return "", false
	}
	return msg.D.RequestID, msg.D.RequestID != ""
}

// Close ends the session.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Done is closed once the session has ended.
func (c *Client) Done() <-chan struct{} {
	return c.conn.Done()
}

func (c *Client) request(ctx context.Context, requestType string, data, out any) error {
	req := Request{RequestType: requestType, RequestID: uuid.NewString(), RequestData: data}
	d, err := json.Marshal(req)
	if err != nil {
		return err
	}

	raw, err := c.conn.Call(ctx, req.RequestID, Message{Op: OpRequest, D: d})
	if err != nil {
		return fmt.Errorf("%s: %w", requestType, err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", requestType, err)
	}
	var resp RequestResponse
	if err := json.Unmarshal(msg.D, &resp); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", requestType, err)
	}
	if !resp.RequestStatus.Result {
		return &StatusError{RequestType: requestType, Code: resp.RequestStatus.Code, Comment: resp.RequestStatus.Comment}
	}
	if out != nil && len(resp.ResponseData) > 0 {
		if err := json.Unmarshal(resp.ResponseData, out); err != nil {
			return fmt.Errorf("%s: failed to decode response data: %w", requestType, err)
		}
	}
	return nil
}

// Version returns the full OBS version string, e.g. "30.1.2".
func (c *Client) Version(ctx context.Context) (string, error) {
	var resp VersionResponse
	if err := c.request(ctx, "GetVersion", nil, &resp); err != nil {
		return "", err
	}
	return resp.ObsVersion, nil
}

func (c *Client) CurrentProgramScene(ctx context.Context) (string, error) {
	var resp currentProgramScene
	if err := c.request(ctx, "GetCurrentProgramScene", nil, &resp); err != nil {
		return "", err
	}
	return resp.CurrentProgramSceneName, nil
}

func (c *Client) SetCurrentProgramScene(ctx context.Context, scene string) error {
	return c.request(ctx, "SetCurrentProgramScene", setCurrentProgramScene{SceneName: scene}, nil)
}

// SceneNames lists scenes in the order OBS shows them.
func (c *Client) SceneNames(ctx context.Context) ([]string, error) {
	var resp SceneListResponse
	if err := c.request(ctx, "GetSceneList", nil, &resp); err != nil {
		return nil, err
	}
	// OBS reports scenes bottom-up
	names := make([]string, 0, len(resp.Scenes))
	for i := len(resp.Scenes) - 1; i >= 0; i-- {
		names = append(names, resp.Scenes[i].SceneName)
	}
	return names, nil
}

func (c *Client) StartStream(ctx context.Context) error {
	return c.request(ctx, "StartStream", nil, nil)
}

func (c *Client) StopStream(ctx context.Context) error {
	return c.request(ctx, "StopStream", nil, nil)
}

func (c *Client) ToggleStream(ctx context.Context) error {
	return c.request(ctx, "ToggleStream", nil, nil)
}

func (c *Client) StreamActive(ctx context.Context) (bool, error) {
	var resp outputStatus
	if err := c.request(ctx, "GetStreamStatus", nil, &resp); err != nil {
		return false, err
	}
	return resp.OutputActive, nil
}

func (c *Client) StartRecord(ctx context.Context) error {
	return c.request(ctx, "StartRecord", nil, nil)
}

func (c *Client) StopRecord(ctx context.Context) error {
	return c.request(ctx, "StopRecord", nil, nil)
}

func (c *Client) ToggleRecord(ctx context.Context) error {
	return c.request(ctx, "ToggleRecord", nil, nil)
}

func (c *Client) RecordActive(ctx context.Context) (bool, error) {
	var resp outputStatus
	if err := c.request(ctx, "GetRecordStatus", nil, &resp); err != nil {
		return false, err
	}
	return resp.OutputActive, nil
}
