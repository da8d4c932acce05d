package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scuffcommander/internal/api"
	"scuffcommander/internal/config"
	"scuffcommander/internal/history"
	"scuffcommander/internal/metrics"
	"scuffcommander/internal/store"
	"scuffcommander/pkg/action"
	"scuffcommander/pkg/plugin"
	"scuffcommander/pkg/testutil"
)

const (
	testSecret  = "6368616e676520746869732070617373776f726420746f206120736563726574"
	obsPassword = "obs-websocket-password"
)

// harness runs the full stack: config.yaml on disk, plugins against mock
// OBS and VTS peers, a sqlite action store and the HTTP handler.
type harness struct {
	obs      *testutil.MockOBSServer
	vts      *testutil.MockVTSServer
	cfg      *config.Config
	registry *plugin.Registry
	actions  *store.ActionRepository
	handler  http.Handler
}

func setupTest(t *testing.T) *harness {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	obsServer := testutil.NewMockOBSServer(obsPassword)
	t.Cleanup(obsServer.Close)
	vtsServer := testutil.NewMockVTSServer()
	t.Cleanup(vtsServer.Close)

	sealed, err := config.Seal(testSecret, obsPassword)
	require.NoError(t, err)

	dir := t.TempDir()
	host, port := obsServer.HostPort()
	configYAML := fmt.Sprintf(`port: 18080
connect_timeout: 2s
request_timeout: 2s
secret: %s
plugins:
  - type: OBS
    obs:
      addr: %s
      port: %d
      password: "%s"
  - type: VTS
    vts:
      addr: %s
      token_file: vts_token.txt
  - type: General
`, testSecret, host, port, sealed, vtsServer.URL())
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.FileName), []byte(configYAML), 0o600))

	cfg, err := config.NewLoader(dir, logger).Load()
	require.NoError(t, err)

	m := metrics.New()
	registry := plugin.NewRegistry(context.Background(), cfg.Plugins,
		plugin.WithLogger(logger),
		plugin.WithTimeouts(cfg.ConnectTimeout, cfg.RequestTimeout, cfg.CommandTimeout),
		plugin.WithObserver(m))
	t.Cleanup(func() { registry.Close() })

	s, err := store.New(cfg.ActionsDB)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tracker := history.NewTracker(0, nil)
	runner := action.NewRunner(registry, logger, action.Observers(m, tracker), nil)
	server := api.NewServer(api.Deps{
		Actions:  s.Actions(),
		Runner:   runner,
		Registry: registry,
		Metrics:  m.Handler(),
		History:  tracker,
		Logger:   logger,
	}, cfg.ListenAddr())

	return &harness{
		obs:      obsServer,
		vts:      vtsServer,
		cfg:      cfg,
		registry: registry,
		actions:  s.Actions(),
		handler:  server.Handler(),
	}
}

func (h *harness) do(t *testing.T, method, path, body string) (int, string) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, httptest.NewRequest(method, path, reader))
	return w.Code, w.Body.String()
}

func (h *harness) click(t *testing.T, id string) (int, string) {
	t.Helper()
	return h.do(t, http.MethodGet, "/click/"+id, "")
}

func (h *harness) put(t *testing.T, id string, a action.Action) {
	t.Helper()
	require.NoError(t, h.actions.Put(context.Background(), id, a))
}
