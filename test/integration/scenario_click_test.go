package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scuffcommander/pkg/action"
	"scuffcommander/pkg/plugin"
)

const goLiveAction = `{"tag":"Chain","content":[
  {"tag":"Single","content":{"tag":"OBS","content":{"tag":"StartStream"}}},
  {"tag":"Single","content":{"tag":"OBS","content":{"tag":"ProgramSceneChange","content":"Live"}}},
  {"tag":"Single","content":{"tag":"General","content":{"tag":"Delay","content":0}}},
  {"tag":"Single","content":{"tag":"VTS","content":{"tag":"TriggerHotkey","content":"Wave"}}}
]}`

var currentScene = plugin.OBSQuery{Kind: plugin.OBSCurrentProgramScene}

func sceneChange(name string) action.Action {
	return action.Single{Command: plugin.OBSAction{Kind: plugin.OBSProgramSceneChange, Scene: name}}
}

// TestScenario_GoLive stores a chain through the API, resolving the hotkey
// name, and runs it with one click.
func TestScenario_GoLive(t *testing.T) {
	h := setupTest(t)

	t.Log("GIVEN: a go-live chain stored with name resolution")
	code, body := h.do(t, http.MethodPut, "/api/actions/go-live?resolve=true", goLiveAction)
	require.Equal(t, http.StatusOK, code, body)
	assert.Contains(t, body, "hk-wave", "hotkey name is replaced by its id")

	t.Log("WHEN: the button is clicked")
	code, body = h.click(t, "go-live")

	t.Log("THEN: every step reached its peer")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Success", body)
	assert.True(t, h.obs.Streaming())
	assert.Equal(t, "Live", h.obs.CurrentScene())
	assert.Equal(t, []string{"hk-wave"}, h.vts.Triggered())
}

// TestScenario_BRBToggle flips between Live and BRB based on the program scene.
func TestScenario_BRBToggle(t *testing.T) {
	h := setupTest(t)

	t.Log("GIVEN: a conditional toggle between Live and BRB")
	h.put(t, "toggle-brb", action.If{
		Cond: action.Condition{Query: currentScene, Target: "Live"},
		Then: sceneChange("BRB"),
		Else: sceneChange("Live"),
	})

	steps := []string{"Live", "BRB", "Live"}
	for i, want := range steps {
		code, body := h.click(t, "toggle-brb")
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, want, h.obs.CurrentScene(), "click %d", i+1)
	}

	t.Log("THEN: the condition endpoint agrees with OBS")
	code, body := h.do(t, http.MethodPost, "/api/conditions/check",
		`{"query":{"tag":"OBS","content":"CurrentProgramScene"},"target":"Live"}`)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"result":true}`, body)
}

// TestScenario_PeerDropsConnection checks that a dropped OBS session fails
// one click and the next click reconnects.
func TestScenario_PeerDropsConnection(t *testing.T) {
	h := setupTest(t)
	h.put(t, "brb", sceneChange("BRB"))

	t.Log("GIVEN: OBS hangs up on the next request")
	h.obs.DropNext()

	t.Log("WHEN: the button is clicked twice")
	code, _ := h.click(t, "brb")
	assert.Equal(t, http.StatusBadGateway, code)

	code, body := h.click(t, "brb")

	t.Log("THEN: the second click reconnected and succeeded")
	assert.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "BRB", h.obs.CurrentScene())
	assert.Equal(t, 2, h.obs.Connections())

	_, metricsBody := h.do(t, http.MethodGet, "/metrics", "")
	assert.Contains(t, metricsBody, `scuffcommander_action_evaluations_total{action="brb",result="error"} 1`)
	assert.Contains(t, metricsBody, `scuffcommander_action_evaluations_total{action="brb",result="ok"} 1`)
}

// TestScenario_ChainStopsAtFailure checks that steps after a failed one are
// not dispatched.
func TestScenario_ChainStopsAtFailure(t *testing.T) {
	h := setupTest(t)
	h.put(t, "broken", action.Chain{Steps: []action.Action{
		sceneChange("Does Not Exist"),
		action.Single{Command: plugin.OBSAction{Kind: plugin.OBSStartRecord}},
	}})

	code, body := h.click(t, "broken")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body, "action chain failed")
	assert.False(t, h.obs.Recording())
}

// TestScenario_VTSTokenPersisted checks that the token issued on first
// connect ends up next to config.yaml.
func TestScenario_VTSTokenPersisted(t *testing.T) {
	h := setupTest(t)

	ok, err := action.Condition{Query: plugin.VTSQuery{Kind: plugin.VTSActiveModelName}, Target: "Akari"}.Check(context.Background(), h.registry)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, h.registry.Close())
	data, err := os.ReadFile(filepath.Join(h.cfg.Dir, "vts_token.txt"))
	require.NoError(t, err)
	assert.NotEmpty(t, string(data))
	assert.Equal(t, 1, h.vts.IssuedTokens())
}
