package action

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scuffcommander/internal/clock"
	"scuffcommander/pkg/plugin"
)

const brbIfLive = `{"tag":"If","content":[
  {"query":{"tag":"OBS","content":"CurrentProgramScene"},"target":"Live"},
  {"tag":"Single","content":{"tag":"OBS","content":{"tag":"ProgramSceneChange","content":"BRB"}}},
  {"tag":"Chain","content":[]}
]}`

func TestUnmarshal_ConfiguratorDocument(t *testing.T) {
	a, err := Unmarshal([]byte(brbIfLive))
	require.NoError(t, err)

	want := If{
		Cond: Condition{Query: plugin.OBSQuery{Kind: plugin.OBSCurrentProgramScene}, Target: "Live"},
		Then: Single{Command: plugin.OBSAction{Kind: plugin.OBSProgramSceneChange, Scene: "BRB"}},
		Else: Chain{Steps: []Action{}},
	}
	assert.Equal(t, want, a)

	data, err := Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, brbIfLive, string(data))
}

func TestUnmarshal_IfForms(t *testing.T) {
	twoElements := `{"tag":"If","content":[
	  {"query":{"tag":"VTS","content":"ActiveModelId"},"target":"akari-id"},
	  {"tag":"Single","content":{"tag":"VTS","content":{"tag":"TriggerHotkey","content":"hk-wave"}}}
	]}`
	a, err := Unmarshal([]byte(twoElements))
	require.NoError(t, err)
	assert.Nil(t, a.(If).Else)

	data, err := Marshal(a)
	require.NoError(t, err)
	var raw struct {
		Content []json.RawMessage `json:"content"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw.Content, 3)
	assert.Equal(t, "null", string(raw.Content[2]))
}

func TestUnmarshal_Errors(t *testing.T) {
	tests := []struct {
		name        string
		json        string
		errContains string
	}{
		{"unknown node", `{"tag":"Loop","content":[]}`, "unknown node"},
		{"missing tag", `{"content":[]}`, "missing tag"},
		{"bad chain step", `{"tag":"Chain","content":[{"tag":"Single","content":{"tag":"OBS","content":{"tag":"Nope"}}}]}`, "chain step 0"},
		{"if too short", `{"tag":"If","content":[{"query":{"tag":"OBS","content":"Version"},"target":"30"}]}`, "expected [condition, then, else]"},
		{"general query", `{"tag":"If","content":[{"query":{"tag":"General","content":"Version"},"target":"1"},{"tag":"Chain","content":[]}]}`, "has no queries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.json))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestClone(t *testing.T) {
	orig := Chain{Steps: []Action{
		Single{Command: plugin.GeneralAction{Kind: plugin.GeneralRunCommand, Command: plugin.Command{Program: "echo", Args: []string{"hi"}}}},
		If{Cond: Condition{Query: plugin.OBSQuery{Kind: plugin.OBSIsRecording}, Target: "true"}, Then: Chain{}},
	}}

	clone := Clone(orig).(Chain)
	assert.Equal(t, orig, clone)

	clone.Steps[0] = scene("Other")
	cmd := orig.Steps[0].(Single).Command.(plugin.GeneralAction)
	assert.Equal(t, "echo", cmd.Command.Program)

	inner := Clone(orig).(Chain).Steps[0].(Single).Command.(plugin.GeneralAction)
	inner.Command.Args[0] = "bye"
	assert.Equal(t, "hi", cmd.Command.Args[0])
}

func TestWalk(t *testing.T) {
	var seen []string
	Walk(Chain{Steps: []Action{
		scene("A"),
		If{Cond: Condition{Query: currentScene, Target: "A"}, Then: scene("B"), Else: scene("C")},
	}}, func(a plugin.Action) { seen = append(seen, a.String()) })
	assert.Equal(t, []string{
		"OBS-ProgramSceneChange(A)",
		"OBS-ProgramSceneChange(B)",
		"OBS-ProgramSceneChange(C)",
	}, seen)
}

func TestPlugins(t *testing.T) {
	assert.Empty(t, Plugins(Chain{}))
	assert.Equal(t, []plugin.Type{plugin.TypeOBS}, Plugins(scene("A")))

	a := Chain{Steps: []Action{
		Single{Command: plugin.GeneralAction{Kind: plugin.GeneralDelay, Delay: 1}},
		If{
			Cond: Condition{Query: plugin.VTSQuery{Kind: plugin.VTSActiveModelID}, Target: "akari-id"},
			Then: scene("B"),
		},
	}}
	assert.Equal(t, []plugin.Type{plugin.TypeOBS, plugin.TypeVTS, plugin.TypeGeneral}, Plugins(a))
}

func TestDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.json")
	content := `{"actions":{
	  "brb": ` + brbIfLive + `,
	  "go-live": {"tag":"Chain","content":[
	    {"tag":"Single","content":{"tag":"OBS","content":{"tag":"StartStream"}}},
	    {"tag":"Single","content":{"tag":"General","content":{"tag":"Delay","content":2}}}
	  ]}
	}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := LoadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"brb", "go-live"}, doc.IDs())
	assert.Len(t, doc.Actions["go-live"].(Chain).Steps, 2)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	var again Document
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, doc, again)

	_, err = LoadDocument(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	a, err := Unmarshal([]byte(brbIfLive))
	require.NoError(t, err)

	assert.Equal(t, "# brb\n\n"+
		"- **if** `OBS-CurrentProgramScene == \"Live\"`\n"+
		"  - **then**\n"+
		"    - `OBS-ProgramSceneChange(BRB)`\n"+
		"  - **else**\n"+
		"    - *empty chain*\n", Describe("brb", a))
}

type evaluation struct {
	id  string
	err error
}

type recordingObserver struct {
	runs []evaluation
}

func (o *recordingObserver) Evaluated(id string, _ time.Duration, err error) {
	o.runs = append(o.runs, evaluation{id: id, err: err})
}

func TestRunner(t *testing.T) {
	d := newRecorder()
	d.failOn["OBS-ProgramSceneChange(Broken)"] = errPeer
	d.answers[currentScene.String()] = "Main"
	obs := &recordingObserver{}
	runner := NewRunner(d, zap.NewNop(), obs, clock.NewMockClock(time.Now()))

	require.NoError(t, runner.Run(context.Background(), "brb", scene("BRB")))
	err := runner.Run(context.Background(), "broken", scene("Broken"))
	assert.ErrorIs(t, err, errPeer)

	assert.Equal(t, []evaluation{{id: "brb"}, {id: "broken", err: errPeer}}, obs.runs)

	ok, err := runner.Check(context.Background(), Condition{Query: currentScene, Target: "Main"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResolve(t *testing.T) {
	registry := plugin.NewRegistryWith([]plugin.Connector{plugin.NewGeneralConnector()})
	a := Chain{Steps: []Action{Single{Command: plugin.GeneralAction{Kind: plugin.GeneralDelay, Delay: 1}}}}

	got, err := Resolve(context.Background(), registry, a)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	_, err = Resolve(context.Background(), registry, Single{Command: plugin.VTSAction{Kind: plugin.VTSLoadModel, Param: "Hiyori"}})
	assert.ErrorIs(t, err, plugin.ErrNotConfigured)
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "OBS-ProgramSceneChange(BRB)", Summary(scene("BRB")))
	assert.Equal(t, "chain of 0 steps", Summary(Chain{}))
	assert.Equal(t, "chain of 1 step", Summary(Chain{Steps: []Action{scene("A")}}))
	assert.Equal(t, `if OBS-CurrentProgramScene == "Live"`, Summary(If{Cond: Condition{Query: currentScene, Target: "Live"}}))
}

func TestObservers(t *testing.T) {
	first, second := &recordingObserver{}, &recordingObserver{}
	obs := Observers(first, second)
	obs.Evaluated("brb", time.Second, errPeer)

	want := []evaluation{{id: "brb", err: errPeer}}
	assert.Equal(t, want, first.runs)
	assert.Equal(t, want, second.runs)
}
