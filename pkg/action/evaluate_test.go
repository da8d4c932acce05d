package action

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scuffcommander/pkg/plugin"
)

var errPeer = errors.New("peer went away")

// recorder is a Dispatcher that records every dispatch and answers queries
// from a fixed table.
type recorder struct {
	mu         sync.Mutex
	dispatched []string
	queried    []string
	answers    map[string]string
	failOn     map[string]error
}

func newRecorder() *recorder {
	return &recorder{answers: map[string]string{}, failOn: map[string]error{}}
}

func (r *recorder) Dispatch(_ context.Context, a plugin.Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatched = append(r.dispatched, a.String())
	return r.failOn[a.String()]
}

func (r *recorder) Query(_ context.Context, q plugin.Query) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queried = append(r.queried, q.String())
	if err := r.failOn[q.String()]; err != nil {
		return "", err
	}
	return r.answers[q.String()], nil
}

func scene(name string) Action {
	return Single{Command: plugin.OBSAction{Kind: plugin.OBSProgramSceneChange, Scene: name}}
}

var currentScene = plugin.OBSQuery{Kind: plugin.OBSCurrentProgramScene}

func TestEvaluate_Single(t *testing.T) {
	d := newRecorder()
	require.NoError(t, Evaluate(context.Background(), scene("BRB"), d))
	assert.Equal(t, []string{"OBS-ProgramSceneChange(BRB)"}, d.dispatched)
}

func TestEvaluate_EmptyChain(t *testing.T) {
	d := newRecorder()
	require.NoError(t, Evaluate(context.Background(), Chain{}, d))
	require.NoError(t, Evaluate(context.Background(), Chain{Steps: []Action{}}, d))
	assert.Empty(t, d.dispatched)
	assert.Empty(t, d.queried)
}

func TestEvaluate_ChainShortCircuit(t *testing.T) {
	d := newRecorder()
	d.failOn["OBS-ProgramSceneChange(B)"] = errPeer

	err := Evaluate(context.Background(), Chain{Steps: []Action{scene("A"), scene("B"), scene("C")}}, d)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChainAborted)
	assert.ErrorIs(t, err, errPeer)
	assert.Equal(t, "action chain failed: peer went away", err.Error())

	var ce *ChainError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Step)
	assert.Equal(t, []string{"OBS-ProgramSceneChange(A)", "OBS-ProgramSceneChange(B)"}, d.dispatched)
}

func TestEvaluate_ChainKeepsPluginErrorKind(t *testing.T) {
	registry := plugin.NewRegistryWith(nil)
	err := Evaluate(context.Background(), Chain{Steps: []Action{scene("A")}}, registry)
	assert.ErrorIs(t, err, ErrChainAborted)
	assert.ErrorIs(t, err, plugin.ErrNotConfigured)
}

func TestEvaluate_If(t *testing.T) {
	branch := If{
		Cond: Condition{Query: currentScene, Target: "Live"},
		Then: scene("BRB"),
		Else: scene("Live"),
	}

	tests := []struct {
		name    string
		current string
		action  Action
		want    []string
	}{
		{"true runs then", "Live", branch, []string{"OBS-ProgramSceneChange(BRB)"}},
		{"false runs else", "Main", branch, []string{"OBS-ProgramSceneChange(Live)"}},
		{"false without else does nothing", "Main", If{Cond: branch.Cond, Then: branch.Then}, nil},
		{"comparison is case-sensitive", "live", branch, []string{"OBS-ProgramSceneChange(Live)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newRecorder()
			d.answers[currentScene.String()] = tt.current
			require.NoError(t, Evaluate(context.Background(), tt.action, d))
			assert.Equal(t, tt.want, d.dispatched)
			assert.Equal(t, []string{"OBS-CurrentProgramScene"}, d.queried)
		})
	}
}

func TestEvaluate_IfConditionFailureIsFatal(t *testing.T) {
	d := newRecorder()
	d.failOn[currentScene.String()] = errPeer

	err := Evaluate(context.Background(), If{
		Cond: Condition{Query: currentScene, Target: "Live"},
		Then: scene("BRB"),
		Else: scene("Live"),
	}, d)
	assert.ErrorIs(t, err, errPeer)
	assert.NotErrorIs(t, err, ErrChainAborted)
	assert.Empty(t, d.dispatched, "neither branch runs")
}

func TestEvaluate_Nested(t *testing.T) {
	d := newRecorder()
	d.answers["OBS-IsStreaming"] = plugin.FormatBool(true)

	tree := Chain{Steps: []Action{
		scene("Intro"),
		If{
			Cond: Condition{Query: plugin.OBSQuery{Kind: plugin.OBSIsStreaming}, Target: "true"},
			Then: Chain{Steps: []Action{
				Single{Command: plugin.GeneralAction{Kind: plugin.GeneralDelay, Delay: 1}},
				scene("Live"),
			}},
		},
		Single{Command: plugin.VTSAction{Kind: plugin.VTSTriggerHotkey, Param: "hk-wave"}},
	}}
	require.NoError(t, Evaluate(context.Background(), tree, d))
	assert.Equal(t, []string{
		"OBS-ProgramSceneChange(Intro)",
		"General-Delay(1s)",
		"OBS-ProgramSceneChange(Live)",
		"VTS-TriggerHotkey(hk-wave)",
	}, d.dispatched)
}

func TestEvaluate_Invalid(t *testing.T) {
	assert.Error(t, Evaluate(context.Background(), nil, newRecorder()))
	assert.Error(t, Evaluate(context.Background(), Chain{Steps: []Action{nil}}, newRecorder()))
}

func TestCondition_Check(t *testing.T) {
	d := newRecorder()
	d.answers["VTS-ActiveModelId"] = "akari-id"

	ok, err := Condition{Query: plugin.VTSQuery{Kind: plugin.VTSActiveModelID}, Target: "akari-id"}.Check(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Condition{Query: plugin.VTSQuery{Kind: plugin.VTSActiveModelID}, Target: "Akari-id"}.Check(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = Condition{Target: "x"}.Check(context.Background(), d)
	assert.Error(t, err)
}
