package plugin

import (
	"context"
	"errors"
	"sync"

	"scuffcommander/internal/vts"
)

var errBroken = errors.New("broken pipe")

// fakeOBS is an in-memory OBSClient. Setting fail makes the next request
// return it.
type fakeOBS struct {
	mu        sync.Mutex
	scene     string
	streaming bool
	recording bool
	version   string
	fail      error
	block     bool
	closed    bool
	calls     []string
}

func newFakeOBS() *fakeOBS {
	return &fakeOBS{scene: "Main", version: "30.1.2"}
}

func (f *fakeOBS) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls = append(f.calls, name)
	err := f.fail
	f.fail = nil
	block := f.block
	f.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (f *fakeOBS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOBS) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeOBS) Version(ctx context.Context) (string, error) {
	if err := f.enter(ctx, "GetVersion"); err != nil {
		return "", err
	}
	return f.version, nil
}

func (f *fakeOBS) CurrentProgramScene(ctx context.Context) (string, error) {
	if err := f.enter(ctx, "GetCurrentProgramScene"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scene, nil
}

func (f *fakeOBS) SetCurrentProgramScene(ctx context.Context, scene string) error {
	if err := f.enter(ctx, "SetCurrentProgramScene"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scene = scene
	return nil
}

func (f *fakeOBS) SceneNames(ctx context.Context) ([]string, error) {
	if err := f.enter(ctx, "GetSceneList"); err != nil {
		return nil, err
	}
	return []string{"Main", "BRB"}, nil
}

func (f *fakeOBS) setOutput(ctx context.Context, name string, out *bool, v func(bool) bool) error {
	if err := f.enter(ctx, name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	*out = v(*out)
	return nil
}

func (f *fakeOBS) StartStream(ctx context.Context) error {
	return f.setOutput(ctx, "StartStream", &f.streaming, func(bool) bool { return true })
}

func (f *fakeOBS) StopStream(ctx context.Context) error {
	return f.setOutput(ctx, "StopStream", &f.streaming, func(bool) bool { return false })
}

func (f *fakeOBS) ToggleStream(ctx context.Context) error {
	return f.setOutput(ctx, "ToggleStream", &f.streaming, func(b bool) bool { return !b })
}

func (f *fakeOBS) StreamActive(ctx context.Context) (bool, error) {
	if err := f.enter(ctx, "GetStreamStatus"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streaming, nil
}

func (f *fakeOBS) StartRecord(ctx context.Context) error {
	return f.setOutput(ctx, "StartRecord", &f.recording, func(bool) bool { return true })
}

func (f *fakeOBS) StopRecord(ctx context.Context) error {
	return f.setOutput(ctx, "StopRecord", &f.recording, func(bool) bool { return false })
}

func (f *fakeOBS) ToggleRecord(ctx context.Context) error {
	return f.setOutput(ctx, "ToggleRecord", &f.recording, func(b bool) bool { return !b })
}

func (f *fakeOBS) RecordActive(ctx context.Context) (bool, error) {
	if err := f.enter(ctx, "GetRecordStatus"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recording, nil
}

// obsDialer hands out fresh fakeOBS sessions and counts dials. While down is
// set every dial fails.
type obsDialer struct {
	mu       sync.Mutex
	down     bool
	dials    int
	sessions []*fakeOBS
	prepare  func(*fakeOBS)
}

func (d *obsDialer) dial(ctx context.Context) (OBSClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.down {
		return nil, errors.New("connection refused")
	}
	f := newFakeOBS()
	if d.prepare != nil {
		d.prepare(f)
	}
	d.sessions = append(d.sessions, f)
	return f, nil
}

func (d *obsDialer) setDown(down bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = down
}

func (d *obsDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *obsDialer) last() *fakeOBS {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[len(d.sessions)-1]
}

// fakeVTS is an in-memory VTSClient.
type fakeVTS struct {
	mu          sync.Mutex
	expressions []vts.Expression
	models      []vts.Model
	hotkeys     []vts.Hotkey
	loaded      string
	triggered   []string
	moved       []vts.Move
	closed      bool
}

func newFakeVTS() *fakeVTS {
	return &fakeVTS{
		expressions: []vts.Expression{{Name: "Smile", File: "smile.exp3.json"}},
		models: []vts.Model{
			{ModelName: "Akari", ModelID: "akari-id", ModelLoaded: true},
			{ModelName: "Hiyori", ModelID: "hiyori-id"},
		},
		hotkeys: []vts.Hotkey{{Name: "Wave", HotkeyID: "hk-wave"}},
		loaded:  "akari-id",
	}
}

func (f *fakeVTS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeVTS) Version(context.Context) (string, error) { return "1.28.15", nil }

func (f *fakeVTS) CurrentModel(context.Context) (vts.Model, vts.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.models {
		if m.ModelID == f.loaded {
			return m, vts.Position{PositionX: 0.5, PositionY: -0.5, Rotation: 10, Size: -20}, nil
		}
	}
	return vts.Model{}, vts.Position{}, nil
}

func (f *fakeVTS) AvailableModels(context.Context) ([]vts.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vts.Model(nil), f.models...), nil
}

func (f *fakeVTS) LoadModel(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.models {
		if m.ModelID == id {
			f.loaded = id
			return nil
		}
	}
	return &vts.APIError{ErrorID: 153, Message: "No model with that ID found."}
}

func (f *fakeVTS) Expressions(_ context.Context, file string) ([]vts.Expression, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []vts.Expression
	for _, e := range f.expressions {
		if file == "" || e.File == file {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeVTS) SetExpression(_ context.Context, file string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.expressions {
		if f.expressions[i].File == file {
			f.expressions[i].Active = active
			return nil
		}
	}
	return &vts.APIError{ErrorID: 452, Message: "No expression with that file found."}
}

func (f *fakeVTS) active(file string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.expressions {
		if e.File == file {
			return e.Active
		}
	}
	return false
}

func (f *fakeVTS) Hotkeys(context.Context) ([]vts.Hotkey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vts.Hotkey(nil), f.hotkeys...), nil
}

func (f *fakeVTS) TriggerHotkey(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggered = append(f.triggered, id)
	return nil
}

func (f *fakeVTS) MoveModel(_ context.Context, m vts.Move) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moved = append(f.moved, m)
	return nil
}

// recordingObserver captures observer callbacks.
type recordingObserver struct {
	mu         sync.Mutex
	connects   []error
	dispatched []string
}

func (o *recordingObserver) ConnectAttempt(_ Type, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connects = append(o.connects, err)
}

func (o *recordingObserver) Dispatched(t Type, op string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	result := "ok"
	if err != nil {
		result = "error"
	}
	o.dispatched = append(o.dispatched, string(t)+"/"+op+"/"+result)
}
