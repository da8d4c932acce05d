package plugin

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// maxDelaySeconds is the first delay that no longer fits a time.Duration.
const maxDelaySeconds = float64(math.MaxInt64) / float64(time.Second)

// Action is a command for exactly one plugin type. The set of implementations
// is closed: OBSAction, VTSAction and GeneralAction.
type Action interface {
	RequiredType() Type
	String() string
	isAction()
}

// Query reads a value from exactly one plugin type. Implementations are
// OBSQuery and VTSQuery.
type Query interface {
	RequiredType() Type
	String() string
	isQuery()
}

// OBSActionKind names an OBS command.
type OBSActionKind string

const (
	OBSProgramSceneChange OBSActionKind = "ProgramSceneChange"
	OBSStartStream        OBSActionKind = "StartStream"
	OBSStopStream         OBSActionKind = "StopStream"
	OBSToggleStream       OBSActionKind = "ToggleStream"
	OBSStartRecord        OBSActionKind = "StartRecord"
	OBSStopRecord         OBSActionKind = "StopRecord"
	OBSToggleRecord       OBSActionKind = "ToggleRecord"
	OBSCheckConnection    OBSActionKind = "CheckConnection"
)

var obsActionKinds = []OBSActionKind{
	OBSProgramSceneChange, OBSStartStream, OBSStopStream, OBSToggleStream,
	OBSStartRecord, OBSStopRecord, OBSToggleRecord, OBSCheckConnection,
}

// OBSAction is a command for OBS Studio. Scene is only used by
// ProgramSceneChange.
type OBSAction struct {
	Kind  OBSActionKind
	Scene string
}

func (OBSAction) RequiredType() Type { return TypeOBS }
func (OBSAction) isAction()          {}

func (a OBSAction) String() string {
	if a.Kind == OBSProgramSceneChange {
		return fmt.Sprintf("OBS-%s(%s)", a.Kind, a.Scene)
	}
	return fmt.Sprintf("OBS-%s", a.Kind)
}

// VTSActionKind names a VTube Studio command.
type VTSActionKind string

const (
	VTSToggleExpression  VTSActionKind = "ToggleExpression"
	VTSEnableExpression  VTSActionKind = "EnableExpression"
	VTSDisableExpression VTSActionKind = "DisableExpression"
	VTSLoadModel         VTSActionKind = "LoadModel"
	VTSMoveModel         VTSActionKind = "MoveModel"
	VTSTriggerHotkey     VTSActionKind = "TriggerHotkey"
	VTSCheckConnection   VTSActionKind = "CheckConnection"
)

var vtsActionKinds = []VTSActionKind{
	VTSToggleExpression, VTSEnableExpression, VTSDisableExpression,
	VTSLoadModel, VTSMoveModel, VTSTriggerHotkey, VTSCheckConnection,
}

// MoveModel positions the active model. Coordinates follow the VTube Studio
// convention: -1..1 across the window, rotation in degrees, size -100..100.
type MoveModel struct {
	X        float64 `json:"x" mapstructure:"x"`
	Y        float64 `json:"y" mapstructure:"y"`
	Rotation float64 `json:"rotation" mapstructure:"rotation"`
	Size     float64 `json:"size" mapstructure:"size"`
	TimeSec  float64 `json:"time_sec" mapstructure:"time_sec"`
}

// VTSAction is a command for VTube Studio. Param holds the expression file,
// model ID or hotkey ID depending on Kind; Move is only used by MoveModel.
type VTSAction struct {
	Kind  VTSActionKind
	Param string
	Move  MoveModel
}

func (VTSAction) RequiredType() Type { return TypeVTS }
func (VTSAction) isAction()          {}

func (a VTSAction) String() string {
	switch a.Kind {
	case VTSCheckConnection:
		return fmt.Sprintf("VTS-%s", a.Kind)
	case VTSMoveModel:
		m := a.Move
		return fmt.Sprintf("VTS-%s(x=%g y=%g rot=%g size=%g in %gs)", a.Kind, m.X, m.Y, m.Rotation, m.Size, m.TimeSec)
	default:
		return fmt.Sprintf("VTS-%s(%s)", a.Kind, a.Param)
	}
}

// GeneralActionKind names a local command that needs no connection.
type GeneralActionKind string

const (
	GeneralDelay      GeneralActionKind = "Delay"
	GeneralRunCommand GeneralActionKind = "RunCommand"
)

var generalActionKinds = []GeneralActionKind{GeneralDelay, GeneralRunCommand}

// Command is an external program started by RunCommand.
type Command struct {
	Program string   `mapstructure:"program"`
	Args    []string `mapstructure:"args"`
	Dir     string   `mapstructure:"dir"`
}

// GeneralAction is a local command. Delay is in seconds.
type GeneralAction struct {
	Kind    GeneralActionKind
	Delay   float64
	Command Command
}

func (GeneralAction) RequiredType() Type { return TypeGeneral }
func (GeneralAction) isAction()          {}

func (a GeneralAction) String() string {
	if a.Kind == GeneralDelay {
		return fmt.Sprintf("General-Delay(%gs)", a.Delay)
	}
	return fmt.Sprintf("General-RunCommand(%s)", strings.TrimSpace(a.Command.Program+" "+strings.Join(a.Command.Args, " ")))
}

// OBSQueryKind names an OBS read.
type OBSQueryKind string

const (
	OBSCurrentProgramScene OBSQueryKind = "CurrentProgramScene"
	OBSIsStreaming         OBSQueryKind = "IsStreaming"
	OBSIsRecording         OBSQueryKind = "IsRecording"
	OBSVersion             OBSQueryKind = "Version"
)

var obsQueryKinds = []OBSQueryKind{OBSCurrentProgramScene, OBSIsStreaming, OBSIsRecording, OBSVersion}

// OBSQuery reads a value from OBS Studio.
type OBSQuery struct {
	Kind OBSQueryKind
}

func (OBSQuery) RequiredType() Type { return TypeOBS }
func (OBSQuery) isQuery()           {}
func (q OBSQuery) String() string   { return "OBS-" + string(q.Kind) }

// VTSQueryKind names a VTube Studio read.
type VTSQueryKind string

const (
	VTSActiveModelID   VTSQueryKind = "ActiveModelId"
	VTSActiveModelName VTSQueryKind = "ActiveModelName"
	VTSVersion         VTSQueryKind = "Version"
)

var vtsQueryKinds = []VTSQueryKind{VTSActiveModelID, VTSActiveModelName, VTSVersion}

// VTSQuery reads a value from VTube Studio.
type VTSQuery struct {
	Kind VTSQueryKind
}

func (VTSQuery) RequiredType() Type { return TypeVTS }
func (VTSQuery) isQuery()           {}
func (q VTSQuery) String() string   { return "VTS-" + string(q.Kind) }

// CloneAction returns a copy of a that shares no mutable memory with it.
func CloneAction(a Action) Action {
	if g, ok := a.(GeneralAction); ok {
		g.Command.Args = append([]string(nil), g.Command.Args...)
		return g
	}
	return a
}

func knownKind[K ~string](kinds []K, k K) bool {
	for _, known := range kinds {
		if known == k {
			return true
		}
	}
	return false
}

// Validate reports whether a is a well-formed envelope.
func Validate(a Action) error {
	switch a := a.(type) {
	case OBSAction:
		if !knownKind(obsActionKinds, a.Kind) {
			return fmt.Errorf("unsupported OBS action %q", a.Kind)
		}
		if a.Kind == OBSProgramSceneChange && a.Scene == "" {
			return fmt.Errorf("OBS %s requires a scene name", a.Kind)
		}
	case VTSAction:
		if !knownKind(vtsActionKinds, a.Kind) {
			return fmt.Errorf("unsupported VTS action %q", a.Kind)
		}
		if a.Kind != VTSCheckConnection && a.Kind != VTSMoveModel && a.Param == "" {
			return fmt.Errorf("VTS %s requires a parameter", a.Kind)
		}
	case GeneralAction:
		if !knownKind(generalActionKinds, a.Kind) {
			return fmt.Errorf("unsupported General action %q", a.Kind)
		}
		if a.Kind == GeneralDelay {
			if math.IsNaN(a.Delay) {
				return fmt.Errorf("delay must be a number")
			}
			if a.Delay < 0 {
				return fmt.Errorf("delay must not be negative, got %g", a.Delay)
			}
			if a.Delay >= maxDelaySeconds {
				return fmt.Errorf("delay %gs is too large", a.Delay)
			}
		}
		if a.Kind == GeneralRunCommand && a.Command.Program == "" {
			return fmt.Errorf("RunCommand requires a program")
		}
	case nil:
		return fmt.Errorf("missing plugin action")
	default:
		return fmt.Errorf("unsupported plugin action %T", a)
	}
	return nil
}

// ValidateQuery reports whether q is a well-formed envelope.
func ValidateQuery(q Query) error {
	switch q := q.(type) {
	case OBSQuery:
		if !knownKind(obsQueryKinds, q.Kind) {
			return fmt.Errorf("unsupported OBS query %q", q.Kind)
		}
	case VTSQuery:
		if !knownKind(vtsQueryKinds, q.Kind) {
			return fmt.Errorf("unsupported VTS query %q", q.Kind)
		}
	case nil:
		return fmt.Errorf("missing plugin query")
	default:
		return fmt.Errorf("unsupported plugin query %T", q)
	}
	return nil
}

// ActionKind returns the kind name of a, e.g. "ProgramSceneChange".
func ActionKind(a Action) string {
	switch a := a.(type) {
	case OBSAction:
		return string(a.Kind)
	case VTSAction:
		return string(a.Kind)
	case GeneralAction:
		return string(a.Kind)
	}
	return ""
}

// QueryKind returns the kind name of q, e.g. "IsStreaming".
func QueryKind(q Query) string {
	switch q := q.(type) {
	case OBSQuery:
		return string(q.Kind)
	case VTSQuery:
		return string(q.Kind)
	}
	return ""
}
