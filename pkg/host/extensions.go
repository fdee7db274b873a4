package host

// GUIExtension is the stub resize/show/hide surface (§4.10). GUI
// presentation is out of scope for this module (spec.md §1
// Non-goals); these are no-op hooks a future windowing layer can
// populate without changing the capability-query shape plugins see.
type GUIExtension interface {
	Resize(width, height uint32) bool
	Show() bool
	Hide() bool
}

// UndoExtension is the stub undo/redo surface (§4.10).
type UndoExtension interface {
	BeginChange()
	ChangeMade(name string)
	CancelChange()
	RequestUndo()
	RequestRedo()
}

// ParamsSink receives the host-side notifications a plugin posts when
// its parameter set changes (§4.10: "a params rescan/clear/flush
// notification sink").
type ParamsSink interface {
	Rescan(flags uint32)
	Clear(paramID uint32, flags uint32)
	RequestFlush()
}

// PresetLoadSink receives the result of an asynchronous preset load
// (§4.10: "a preset-load result sink").
type PresetLoadSink interface {
	PresetLoaded(locationKind uint32, location, loadKey string)
	PresetLoadFailed(locationKind uint32, location, loadKey string, err error)
}

// NopGUI, NopUndo, NopParams, and NopPreset satisfy the stub
// extensions with no-op bodies, so a Host can be constructed with
// every extension wired even when no concrete implementation exists
// yet for a given deployment.
type NopGUI struct{}

func (NopGUI) Resize(uint32, uint32) bool { return false }
func (NopGUI) Show() bool                 { return false }
func (NopGUI) Hide() bool                 { return false }

type NopUndo struct{}

func (NopUndo) BeginChange()      {}
func (NopUndo) ChangeMade(string) {}
func (NopUndo) CancelChange()     {}
func (NopUndo) RequestUndo()      {}
func (NopUndo) RequestRedo()      {}

type NopParams struct{}

func (NopParams) Rescan(uint32)        {}
func (NopParams) Clear(uint32, uint32) {}
func (NopParams) RequestFlush()        {}

type NopPreset struct{}

func (NopPreset) PresetLoaded(uint32, string, string)            {}
func (NopPreset) PresetLoadFailed(uint32, string, string, error) {}
