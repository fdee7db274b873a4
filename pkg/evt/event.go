// Package evt defines the typed event vocabulary and fixed-capacity
// event buffer that carries note, automation, and transport events
// between the note source and a plugin's block callback.
package evt

// Kind identifies the payload carried by an Event.
type Kind uint8

const (
	KindNoteOn Kind = iota
	KindNoteOff
	KindNoteEnd
	KindNoteChoke
	KindParamValue
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindNoteOn:
		return "note_on"
	case KindNoteOff:
		return "note_off"
	case KindNoteEnd:
		return "note_end"
	case KindNoteChoke:
		return "note_choke"
	case KindParamValue:
		return "param_value"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// MaxInputEvents is the fixed capacity of an Event buffer (§4.1).
const MaxInputEvents = 256

// Note carries the note_on/note_off/note_end/note_choke payload.
type Note struct {
	Pitch    uint8   // 0..127
	Velocity float64 // 0..1, onset velocity for note_on, release velocity for note_off
}

// Param carries the param_value payload.
type Param struct {
	FXIndex int32 // -1 = instrument
	ParamID uint32
	Value   float64
}

// Transport carries the per-block transport record consumed by plugins.
type Transport struct {
	Tempo           float64
	BeatPosition    float64
	SecondsPosition float64
	BarPosition     float64
	TimeSigNumer    int32
	TimeSigDenom    int32
	Playing         bool
	Recording       bool
	Looping         bool
	PreRoll         bool
}

// Event is one padded, fixed-size slot. Every field is always present;
// only the fields relevant to Kind are meaningful. This mirrors the
// teacher's C-side event union (padded to the largest variant) without
// needing cgo: a flat struct is already alignment-stable and allocation
// free to copy.
type Event struct {
	Kind         Kind
	SampleOffset uint32
	Note         Note
	Param        Param
	Transport    Transport
}

// Buffer is a fixed-capacity, allocation-free event list for one block.
// Pushes beyond MaxInputEvents are dropped silently — the scheduler is
// responsible for never needing more than capacity in a single block
// (§4.1, §7).
type Buffer struct {
	events    [MaxInputEvents]Event
	n         int
	attempted int
}

// Reset clears the buffer for reuse at the start of a block.
func (b *Buffer) Reset() {
	b.n = 0
	b.attempted = 0
}

// Size returns the number of events currently stored.
func (b *Buffer) Size() int {
	return b.n
}

// Attempted returns the number of push calls made since the last Reset,
// including ones dropped because the buffer was already at capacity.
// This is the real "attempted" count for Diagnostics.Observe — Size
// alone can never exceed capacity, so it cannot reveal a drop on its
// own (§7 event-buffer pressure diagnostics).
func (b *Buffer) Attempted() int {
	return b.attempted
}

// Get returns a pointer to the event at index, or nil if out of range.
func (b *Buffer) Get(index int) *Event {
	if index < 0 || index >= b.n {
		return nil
	}
	return &b.events[index]
}

// PushNoteOn appends a note_on event. Returns false if the buffer is full.
func (b *Buffer) PushNoteOn(sampleOffset uint32, pitch uint8, velocity float64) bool {
	return b.push(Event{Kind: KindNoteOn, SampleOffset: sampleOffset, Note: Note{Pitch: pitch, Velocity: velocity}})
}

// PushNoteOff appends a note_off event. Returns false if the buffer is full.
func (b *Buffer) PushNoteOff(sampleOffset uint32, pitch uint8, velocity float64) bool {
	return b.push(Event{Kind: KindNoteOff, SampleOffset: sampleOffset, Note: Note{Pitch: pitch, Velocity: velocity}})
}

// PushNoteEnd appends a note_end event, signalling the voice has fully decayed.
func (b *Buffer) PushNoteEnd(sampleOffset uint32, pitch uint8) bool {
	return b.push(Event{Kind: KindNoteEnd, SampleOffset: sampleOffset, Note: Note{Pitch: pitch}})
}

// PushNoteChoke appends a note_choke event, cutting a voice immediately.
func (b *Buffer) PushNoteChoke(sampleOffset uint32, pitch uint8) bool {
	return b.push(Event{Kind: KindNoteChoke, SampleOffset: sampleOffset, Note: Note{Pitch: pitch}})
}

// PushParamValue appends a param_value event.
func (b *Buffer) PushParamValue(sampleOffset uint32, fxIndex int32, paramID uint32, value float64) bool {
	return b.push(Event{Kind: KindParamValue, SampleOffset: sampleOffset, Param: Param{FXIndex: fxIndex, ParamID: paramID, Value: value}})
}

// PushTransport appends a transport event.
func (b *Buffer) PushTransport(sampleOffset uint32, t Transport) bool {
	return b.push(Event{Kind: KindTransport, SampleOffset: sampleOffset, Transport: t})
}

func (b *Buffer) push(e Event) bool {
	b.attempted++
	if b.n >= MaxInputEvents {
		return false
	}
	b.events[b.n] = e
	b.n++
	return true
}

// SortBySampleOffset orders events by sample offset within the block.
// Plugins are expected to tolerate unsorted offsets (§4.3); this is a
// quality-of-service improvement implementations MAY perform. It is a
// stable insertion sort since blocks rarely carry more than a handful
// of events per track and the buffer is allocation-free by design.
func (b *Buffer) SortBySampleOffset() {
	for i := 1; i < b.n; i++ {
		key := b.events[i]
		j := i - 1
		for j >= 0 && b.events[j].SampleOffset > key.SampleOffset {
			b.events[j+1] = b.events[j]
			j--
		}
		b.events[j+1] = key
	}
}
