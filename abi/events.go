package abi

// EventType discriminates the closed event set carried through the process
// payload queues.
type EventType uint16

const (
	EventNoteOn EventType = iota
	EventNoteOff
	EventParamValue
)

func (t EventType) String() string {
	switch t {
	case EventNoteOn:
		return "note-on"
	case EventNoteOff:
		return "note-off"
	case EventParamValue:
		return "param-value"
	}
	return "unknown"
}

// Event is one timestamped event. Time is in samples, relative to the start
// of the current process cycle. Note fields are meaningful for the note
// event types, ParamID/ParamValue for EventParamValue.
type Event struct {
	Time uint32
	Type EventType

	PortIndex int16
	Channel   int16
	Key       int16
	Velocity  float64

	ParamID    uint32
	ParamValue float64
}

// InputEvents is the read handle over the ordered input event queue of one
// process cycle.
type InputEvents interface {
	Len() uint32
	// At returns the event at index i; ok is false when i is out of range.
	At(i uint32) (ev Event, ok bool)
}

// OutputEvents is the write handle over the output event queue of one
// process cycle.
type OutputEvents interface {
	// TryPush appends ev and reports whether the queue accepted it.
	TryPush(ev Event) bool
}

// EventList is a slice-backed event queue implementing both queue handles.
// Events must be pushed in nondecreasing Time order; the list does not sort.
type EventList struct {
	events []Event
}

// NewEventList returns a list with room for capacity events before growing.
func NewEventList(capacity int) *EventList {
	return &EventList{events: make([]Event, 0, capacity)}
}

func (l *EventList) Len() uint32 {
	return uint32(len(l.events))
}

func (l *EventList) At(i uint32) (Event, bool) {
	if i >= uint32(len(l.events)) {
		return Event{}, false
	}
	return l.events[i], true
}

func (l *EventList) TryPush(ev Event) bool {
	l.events = append(l.events, ev)
	return true
}

// Clear empties the list, keeping its backing storage.
func (l *EventList) Clear() {
	l.events = l.events[:0]
}

// Events returns the backing slice; valid until the next Push or Clear.
func (l *EventList) Events() []Event {
	return l.events
}
