package experience

// EventKind names a session notification.
type EventKind string

const (
	EventScene    EventKind = "scene"    // From, To: scene ids
	EventBoot     EventKind = "boot"     // To: boot state
	EventStage    EventKind = "stage"    // From, To: tear stages
	EventPulse    EventKind = "pulse"    // Key: counter, Value: count
	EventPhase    EventKind = "phase"    // Key: counter, To: phase
	EventLine     EventKind = "line"     // Key: counter, Value: line
	EventAnswer   EventKind = "answer"   // Key: message id, Value: answer
	EventResponse EventKind = "response" // Key: storage key, Value: answer
	EventUndo     EventKind = "undo"     // Key: entry label
	EventAssets   EventKind = "assets"   // Value: "complete" or "soft"
)

// Event is a notification emitted by a session. Unused fields are empty.
type Event struct {
	Kind  EventKind
	From  string
	To    string
	Key   string
	Value string
}

// OnEvent registers fn to receive every session notification.
func (s *Session) OnEvent(fn func(Event)) {
	s.observers = append(s.observers, fn)
}

func (s *Session) emit(ev Event) {
	for _, fn := range s.observers {
		fn(ev)
	}
}
