package entris

// Event is something observers of a Game are told about.
type Event interface {
	gameEvent()
}

// LinesCleared is emitted after complete rows were removed.
type LinesCleared struct {
	Lines int
}

func (LinesCleared) gameEvent() {}

// RareShape is emitted when the rare shape spawns.
type RareShape struct{}

func (RareShape) gameEvent() {}

// StateChanged is emitted on every session state transition.
type StateChanged struct {
	From State
	To   State
}

func (StateChanged) gameEvent() {}

// Observer receives game events. Notify is called without the game lock
// held, so observers may call back into the game.
type Observer interface {
	Notify(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) { f(e) }
