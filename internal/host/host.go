// Package host declares the shapes the agent consumes from a host binding.
// A binding adapts the running game server to these interfaces; the agent
// never reaches into the host directly.
package host

// PersistentData is an object's opaque, save-surviving key/value slot.
type PersistentData interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// Object is a transferable in-game object (an item stack).
type Object interface {
	TypeID() string
	Count() int
	ContentHash() string
	// PersistentData returns nil when the object has no writable slot.
	PersistentData() PersistentData
}

// Actor is whoever moves objects: a player or an automation block.
type Actor interface {
	ID() string
	Name() string
	// Location is a host-formatted position, e.g. "world:12,64,-3".
	Location() string
}

// Automated is implemented by actors that are machines rather than players,
// such as hoppers moving items between containers.
type Automated interface {
	Automated() bool
}

// Source names where an object came from for an acquisition or transfer.
type Source struct {
	Type string
	Ref  string
}

// CommandSource is the invoker of a command.
type CommandSource interface {
	// ActorID is empty for non-player sources such as the console.
	ActorID() string
	Name() string
	PermissionLevel() int
	// WithPermissionLevel returns a copy of the source holding level.
	WithPermissionLevel(level int) CommandSource
}

// MapData is a PersistentData backed by a plain map. Host bindings whose
// objects already expose a string map can wrap it directly.
type MapData map[string]string

func (m MapData) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapData) Set(key, value string) {
	m[key] = value
}
