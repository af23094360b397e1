// Package hosttest provides in-memory host types for tests.
package hosttest

import "lattice-agent/internal/host"

// Item is an in-memory object.
type Item struct {
	Type  string
	N     int
	Hash  string
	Data  host.MapData
	NoTag bool
}

// NewItem returns an item with an empty writable data slot.
func NewItem(typeID string, count int, hash string) *Item {
	return &Item{Type: typeID, N: count, Hash: hash, Data: host.MapData{}}
}

func (i *Item) TypeID() string      { return i.Type }
func (i *Item) Count() int          { return i.N }
func (i *Item) ContentHash() string { return i.Hash }

func (i *Item) PersistentData() host.PersistentData {
	if i.NoTag || i.Data == nil {
		return nil
	}
	return i.Data
}

// Player is an in-memory actor.
type Player struct {
	UUID string
	User string
	Pos  string
}

func (p Player) ID() string       { return p.UUID }
func (p Player) Name() string     { return p.User }
func (p Player) Location() string { return p.Pos }

// Machine is an in-memory automation actor.
type Machine struct {
	Block string
	Pos   string
}

func (m Machine) ID() string       { return "block:" + m.Pos }
func (m Machine) Name() string     { return m.Block }
func (m Machine) Location() string { return m.Pos }
func (m Machine) Automated() bool  { return true }

// Chest is an in-memory storage container.
type Chest struct {
	Kind string
	Pos  string
}

func (c Chest) StorageKind() string { return c.Kind }
func (c Chest) StorageID() string   { return c.Pos }

// Source is an in-memory command source.
type Source struct {
	Actor string
	User  string
	Level int
}

func (s Source) ActorID() string      { return s.Actor }
func (s Source) Name() string         { return s.User }
func (s Source) PermissionLevel() int { return s.Level }

func (s Source) WithPermissionLevel(level int) host.CommandSource {
	s.Level = level
	return s
}
