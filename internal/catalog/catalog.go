package catalog

import (
	"fmt"
	"sort"
	"sync"
)

// Command IDs recovered from captures so far. The list is incomplete; IDs
// not listed here decode as raw payloads.
const (
	CmdHeartbeat          uint8 = 0x01
	CmdEnterTeachingMode  uint8 = 0x10
	CmdExitTeachingMode   uint8 = 0x11
	CmdRecordToggle       uint8 = 0x12
	CmdSaveAction         uint8 = 0x13
	CmdPlayAction         uint8 = 0x14
	CmdDeleteAction       uint8 = 0x15
	CmdRenameAction       uint8 = 0x16
	CmdActionListQuery    uint8 = 0x19
	CmdActionListResponse uint8 = 0x1A
)

// Schema describes how to interpret the payload of one command.
type Schema struct {
	ID    uint8
	Name  string
	Shape Shape
}

// EncryptedFields is a shortcut for Shape.EncryptedFields.
func (s Schema) EncryptedFields() []Field {
	return s.Shape.EncryptedFields()
}

// Field returns the encrypted field with the given name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.EncryptedFields() {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var builtin = []Schema{
	{ID: CmdHeartbeat, Name: "heartbeat", Shape: ShapeEmpty},
	{ID: CmdEnterTeachingMode, Name: "enter_teaching_mode", Shape: ShapeEmpty},
	{ID: CmdExitTeachingMode, Name: "exit_teaching_mode", Shape: ShapeEmpty},
	{ID: CmdRecordToggle, Name: "record_toggle", Shape: ShapeRaw},
	{ID: CmdSaveAction, Name: "save_action", Shape: ShapeFixedField},
	{ID: CmdPlayAction, Name: "play_action", Shape: ShapeFixedField},
	{ID: CmdDeleteAction, Name: "delete_action", Shape: ShapeFixedField},
	{ID: CmdRenameAction, Name: "rename_action", Shape: ShapeRenamePair},
	{ID: CmdActionListQuery, Name: "action_list_query", Shape: ShapeEmpty},
	{ID: CmdActionListResponse, Name: "action_list_response", Shape: ShapeActionList},
}

// Catalog is an immutable command table.
type Catalog struct {
	schemas map[uint8]Schema
}

// New builds a catalog from the built-in table plus extra entries. Extra
// entries replace built-in ones with the same ID.
func New(extra ...Schema) *Catalog {
	c := &Catalog{schemas: make(map[uint8]Schema, len(builtin)+len(extra))}
	for _, s := range builtin {
		c.schemas[s.ID] = s
	}
	for _, s := range extra {
		if s.Name == "" {
			s.Name = unknownName(s.ID)
		}
		c.schemas[s.ID] = s
	}
	return c
}

var defaultCatalog = sync.OnceValue(func() *Catalog { return New() })

// Default returns the process-wide built-in catalog.
func Default() *Catalog {
	return defaultCatalog()
}

// Lookup never fails: unknown IDs map to a raw schema so unseen commands
// are carried through verbatim.
func (c *Catalog) Lookup(id uint8) Schema {
	if s, ok := c.schemas[id]; ok {
		return s
	}
	return Schema{ID: id, Name: unknownName(id), Shape: ShapeRaw}
}

// Known reports whether id has a catalog entry.
func (c *Catalog) Known(id uint8) bool {
	_, ok := c.schemas[id]
	return ok
}

// Schemas returns every entry sorted by ID.
func (c *Catalog) Schemas() []Schema {
	out := make([]Schema, 0, len(c.schemas))
	for _, s := range c.schemas {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByName finds a schema by its human name.
func (c *Catalog) ByName(name string) (Schema, bool) {
	for _, s := range c.schemas {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

func unknownName(id uint8) string {
	return fmt.Sprintf("unknown_0x%02X", id)
}
