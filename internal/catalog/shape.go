package catalog

import (
	"fmt"
	"strings"
)

// NameFieldLen is the width of every encrypted name field observed so far.
const NameFieldLen = 32

// Shape identifies a payload layout.
type Shape int

const (
	ShapeRaw Shape = iota
	ShapeEmpty
	ShapeActionList
	ShapeFixedField
	ShapeRenamePair
)

var shapeNames = map[Shape]string{
	ShapeRaw:        "raw",
	ShapeEmpty:      "empty",
	ShapeActionList: "action_list",
	ShapeFixedField: "fixed_field",
	ShapeRenamePair: "rename_pair",
}

func (s Shape) String() string {
	if name, ok := shapeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("shape(%d)", int(s))
}

// ParseShape accepts the names used in config files.
func ParseShape(name string) (Shape, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for shape, n := range shapeNames {
		if n == key {
			return shape, nil
		}
	}
	return ShapeRaw, fmt.Errorf("unknown payload shape %q", name)
}

// Field locates one encrypted field inside a payload.
type Field struct {
	Name   string
	Offset int // relative to payload byte 0
	Width  int
}

// End returns the payload offset just past the field.
func (f Field) End() int {
	return f.Offset + f.Width
}

// EncryptedFields returns the encrypted field layout of the shape, in
// payload order. Shapes without encrypted fields return nil.
func (s Shape) EncryptedFields() []Field {
	switch s {
	case ShapeFixedField:
		return []Field{{Name: "name", Offset: 0, Width: NameFieldLen}}
	case ShapeRenamePair:
		return []Field{
			{Name: "old_name", Offset: 0, Width: NameFieldLen},
			{Name: "new_name", Offset: NameFieldLen, Width: NameFieldLen},
		}
	default:
		return nil
	}
}

// MinPayloadLen is the smallest payload the shape can be decoded from.
func (s Shape) MinPayloadLen() int {
	switch s {
	case ShapeActionList:
		return 2
	case ShapeFixedField:
		return NameFieldLen
	case ShapeRenamePair:
		return 2 * NameFieldLen
	default:
		return 0
	}
}
