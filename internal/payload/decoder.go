package payload

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/codec"
	"github.com/tonylturner/teachcap/internal/frame"
)

const (
	ActionNameLen   = 32
	ActionRecordLen = ActionNameLen + 4
)

// ErrLengthMismatch means the payload is too short for the fixed part of its shape.
var ErrLengthMismatch = errors.New("payload length mismatch")

// ActionRecord is one entry of an action list response.
type ActionRecord struct {
	Name     string
	Metadata uint32 // meaning unknown
}

// Field is one encrypted payload field.
type Field struct {
	Name      string
	Offset    int // relative to payload byte 0
	Cipher    []byte
	Plain     []byte // nil unless a key was applied
	Decrypted bool
}

// Bytes returns the decrypted bytes when available, otherwise the ciphertext.
func (f Field) Bytes() []byte {
	if f.Decrypted {
		return f.Plain
	}
	return f.Cipher
}

// Text renders the field for reports.
func (f Field) Text() string {
	return FieldString(f.Bytes())
}

// Decoded is the structured view of one frame's payload.
type Decoded struct {
	Schema       catalog.Schema
	Sequence     uint16
	ActionCount  int // declared count, may exceed len(Actions)
	Actions      []ActionRecord
	SizeMismatch bool
	Fields       []Field
	Raw          []byte
}

// Decoder turns frames into structured payloads using a command catalog.
type Decoder struct {
	catalog *catalog.Catalog
}

// NewDecoder creates a decoder. A nil catalog uses catalog.Default().
func NewDecoder(c *catalog.Catalog) *Decoder {
	if c == nil {
		c = catalog.Default()
	}
	return &Decoder{catalog: c}
}

// Catalog returns the table the decoder resolves commands with.
func (d *Decoder) Catalog() *catalog.Catalog {
	return d.catalog
}

// Decode interprets f according to its command schema. key, when non-nil, is
// XORed over every encrypted field; otherwise fields are returned as ciphertext.
func (d *Decoder) Decode(f frame.Frame, key []byte) (Decoded, error) {
	schema := d.catalog.Lookup(f.CommandID)
	out := Decoded{
		Schema:   schema,
		Sequence: f.Sequence,
		Raw:      f.Payload,
	}

	if len(f.Payload) < schema.Shape.MinPayloadLen() {
		return out, fmt.Errorf("%w: %s needs %d payload bytes, got %d",
			ErrLengthMismatch, schema.Name, schema.Shape.MinPayloadLen(), len(f.Payload))
	}

	switch schema.Shape {
	case catalog.ShapeActionList:
		decodeActionList(f, &out)
	case catalog.ShapeFixedField, catalog.ShapeRenamePair:
		out.Fields = decodeFields(f.Payload, schema.EncryptedFields(), key)
	}
	return out, nil
}

func decodeActionList(f frame.Frame, out *Decoded) {
	count, _ := codec.Uint16At(f.Payload, 0)
	out.ActionCount = int(count)

	want := frame.HeaderLen + frame.LengthLen + 2 + int(count)*ActionRecordLen + frame.TrailerLen
	out.SizeMismatch = want != f.Len()

	for i := 0; i < int(count); i++ {
		off := 2 + i*ActionRecordLen
		if off+ActionRecordLen > len(f.Payload) {
			break
		}
		rec := f.Payload[off : off+ActionRecordLen]
		meta, _ := codec.Uint32At(rec, ActionNameLen)
		out.Actions = append(out.Actions, ActionRecord{
			Name:     strings.ToValidUTF8(string(codec.CutNul(rec[:ActionNameLen])), "�"),
			Metadata: meta,
		})
	}
}

func decodeFields(payload []byte, layout []catalog.Field, key []byte) []Field {
	fields := make([]Field, 0, len(layout))
	for _, lf := range layout {
		cipher := make([]byte, lf.Width)
		copy(cipher, payload[lf.Offset:lf.End()])
		field := Field{Name: lf.Name, Offset: lf.Offset, Cipher: cipher}
		if key != nil {
			field.Plain = codec.ApplyKey(cipher, key)
			field.Decrypted = true
		}
		fields = append(fields, field)
	}
	return fields
}

// FieldString trims NUL padding and renders a name field as text. Control
// bytes and, for non-UTF-8 input, every non-ASCII byte become '.'.
func FieldString(b []byte) string {
	b = codec.TrimNul(b)
	if utf8.Valid(b) {
		return strings.Map(func(r rune) rune {
			if r < 32 || r == 127 {
				return '.'
			}
			return r
		}, string(b))
	}
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 32 && c <= 126 {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
