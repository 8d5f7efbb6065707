package payload

import (
	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/codec"
)

// BuildActionList encodes an action list response payload.
func BuildActionList(actions []ActionRecord) []byte {
	buf := codec.AppendUint16(nil, uint16(len(actions)))
	for _, a := range actions {
		buf = append(buf, codec.PadString(a.Name, ActionNameLen)...)
		buf = codec.AppendUint32(buf, a.Metadata)
	}
	return buf
}

// BuildNameFields encodes NUL-padded name fields back to back, each XORed
// with key when key is non-nil.
func BuildNameFields(key []byte, names ...string) []byte {
	var buf []byte
	for _, name := range names {
		field := codec.PadString(name, catalog.NameFieldLen)
		if key != nil {
			field = codec.ApplyKey(field, key)
		}
		buf = append(buf, field...)
	}
	return buf
}
