package keystream

import (
	"math/rand/v2"

	"github.com/tonylturner/teachcap/internal/catalog"
	"github.com/tonylturner/teachcap/internal/frame"
	"github.com/tonylturner/teachcap/internal/payload"
)

var actionNames = []string{
	"waist_drum_dance",
	"spin_disks",
	"hand_wave",
	"stand_up",
	"waist_spin",
	"bow",
}

func testKey(seed uint64) []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x5eed))
	key := make([]byte, catalog.NameFieldLen)
	for i := range key {
		key[i] = byte(r.IntN(256))
	}
	return key
}

func nameFrame(cmd uint8, seq uint16, key []byte, names ...string) frame.Frame {
	return frame.Frame{
		Sequence:  seq,
		CommandID: cmd,
		Payload:   payload.BuildNameFields(key, names...),
	}
}

// deleteCorpus encrypts every name with key and adds some unrelated traffic.
func deleteCorpus(key []byte, names ...string) []frame.Frame {
	corpus := []frame.Frame{{Sequence: 1, CommandID: catalog.CmdHeartbeat}}
	for i, name := range names {
		corpus = append(corpus, nameFrame(catalog.CmdDeleteAction, uint16(i+2), key, name))
	}
	return append(corpus, frame.Frame{Sequence: 99, CommandID: catalog.CmdActionListQuery})
}

func xorEach(key []byte, b byte) []byte {
	out := make([]byte, len(key))
	for i := range key {
		out[i] = key[i] ^ b
	}
	return out
}
