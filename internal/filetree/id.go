package filetree

import (
	"crypto/rand"
	"encoding/hex"

	"pkt.systems/verkstad/schema"
)

func newNodeID() schema.NodeID {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "node-unknown"
	}
	return schema.NodeID(hex.EncodeToString(buf[:]))
}
