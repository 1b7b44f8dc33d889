package cache

import (
	"bytes"
	"encoding/gob"

	"github.com/quaero-labs/corequaero/internal/model"
)

// encodeResponse/decodeResponse gob-encode a Response for storage as L1
// LRU bytes, so L1 and L2 share one on-disk/in-memory representation.
func encodeResponse(resp *model.Response) ([]byte, bool) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func decodeResponse(raw []byte, resp *model.Response) bool {
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(resp); err != nil {
		return false
	}
	return true
}
