package features

import (
	"bytes"
	"encoding/json"

	"github.com/valyala/bytebufferpool"
)

// FilterJSON filters an encoded JSON document. Bodies that do not decode
// are returned unchanged.
func FilterJSON(body []byte, s Set) []byte {
	if len(bytes.TrimSpace(body)) == 0 {
		return body
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return body
	}
	if dec.More() {
		return body
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Filter(tree, s)); err != nil {
		return body
	}
	out := bytes.TrimSuffix(buf.B, []byte("\n"))
	return append([]byte(nil), out...)
}
