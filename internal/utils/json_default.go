//go:build !sonic

package utils

import (
	"io"

	"github.com/goccy/go-json"
)

var (
	JSONMarshal       = json.Marshal
	JSONMarshalIndent = json.MarshalIndent
	JSONUnmarshal     = json.Unmarshal
)

// EncodeJSON writes v as one line of JSON.
func EncodeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
