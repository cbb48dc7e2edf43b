//go:build sonic

package utils

import (
	"io"

	"github.com/bytedance/sonic"
)

var (
	JSONMarshal       = sonic.Marshal
	JSONMarshalIndent = sonic.ConfigStd.MarshalIndent
	JSONUnmarshal     = sonic.Unmarshal
)

// EncodeJSON writes v as one line of JSON.
func EncodeJSON(w io.Writer, v any) error {
	return sonic.ConfigDefault.NewEncoder(w).Encode(v)
}
