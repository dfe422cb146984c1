package models

import (
	"encoding/base64"

	"github.com/rohanthewiz/serr"
	"github.com/vmihailenco/msgpack/v5"
)

// Hybrid JSON/msgpack value transport. Only the item value travels as
// msgpack (base64-wrapped for JSON safety); the envelope stays plain JSON
// so ids and versions remain readable in logs and captures. The client
// signals the mode with an X-Body-Encoding: msgpack request header.

// EncodeMsgpackValue encodes a value string to base64(msgpack).
// Nil or empty input yields the empty string.
func EncodeMsgpackValue(val *string) (string, error) {
	if val == nil || *val == "" {
		return "", nil
	}
	raw, err := msgpack.Marshal(*val)
	if err != nil {
		return "", serr.Wrap(err, "failed to msgpack encode value")
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// DecodeMsgpackValue decodes base64(msgpack) back to a value string.
// Empty input yields nil.
func DecodeMsgpackValue(encoded string) (*string, error) {
	if encoded == "" {
		return nil, nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, serr.Wrap(err, "failed to decode base64 value")
	}
	var val string
	if err := msgpack.Unmarshal(raw, &val); err != nil {
		return nil, serr.Wrap(err, "failed to unmarshal msgpack value")
	}
	return &val, nil
}
