// Package storage persists kglite graphs: a framed snapshot codec with
// selectable serialization (gob or msgpack) and a BadgerDB-backed store for
// directory artifacts.
package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer selects the payload encoding for snapshots.
type Serializer string

const (
	SerializerGob     Serializer = "gob"
	SerializerMsgpack Serializer = "msgpack"
)

const (
	frameMagic   = "\xffKGL"
	frameVersion = byte(1)

	serializerIDGob     = byte(1)
	serializerIDMsgpack = byte(2)
)

// init registers property value types with gob. gob needs concrete type
// registration for interface{} values inside maps.
func init() {
	gob.Register(int(0))
	gob.Register(int32(0))
	gob.Register(int64(0))
	gob.Register(float32(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(true)
	gob.Register(time.Time{})
	gob.Register([]interface{}{})
	gob.Register([]string{})
	gob.Register([]float64{})
	gob.Register(map[string]interface{}{})
}

// ParseSerializer normalizes and validates serializer input.
func ParseSerializer(value string) (Serializer, error) {
	s := Serializer(strings.ToLower(strings.TrimSpace(value)))
	switch s {
	case SerializerGob, SerializerMsgpack:
		return s, nil
	}
	return "", fmt.Errorf("unsupported serializer: %q", value)
}

func serializerID(s Serializer) (byte, error) {
	switch s {
	case SerializerGob:
		return serializerIDGob, nil
	case SerializerMsgpack:
		return serializerIDMsgpack, nil
	}
	return 0, fmt.Errorf("unsupported serializer: %q", string(s))
}

// encodeFramed marshals value with the chosen serializer behind a
// magic + version + serializer-id header, so readers self-detect the
// payload format.
func encodeFramed(value any, s Serializer) ([]byte, error) {
	id, err := serializerID(s)
	if err != nil {
		return nil, err
	}
	var payload []byte
	switch s {
	case SerializerGob:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(value); err != nil {
			return nil, fmt.Errorf("gob encode: %w", err)
		}
		payload = buf.Bytes()
	case SerializerMsgpack:
		payload, err = msgpack.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("msgpack encode: %w", err)
		}
	}

	out := make([]byte, 0, len(frameMagic)+2+len(payload))
	out = append(out, frameMagic...)
	out = append(out, frameVersion, id)
	out = append(out, payload...)
	return out, nil
}

// decodeFramed unmarshals a framed payload into value, detecting the
// serializer from the header.
func decodeFramed(data []byte, value any) error {
	if len(data) < len(frameMagic)+2 || string(data[:len(frameMagic)]) != frameMagic {
		return fmt.Errorf("not a kglite artifact: bad magic")
	}
	if v := data[len(frameMagic)]; v != frameVersion {
		return fmt.Errorf("unsupported artifact version %d", v)
	}
	payload := data[len(frameMagic)+2:]
	switch data[len(frameMagic)+1] {
	case serializerIDGob:
		if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(value); err != nil {
			return fmt.Errorf("gob decode: %w", err)
		}
		return nil
	case serializerIDMsgpack:
		if err := msgpack.Unmarshal(payload, value); err != nil {
			return fmt.Errorf("msgpack decode: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown serializer id %d", data[len(frameMagic)+1])
}
