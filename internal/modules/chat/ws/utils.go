package ws

import (
	"encoding/json"
	"log/slog"
	"reflect"
)

// MarshalPayloadToRawMessage returns nil for a nil payload and an error object when marshalling fails.
func MarshalPayloadToRawMessage(payload interface{}, log *slog.Logger, opName string) json.RawMessage {
	if payload == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal websocket payload", "op", opName, "error", err, "payload_type", getType(payload))
		return json.RawMessage(`{"error_message":"internal_payload_marshal_error"}`)
	}
	return raw
}

func getType(i interface{}) string {
	if t := reflect.TypeOf(i); t.Kind() == reflect.Ptr {
		return "*" + t.Elem().Name()
	} else {
		return t.Name()
	}
}
