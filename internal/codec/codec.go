// Package codec converts stored conversation values to session records and back.
//
// The chat engine stores each record as a JSON string whose content is the record's
// own JSON document, so decoding is two independent steps:
//
//	stored value (JSON string) -> record text -> SessionRecord
//
// Each step reports its own *historytypes.DecodeError stage.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"chathistory/pkg/historytypes"
)

// Unwrap decodes the outer layer of a stored value into the record text.
func Unwrap(raw json.RawMessage) (string, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", &historytypes.DecodeError{Stage: historytypes.StageEnvelope, Err: err}
	}
	return text, nil
}

// Parse decodes record text into a session record.
func Parse(text string) (*historytypes.SessionRecord, error) {
	var record historytypes.SessionRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, &historytypes.DecodeError{Stage: historytypes.StageRecord, Err: err}
	}
	return &record, nil
}

// Decode runs both layers on a stored value.
func Decode(raw json.RawMessage) (*historytypes.SessionRecord, error) {
	text, err := Unwrap(raw)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// DecodeEntry decodes a stored entry and attaches its key to any decode error.
func DecodeEntry(entry historytypes.RawEntry) (*historytypes.SessionRecord, error) {
	record, err := Decode(entry.Value)
	if err != nil {
		var decodeErr *historytypes.DecodeError
		if errors.As(err, &decodeErr) {
			decodeErr.Key = entry.Key
		}
		return nil, err
	}
	return record, nil
}

// Wrap produces the live-storage encoding of a record: its JSON text, itself encoded
// as a JSON string.
func Wrap(record *historytypes.SessionRecord) (json.RawMessage, error) {
	text, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session record: %w", err)
	}
	wrapped, err := json.Marshal(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to wrap session record: %w", err)
	}
	return wrapped, nil
}

// MarshalIndent produces the canonical pretty-printed record JSON used by exports.
// The result parses back with Parse. HTML characters are written as-is.
func MarshalIndent(record *historytypes.SessionRecord) ([]byte, error) {
	var pretty bytes.Buffer
	encoder := json.NewEncoder(&pretty)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(record); err != nil {
		return nil, fmt.Errorf("failed to encode session record: %w", err)
	}
	return pretty.Bytes(), nil
}
