package types

import (
	"bytes"
	"encoding/json"

	"github.com/google/uuid"
)

var jsonNull = []byte("null")

// NullableUUID distinguishes the three states a UUID field can arrive in:
// absent (leave unchanged), null (clear it), or a value (set it). The
// category parent field needs all three on update.
type NullableUUID struct {
	Valid bool
	Value *uuid.UUID
}

func (n *NullableUUID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0:
		return nil
	case bytes.Equal(data, jsonNull):
		n.Valid = true
		n.Value = nil
		return nil
	}

	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	n.Valid = true
	n.Value = &id
	return nil
}
