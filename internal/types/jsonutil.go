package types

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// StringsFromJSON decodes a jsonb []string column, tolerating null/garbage.
func StringsFromJSON(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// StringsToJSON encodes a []string for a jsonb column. Never fails.
func StringsToJSON(values []string) datatypes.JSON {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}
