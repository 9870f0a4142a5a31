package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// flexFloat accepts JSON numbers, numeric strings and null. The third-party
// ingredient API is not consistent about number encoding.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			// unparseable text counts as missing
			*f = 0
			return nil
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// IngredientInfo is an ingredient as reported by the ingredient collaborator
type IngredientInfo struct {
	Name    string    `json:"name"`
	Protein flexFloat `json:"protein"`
	Carbs   flexFloat `json:"carbs"`
	Fat     flexFloat `json:"fat"`
}
