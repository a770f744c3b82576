package stream

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/homie43/car-fit-chat-backend/internal/model"
	"github.com/homie43/car-fit-chat-backend/internal/utils"
)

// ParseHiddenPreferences extracts the preference set the model declared in
// its hidden block. Raw is the full accumulated response. A missing block
// yields an empty set and no error; a malformed or unterminated block
// yields an empty set and an error the caller should log at warning level.
// Unknown JSON keys are ignored.
func ParseHiddenPreferences(raw string) (model.Preferences, error) {
	start := strings.Index(raw, OpenMarker)
	if start < 0 {
		return model.Preferences{}, nil
	}
	rest := raw[start+len(OpenMarker):]
	end := strings.Index(rest, CloseMarker)
	if end < 0 {
		return model.Preferences{}, fmt.Errorf("unterminated preferences block")
	}

	var fields map[string]interface{}
	if err := utils.ParseModelJSON(rest[:end], &fields); err != nil {
		return model.Preferences{}, fmt.Errorf("malformed preferences block: %w", err)
	}

	return model.Preferences{
		Marka:    strField(fields, "marka"),
		Model:    strField(fields, "model"),
		Country:  strField(fields, "country"),
		Color:    strField(fields, "color"),
		Power:    strField(fields, "power"),
		KPP:      strField(fields, "kpp"),
		YearFrom: intField(fields, "yearFrom"),
		YearTo:   intField(fields, "yearTo"),
		BodyType: strField(fields, "bodyType"),
		Budget:   intField(fields, "budget"),
	}, nil
}

func strField(fields map[string]interface{}, key string) *string {
	v, ok := fields[key]
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// intField accepts both JSON numbers and numeric strings; models are not
// consistent about quoting.
func intField(fields map[string]interface{}, key string) *int {
	switch v := fields[key].(type) {
	case float64:
		n := int(v)
		if n > 0 {
			return &n
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return &n
		}
	}
	return nil
}
