package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Vehicle represents one catalog row (a brand/model/variant entry).
type Vehicle struct {
	ID          int64           `json:"id" db:"id"`
	Marka       string          `json:"marka" db:"marka"`
	Model       string          `json:"model" db:"model"`
	Variant     string          `json:"variant" db:"variant"`
	Description *string         `json:"description,omitempty" db:"description"`
	YearFrom    *int            `json:"year_from,omitempty" db:"year_from"`
	YearTo      *int            `json:"year_to,omitempty" db:"year_to"`
	Power       *string         `json:"power,omitempty" db:"power"`
	KPP         *string         `json:"kpp,omitempty" db:"kpp"`
	BodyType    *string         `json:"body_type,omitempty" db:"body_type"`
	Trims       JSONArray       `json:"trims,omitempty" db:"trims"`
	Specs       JSONMap         `json:"specs,omitempty" db:"specs"`
	Embedding   pgvector.Vector `json:"-" db:"embedding"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// ContextItem is the per-request projection of a catalog row used to build
// the grounding block for the language model. Never mutated after
// construction.
type ContextItem struct {
	Marka       string   `json:"marka"`
	Model       string   `json:"model"`
	Variant     string   `json:"variant"`
	Description *string  `json:"description,omitempty"`
	YearFrom    *int     `json:"year_from,omitempty"`
	YearTo      *int     `json:"year_to,omitempty"`
	Power       *string  `json:"power,omitempty"`
	KPP         *string  `json:"kpp,omitempty"`
	BodyType    *string  `json:"body_type,omitempty"`
	Trims       []string `json:"trims,omitempty"`
}

// Key returns the de-duplication identity of the item.
func (c ContextItem) Key() string {
	return strings.ToLower(fmt.Sprintf("%s|%s|%s", c.Marka, c.Model, c.Variant))
}

// ContextItem projects the catalog row for grounding.
func (v Vehicle) ContextItem() ContextItem {
	return ContextItem{
		Marka:       v.Marka,
		Model:       v.Model,
		Variant:     v.Variant,
		Description: v.Description,
		YearFrom:    v.YearFrom,
		YearTo:      v.YearTo,
		Power:       v.Power,
		KPP:         v.KPP,
		BodyType:    v.BodyType,
		Trims:       v.Trims,
	}
}

// ContextFilters is a structural catalog query: typed fields only, no
// free-text matching. Values must come from the validated preference set.
type ContextFilters struct {
	Marka    *string
	Model    *string
	KPP      *string
	BodyType *string
	YearFrom *int
	YearTo   *int
}

// FiltersFromPreferences builds structural filters from a preference set.
// Only independently validated slots are carried over.
func FiltersFromPreferences(p Preferences) ContextFilters {
	return ContextFilters{
		Marka:    p.Marka,
		Model:    p.Model,
		KPP:      p.KPP,
		BodyType: p.BodyType,
		YearFrom: p.YearFrom,
		YearTo:   p.YearTo,
	}
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}

// JSONMap represents a JSON object field
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}
