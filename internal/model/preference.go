package model

import "strings"

// Preferences represents the structured vehicle preferences of a single user.
// Every slot is optional; a nil slot means "the user never said". The JSON
// field names are also the wire format of the assistant's hidden
// [PREFERENCES] block, so they must stay stable.
type Preferences struct {
	Marka    *string `json:"marka,omitempty"`
	Model    *string `json:"model,omitempty"`
	Country  *string `json:"country,omitempty"`
	Color    *string `json:"color,omitempty"`
	Power    *string `json:"power,omitempty"`
	KPP      *string `json:"kpp,omitempty"`
	YearFrom *int    `json:"yearFrom,omitempty"`
	YearTo   *int    `json:"yearTo,omitempty"`
	BodyType *string `json:"bodyType,omitempty"`
	Budget   *int    `json:"budget,omitempty"`
}

// IsEmpty reports whether no slot is set.
func (p Preferences) IsEmpty() bool {
	return p.Marka == nil && p.Model == nil && p.Country == nil &&
		p.Color == nil && p.Power == nil && p.KPP == nil &&
		p.YearFrom == nil && p.YearTo == nil && p.BodyType == nil &&
		p.Budget == nil
}

// HasSearchSignal reports whether the set carries enough structure to
// justify a catalog lookup. Budget or color alone is not enough to
// narrow the catalog meaningfully.
func (p Preferences) HasSearchSignal() bool {
	return p.Marka != nil || p.Model != nil || p.KPP != nil ||
		p.YearFrom != nil || p.BodyType != nil
}

// MergePreferences combines previously stored preferences with newly parsed
// ones. Every slot present and non-empty in the new set overwrites the old
// value; absent or blank slots never erase anything. Repeated application
// across a conversation converges to "most recent non-empty value per slot".
func MergePreferences(old, new Preferences) Preferences {
	merged := old

	if s := strPtr(new.Marka); s != nil {
		merged.Marka = s
	}
	if s := strPtr(new.Model); s != nil {
		merged.Model = s
	}
	if s := strPtr(new.Country); s != nil {
		merged.Country = s
	}
	if s := strPtr(new.Color); s != nil {
		merged.Color = s
	}
	if s := strPtr(new.Power); s != nil {
		merged.Power = s
	}
	if s := strPtr(new.KPP); s != nil {
		merged.KPP = s
	}
	if new.YearFrom != nil {
		merged.YearFrom = new.YearFrom
	}
	if new.YearTo != nil {
		merged.YearTo = new.YearTo
	}
	if s := strPtr(new.BodyType); s != nil {
		merged.BodyType = s
	}
	if new.Budget != nil {
		merged.Budget = new.Budget
	}

	return merged
}

// strPtr returns the pointer unchanged when it points at a non-blank
// string, nil otherwise.
func strPtr(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
