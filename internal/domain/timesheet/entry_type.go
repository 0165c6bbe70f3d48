package timesheet

import (
	"strings"
)

type entryKind int

const (
	kindGeneral entryKind = iota
	kindTravel
	kindOther
)

// EntryType is either one of the known kinds or an explicit Other label.
// The zero value is GENERAL.
type EntryType struct {
	kind  entryKind
	label string
}

var (
	EntryTypeGeneral = EntryType{kind: kindGeneral}
	EntryTypeTravel  = EntryType{kind: kindTravel}
)

// OtherEntryType carries a free-text type that is not part of the known set.
func OtherEntryType(label string) EntryType {
	label = strings.TrimSpace(label)
	switch strings.ToUpper(label) {
	case "GENERAL", "":
		return EntryTypeGeneral
	case "TRAVEL":
		return EntryTypeTravel
	}
	return EntryType{kind: kindOther, label: label}
}

// ParseEntryType maps the persisted code and optional label back to a variant.
func ParseEntryType(code string, label *string) EntryType {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "", "GENERAL":
		return EntryTypeGeneral
	case "TRAVEL":
		return EntryTypeTravel
	case "OTHER":
		if label != nil {
			return OtherEntryType(*label)
		}
		return EntryType{kind: kindOther}
	}
	return OtherEntryType(code)
}

func (t EntryType) IsOther() bool { return t.kind == kindOther }

// Code is the persisted discriminator: GENERAL, TRAVEL or OTHER.
func (t EntryType) Code() string {
	switch t.kind {
	case kindTravel:
		return "TRAVEL"
	case kindOther:
		return "OTHER"
	}
	return "GENERAL"
}

// Label is set only for Other.
func (t EntryType) Label() *string {
	if t.kind != kindOther {
		return nil
	}
	l := t.label
	return &l
}

func (t EntryType) String() string {
	if t.kind == kindOther {
		return t.label
	}
	return t.Code()
}

func (t EntryType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EntryType) UnmarshalText(b []byte) error {
	*t = OtherEntryType(string(b))
	return nil
}
