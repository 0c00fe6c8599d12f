// Package moderation implements field-level moderation of profile edits.
//
// A profile update is split into immediate fields, written straight to the
// profile, and moderated fields, parked in the profile's PendingChanges
// until a moderator approves or rejects them. Everything in this package
// works on in-memory models; persistence and transactions belong to the
// services layer.
package moderation

import (
	"sort"
	"time"

	"github.com/doclearn/doclearn/internal/server/models"
)

// Kind discriminates the payload shape of a field.
type Kind int

const (
	KindString Kind = iota
	KindDate
	KindSpecializations
	KindEducation
	KindContacts
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindSpecializations:
		return "specializations"
	case KindEducation:
		return "education"
	case KindContacts:
		return "contacts"
	}
	return "unknown"
}

// Field names accepted in a profile update.
const (
	FieldFirstName      = "firstName"
	FieldLastName       = "lastName"
	FieldMiddleName     = "middleName"
	FieldPlaceWork      = "placeWork"
	FieldSpecialization = "specialization"
	FieldEducation      = "education"
	FieldLocation       = "location"
	FieldExperience     = "experience"
	FieldBio            = "bio"
	FieldAvatar         = "avatar"
	FieldContacts       = "contacts"
	FieldBirthday       = "birthday"
)

type fieldSpec struct {
	kind      Kind
	moderated bool
	apply     func(p *models.Profile, v FieldValue)
	current   func(p *models.Profile) FieldValue
}

func stringField(moderated bool, ptr func(p *models.Profile) *string) fieldSpec {
	return fieldSpec{
		kind:      KindString,
		moderated: moderated,
		apply:     func(p *models.Profile, v FieldValue) { *ptr(p) = v.Str },
		current:   func(p *models.Profile) FieldValue { return StringValue(*ptr(p)) },
	}
}

var fieldTable = map[string]fieldSpec{
	FieldFirstName:  stringField(true, func(p *models.Profile) *string { return &p.FirstName }),
	FieldLastName:   stringField(true, func(p *models.Profile) *string { return &p.LastName }),
	FieldMiddleName: stringField(true, func(p *models.Profile) *string { return &p.MiddleName }),
	FieldPlaceWork:  stringField(true, func(p *models.Profile) *string { return &p.PlaceWork }),
	FieldSpecialization: {
		kind:      KindSpecializations,
		moderated: true,
		apply: func(p *models.Profile, v FieldValue) {
			p.Specializations = append([]models.Specialization(nil), v.Specializations...)
		},
		current: func(p *models.Profile) FieldValue { return SpecializationsValue(p.Specializations) },
	},
	FieldEducation: {
		kind:      KindEducation,
		moderated: true,
		apply: func(p *models.Profile, v FieldValue) {
			p.Education = append([]models.Education(nil), v.Education...)
		},
		current: func(p *models.Profile) FieldValue { return EducationValue(p.Education) },
	},

	FieldLocation:   stringField(false, func(p *models.Profile) *string { return &p.Location }),
	FieldExperience: stringField(false, func(p *models.Profile) *string { return &p.Experience }),
	FieldBio:        stringField(false, func(p *models.Profile) *string { return &p.Bio }),
	FieldAvatar:     stringField(false, func(p *models.Profile) *string { return &p.Avatar }),
	FieldContacts: {
		kind:      KindContacts,
		moderated: false,
		apply: func(p *models.Profile, v FieldValue) {
			p.Contacts = append([]models.Contact(nil), v.Contacts...)
		},
		current: func(p *models.Profile) FieldValue { return ContactsValue(p.Contacts) },
	},
	FieldBirthday: {
		kind:      KindDate,
		moderated: false,
		apply: func(p *models.Profile, v FieldValue) {
			if v.Date == nil {
				p.Birthday = nil
				return
			}
			d := *v.Date
			p.Birthday = &d
		},
		current: func(p *models.Profile) FieldValue { return DateValue(p.Birthday) },
	},
}

// fieldAliases maps legacy payload keys to their canonical field name.
var fieldAliases = map[string]string{
	"specializations": FieldSpecialization,
}

// CanonicalName resolves legacy aliases. Unknown names are returned as-is.
func CanonicalName(name string) string {
	if c, ok := fieldAliases[name]; ok {
		return c
	}
	return name
}

// IsModerated reports whether edits to name need moderator approval.
func IsModerated(name string) bool {
	spec, ok := fieldTable[CanonicalName(name)]
	return ok && spec.moderated
}

// IsKnownField reports whether name (or its alias) is in the allow-list.
func IsKnownField(name string) bool {
	_, ok := fieldTable[CanonicalName(name)]
	return ok
}

// KindOf returns the payload kind of a known field.
func KindOf(name string) (Kind, bool) {
	spec, ok := fieldTable[CanonicalName(name)]
	return spec.kind, ok
}

// ModeratedFields lists the moderated field names in sorted order.
func ModeratedFields() []string {
	return fieldNames(true)
}

// ImmediateFields lists the immediate field names in sorted order.
func ImmediateFields() []string {
	return fieldNames(false)
}

func fieldNames(moderated bool) []string {
	var out []string
	for name, spec := range fieldTable {
		if spec.moderated == moderated {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// applyField writes v into p. name must be canonical and known.
func applyField(p *models.Profile, name string, v FieldValue, now time.Time) {
	fieldTable[name].apply(p, v)
	p.UpdatedAt = now
}

// CurrentValue reads the canonical value of a known field from p.
func CurrentValue(p *models.Profile, name string) (FieldValue, bool) {
	spec, ok := fieldTable[CanonicalName(name)]
	if !ok {
		return FieldValue{}, false
	}
	return spec.current(p), true
}
