package moderation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/models"
)

// Contact types a profile may list.
var contactTypes = map[string]struct{}{
	"phone": {}, "telegram": {}, "whatsapp": {}, "website": {}, "email": {},
	"vk": {}, "facebook": {}, "twitter": {}, "instagram": {},
}

const (
	minGraduationYear   = 1950
	graduationYearAhead = 10
)

// minLengths holds per-field minimum lengths of the trimmed value.
var minLengths = map[string]int{
	FieldFirstName:  2,
	FieldLastName:   2,
	FieldLocation:   2,
	FieldExperience: 1,
}

// validateField checks content rules for a decoded value. now bounds the
// graduation year.
func validateField(name string, v FieldValue, now time.Time) error {
	switch v.Kind {
	case KindString:
		return validateString(name, v.Str)
	case KindContacts:
		return validateContacts(name, v.Contacts)
	case KindEducation:
		return validateEducation(name, v.Education, now)
	}
	return nil
}

func validateString(name, s string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if min, ok := minLengths[name]; ok && n < min {
		return common.Validation(fmt.Sprintf("%s must contain at least %d characters", name, min), name)
	}
	// middle name is optional but, when present, follows the name rule
	if name == FieldMiddleName && n > 0 && n < 2 {
		return common.Validation("middleName must contain at least 2 characters", name)
	}
	return nil
}

func validateContacts(name string, contacts []models.Contact) error {
	for i, c := range contacts {
		if c.Type == "" || strings.TrimSpace(c.Value) == "" {
			return common.Validation(fmt.Sprintf("contact %d: type and value are required", i+1), name)
		}
		if _, ok := contactTypes[c.Type]; !ok {
			return common.Validation(fmt.Sprintf("contact %d: unsupported type %q", i+1, c.Type), name)
		}
	}
	return nil
}

func validateEducation(name string, education []models.Education, now time.Time) error {
	maxYear := now.Year() + graduationYearAhead
	for i, e := range education {
		if utf8.RuneCountInString(e.Institution) < 2 {
			return common.Validation(fmt.Sprintf("education %d: institution is required", i+1), name)
		}
		if e.GraduationYear != nil && (*e.GraduationYear < minGraduationYear || *e.GraduationYear > maxYear) {
			return common.Validation(fmt.Sprintf("education %d: graduation year must be between %d and %d", i+1, minGraduationYear, maxYear), name)
		}
	}
	return nil
}

// ValidateComment trims comment and enforces a minimum rune length.
func ValidateComment(comment string, min int) (string, error) {
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) < min {
		return "", common.Validation(fmt.Sprintf("comment must contain at least %d characters", min), "comment")
	}
	return comment, nil
}
