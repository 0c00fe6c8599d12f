package moderation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/models"
)

// FieldValue is a decoded field payload. Kind says which member is set.
type FieldValue struct {
	Kind            Kind
	Str             string
	Date            *time.Time
	Specializations []models.Specialization
	Education       []models.Education
	Contacts        []models.Contact
}

func StringValue(s string) FieldValue { return FieldValue{Kind: KindString, Str: s} }

func DateValue(t *time.Time) FieldValue { return FieldValue{Kind: KindDate, Date: t} }

func SpecializationsValue(s []models.Specialization) FieldValue {
	return FieldValue{Kind: KindSpecializations, Specializations: s}
}

func EducationValue(e []models.Education) FieldValue {
	return FieldValue{Kind: KindEducation, Education: e}
}

func ContactsValue(c []models.Contact) FieldValue {
	return FieldValue{Kind: KindContacts, Contacts: c}
}

const dateLayout = "2006-01-02"

// MarshalJSON renders the value in its canonical wire shape. Empty lists
// render as [] rather than null.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindDate:
		if v.Date == nil {
			return []byte("null"), nil
		}
		return json.Marshal(v.Date.Format(dateLayout))
	case KindSpecializations:
		if v.Specializations == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Specializations)
	case KindEducation:
		if v.Education == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Education)
	case KindContacts:
		if v.Contacts == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Contacts)
	}
	return nil, fmt.Errorf("unknown field kind %d", v.Kind)
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func decodeString(name string, raw json.RawMessage) (FieldValue, error) {
	if isNull(raw) {
		return StringValue(""), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return FieldValue{}, common.Validation(fmt.Sprintf("%s must be a string", name), name)
	}
	return StringValue(strings.TrimSpace(s)), nil
}

func decodeDate(name string, raw json.RawMessage) (FieldValue, error) {
	if isNull(raw) {
		return DateValue(nil), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return FieldValue{}, common.Validation(fmt.Sprintf("%s must be a date string", name), name)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return DateValue(nil), nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return DateValue(&d), nil
		}
	}
	return FieldValue{}, common.Validation(fmt.Sprintf("%s has an invalid date %q", name, s), name)
}

type educationInput struct {
	Institution    string          `json:"institution"`
	Degree         string          `json:"degree"`
	Specialty      string          `json:"specialty"`
	GraduationYear json.RawMessage `json:"graduationYear"`
	IsCurrently    bool            `json:"isCurrently"`
}

// decodeEducation accepts graduationYear as a number or a numeric string,
// both of which older clients send.
func decodeEducation(name string, raw json.RawMessage) (FieldValue, error) {
	if isNull(raw) {
		return EducationValue([]models.Education{}), nil
	}
	var in []educationInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return FieldValue{}, common.Validation(fmt.Sprintf("%s must be an array of education entries", name), name)
	}

	out := make([]models.Education, 0, len(in))
	for i, e := range in {
		edu := models.Education{
			Institution: strings.TrimSpace(e.Institution),
			Degree:      strings.TrimSpace(e.Degree),
			Specialty:   strings.TrimSpace(e.Specialty),
			IsCurrently: e.IsCurrently,
		}
		if !isNull(e.GraduationYear) {
			year, err := parseYear(e.GraduationYear)
			if err != nil {
				return FieldValue{}, common.Validation(fmt.Sprintf("education %d: invalid graduation year", i+1), name)
			}
			edu.GraduationYear = &year
		}
		out = append(out, edu)
	}
	return EducationValue(out), nil
}

func parseYear(raw json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

func decodeContacts(name string, raw json.RawMessage) (FieldValue, error) {
	if isNull(raw) {
		return ContactsValue([]models.Contact{}), nil
	}
	var in []models.Contact
	if err := json.Unmarshal(raw, &in); err != nil {
		return FieldValue{}, common.Validation(fmt.Sprintf("%s must be an array of contacts", name), name)
	}
	for i := range in {
		in[i].Type = strings.TrimSpace(in[i].Type)
	}
	return ContactsValue(in), nil
}
