package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeAndValidate(t *testing.T) {
	e := newTestEngine(t, nil, false)

	tests := []struct {
		name    string
		field   string
		in      string
		wantErr bool
	}{
		{"first name ok", "firstName", `"  Anna "`, false},
		{"first name too short after trim", "firstName", `" A "`, true},
		{"last name cyrillic two runes", "lastName", `"Ли"`, false},
		{"middle name may be empty", "middleName", `""`, false},
		{"middle name single rune", "middleName", `"И"`, true},
		{"location too short", "location", `"X"`, true},
		{"experience empty", "experience", `"   "`, true},
		{"bio may be empty", "bio", `""`, false},
		{"string field wrong type", "bio", `12`, true},
		{"contacts ok", "contacts", `[{"type":"telegram","value":"@anna","isPublic":true}]`, false},
		{"contacts unknown type", "contacts", `[{"type":"icq","value":"1"}]`, true},
		{"contacts empty value", "contacts", `[{"type":"phone","value":"  "}]`, true},
		{"contacts not array", "contacts", `{"type":"phone"}`, true},
		{"education ok", "education", `[{"institution":"MSU","graduationYear":2010}]`, false},
		{"education year as string", "education", `[{"institution":"MSU","graduationYear":"2012"}]`, false},
		{"education year too old", "education", `[{"institution":"MSU","graduationYear":1949}]`, true},
		{"education year too far ahead", "education", `[{"institution":"MSU","graduationYear":2036}]`, true},
		{"education year at upper bound", "education", `[{"institution":"MSU","graduationYear":2035}]`, false},
		{"education institution short", "education", `[{"institution":"M"}]`, true},
		{"birthday date", "birthday", `"1990-04-12"`, false},
		{"birthday rfc3339", "birthday", `"1990-04-12T00:00:00Z"`, false},
		{"birthday null", "birthday", `null`, false},
		{"birthday garbage", "birthday", `"yesterday"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.decode(context.Background(), tt.field, raw(tt.in), fixedNow)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, common.ErrValidation))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestValidateComment(t *testing.T) {
	c, err := ValidateComment("  ok!  ", 3)
	require.NoError(t, err)
	assert.Equal(t, "ok!", c)

	_, err = ValidateComment("  no ", 3)
	assert.True(t, errors.Is(err, common.ErrValidation))

	_, err = ValidateComment("", 3)
	assert.True(t, errors.Is(err, common.ErrValidation))
}
