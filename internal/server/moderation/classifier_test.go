package moderation

import (
	"errors"
	"testing"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Partition(t *testing.T) {
	tests := []struct {
		name          string
		payload       Payload
		wantImmediate []string
		wantModerated []string
	}{
		{
			name:          "mixed",
			payload:       Payload{"firstName": raw(`"Anna"`), "bio": raw(`"hi"`)},
			wantImmediate: []string{"bio"},
			wantModerated: []string{"firstName"},
		},
		{
			name: "all moderated",
			payload: Payload{
				"firstName": raw(`"A"`), "lastName": raw(`"B"`), "middleName": raw(`"C"`),
				"placeWork": raw(`"D"`), "specialization": raw(`[]`), "education": raw(`[]`),
			},
			wantImmediate: []string{},
			wantModerated: []string{"education", "firstName", "lastName", "middleName", "placeWork", "specialization"},
		},
		{
			name: "all immediate",
			payload: Payload{
				"location": raw(`"x"`), "experience": raw(`"x"`), "bio": raw(`"x"`),
				"avatar": raw(`"x"`), "contacts": raw(`[]`), "birthday": raw(`null`),
			},
			wantImmediate: []string{"avatar", "bio", "birthday", "contacts", "experience", "location"},
			wantModerated: []string{},
		},
		{
			name:          "legacy alias",
			payload:       Payload{"specializations": raw(`[]`)},
			wantImmediate: []string{},
			wantModerated: []string{"specialization"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Classify(tt.payload)
			require.NoError(t, err)
			assert.Equal(t, tt.wantImmediate, c.ImmediateNames())
			assert.Equal(t, tt.wantModerated, c.ModeratedNames())

			// union covers the payload and the parts are disjoint
			assert.Equal(t, len(tt.payload), len(c.Immediate)+len(c.Moderated))
			for name := range c.Immediate {
				_, both := c.Moderated[name]
				assert.False(t, both, "%s in both partitions", name)
			}
		})
	}
}

func TestClassify_RejectsUnknownFields(t *testing.T) {
	_, err := Classify(Payload{"firstName": raw(`"Anna"`), "role": raw(`"admin"`), "isBanned": raw(`false`)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Equal(t, []string{"isBanned", "role"}, common.FieldsOf(err))
}

func TestClassify_EmptyPayload(t *testing.T) {
	_, err := Classify(Payload{})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestClassify_AliasCollision(t *testing.T) {
	_, err := Classify(Payload{"specialization": raw(`[]`), "specializations": raw(`[]`)})
	assert.True(t, errors.Is(err, common.ErrValidation))
}

func TestFieldTables(t *testing.T) {
	assert.Equal(t, []string{"education", "firstName", "lastName", "middleName", "placeWork", "specialization"}, ModeratedFields())
	assert.Equal(t, []string{"avatar", "bio", "birthday", "contacts", "experience", "location"}, ImmediateFields())
	assert.True(t, IsModerated("specializations"))
	assert.False(t, IsKnownField("password"))
}
