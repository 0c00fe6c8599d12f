package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/events"
	"github.com/doclearn/doclearn/internal/server/metrics"
	"github.com/doclearn/doclearn/internal/server/models"
)

func withPending(p *models.Profile, submitted time.Time, fields map[string]string) *models.Profile {
	pc := &models.PendingChanges{
		Data:         map[string]models.PendingField{},
		GlobalStatus: models.GlobalPending,
		SubmittedAt:  submitted,
	}
	for name, v := range fields {
		pc.Data[name] = models.PendingField{Value: raw(v), Status: models.FieldPending}
	}
	p.PendingChanges = pc
	return p
}

func newAdminService(env *testEnv) *AdminModerationService {
	return NewAdminModerationService(env.deps, newEngine())
}

func TestApproveSpecific_CommitsNamedFieldAndClearsStore(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{"firstName": `"Anna"`}))
	env.expectTx(true)

	out, err := newAdminService(env).ApproveSpecific(context.Background(), "a1", "u1", []string{"firstName"}, "ok")
	require.NoError(t, err)
	require.NoError(t, env.mock.ExpectationsWereMet())

	assert.Equal(t, []string{"firstName"}, out.Committed)
	assert.Equal(t, models.GlobalCompleted, out.GlobalStatus)

	p := env.stored(t, "u1")
	assert.Equal(t, "Anna", p.FirstName)
	require.NotNil(t, p.PendingChanges)
	assert.Empty(t, p.PendingChanges.Data)
	assert.Equal(t, models.GlobalCompleted, p.PendingChanges.GlobalStatus)
	assert.Equal(t, "a1", p.PendingChanges.ModeratorID)
	assert.Equal(t, "ok", p.PendingChanges.ModeratorComment)

	assert.Equal(t, 1, env.metrics.decisions[metrics.DecisionApproveSpecific])
	require.Len(t, env.events.events, 1)
	assert.Equal(t, events.TypeApprovedFields, env.events.events[0].Type)
	assert.Equal(t, "a1", env.events.events[0].ModeratorID)
}

func TestApproveSpecific_SecondCallConflicts(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{
		"firstName": `"Anna"`,
		"lastName":  `"Petrova"`,
	}))
	env.expectTx(true)
	env.expectTx(false)
	svc := newAdminService(env)

	out, err := svc.ApproveSpecific(context.Background(), "a1", "u1", []string{"firstName"}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"lastName"}, out.Remaining)
	assert.Equal(t, models.GlobalPending, out.GlobalStatus)

	_, err = svc.ApproveSpecific(context.Background(), "a1", "u1", []string{"firstName"}, "")
	require.ErrorIs(t, err, common.ErrConflict)
	assert.Equal(t, []string{"firstName"}, common.FieldsOf(err))

	p := env.stored(t, "u1")
	assert.Equal(t, "Anna", p.FirstName)
	assert.Equal(t, models.FieldPending, p.PendingChanges.Data["lastName"].Status)
	assert.Equal(t, 1, env.metrics.decisions[metrics.DecisionApproveSpecific])
}

func TestApproveAll_CommitsAndClears(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{
		"placeWork":      `"City Hospital"`,
		"specialization": `[{"specializationId":"cardiology","method":"Ординатура","isPrimary":true}]`,
	}))
	env.expectTx(true)

	out, err := newAdminService(env).ApproveAll(context.Background(), "a1", "u1", "")
	require.NoError(t, err)
	assert.Equal(t, models.GlobalCompleted, out.GlobalStatus)

	p := env.stored(t, "u1")
	assert.Equal(t, "City Hospital", p.PlaceWork)
	require.Len(t, p.Specializations, 1)
	assert.Equal(t, "Кардиология", p.Specializations[0].Name)
	assert.Empty(t, p.PendingChanges.Data)
	assert.Equal(t, events.TypeApprovedAll, env.events.events[0].Type)
}

func TestRejectAll_KeepsEntriesAsRejected(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{
		"firstName": `"Anna"`,
		"lastName":  `"Petrova"`,
	}))
	env.expectTx(true)

	out, err := newAdminService(env).RejectAll(context.Background(), "a1", "u1", "insufficient proof")
	require.NoError(t, err)
	assert.Equal(t, models.GlobalRejected, out.GlobalStatus)

	p := env.stored(t, "u1")
	assert.Equal(t, "Anya", p.FirstName)
	assert.Equal(t, "Ivanova", p.LastName)
	require.Len(t, p.PendingChanges.Data, 2)
	for _, f := range p.PendingChanges.Data {
		assert.Equal(t, models.FieldRejected, f.Status)
	}
	assert.Equal(t, "insufficient proof", p.PendingChanges.ModeratorComment)

	ev := env.events.events[0]
	assert.Equal(t, events.TypeRejectedAll, ev.Type)
	assert.Equal(t, []string{"firstName", "lastName"}, ev.Fields)
}

func TestRejectAll_ShortComment(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{"firstName": `"Anna"`}))
	env.expectTx(false)

	_, err := newAdminService(env).RejectAll(context.Background(), "a1", "u1", " no ")
	assert.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, models.FieldPending, env.stored(t, "u1").PendingChanges.Data["firstName"].Status)
}

func TestDecisions_AlreadyModerated(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{"firstName": `"Anna"`}))
	env.expectTx(true)
	env.expectTx(false)
	svc := newAdminService(env)

	_, err := svc.RejectAll(context.Background(), "a1", "u1", "not now")
	require.NoError(t, err)

	_, err = svc.ApproveAll(context.Background(), "a1", "u1", "")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestDecisions_NoPendingStore(t *testing.T) {
	env := newEnv(t, admin("a1"), user("u1"))
	env.expectTx(false)

	_, err := newAdminService(env).ApproveAll(context.Background(), "a1", "u1", "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDecisions_Authorization(t *testing.T) {
	bannedAdmin := admin("a2")
	bannedAdmin.IsBanned = true
	owner := admin("o1")
	owner.Role = common.RoleOwner

	cases := []struct {
		name      string
		moderator string
		wantErr   error
	}{
		{"plain user", "u2", common.ErrForbidden},
		{"banned admin", "a2", common.ErrForbidden},
		{"unknown moderator", "nobody", common.ErrForbidden},
		{"owner", "o1", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv(t, user("u2"), bannedAdmin, owner,
				withPending(user("u1"), fixedNow, map[string]string{"firstName": `"Anna"`}))
			env.expectTx(tc.wantErr == nil)

			_, err := newAdminService(env).ApproveAll(context.Background(), tc.moderator, "u1", "")
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, "Anya", env.stored(t, "u1").FirstName)
			assert.Empty(t, env.events.events)
		})
	}
}

func TestDecisions_SaveFailureIsAtomic(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{"firstName": `"Anna"`}))
	env.repos.p.saveErrs = []error{errBoom{}}
	env.expectTx(false)

	before := clone(env.stored(t, "u1"))
	_, err := newAdminService(env).ApproveSpecific(context.Background(), "a1", "u1", []string{"firstName"}, "")
	require.Error(t, err)
	require.NoError(t, env.mock.ExpectationsWereMet())

	assert.Equal(t, before, env.stored(t, "u1"))
	assert.Empty(t, env.metrics.decisions)
}

func TestListPending(t *testing.T) {
	env := newEnv(t,
		admin("a1"),
		withPending(user("u1"), fixedNow.Add(-2*time.Hour), map[string]string{"firstName": `"A"`}),
		withPending(user("u2"), fixedNow.Add(-1*time.Hour), map[string]string{"firstName": `"B"`}),
		withPending(user("u3"), fixedNow, map[string]string{"firstName": `"C"`}),
		user("u4"),
	)
	svc := newAdminService(env)

	page, err := svc.ListPending(context.Background(), "a1", PendingQuery{Limit: 2, Search: "iva"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Users, 2)
	assert.Equal(t, "u3", page.Users[0].ID)
	assert.Equal(t, "iva", env.repos.p.lastQuery.Search)

	page, err = svc.ListPending(context.Background(), "a1", PendingQuery{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Users, 1)
	assert.Equal(t, "u1", page.Users[0].ID)
	assert.Equal(t, 2, env.repos.p.lastQuery.Offset)

	page, err = svc.ListPending(context.Background(), "a1", PendingQuery{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageLimit, env.repos.p.lastQuery.Limit)
	assert.Equal(t, 1, page.TotalPages)
}

func TestListPending_Validation(t *testing.T) {
	env := newEnv(t, admin("a1"), user("u1"))
	svc := newAdminService(env)

	for _, q := range []PendingQuery{{Page: -1}, {Limit: 101}, {Limit: -5}} {
		_, err := svc.ListPending(context.Background(), "a1", q)
		assert.ErrorIs(t, err, common.ErrValidation, "%+v", q)
	}

	_, err := svc.ListPending(context.Background(), "u1", PendingQuery{})
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestDiff(t *testing.T) {
	env := newEnv(t, admin("a1"), withPending(user("u1"), fixedNow, map[string]string{"lastName": `"Petrova"`}))

	diffs, err := newAdminService(env).Diff(context.Background(), "a1", "u1")
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "lastName", diffs[0].Field)
	assert.JSONEq(t, `"Ivanova"`, string(diffs[0].Current))
	assert.JSONEq(t, `"Petrova"`, string(diffs[0].Proposed))

	_, err = newAdminService(env).Diff(context.Background(), "a1", "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBan(t *testing.T) {
	env := newEnv(t, admin("a1"), admin("a2"), user("u1"))
	env.repos.r.tokens["t1"] = &models.RefreshToken{UserID: "u1", Expires: fixedNow.Add(time.Hour)}
	svc := newAdminService(env)

	env.expectTx(true)
	require.NoError(t, svc.Ban(context.Background(), "a1", "u1", "spam links"))

	p := env.stored(t, "u1")
	assert.True(t, p.IsBanned)
	assert.Equal(t, "spam links", p.BanReason)
	assert.Equal(t, "a1", p.BannedBy)
	assert.NotNil(t, p.BannedAt)
	assert.Empty(t, env.repos.r.tokens)
	assert.Equal(t, events.TypeUserBanned, env.events.events[0].Type)

	env.expectTx(false)
	assert.ErrorIs(t, svc.Ban(context.Background(), "a1", "u1", "again"), common.ErrConflict)

	env.expectTx(false)
	assert.ErrorIs(t, svc.Ban(context.Background(), "a1", "a2", "rogue admin"), common.ErrForbidden)

	assert.ErrorIs(t, svc.Ban(context.Background(), "a1", "a1", "myself"), common.ErrBadRequest)
	assert.ErrorIs(t, svc.Ban(context.Background(), "a1", "u1", "x"), common.ErrValidation)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestUnban(t *testing.T) {
	banned := user("u1")
	banned.IsBanned = true
	banned.BanReason = "spam"
	env := newEnv(t, admin("a1"), banned, user("u2"))
	svc := newAdminService(env)

	env.expectTx(true)
	require.NoError(t, svc.Unban(context.Background(), "a1", "u1"))
	p := env.stored(t, "u1")
	assert.False(t, p.IsBanned)
	assert.Empty(t, p.BanReason)

	env.expectTx(false)
	assert.ErrorIs(t, svc.Unban(context.Background(), "a1", "u2"), common.ErrConflict)
}

func TestBannedAdminLosesModerationRights(t *testing.T) {
	env := newEnv(t, admin("a1"), admin("a2"), withPending(user("u1"), fixedNow, map[string]string{"firstName": `"Anna"`}))
	env.repos.p.rows["a2"].IsBanned = true
	env.expectTx(false)

	_, err := newAdminService(env).ApproveSpecific(context.Background(), "a2", "u1", []string{"firstName"}, "")
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.Equal(t, models.GlobalPending, env.stored(t, "u1").PendingChanges.GlobalStatus)
}

func TestWarn(t *testing.T) {
	env := newEnv(t, admin("a1"), user("u1"))
	svc := newAdminService(env)

	env.expectTx(true)
	require.NoError(t, svc.Warn(context.Background(), "a1", "u1", "  Please keep it civil  ", " tone "))
	env.expectTx(true)
	require.NoError(t, svc.Warn(context.Background(), "a1", "u1", "Second notice", ""))

	p := env.stored(t, "u1")
	require.Len(t, p.Warnings, 2)
	assert.Equal(t, "Please keep it civil", p.Warnings[0].Message)
	assert.Equal(t, "tone", p.Warnings[0].Reason)
	assert.Equal(t, "a1", p.Warnings[0].IssuedBy)
	assert.False(t, p.Warnings[0].IssuedAt.IsZero())
	assert.Equal(t, "Second notice", p.Warnings[1].Message)

	require.Len(t, env.events.events, 2)
	assert.Equal(t, events.TypeUserWarned, env.events.events[0].Type)
	assert.Equal(t, "u1", env.events.events[0].UserID)
	require.NoError(t, env.mock.ExpectationsWereMet())
}

func TestWarn_Rejections(t *testing.T) {
	env := newEnv(t, admin("a1"), user("u1"), user("u2"))
	svc := newAdminService(env)

	assert.ErrorIs(t, svc.Warn(context.Background(), "a1", "a1", "Warning myself", ""), common.ErrBadRequest)
	assert.ErrorIs(t, svc.Warn(context.Background(), "a1", "u1", " hey ", ""), common.ErrValidation)

	env.expectTx(false)
	assert.ErrorIs(t, svc.Warn(context.Background(), "a1", "ghost", "Please keep it civil", ""), common.ErrNotFound)

	env.expectTx(false)
	assert.ErrorIs(t, svc.Warn(context.Background(), "u2", "u1", "Please keep it civil", ""), common.ErrForbidden)

	assert.Empty(t, env.stored(t, "u1").Warnings)
	assert.Empty(t, env.events.events)
	require.NoError(t, env.mock.ExpectationsWereMet())
}
