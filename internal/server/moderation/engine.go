package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/models"
)

// DefaultRejectCommentMinLength is the minimum length of a rejection comment.
const DefaultRejectCommentMinLength = 3

// Engine applies submissions and moderator decisions to a profile held in
// memory. Every operation validates and decodes everything it needs before
// touching the profile, so a returned error means the profile is unchanged.
type Engine struct {
	normalizer       *Normalizer
	now              func() time.Time
	rejectCommentMin int
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRejectCommentMinLength overrides the minimum rejection comment length.
func WithRejectCommentMinLength(n int) Option {
	return func(e *Engine) { e.rejectCommentMin = n }
}

func NewEngine(n *Normalizer, opts ...Option) *Engine {
	e := &Engine{
		normalizer:       n,
		now:              func() time.Time { return time.Now().UTC() },
		rejectCommentMin: DefaultRejectCommentMinLength,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Decision identifies the moderator and carries their optional comment.
type Decision struct {
	ModeratorID string
	Comment     string
}

// SubmitResult reports where each submitted field went.
type SubmitResult struct {
	AppliedImmediately []string
	SentToModeration   []string
}

// RequiresModeration reports whether any field was queued for review.
func (r *SubmitResult) RequiresModeration() bool { return len(r.SentToModeration) > 0 }

// Message is a human-readable summary of the submission.
func (r *SubmitResult) Message() string {
	switch {
	case len(r.SentToModeration) > 0 && len(r.AppliedImmediately) > 0:
		return fmt.Sprintf("Some changes were applied immediately (%s), the rest were sent to moderation (%s)",
			strings.Join(r.AppliedImmediately, ", "), strings.Join(r.SentToModeration, ", "))
	case len(r.SentToModeration) > 0:
		return fmt.Sprintf("Changes were sent to moderation (%s)", strings.Join(r.SentToModeration, ", "))
	default:
		return fmt.Sprintf("Profile updated (%s)", strings.Join(r.AppliedImmediately, ", "))
	}
}

// Outcome summarises a moderator decision.
type Outcome struct {
	Committed    []string
	Rejected     []string
	Remaining    []string
	GlobalStatus models.GlobalStatus
}

// Submit classifies and validates payload, writes immediate fields into p
// and merges moderated fields into p's pending store. A resubmitted field
// replaces any earlier entry for the same name with a fresh pending one;
// other entries are left alone.
func (e *Engine) Submit(ctx context.Context, p *models.Profile, payload Payload) (*SubmitResult, error) {
	c, err := Classify(payload)
	if err != nil {
		return nil, err
	}
	now := e.now()

	immediate := make(map[string]FieldValue, len(c.Immediate))
	for name, raw := range c.Immediate {
		v, err := e.decode(ctx, name, raw, now)
		if err != nil {
			return nil, err
		}
		immediate[name] = v
	}

	moderated := make(map[string]json.RawMessage, len(c.Moderated))
	for name, raw := range c.Moderated {
		v, err := e.decode(ctx, name, raw, now)
		if err != nil {
			return nil, err
		}
		canonical, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", name, err)
		}
		moderated[name] = canonical
	}

	for _, name := range c.ImmediateNames() {
		applyField(p, name, immediate[name], now)
	}

	if len(moderated) > 0 {
		pc := p.PendingChanges
		if pc == nil {
			pc = &models.PendingChanges{}
			p.PendingChanges = pc
		}
		if pc.Data == nil {
			pc.Data = make(map[string]models.PendingField, len(moderated))
		}
		for name, raw := range moderated {
			pc.Data[name] = models.PendingField{Value: raw, Status: models.FieldPending}
		}
		pc.GlobalStatus = models.GlobalPending
		pc.SubmittedAt = now
		pc.ModeratorID = ""
		pc.ModeratedAt = nil
		pc.ModeratorComment = ""
	}

	return &SubmitResult{
		AppliedImmediately: c.ImmediateNames(),
		SentToModeration:   c.ModeratedNames(),
	}, nil
}

// ApproveAll commits every pending entry into p and clears the store.
// The store must exist and be globally pending.
func (e *Engine) ApproveAll(ctx context.Context, p *models.Profile, d Decision) (*Outcome, error) {
	pc, err := requirePending(p)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, name := range sortedKeys(pc.Data) {
		if pc.Data[name].Status == models.FieldPending {
			names = append(names, name)
		}
	}

	values, err := e.decodeStored(ctx, pc, names)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, name := range names {
		applyField(p, name, values[name], now)
	}

	pc.Data = map[string]models.PendingField{}
	pc.GlobalStatus = ComputeGlobalStatus(pc.Data)
	stamp(pc, d, strings.TrimSpace(d.Comment), now)

	return &Outcome{Committed: names, GlobalStatus: pc.GlobalStatus}, nil
}

// RejectAll marks every entry rejected. The comment is mandatory and the
// entries stay in the store so the user can see what was declined.
func (e *Engine) RejectAll(_ context.Context, p *models.Profile, d Decision) (*Outcome, error) {
	comment, err := ValidateComment(d.Comment, e.rejectCommentMin)
	if err != nil {
		return nil, err
	}
	pc, err := requirePending(p)
	if err != nil {
		return nil, err
	}

	names := sortedKeys(pc.Data)
	for _, name := range names {
		f := pc.Data[name]
		f.Status = models.FieldRejected
		pc.Data[name] = f
	}
	pc.GlobalStatus = ComputeGlobalStatus(pc.Data)
	stamp(pc, d, comment, e.now())

	return &Outcome{Rejected: names, Remaining: names, GlobalStatus: pc.GlobalStatus}, nil
}

// ApproveSpecific commits the named entries and removes them from the
// store; other entries keep their status. Every name must currently be
// pending, otherwise nothing is applied.
func (e *Engine) ApproveSpecific(ctx context.Context, p *models.Profile, fields []string, d Decision) (*Outcome, error) {
	if len(fields) == 0 {
		return nil, common.Validation("fieldsToApprove must list at least one field")
	}
	pc := p.PendingChanges
	if pc == nil {
		return nil, common.NotFound("no pending changes for this user")
	}

	seen := make(map[string]struct{}, len(fields))
	var names, invalid []string
	for _, f := range fields {
		name := CanonicalName(strings.TrimSpace(f))
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		entry, ok := pc.Data[name]
		if !ok || entry.Status != models.FieldPending {
			invalid = append(invalid, f)
			continue
		}
		names = append(names, name)
	}
	if len(invalid) > 0 {
		return nil, common.Conflict("fields are missing or already processed", invalid...)
	}
	sort.Strings(names)

	values, err := e.decodeStored(ctx, pc, names)
	if err != nil {
		return nil, err
	}

	now := e.now()
	for _, name := range names {
		applyField(p, name, values[name], now)
		delete(pc.Data, name)
	}
	pc.GlobalStatus = ComputeGlobalStatus(pc.Data)
	stamp(pc, d, strings.TrimSpace(d.Comment), now)

	return &Outcome{Committed: names, Remaining: sortedKeys(pc.Data), GlobalStatus: pc.GlobalStatus}, nil
}

// CheckModerator verifies the acting account may moderate.
func CheckModerator(moderator *models.Profile) error {
	if moderator == nil || !common.IsModeratorRole(moderator.Role) {
		return common.Forbidden("moderation requires the admin or owner role")
	}
	if moderator.IsBanned {
		return common.Forbidden("banned accounts cannot moderate")
	}
	return nil
}

func requirePending(p *models.Profile) (*models.PendingChanges, error) {
	pc := p.PendingChanges
	if pc == nil {
		return nil, common.NotFound("no pending changes for this user")
	}
	if pc.GlobalStatus != models.GlobalPending {
		return nil, common.Conflict(fmt.Sprintf("changes are not awaiting moderation (status %s)", pc.GlobalStatus))
	}
	return pc, nil
}

func stamp(pc *models.PendingChanges, d Decision, comment string, now time.Time) {
	pc.ModeratorID = d.ModeratorID
	pc.ModeratedAt = &now
	pc.ModeratorComment = comment
}

// decode turns a submitted value into a validated FieldValue.
func (e *Engine) decode(ctx context.Context, name string, raw json.RawMessage, now time.Time) (FieldValue, error) {
	kind, ok := KindOf(name)
	if !ok {
		return FieldValue{}, common.Validation("disallowed fields", name)
	}

	var (
		v   FieldValue
		err error
	)
	switch kind {
	case KindString:
		v, err = decodeString(name, raw)
	case KindDate:
		v, err = decodeDate(name, raw)
	case KindEducation:
		v, err = decodeEducation(name, raw)
	case KindContacts:
		v, err = decodeContacts(name, raw)
	case KindSpecializations:
		var specs []models.Specialization
		specs, err = e.normalizer.Normalize(ctx, raw)
		v = SpecializationsValue(specs)
	}
	if err != nil {
		return FieldValue{}, err
	}
	if err := validateField(name, v, now); err != nil {
		return FieldValue{}, err
	}
	return v, nil
}

// decodeStored decodes the named store entries for commit. Specializations
// go through the normalizer again and get their names from the catalog.
func (e *Engine) decodeStored(ctx context.Context, pc *models.PendingChanges, names []string) (map[string]FieldValue, error) {
	now := e.now()
	out := make(map[string]FieldValue, len(names))
	for _, name := range names {
		v, err := e.decode(ctx, name, pc.Data[name].Value, now)
		if err != nil {
			return nil, fmt.Errorf("stored value of %s: %w", name, err)
		}
		if v.Kind == KindSpecializations {
			v.Specializations = e.normalizer.ResolveNames(ctx, v.Specializations)
		}
		out[name] = v
	}
	return out, nil
}
