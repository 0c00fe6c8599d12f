package moderation

import (
	"context"
	"encoding/json"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/server/models"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp is one segment of a character diff.
type DiffOp struct {
	Op   string `json:"op"`
	Text string `json:"text"`
}

// FieldDiff compares the canonical value of a field with its proposal.
type FieldDiff struct {
	Field    string             `json:"field"`
	Status   models.FieldStatus `json:"status"`
	Current  json.RawMessage    `json:"current"`
	Proposed json.RawMessage    `json:"proposed"`
	Ops      []DiffOp           `json:"ops"`
	Patch    string             `json:"patch"`
}

// Preview renders, for every entry in p's pending store, the current value,
// the proposed value and a semantic character diff between the two JSON
// renderings. Proposals that no longer decode are shown verbatim.
func (e *Engine) Preview(ctx context.Context, p *models.Profile) ([]FieldDiff, error) {
	pc := p.PendingChanges
	if pc == nil {
		return nil, common.NotFound("no pending changes for this user")
	}

	dmp := diffmatchpatch.New()
	now := e.now()
	out := make([]FieldDiff, 0, len(pc.Data))

	for _, name := range sortedKeys(pc.Data) {
		entry := pc.Data[name]

		cur, ok := CurrentValue(p, name)
		if !ok {
			continue
		}
		current, err := json.Marshal(cur)
		if err != nil {
			return nil, err
		}

		proposed := entry.Value
		if v, err := e.decode(ctx, name, entry.Value, now); err == nil {
			if b, err := json.Marshal(v); err == nil {
				proposed = b
			}
		}

		diffs := dmp.DiffMain(string(current), string(proposed), false)
		diffs = dmp.DiffCleanupSemantic(diffs)

		ops := make([]DiffOp, 0, len(diffs))
		for _, d := range diffs {
			ops = append(ops, DiffOp{Op: opName(d.Type), Text: d.Text})
		}

		out = append(out, FieldDiff{
			Field:    name,
			Status:   entry.Status,
			Current:  current,
			Proposed: proposed,
			Ops:      ops,
			Patch:    dmp.PatchToText(dmp.PatchMake(string(current), diffs)),
		})
	}
	return out, nil
}

func opName(t diffmatchpatch.Operation) string {
	switch t {
	case diffmatchpatch.DiffInsert:
		return "insert"
	case diffmatchpatch.DiffDelete:
		return "delete"
	}
	return "equal"
}
