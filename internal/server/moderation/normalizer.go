package moderation

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/models"
)

// Catalog resolves specialization ids to catalog entries.
type Catalog interface {
	FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error)
}

// Issue describes a problem found in one specialization entry.
type Issue struct {
	Index   int
	Problem string
}

func (i Issue) String() string {
	return fmt.Sprintf("specialization %d: %s", i.Index+1, i.Problem)
}

var methodAliases = map[string]string{
	models.MethodResidency:  models.MethodResidency,
	models.MethodRetraining: models.MethodRetraining,
	"residency":             models.MethodResidency,
	"retraining":            models.MethodRetraining,
}

var categoryAliases = map[string]string{
	models.CategorySecond:  models.CategorySecond,
	models.CategoryFirst:   models.CategoryFirst,
	models.CategoryHighest: models.CategoryHighest,
	"second":               models.CategorySecond,
	"first":                models.CategoryFirst,
	"highest":              models.CategoryHighest,
}

// identityKeys are stripped from embedded entries; specializations carry no
// identity of their own inside a profile.
var identityKeys = []string{"_id", "id"}

// Normalizer coerces the specialization shapes clients have sent over time
// into []models.Specialization and keeps cached names in sync with the
// catalog.
type Normalizer struct {
	catalog Catalog
	logger  logging.Logger
	strict  bool
}

// NewNormalizer builds a Normalizer. In strict mode an entry missing a
// required sub-field fails the whole list; otherwise it is logged and kept.
func NewNormalizer(catalog Catalog, logger logging.Logger, strict bool) *Normalizer {
	return &Normalizer{
		catalog: catalog,
		logger:  logger.With("module", "specialization_normalizer"),
		strict:  strict,
	}
}

// Normalize decodes raw into canonical specializations.
func (n *Normalizer) Normalize(ctx context.Context, raw json.RawMessage) ([]models.Specialization, error) {
	specs, issues, err := coerceSpecializations(raw)
	if err != nil {
		return nil, err
	}
	if len(issues) == 0 {
		return specs, nil
	}

	if n.strict {
		problems := make([]string, 0, len(issues))
		for _, is := range issues {
			problems = append(problems, is.String())
		}
		return nil, common.Validation("invalid specialization entries: "+strings.Join(problems, "; "), FieldSpecialization)
	}

	for _, is := range issues {
		n.logger.Warn(ctx, "specialization entry admitted with problems", "index", is.Index, "problem", is.Problem)
	}
	return specs, nil
}

// ResolveNames returns a copy of specs with Name refreshed from the catalog.
// Lookups are memoised for the duration of the call. A failed lookup is
// logged and leaves the existing name untouched.
func (n *Normalizer) ResolveNames(ctx context.Context, specs []models.Specialization) []models.Specialization {
	out := append([]models.Specialization(nil), specs...)
	if n.catalog == nil {
		return out
	}

	memo := make(map[string]string)
	for i := range out {
		id := out[i].SpecializationID
		if id == "" {
			continue
		}
		label, seen := memo[id]
		if !seen {
			entry, err := n.catalog.FindByID(ctx, id)
			if err != nil {
				n.logger.Warn(ctx, "catalog lookup failed", "specialization_id", id, "error", err)
				memo[id] = ""
				continue
			}
			label = entry.Label
			memo[id] = label
		}
		if label != "" {
			out[i].Name = label
		}
	}
	return out
}

// coerceSpecializations accepts an array of entries, a single entry object
// or a bare id string. Entries may themselves be objects or id strings.
func coerceSpecializations(raw json.RawMessage) ([]models.Specialization, []Issue, error) {
	if isNull(raw) {
		return []models.Specialization{}, nil, nil
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, nil, common.Validation("specialization is not valid JSON", FieldSpecialization)
	}

	var items []any
	switch v := decoded.(type) {
	case []any:
		items = v
	case map[string]any, string:
		items = []any{v}
	default:
		return nil, nil, common.Validation("specialization must be an array", FieldSpecialization)
	}

	var issues []Issue
	out := make([]models.Specialization, 0, len(items))
	for i, item := range items {
		var entry map[string]any
		switch v := item.(type) {
		case map[string]any:
			entry = v
		case string:
			entry = map[string]any{"specializationId": v}
		default:
			return nil, nil, common.Validation(fmt.Sprintf("specialization %d must be an object", i+1), FieldSpecialization)
		}

		spec, problems := coerceEntry(entry)
		for _, p := range problems {
			issues = append(issues, Issue{Index: i, Problem: p})
		}
		out = append(out, spec)
	}
	return out, issues, nil
}

func coerceEntry(entry map[string]any) (models.Specialization, []string) {
	for _, k := range identityKeys {
		delete(entry, k)
	}

	var spec models.Specialization
	var problems []string

	spec.SpecializationID = referenceID(entry["specializationId"])
	if spec.SpecializationID == "" {
		problems = append(problems, "specializationId is required")
	}

	if name, ok := entry["name"].(string); ok {
		spec.Name = strings.TrimSpace(name)
	}

	method := extractEnum(entry["method"])
	switch canonical, ok := methodAliases[method]; {
	case method == "":
		problems = append(problems, "method is required")
	case !ok:
		problems = append(problems, fmt.Sprintf("unknown method %q", method))
		spec.Method = method
	default:
		spec.Method = canonical
	}

	if category := extractEnum(entry["qualificationCategory"]); category != "" {
		if canonical, ok := categoryAliases[category]; ok {
			spec.QualificationCategory = canonical
		} else {
			problems = append(problems, fmt.Sprintf("unknown qualification category %q", category))
			spec.QualificationCategory = category
		}
	}

	primary, ok := entry["isPrimary"]
	if !ok {
		primary = entry["main"]
	}
	spec.IsPrimary = truthy(primary)

	return spec, problems
}

// extractEnum reads an enum that is either a plain string or an object
// carrying the value under "type" or, failing that, "enum".
func extractEnum(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		if s := extractEnumLeaf(t["type"]); s != "" {
			return s
		}
		return extractEnumLeaf(t["enum"])
	}
	return ""
}

func extractEnumLeaf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// referenceID reads an id given as a string, a number or a populated
// reference object.
func referenceID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case map[string]any:
		for _, k := range []string{"_id", "$oid", "id"} {
			if s := referenceID(t[k]); s != "" {
				return s
			}
		}
	}
	return ""
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(t))
		return b
	}
	return false
}
