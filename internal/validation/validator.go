package validation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/schema"
)

// AssetLookup resolves asset references during validation.
type AssetLookup interface {
	AssetExists(ctx context.Context, id int64) (bool, error)
}

// TermLookup resolves taxonomy term references during validation.
type TermLookup interface {
	TermExists(ctx context.Context, id int64, taxonomy string) (bool, error)
}

// Validator checks a submitted field map against the record schema and
// collects every violated rule into a human-readable error list.
type Validator struct {
	assets AssetLookup
	terms  TermLookup
}

// New builds a Validator with the given reference resolvers.
func New(assets AssetLookup, terms TermLookup) *Validator {
	return &Validator{assets: assets, terms: terms}
}

// Validate returns all rule violations at once. An empty slice means
// the submission may be persisted. The returned error is reserved for
// lookup failures, not user input problems.
func (v *Validator) Validate(ctx context.Context, kind models.RecordKind, form map[string]string) ([]string, error) {
	switch kind {
	case models.KindAsset:
		return v.validateAsset(ctx, form)
	case models.KindRepair:
		return v.validateRepair(ctx, form)
	default:
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

func (v *Validator) validateAsset(ctx context.Context, form map[string]string) ([]string, error) {
	errs := []string{}

	for _, f := range schema.FieldsFor(models.KindAsset) {
		value := strings.TrimSpace(form[f.Key])

		switch f.Key {
		case "date_purchased":
			if value == "" || value == "0" {
				errs = append(errs, fmt.Sprintf("The %s field is required.", f.Label))
			} else if !validDate(value) {
				errs = append(errs, fmt.Sprintf("The %s field has an invalid date format. Please use YYYY-MM-DD.", f.Label))
			}
		case "status":
			if value == "" {
				errs = append(errs, fmt.Sprintf("The %s field is required; please select a status.", f.Label))
			} else if !contains(f.Enum, value) {
				errs = append(errs, fmt.Sprintf("Invalid value selected for the %s field.", f.Label))
			}
		case "issued_to":
			// Allowed to be empty only when the submitted status is
			// exactly "Unassigned".
			if value == "" {
				status := strings.TrimSpace(form["status"])
				if status != string(models.StatusUnassigned) {
					errs = append(errs, fmt.Sprintf("The %s field is required; please select a user unless status is Unassigned.", f.Label))
				}
			}
		default:
			// The literal "0" is a legitimate value, never "empty".
			if value == "" {
				errs = append(errs, fmt.Sprintf("The %s field is required.", f.Label))
			}
		}
	}

	category := strings.TrimSpace(form[schema.KeyCategory])
	if category == "" || category == "0" {
		errs = append(errs, fmt.Sprintf("The %s field is required; please select a category.", schema.LabelCategory))
	} else if termID := parseID(category); termID > 0 {
		ok, err := v.terms.TermExists(ctx, termID, models.TaxonomyCategory)
		if err != nil {
			return nil, fmt.Errorf("resolve category term: %w", err)
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("Invalid Category selected for the %s field.", schema.LabelCategory))
		}
	}

	return errs, nil
}

func (v *Validator) validateRepair(ctx context.Context, form map[string]string) ([]string, error) {
	errs := []string{}

	for _, f := range schema.FieldsFor(models.KindRepair) {
		value := strings.TrimSpace(form[f.Key])

		if f.Required && value == "" {
			errs = append(errs, fmt.Sprintf("The %s field is required.", f.Label))
		}

		if f.Type == schema.TypeDate && value != "" && value != "0" && !validDate(value) {
			errs = append(errs, fmt.Sprintf("The %s field has an invalid date format. Please use YYYY-MM-DD.", f.Label))
		}

		if f.Type == schema.TypeNumeric && value != "" && value != "0" && !isNumeric(value) {
			errs = append(errs, fmt.Sprintf("The %s field must be a number.", f.Label))
		}
	}

	if assetID := parseID(form["asset_id"]); assetID > 0 {
		ok, err := v.assets.AssetExists(ctx, assetID)
		if err != nil {
			return nil, fmt.Errorf("resolve asset: %w", err)
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("Invalid Asset selected for the %s field.", schema.LabelFor(models.KindRepair, "asset_id")))
		}
	}

	statusID := parseID(form[schema.KeyRepairStatus])
	if statusID == 0 {
		errs = append(errs, fmt.Sprintf("The %s field is required; please select a status.", schema.LabelStatus))
	} else {
		ok, err := v.terms.TermExists(ctx, statusID, models.TaxonomyRepairStatus)
		if err != nil {
			return nil, fmt.Errorf("resolve repair status term: %w", err)
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("Invalid Status selected for the %s field.", schema.LabelStatus))
		}
	}

	return errs, nil
}

// validDate accepts only canonical YYYY-MM-DD values that round-trip
// exactly, rejecting impossible calendar dates.
func validDate(value string) bool {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return false
	}
	return t.Format("2006-01-02") == value
}

func isNumeric(value string) bool {
	_, err := strconv.ParseFloat(value, 64)
	return err == nil
}

// parseID coerces a reference value to a non-negative integer; any
// garbage becomes zero, which reads as "unset".
func parseID(value string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func contains(set []string, value string) bool {
	for _, s := range set {
		if s == value {
			return true
		}
	}
	return false
}
