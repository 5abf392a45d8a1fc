package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

type repairFixture struct {
	svc     *RepairService
	records *mockRecordRepo
	terms   *mockTerms
	history *mockHistory
	check   *mockFormValidator
}

func newRepairFixture() *repairFixture {
	records := newMockRecordRepo()
	users := &mockUsers{names: map[int64]string{7: "Jane Reyes", 9: "Mark Cruz"}}
	terms := &mockTerms{terms: map[int64]models.Term{
		21: {ID: 21, Name: "Pending", Slug: "pending", Taxonomy: models.TaxonomyRepairStatus},
		22: {ID: 22, Name: "In Progress", Slug: "in-progress", Taxonomy: models.TaxonomyRepairStatus},
	}}
	history := &mockHistory{}
	check := &mockFormValidator{}
	svc := NewRepairService(
		records, users, terms, history, &mockCache{}, check,
		NewChangeLog(users, terms), 45*time.Second, zap.NewNop(),
	)
	return &repairFixture{svc: svc, records: records, terms: terms, history: history, check: check}
}

func validRepairInput(assetID string) map[string]string {
	return map[string]string{
		"asset_id":            assetID,
		"issue_description":   "Screen flickers",
		"requested_by":        "7",
		"date_requested":      "2026-08-01",
		"assigned_technician": "",
		"date_started":        "",
		"date_completed":      "",
		"estimated_cost":      "",
		"actual_cost":         "",
		"parts_used":          "",
		"repair_status":       "21",
	}
}

func TestRepairServiceSaveCreateTitlesAfterAsset(t *testing.T) {
	f := newRepairFixture()
	asset := f.records.addRecord(models.KindAsset, "ASSET00003", nil)

	repair, fieldErrors, err := f.svc.Save(context.Background(), 0, validRepairInput("1"), &models.User{ID: 7, DisplayName: "Jane Reyes"})
	require.NoError(t, err)
	assert.Empty(t, fieldErrors)
	assert.Equal(t, "Repair Request for ASSET00003", repair.Title)
	assert.Equal(t, asset.Title, repair.AssetTitle)
	require.NotNil(t, repair.Status)
	assert.Equal(t, "Pending", repair.Status.Name)
	require.Len(t, f.history.entries, 1)
	assert.Contains(t, f.history.entries[0].Note, `Status changed from "None" to "Pending"`)
}

func TestRepairServiceSaveCreateUnknownAssetTitle(t *testing.T) {
	f := newRepairFixture()

	repair, _, err := f.svc.Save(context.Background(), 0, validRepairInput("99"), &models.User{ID: 7})
	require.NoError(t, err)
	assert.Equal(t, "Repair Request for Unknown Asset", repair.Title)
}

func TestRepairServiceSaveDeletesBlankMetaKeepsZero(t *testing.T) {
	f := newRepairFixture()
	f.records.addRecord(models.KindAsset, "ASSET00001", nil)
	rec := f.records.addRecord(models.KindRepair, "Repair Request for ASSET00001", map[string]string{
		"asset_id":          "1",
		"issue_description": "Screen flickers",
		"requested_by":      "7",
		"date_requested":    "2026-08-01",
		"parts_used":        "Hinge set",
		"actual_cost":       "150.50",
	})
	f.records.terms[rec.ID][models.TaxonomyRepairStatus] = 21

	form := validRepairInput("1")
	form["parts_used"] = ""
	form["actual_cost"] = "0"

	_, _, err := f.svc.Save(context.Background(), rec.ID, form, &models.User{ID: 7, DisplayName: "Jane Reyes"})
	require.NoError(t, err)

	_, hasParts := f.records.meta[rec.ID]["parts_used"]
	assert.False(t, hasParts)
	assert.Equal(t, "0", f.records.meta[rec.ID]["actual_cost"])
}

func TestRepairServiceSaveStatusChangeLogsTermNames(t *testing.T) {
	f := newRepairFixture()
	f.records.addRecord(models.KindAsset, "ASSET00001", nil)
	rec := f.records.addRecord(models.KindRepair, "Repair Request for ASSET00001", map[string]string{
		"asset_id":          "1",
		"issue_description": "Screen flickers",
		"requested_by":      "7",
		"date_requested":    "2026-08-01",
	})
	f.records.terms[rec.ID][models.TaxonomyRepairStatus] = 21

	form := validRepairInput("1")
	form["repair_status"] = "22"

	_, _, err := f.svc.Save(context.Background(), rec.ID, form, &models.User{ID: 7, DisplayName: "Jane Reyes"})
	require.NoError(t, err)
	require.Len(t, f.history.entries, 1)
	assert.Contains(t, f.history.entries[0].Note, `Status changed from "Pending" to "In Progress"`)
	assert.Equal(t, int64(22), f.records.terms[rec.ID][models.TaxonomyRepairStatus])
}

func TestRepairServiceSaveNoChangeAppendsNoHistory(t *testing.T) {
	f := newRepairFixture()
	f.records.addRecord(models.KindAsset, "ASSET00001", nil)
	rec := f.records.addRecord(models.KindRepair, "Repair Request for ASSET00001", map[string]string{
		"asset_id":            "1",
		"issue_description":   "Screen flickers",
		"requested_by":        "7",
		"date_requested":      "2026-08-01",
		"assigned_technician": "0",
	})
	f.records.terms[rec.ID][models.TaxonomyRepairStatus] = 21

	_, _, err := f.svc.Save(context.Background(), rec.ID, validRepairInput("1"), &models.User{ID: 7})
	require.NoError(t, err)
	assert.Empty(t, f.history.entries)
}

func TestRepairServiceProjectionResolvesReferences(t *testing.T) {
	f := newRepairFixture()
	f.records.addRecord(models.KindAsset, "ASSET00001", nil)
	rec := f.records.addRecord(models.KindRepair, "Repair Request for ASSET00001", map[string]string{
		"asset_id":            "1",
		"issue_description":   "Screen flickers",
		"requested_by":        "7",
		"assigned_technician": "9",
		"date_requested":      "2026-08-01",
	})
	f.records.terms[rec.ID][models.TaxonomyRepairStatus] = 22

	repair, err := f.svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "ASSET00001", repair.AssetTitle)
	assert.Equal(t, "Jane Reyes", repair.RequestedByName)
	assert.Equal(t, "Mark Cruz", repair.TechnicianName)
	require.NotNil(t, repair.Status)
	assert.Equal(t, "In Progress", repair.Status.Name)
}
