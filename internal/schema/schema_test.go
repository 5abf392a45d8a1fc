package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
)

func TestAssetFieldOrder(t *testing.T) {
	keys := make([]string, 0)
	for _, f := range FieldsFor(models.KindAsset) {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{
		"asset_tag", "model", "serial_number", "brand", "supplier",
		"date_purchased", "issued_to", "status", "location", "description",
	}, keys)
}

func TestRepairFieldOrder(t *testing.T) {
	keys := make([]string, 0)
	for _, f := range FieldsFor(models.KindRepair) {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{
		"asset_id", "issue_description", "requested_by", "date_requested",
		"assigned_technician", "date_started", "date_completed",
		"estimated_cost", "actual_cost", "parts_used",
	}, keys)
}

func TestAssetStatusEnum(t *testing.T) {
	values := EnumValuesFor(models.KindAsset, "status")
	assert.Equal(t, []string{
		"Unassigned", "Assigned", "Returned", "For Repair",
		"Repairing", "Archived", "Disposed",
	}, values)

	assert.Nil(t, EnumValuesFor(models.KindAsset, "brand"))
	assert.Nil(t, EnumValuesFor(models.KindRepair, "estimated_cost"))
}

func TestRequiredFlags(t *testing.T) {
	f, ok := FieldFor(models.KindAsset, "issued_to")
	require.True(t, ok)
	assert.False(t, f.Required)

	required := map[string]bool{}
	for _, f := range FieldsFor(models.KindRepair) {
		required[f.Key] = f.Required
	}
	assert.True(t, required["asset_id"])
	assert.True(t, required["issue_description"])
	assert.True(t, required["requested_by"])
	assert.True(t, required["date_requested"])
	assert.False(t, required["assigned_technician"])
	assert.False(t, required["parts_used"])
}

func TestLabelFor(t *testing.T) {
	assert.Equal(t, "Serial Number", LabelFor(models.KindAsset, "serial_number"))
	assert.Equal(t, "Asset", LabelFor(models.KindRepair, "asset_id"))
	assert.Equal(t, "Category", LabelFor(models.KindAsset, KeyCategory))
	assert.Equal(t, "Status", LabelFor(models.KindRepair, KeyRepairStatus))
	assert.Equal(t, "unknown_key", LabelFor(models.KindAsset, "unknown_key"))
}

func TestFieldsForUnknownKind(t *testing.T) {
	assert.Nil(t, FieldsFor(models.RecordKind("page")))
}
