package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/query"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

type mockRecordRepo struct {
	nextID   int64
	records  map[int64]*models.Record
	meta     map[int64]map[string]string
	terms    map[int64]map[string]int64
	titleMax int
	touched  []int64
	deleted  []int64
}

func newMockRecordRepo() *mockRecordRepo {
	return &mockRecordRepo{
		records: map[int64]*models.Record{},
		meta:    map[int64]map[string]string{},
		terms:   map[int64]map[string]int64{},
	}
}

func (m *mockRecordRepo) addRecord(kind models.RecordKind, title string, meta map[string]string) *models.Record {
	m.nextID++
	rec := &models.Record{ID: m.nextID, Kind: kind, Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.records[rec.ID] = rec
	if meta == nil {
		meta = map[string]string{}
	}
	m.meta[rec.ID] = meta
	m.terms[rec.ID] = map[string]int64{}
	return rec
}

func (m *mockRecordRepo) Create(ctx context.Context, kind models.RecordKind, title string) (*models.Record, error) {
	return m.addRecord(kind, title, nil), nil
}

func (m *mockRecordRepo) FindByID(ctx context.Context, id int64) (*models.Record, error) {
	if rec, ok := m.records[id]; ok {
		return rec, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRecordRepo) UpdateTitle(ctx context.Context, id int64, title string) error {
	m.records[id].Title = title
	return nil
}

func (m *mockRecordRepo) Touch(ctx context.Context, id int64) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockRecordRepo) Delete(ctx context.Context, id int64) error {
	m.deleted = append(m.deleted, id)
	delete(m.records, id)
	return nil
}

func (m *mockRecordRepo) GetMeta(ctx context.Context, recordID int64) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range m.meta[recordID] {
		out[k] = v
	}
	return out, nil
}

func (m *mockRecordRepo) SetMeta(ctx context.Context, recordID int64, key, value string) error {
	if m.meta[recordID] == nil {
		m.meta[recordID] = map[string]string{}
	}
	m.meta[recordID][key] = value
	return nil
}

func (m *mockRecordRepo) DeleteMeta(ctx context.Context, recordID int64, key string) error {
	delete(m.meta[recordID], key)
	return nil
}

func (m *mockRecordRepo) TermIDFor(ctx context.Context, recordID int64, taxonomy string) (int64, error) {
	return m.terms[recordID][taxonomy], nil
}

func (m *mockRecordRepo) SetTerm(ctx context.Context, recordID int64, taxonomy string, termID int64) error {
	if m.terms[recordID] == nil {
		m.terms[recordID] = map[string]int64{}
	}
	m.terms[recordID][taxonomy] = termID
	return nil
}

func (m *mockRecordRepo) MaxTitleSequence(ctx context.Context, kind models.RecordKind, prefix string) (int, error) {
	return m.titleMax, nil
}

func (m *mockRecordRepo) List(ctx context.Context, c *query.Composer, page, pageSize int, sortBy, sortOrder string) ([]models.Record, int, error) {
	var out []models.Record
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, len(out), nil
}

func (m *mockRecordRepo) ListAll(ctx context.Context, c *query.Composer, sortBy, sortOrder string) ([]models.Record, error) {
	var out []models.Record
	for _, rec := range m.records {
		out = append(out, *rec)
	}
	return out, nil
}

type mockUsers struct {
	names map[int64]string
	ids   []int64
}

func (m *mockUsers) DisplayName(ctx context.Context, id int64) (string, bool, error) {
	name, ok := m.names[id]
	return name, ok, nil
}

func (m *mockUsers) SearchIDs(ctx context.Context, fragment string) ([]int64, error) {
	return m.ids, nil
}

type mockTerms struct {
	terms map[int64]models.Term
	ids   []int64
}

func (m *mockTerms) NameByID(ctx context.Context, id int64) (string, bool, error) {
	t, ok := m.terms[id]
	return t.Name, ok, nil
}

func (m *mockTerms) FindByID(ctx context.Context, id int64) (*models.Term, error) {
	if t, ok := m.terms[id]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockTerms) SearchIDs(ctx context.Context, taxonomy, fragment string) ([]int64, error) {
	return m.ids, nil
}

type mockHistory struct {
	entries []models.HistoryEntry
}

func (m *mockHistory) Append(ctx context.Context, entry *models.HistoryEntry) error {
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockHistory) ListByRecord(ctx context.Context, recordID int64) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	for _, e := range m.entries {
		if e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockAttachments struct {
	attachments map[int64]models.Attachment
	nextID      int64
}

func (m *mockAttachments) Create(ctx context.Context, att *models.Attachment) error {
	if m.attachments == nil {
		m.attachments = map[int64]models.Attachment{}
	}
	m.nextID++
	att.ID = m.nextID
	m.attachments[att.ID] = *att
	return nil
}

func (m *mockAttachments) FindByID(ctx context.Context, id int64) (*models.Attachment, error) {
	if att, ok := m.attachments[id]; ok {
		return &att, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAttachments) ListByRecord(ctx context.Context, recordID int64) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, att := range m.attachments {
		if att.RecordID == recordID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (m *mockAttachments) ListByNote(ctx context.Context, noteID int64) ([]models.Attachment, error) {
	var out []models.Attachment
	for _, att := range m.attachments {
		if att.NoteID != nil && *att.NoteID == noteID {
			out = append(out, att)
		}
	}
	return out, nil
}

func (m *mockAttachments) Delete(ctx context.Context, id int64) error {
	delete(m.attachments, id)
	return nil
}

type mockCache struct {
	values map[string][]string
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.values == nil {
		m.values = map[string][]string{}
	}
	m.values[key] = value.([]string)
	return nil
}

func (m *mockCache) Take(ctx context.Context, key string, dest interface{}) error {
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	delete(m.values, key)
	*dest.(*[]string) = v
	return nil
}

type mockFormValidator struct {
	errors []string
}

func (m *mockFormValidator) Validate(ctx context.Context, kind models.RecordKind, form map[string]string) ([]string, error) {
	return m.errors, nil
}

type mockFiles struct {
	saved   []string
	deleted []string
}

func (m *mockFiles) SaveStream(filename string, r io.Reader) (string, error) {
	m.saved = append(m.saved, filename)
	return filename, nil
}

func (m *mockFiles) Delete(filename string) error {
	m.deleted = append(m.deleted, filename)
	return nil
}

type assetFixture struct {
	svc     *AssetService
	records *mockRecordRepo
	users   *mockUsers
	terms   *mockTerms
	history *mockHistory
	cache   *mockCache
	check   *mockFormValidator
}

func newAssetFixture() *assetFixture {
	records := newMockRecordRepo()
	users := &mockUsers{names: map[int64]string{7: "Jane Reyes", 9: "Mark Cruz"}}
	terms := &mockTerms{terms: map[int64]models.Term{
		12: {ID: 12, Name: "Laptops", Slug: "laptops", Taxonomy: models.TaxonomyCategory},
	}}
	history := &mockHistory{}
	cache := &mockCache{}
	check := &mockFormValidator{}
	svc := NewAssetService(
		records, users, terms, history, &mockAttachments{}, cache, nil, check,
		NewChangeLog(users, terms), 45*time.Second, zap.NewNop(),
	)
	return &assetFixture{svc: svc, records: records, users: users, terms: terms, history: history, cache: cache, check: check}
}

func validAssetInput() map[string]string {
	return map[string]string{
		"asset_tag":      "IT-0001",
		"model":          "Latitude 5440",
		"serial_number":  "SN-123",
		"brand":          "Dell",
		"supplier":       "TechSource",
		"date_purchased": "2024-02-29",
		"issued_to":      "",
		"status":         "Unassigned",
		"location":       "HQ 3F",
		"description":    "Standard issue laptop",
		"asset_category": "12",
	}
}

func TestAssetServiceSaveCreateGeneratesSequentialTitle(t *testing.T) {
	f := newAssetFixture()
	f.records.titleMax = 7

	asset, fieldErrors, err := f.svc.Save(context.Background(), 0, validAssetInput(), &models.User{ID: 7, DisplayName: "Jane Reyes"})
	require.NoError(t, err)
	assert.Empty(t, fieldErrors)
	assert.Equal(t, "ASSET00008", asset.Title)
	assert.Equal(t, "Dell", asset.Brand)
	require.Len(t, asset.Categories, 1)
	assert.Equal(t, "Laptops", asset.Categories[0].Name)

	require.Len(t, f.history.entries, 1)
	assert.Equal(t, "Jane Reyes", f.history.entries[0].User)
	assert.Contains(t, f.history.entries[0].Note, `Category changed from "None" to "Laptops"`)
}

func TestAssetServiceSaveNoChangeAppendsNoHistory(t *testing.T) {
	f := newAssetFixture()
	rec := f.records.addRecord(models.KindAsset, "ASSET00001", map[string]string{
		"asset_tag":      "IT-0001",
		"model":          "Latitude 5440",
		"serial_number":  "SN-123",
		"brand":          "Dell",
		"supplier":       "TechSource",
		"date_purchased": "2024-02-29",
		"issued_to":      "0",
		"status":         "Unassigned",
		"location":       "HQ 3F",
		"description":    "Standard issue laptop",
	})
	f.records.terms[rec.ID][models.TaxonomyCategory] = 12

	_, fieldErrors, err := f.svc.Save(context.Background(), rec.ID, validAssetInput(), &models.User{ID: 7, DisplayName: "Jane Reyes"})
	require.NoError(t, err)
	assert.Empty(t, fieldErrors)
	assert.Empty(t, f.history.entries)
	assert.Empty(t, f.records.touched)
}

func TestAssetServiceSaveIssuedToChangeLogsBothNames(t *testing.T) {
	f := newAssetFixture()
	rec := f.records.addRecord(models.KindAsset, "ASSET00001", map[string]string{
		"asset_tag":      "IT-0001",
		"model":          "Latitude 5440",
		"serial_number":  "SN-123",
		"brand":          "Dell",
		"supplier":       "TechSource",
		"date_purchased": "2024-02-29",
		"issued_to":      "7",
		"status":         "Assigned",
		"location":       "HQ 3F",
		"description":    "Standard issue laptop",
	})
	f.records.terms[rec.ID][models.TaxonomyCategory] = 12

	form := validAssetInput()
	form["issued_to"] = "9"
	form["status"] = "Assigned"

	_, _, err := f.svc.Save(context.Background(), rec.ID, form, &models.User{ID: 1, DisplayName: "Admin"})
	require.NoError(t, err)
	require.Len(t, f.history.entries, 1)
	assert.Contains(t, f.history.entries[0].Note, `Issued To changed from "Jane Reyes" to "Mark Cruz"`)
	assert.Equal(t, "9", f.records.meta[rec.ID]["issued_to"])
}

func TestAssetServiceSaveValidationFailureStashesErrorsAndWritesNothing(t *testing.T) {
	f := newAssetFixture()
	f.check.errors = []string{"The Asset Tag field is required."}

	_, fieldErrors, err := f.svc.Save(context.Background(), 0, map[string]string{}, &models.User{ID: 7})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, []string{"The Asset Tag field is required."}, fieldErrors)
	assert.Empty(t, f.records.records)

	stashed, err := f.svc.TakeValidationErrors(context.Background(), 0, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"The Asset Tag field is required."}, stashed)

	// Read-once: the second fetch comes back empty.
	again, err := f.svc.TakeValidationErrors(context.Background(), 0, 7)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestAssetServiceGetNotFound(t *testing.T) {
	f := newAssetFixture()
	_, err := f.svc.Get(context.Background(), 42)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAssetServiceGetRejectsWrongKind(t *testing.T) {
	f := newAssetFixture()
	rec := f.records.addRecord(models.KindRepair, "Repair Request for ASSET00001", nil)

	_, err := f.svc.Get(context.Background(), rec.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAssetServiceProjectionResolvesIssuedName(t *testing.T) {
	f := newAssetFixture()
	rec := f.records.addRecord(models.KindAsset, "ASSET00001", map[string]string{
		"asset_tag": "IT-0001",
		"issued_to": "7",
		"status":    "Assigned",
	})

	asset, err := f.svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Reyes", asset.IssuedToName)

	f.records.meta[rec.ID]["issued_to"] = "555"
	asset, err = f.svc.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unknown User (ID: 555)", asset.IssuedToName)
}

func TestAssetServiceDelete(t *testing.T) {
	f := newAssetFixture()
	rec := f.records.addRecord(models.KindAsset, "ASSET00001", nil)

	require.NoError(t, f.svc.Delete(context.Background(), rec.ID))
	assert.Equal(t, []int64{rec.ID}, f.records.deleted)

	err := f.svc.Delete(context.Background(), rec.ID)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAssetServiceSaveDescriptionChangeLogsMarkerOnly(t *testing.T) {
	f := newAssetFixture()
	rec := f.records.addRecord(models.KindAsset, "ASSET00001", map[string]string{
		"asset_tag":      "IT-0001",
		"model":          "Latitude 5440",
		"serial_number":  "SN-123",
		"brand":          "Dell",
		"supplier":       "TechSource",
		"date_purchased": "2024-02-29",
		"issued_to":      "0",
		"status":         "Unassigned",
		"location":       "HQ 3F",
		"description":    "Old text with serials",
	})
	f.records.terms[rec.ID][models.TaxonomyCategory] = 12

	form := validAssetInput()
	form["description"] = "New text"

	_, _, err := f.svc.Save(context.Background(), rec.ID, form, &models.User{ID: 1, DisplayName: "Admin"})
	require.NoError(t, err)
	require.Len(t, f.history.entries, 1)
	assert.Equal(t, "Description changed.", f.history.entries[0].Note)
	assert.False(t, strings.Contains(f.history.entries[0].Note, "Old text"))
}
