package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/query"
	"github.com/tomengsanchez/asset-manager-api/internal/schema"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

// RepairService owns the repair-request persistence flow. Unlike
// assets, blank metadata values are removed rather than stored, and
// the lifecycle status lives in the repair_status taxonomy.
type RepairService struct {
	records   recordRepository
	users     userResolver
	terms     termResolver
	history   historyAppender
	cache     errorCache
	validator formValidator
	changes   *ChangeLog
	errorTTL  time.Duration
	logger    *zap.Logger
}

// NewRepairService constructs the repair service.
func NewRepairService(
	records recordRepository,
	users userResolver,
	terms termResolver,
	history historyAppender,
	cache errorCache,
	validator formValidator,
	changes *ChangeLog,
	errorTTL time.Duration,
	logger *zap.Logger,
) *RepairService {
	if errorTTL <= 0 {
		errorTTL = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairService{
		records:   records,
		users:     users,
		terms:     terms,
		history:   history,
		cache:     cache,
		validator: validator,
		changes:   changes,
		errorTTL:  errorTTL,
		logger:    logger,
	}
}

// Save validates and persists a repair request. A zero recordID
// creates a new request titled after the referenced asset. Blank
// values delete the stored metadata; the literal "0" is kept.
func (s *RepairService) Save(ctx context.Context, recordID int64, form map[string]string, actor *models.User) (*models.Repair, []string, error) {
	fieldErrors, err := s.validator.Validate(ctx, models.KindRepair, form)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate repair request")
	}
	if len(fieldErrors) > 0 {
		s.stashErrors(ctx, recordID, actor, fieldErrors)
		return nil, fieldErrors, appErrors.Clone(appErrors.ErrValidation, "repair request validation failed")
	}

	record, created, err := s.resolveRecord(ctx, recordID, form["asset_id"])
	if err != nil {
		return nil, nil, err
	}

	oldMeta := map[string]string{}
	if !created {
		oldMeta, err = s.records.GetMeta(ctx, record.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair metadata")
		}
	}

	var messages []string
	for _, f := range schema.FieldsFor(models.KindRepair) {
		newVal := sanitizeField(f, form[f.Key])
		oldVal := oldMeta[f.Key]
		if NormalizeValue(f, oldVal) == NormalizeValue(f, newVal) {
			continue
		}
		msg, ok, msgErr := s.changes.FieldMessage(ctx, f, oldVal, newVal)
		if msgErr != nil {
			return nil, nil, appErrors.Wrap(msgErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to describe repair change")
		}
		if ok {
			messages = append(messages, msg)
		}
		if newVal == "" {
			if err := s.records.DeleteMeta(ctx, record.ID, f.Key); err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear repair metadata")
			}
			continue
		}
		if err := s.records.SetMeta(ctx, record.ID, f.Key, newVal); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save repair metadata")
		}
	}

	statusMsg, err := s.saveStatus(ctx, record.ID, form[schema.KeyRepairStatus])
	if err != nil {
		return nil, nil, err
	}
	if statusMsg != "" {
		messages = append(messages, statusMsg)
	}

	if entry := BuildEntry(record.ID, actorName(actor), messages); entry != nil {
		if err := s.history.Append(ctx, entry); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append repair history")
		}
		if err := s.records.Touch(ctx, record.ID); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to touch repair record")
		}
	}

	repair, err := s.Get(ctx, record.ID)
	if err != nil {
		return nil, nil, err
	}
	return repair, nil, nil
}

func (s *RepairService) resolveRecord(ctx context.Context, recordID int64, rawAssetID string) (*models.Record, bool, error) {
	if recordID > 0 {
		record, err := s.records.FindByID(ctx, recordID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, appErrors.Clone(appErrors.ErrNotFound, "repair request not found")
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair request")
		}
		if record.Kind != models.KindRepair {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "repair request not found")
		}
		return record, false, nil
	}

	title := fmt.Sprintf("Repair Request for %s", s.assetTitle(ctx, rawAssetID))
	record, err := s.records.Create(ctx, models.KindRepair, title)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create repair record")
	}
	return record, true, nil
}

// assetTitle resolves the referenced asset's title for the fallback
// request title, degrading to "Unknown Asset".
func (s *RepairService) assetTitle(ctx context.Context, rawAssetID string) string {
	id := parseRefID(rawAssetID)
	if id <= 0 {
		return "Unknown Asset"
	}
	record, err := s.records.FindByID(ctx, id)
	if err != nil || record.Kind != models.KindAsset || record.Title == "" {
		return "Unknown Asset"
	}
	return record.Title
}

func (s *RepairService) saveStatus(ctx context.Context, recordID int64, raw string) (string, error) {
	newID := parseRefID(raw)
	oldID, err := s.records.TermIDFor(ctx, recordID, models.TaxonomyRepairStatus)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair status")
	}
	if oldID == newID {
		return "", nil
	}
	if err := s.records.SetTerm(ctx, recordID, models.TaxonomyRepairStatus, newID); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save repair status")
	}
	msg, err := s.changes.TermMessage(ctx, schema.LabelStatus, oldID, newID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to describe status change")
	}
	return msg, nil
}

// Get loads one repair request with resolved references.
func (s *RepairService) Get(ctx context.Context, id int64) (*models.Repair, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "repair request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair request")
	}
	if record.Kind != models.KindRepair {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "repair request not found")
	}
	return s.project(ctx, record)
}

func (s *RepairService) compose(ctx context.Context, filter models.RepairFilter) (*query.Composer, error) {
	c := query.NewComposer(models.KindRepair)
	if search := filter.Search; search != "" {
		userIDs, err := s.users.SearchIDs(ctx, search)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve users for search")
		}
		termIDs, err := s.terms.SearchIDs(ctx, models.TaxonomyRepairStatus, search)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve statuses for search")
		}
		c.Search(search, userIDs, termIDs)
	}
	if filter.AssetID > 0 {
		c.FilterMetaEquals("asset_id", strconv.FormatInt(filter.AssetID, 10))
	}
	if filter.Technician != "" {
		c.FilterMetaEquals("assigned_technician", filter.Technician)
	}
	return c, nil
}

// List returns repair requests matching the filter plus pagination
// metadata.
func (s *RepairService) List(ctx context.Context, filter models.RepairFilter) ([]models.Repair, *models.Pagination, error) {
	c, err := s.compose(ctx, filter)
	if err != nil {
		return nil, nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	records, total, err := s.records.List(ctx, c, page, size, filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list repair requests")
	}

	repairs := make([]models.Repair, 0, len(records))
	for i := range records {
		repair, projErr := s.project(ctx, &records[i])
		if projErr != nil {
			return nil, nil, projErr
		}
		repairs = append(repairs, *repair)
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return repairs, pagination, nil
}

// ListAll returns every repair request matching the filter with
// pagination disabled, for full register exports.
func (s *RepairService) ListAll(ctx context.Context, filter models.RepairFilter) ([]models.Repair, error) {
	c, err := s.compose(ctx, filter)
	if err != nil {
		return nil, err
	}

	records, err := s.records.ListAll(ctx, c, filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list repair requests")
	}

	repairs := make([]models.Repair, 0, len(records))
	for i := range records {
		repair, projErr := s.project(ctx, &records[i])
		if projErr != nil {
			return nil, projErr
		}
		repairs = append(repairs, *repair)
	}
	return repairs, nil
}

// Delete removes a repair request and its dependent rows.
func (s *RepairService) Delete(ctx context.Context, id int64) error {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "repair request not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair request")
	}
	if record.Kind != models.KindRepair {
		return appErrors.Clone(appErrors.ErrNotFound, "repair request not found")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete repair request")
	}
	return nil
}

// History returns the repair request's change log, newest first.
func (s *RepairService) History(ctx context.Context, id int64) ([]models.HistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRecord(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair history")
	}
	return entries, nil
}

// TakeValidationErrors pops the stashed validation messages for the
// given repair request and user.
func (s *RepairService) TakeValidationErrors(ctx context.Context, recordID, userID int64) ([]string, error) {
	var messages []string
	err := s.cache.Take(ctx, validationErrorKey(models.KindRepair, recordID, userID), &messages)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read validation errors")
	}
	return messages, nil
}

func (s *RepairService) stashErrors(ctx context.Context, recordID int64, actor *models.User, messages []string) {
	var userID int64
	if actor != nil {
		userID = actor.ID
	}
	key := validationErrorKey(models.KindRepair, recordID, userID)
	if err := s.cache.Set(ctx, key, messages, s.errorTTL); err != nil {
		s.logger.Warn("failed to stash validation errors", zap.String("key", key), zap.Error(err))
	}
}

func (s *RepairService) project(ctx context.Context, record *models.Record) (*models.Repair, error) {
	meta, err := s.records.GetMeta(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair metadata")
	}
	repair := &models.Repair{
		ID:                 record.ID,
		Title:              record.Title,
		AssetID:            meta["asset_id"],
		IssueDescription:   meta["issue_description"],
		RequestedBy:        meta["requested_by"],
		DateRequested:      meta["date_requested"],
		AssignedTechnician: meta["assigned_technician"],
		DateStarted:        meta["date_started"],
		DateCompleted:      meta["date_completed"],
		EstimatedCost:      meta["estimated_cost"],
		ActualCost:         meta["actual_cost"],
		PartsUsed:          meta["parts_used"],
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}

	if id := parseRefID(repair.AssetID); id > 0 {
		asset, err := s.records.FindByID(ctx, id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve repaired asset")
		}
		if asset != nil && asset.Kind == models.KindAsset {
			repair.AssetTitle = asset.Title
		}
	}
	if repair.RequestedByName, err = s.resolveUser(ctx, repair.RequestedBy); err != nil {
		return nil, err
	}
	if repair.TechnicianName, err = s.resolveUser(ctx, repair.AssignedTechnician); err != nil {
		return nil, err
	}

	termID, err := s.records.TermIDFor(ctx, record.ID, models.TaxonomyRepairStatus)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load repair status")
	}
	if termID > 0 {
		term, err := s.terms.FindByID(ctx, termID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve repair status")
		}
		repair.Status = term
	}
	return repair, nil
}

func (s *RepairService) resolveUser(ctx context.Context, raw string) (string, error) {
	id := parseRefID(raw)
	if id <= 0 {
		return "", nil
	}
	name, ok, err := s.users.DisplayName(ctx, id)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve user")
	}
	if !ok {
		return fmt.Sprintf("Unknown User (ID: %d)", id), nil
	}
	return name, nil
}
