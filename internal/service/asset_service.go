package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tomengsanchez/asset-manager-api/internal/models"
	"github.com/tomengsanchez/asset-manager-api/internal/query"
	"github.com/tomengsanchez/asset-manager-api/internal/schema"
	appErrors "github.com/tomengsanchez/asset-manager-api/pkg/errors"
)

const assetTitlePrefix = "ASSET"

type recordRepository interface {
	Create(ctx context.Context, kind models.RecordKind, title string) (*models.Record, error)
	FindByID(ctx context.Context, id int64) (*models.Record, error)
	UpdateTitle(ctx context.Context, id int64, title string) error
	Touch(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	GetMeta(ctx context.Context, recordID int64) (map[string]string, error)
	SetMeta(ctx context.Context, recordID int64, key, value string) error
	DeleteMeta(ctx context.Context, recordID int64, key string) error
	TermIDFor(ctx context.Context, recordID int64, taxonomy string) (int64, error)
	SetTerm(ctx context.Context, recordID int64, taxonomy string, termID int64) error
	MaxTitleSequence(ctx context.Context, kind models.RecordKind, prefix string) (int, error)
	List(ctx context.Context, c *query.Composer, page, pageSize int, sortBy, sortOrder string) ([]models.Record, int, error)
	ListAll(ctx context.Context, c *query.Composer, sortBy, sortOrder string) ([]models.Record, error)
}

type userResolver interface {
	DisplayName(ctx context.Context, id int64) (string, bool, error)
	SearchIDs(ctx context.Context, fragment string) ([]int64, error)
}

type termResolver interface {
	FindByID(ctx context.Context, id int64) (*models.Term, error)
	SearchIDs(ctx context.Context, taxonomy, fragment string) ([]int64, error)
}

type historyAppender interface {
	Append(ctx context.Context, entry *models.HistoryEntry) error
	ListByRecord(ctx context.Context, recordID int64) ([]models.HistoryEntry, error)
}

type attachmentStore interface {
	Create(ctx context.Context, att *models.Attachment) error
	FindByID(ctx context.Context, id int64) (*models.Attachment, error)
	ListByRecord(ctx context.Context, recordID int64) ([]models.Attachment, error)
	Delete(ctx context.Context, id int64) error
}

type errorCache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Take(ctx context.Context, key string, dest interface{}) error
}

type formValidator interface {
	Validate(ctx context.Context, kind models.RecordKind, form map[string]string) ([]string, error)
}

type fileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
}

// AssetService owns the asset persistence flow: validation, metadata
// diffing, history logging and title generation.
type AssetService struct {
	records     recordRepository
	users       userResolver
	terms       termResolver
	history     historyAppender
	attachments attachmentStore
	cache       errorCache
	files       fileStore
	validator   formValidator
	changes     *ChangeLog
	errorTTL    time.Duration
	logger      *zap.Logger
}

// NewAssetService constructs the asset service.
func NewAssetService(
	records recordRepository,
	users userResolver,
	terms termResolver,
	history historyAppender,
	attachments attachmentStore,
	cache errorCache,
	files fileStore,
	validator formValidator,
	changes *ChangeLog,
	errorTTL time.Duration,
	logger *zap.Logger,
) *AssetService {
	if errorTTL <= 0 {
		errorTTL = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssetService{
		records:     records,
		users:       users,
		terms:       terms,
		history:     history,
		attachments: attachments,
		cache:       cache,
		files:       files,
		validator:   validator,
		changes:     changes,
		errorTTL:    errorTTL,
		logger:      logger,
	}
}

// Save validates and persists an asset's form values. A zero recordID
// creates a new asset. When validation fails the field messages are
// returned and also stashed for a later read-once fetch; nothing is
// written in that case.
func (s *AssetService) Save(ctx context.Context, recordID int64, form map[string]string, actor *models.User) (*models.Asset, []string, error) {
	fieldErrors, err := s.validator.Validate(ctx, models.KindAsset, form)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate asset")
	}
	if len(fieldErrors) > 0 {
		s.stashErrors(ctx, models.KindAsset, recordID, actor, fieldErrors)
		return nil, fieldErrors, appErrors.Clone(appErrors.ErrValidation, "asset validation failed")
	}

	record, created, err := s.resolveRecord(ctx, recordID)
	if err != nil {
		return nil, nil, err
	}

	oldMeta := map[string]string{}
	if !created {
		oldMeta, err = s.records.GetMeta(ctx, record.ID)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset metadata")
		}
	}

	var messages []string
	for _, f := range schema.FieldsFor(models.KindAsset) {
		newVal := sanitizeField(f, form[f.Key])
		oldVal := oldMeta[f.Key]
		if NormalizeValue(f, oldVal) == NormalizeValue(f, newVal) {
			continue
		}
		msg, ok, msgErr := s.changes.FieldMessage(ctx, f, oldVal, newVal)
		if msgErr != nil {
			return nil, nil, appErrors.Wrap(msgErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to describe asset change")
		}
		if ok {
			messages = append(messages, msg)
		}
		if err := s.records.SetMeta(ctx, record.ID, f.Key, newVal); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save asset metadata")
		}
	}

	termMsg, err := s.saveCategory(ctx, record.ID, form[schema.KeyCategory])
	if err != nil {
		return nil, nil, err
	}
	if termMsg != "" {
		messages = append(messages, termMsg)
	}

	if entry := BuildEntry(record.ID, actorName(actor), messages); entry != nil {
		if err := s.history.Append(ctx, entry); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append asset history")
		}
		if err := s.records.Touch(ctx, record.ID); err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to touch asset record")
		}
	}

	asset, err := s.Get(ctx, record.ID)
	if err != nil {
		return nil, nil, err
	}
	return asset, nil, nil
}

// resolveRecord loads an existing asset record or creates a new one
// with a generated sequential title.
func (s *AssetService) resolveRecord(ctx context.Context, recordID int64) (*models.Record, bool, error) {
	if recordID > 0 {
		record, err := s.records.FindByID(ctx, recordID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, false, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
			}
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
		}
		if record.Kind != models.KindAsset {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return record, false, nil
	}

	record, err := s.records.Create(ctx, models.KindAsset, "")
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create asset record")
	}
	title, err := s.nextTitle(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := s.records.UpdateTitle(ctx, record.ID, title); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set asset title")
	}
	record.Title = title
	return record, true, nil
}

// nextTitle picks the next ASSET00000-style title. The read and the
// later write are not atomic; concurrent creates can in theory collide
// and the unique pressure is accepted as best effort.
func (s *AssetService) nextTitle(ctx context.Context) (string, error) {
	max, err := s.records.MaxTitleSequence(ctx, models.KindAsset, assetTitlePrefix)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute next asset title")
	}
	return fmt.Sprintf("%s%05d", assetTitlePrefix, max+1), nil
}

func (s *AssetService) saveCategory(ctx context.Context, recordID int64, raw string) (string, error) {
	newID := parseRefID(raw)
	oldID, err := s.records.TermIDFor(ctx, recordID, models.TaxonomyCategory)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset category")
	}
	if oldID == newID {
		return "", nil
	}
	if err := s.records.SetTerm(ctx, recordID, models.TaxonomyCategory, newID); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save asset category")
	}
	msg, err := s.changes.TermMessage(ctx, schema.LabelCategory, oldID, newID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to describe category change")
	}
	return msg, nil
}

// Get loads one asset with its metadata, category and resolved names.
func (s *AssetService) Get(ctx context.Context, id int64) (*models.Asset, error) {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	if record.Kind != models.KindAsset {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	return s.project(ctx, record)
}

func (s *AssetService) compose(ctx context.Context, filter models.AssetFilter) (*query.Composer, error) {
	c := query.NewComposer(models.KindAsset)
	if filter.Relation != "" {
		c.Relation(filter.Relation)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		userIDs, err := s.users.SearchIDs(ctx, search)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve users for search")
		}
		termIDs, err := s.terms.SearchIDs(ctx, models.TaxonomyCategory, search)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve categories for search")
		}
		c.Search(search, userIDs, termIDs)
	}
	if filter.Category > 0 {
		c.FilterTerm(filter.Category)
	}
	if filter.Brand != "" {
		c.FilterMetaEquals("brand", filter.Brand)
	}
	if filter.Status != "" {
		c.FilterMetaEquals("status", filter.Status)
	}
	if filter.IssuedTo != "" {
		c.FilterMetaEquals("issued_to", filter.IssuedTo)
	}
	return c, nil
}

// List returns assets matching the filter plus pagination metadata.
// Free-text search fans out over metadata, category names, resolved
// user names and the record title.
func (s *AssetService) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, *models.Pagination, error) {
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
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assets")
	}

	assets := make([]models.Asset, 0, len(records))
	for i := range records {
		asset, projErr := s.project(ctx, &records[i])
		if projErr != nil {
			return nil, nil, projErr
		}
		assets = append(assets, *asset)
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return assets, pagination, nil
}

// ListAll returns every asset matching the filter with pagination
// disabled. Exports use this so the register covers the full set.
func (s *AssetService) ListAll(ctx context.Context, filter models.AssetFilter) ([]models.Asset, error) {
	c, err := s.compose(ctx, filter)
	if err != nil {
		return nil, err
	}

	records, err := s.records.ListAll(ctx, c, filter.SortBy, filter.SortOrder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assets")
	}

	assets := make([]models.Asset, 0, len(records))
	for i := range records {
		asset, projErr := s.project(ctx, &records[i])
		if projErr != nil {
			return nil, projErr
		}
		assets = append(assets, *asset)
	}
	return assets, nil
}

// Delete removes an asset record along with its metadata, terms,
// history and notes.
func (s *AssetService) Delete(ctx context.Context, id int64) error {
	record, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	if record.Kind != models.KindAsset {
		return appErrors.Clone(appErrors.ErrNotFound, "asset not found")
	}
	if err := s.records.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete asset")
	}
	return nil
}

// History returns the asset's change log, newest first.
func (s *AssetService) History(ctx context.Context, id int64) ([]models.HistoryEntry, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	entries, err := s.history.ListByRecord(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset history")
	}
	return entries, nil
}

// TakeValidationErrors pops the stashed validation messages for the
// given asset and user. The stash is read-once and expires on its own.
func (s *AssetService) TakeValidationErrors(ctx context.Context, recordID, userID int64) ([]string, error) {
	var messages []string
	err := s.cache.Take(ctx, validationErrorKey(models.KindAsset, recordID, userID), &messages)
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read validation errors")
	}
	return messages, nil
}

// SetImage stores an uploaded image for the asset, replacing any
// previous one.
func (s *AssetService) SetImage(ctx context.Context, id int64, fileName, mimeType string, size int64, r io.Reader) (*models.Attachment, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.RemoveImage(ctx, id); err != nil {
		return nil, err
	}
	stored := fmt.Sprintf("assets/%d/%d-%s", id, time.Now().UnixNano(), fileName)
	path, err := s.files.SaveStream(stored, r)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store asset image")
	}
	att := &models.Attachment{
		RecordID:  id,
		FileName:  fileName,
		FilePath:  path,
		MimeType:  mimeType,
		SizeBytes: size,
	}
	if err := s.attachments.Create(ctx, att); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save asset image record")
	}
	return att, nil
}

// RemoveImage deletes the asset's image attachments, if any.
func (s *AssetService) RemoveImage(ctx context.Context, id int64) error {
	existing, err := s.attachments.ListByRecord(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list asset attachments")
	}
	for _, att := range existing {
		if att.NoteID != nil || !strings.HasPrefix(att.MimeType, "image/") {
			continue
		}
		if err := s.attachments.Delete(ctx, att.ID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete asset image record")
		}
		if err := s.files.Delete(att.FilePath); err != nil {
			s.logger.Warn("failed to delete asset image file", zap.String("path", att.FilePath), zap.Error(err))
		}
	}
	return nil
}

func (s *AssetService) project(ctx context.Context, record *models.Record) (*models.Asset, error) {
	meta, err := s.records.GetMeta(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset metadata")
	}
	asset := &models.Asset{
		ID:            record.ID,
		Title:         record.Title,
		AssetTag:      meta["asset_tag"],
		Model:         meta["model"],
		SerialNumber:  meta["serial_number"],
		Brand:         meta["brand"],
		Supplier:      meta["supplier"],
		DatePurchased: meta["date_purchased"],
		IssuedTo:      meta["issued_to"],
		Status:        meta["status"],
		Location:      meta["location"],
		Description:   meta["description"],
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}

	if id := parseRefID(asset.IssuedTo); id > 0 {
		name, ok, err := s.users.DisplayName(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve issued user")
		}
		if ok {
			asset.IssuedToName = name
		} else {
			asset.IssuedToName = fmt.Sprintf("Unknown User (ID: %s)", asset.IssuedTo)
		}
	}

	termID, err := s.records.TermIDFor(ctx, record.ID, models.TaxonomyCategory)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset category")
	}
	if termID > 0 {
		term, err := s.terms.FindByID(ctx, termID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve asset category")
		}
		if term != nil {
			asset.Categories = []models.Term{*term}
		}
	}

	attachments, err := s.attachments.ListByRecord(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list asset attachments")
	}
	for _, att := range attachments {
		if att.NoteID == nil && strings.HasPrefix(att.MimeType, "image/") {
			asset.ImagePath = att.FilePath
			break
		}
	}
	return asset, nil
}

func (s *AssetService) stashErrors(ctx context.Context, kind models.RecordKind, recordID int64, actor *models.User, messages []string) {
	var userID int64
	if actor != nil {
		userID = actor.ID
	}
	key := validationErrorKey(kind, recordID, userID)
	if err := s.cache.Set(ctx, key, messages, s.errorTTL); err != nil {
		s.logger.Warn("failed to stash validation errors", zap.String("key", key), zap.Error(err))
	}
}

func validationErrorKey(kind models.RecordKind, recordID, userID int64) string {
	return fmt.Sprintf("am:errors:%s:%d:%d", kind, recordID, userID)
}

func actorName(actor *models.User) string {
	if actor == nil || actor.DisplayName == "" {
		return "System"
	}
	return actor.DisplayName
}

// sanitizeField trims input and normalizes reference fields to a
// numeric string, matching the stored representation.
func sanitizeField(f schema.Field, value string) string {
	value = strings.TrimSpace(value)
	if f.Type == schema.TypeUserRef || f.Type == schema.TypeRecordRef {
		return strconv.FormatInt(parseRefID(value), 10)
	}
	return value
}

// parseRefID parses a stored reference value; anything non-numeric or
// negative is the unset reference, 0.
func parseRefID(value string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}
