package draft

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mx-space/blockdraft/internal/models"
	"github.com/mx-space/blockdraft/internal/modules/draftsync"
	"github.com/mx-space/blockdraft/internal/pkg/pagination"
	"github.com/mx-space/blockdraft/internal/pkg/response"
)

const (
	maxTitleLength       = 256
	maxDescriptionLength = 2048
	maxIDLength          = 36
	maxBlocks            = 5000
)

var (
	// ErrNotFound is shared with the sync layer so callers can match either.
	ErrNotFound         = draftsync.ErrNotFound
	ErrLocked           = errors.New("draft is locked")
	ErrForbidden        = errors.New("draft belongs to another user")
	ErrVersionNotFound  = errors.New("draft version not found")
	ErrInvalidStatus    = errors.New("invalid status transition")
	ErrNothingToPublish = errors.New("draft has no content to publish")
)

// SaveInput is the save-draft request. A nil ID creates a draft with a
// server-minted id; an unknown ID creates the draft under that id; a known ID
// updates in place. Nil fields are left unchanged.
type SaveInput struct {
	ID          *string
	UserID      string
	Title       *string
	Description *string
	Blocks      []models.Block
	Status      *models.DraftStatus
	CategoryID  *string
	CoAuthorID  *string
}

// Validate checks the structure of the request. Block content is not
// interpreted here.
func (in SaveInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.ID, validation.NilOrNotEmpty, validation.Length(1, maxIDLength), validation.By(noSpaces)),
		validation.Field(&in.UserID, validation.Required, validation.Length(1, maxIDLength)),
		validation.Field(&in.Title, validation.Length(0, maxTitleLength)),
		validation.Field(&in.Description, validation.Length(0, maxDescriptionLength)),
		validation.Field(&in.Blocks, validation.Length(0, maxBlocks), validation.Each(validation.By(validBlock))),
		validation.Field(&in.Status, validation.In(models.DraftStatusDraft, models.DraftStatusPublished)),
		validation.Field(&in.CategoryID, validation.Length(0, maxIDLength)),
		validation.Field(&in.CoAuthorID, validation.Length(0, maxIDLength)),
	)
}

func noSpaces(value interface{}) error {
	s, _ := value.(*string)
	if s != nil && strings.ContainsAny(*s, " \t\r\n/") {
		return errors.New("must not contain whitespace or slashes")
	}
	return nil
}

func validBlock(value interface{}) error {
	b, ok := value.(models.Block)
	if !ok {
		return errors.New("must be a block")
	}
	if !b.Type.Valid() {
		return fmt.Errorf("unknown block type %q", b.Type)
	}
	return nil
}

// SaveResult reports what Save did.
type SaveResult struct {
	Draft   *models.DraftModel
	Created bool
	// Changed is false for a retry that carried nothing new.
	Changed bool
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger
	now func() time.Time
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log, now: time.Now}
}

// List returns the drafts of a user, most recently modified first. Deleted
// drafts are included only when status asks for them.
func (s *Service) List(ctx context.Context, userID string, q pagination.Query, status *models.DraftStatus) ([]models.DraftModel, response.Pagination, error) {
	tx := s.db.WithContext(ctx).Model(&models.DraftModel{}).
		Where("user_id = ? OR co_author_id = ?", userID, userID).
		Order("updated_at DESC")
	if status != nil {
		tx = tx.Where("status = ?", *status)
	} else {
		tx = tx.Where("status <> ?", models.DraftStatusDeleted)
	}
	var items []models.DraftModel
	pag, err := pagination.Paginate(tx, q, &items)
	return items, pag, err
}

// Load returns one draft or ErrNotFound.
func (s *Service) Load(ctx context.Context, id string) (*models.DraftModel, error) {
	var d models.DraftModel
	if err := s.db.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// Save creates or updates a draft. Retrying with the same id and payload is
// a no-op that returns the stored draft.
func (s *Service) Save(ctx context.Context, in SaveInput) (SaveResult, error) {
	if err := in.Validate(); err != nil {
		return SaveResult{}, err
	}

	if in.ID == nil {
		return s.create(ctx, "", in)
	}

	id := strings.TrimSpace(*in.ID)
	existing, err := s.Load(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		res, err := s.create(ctx, id, in)
		if isDuplicateKey(err) {
			// a concurrent save created it first
			s.log.Debug("draft created concurrently, updating", zap.String("id", id))
			return s.update(ctx, id, in)
		}
		return res, err
	case err != nil:
		return SaveResult{}, err
	}
	return s.updateExisting(ctx, existing, in)
}

func (s *Service) create(ctx context.Context, id string, in SaveInput) (SaveResult, error) {
	d := models.DraftModel{
		Base:        models.Base{ID: id},
		UserID:      in.UserID,
		Title:       models.Deref(in.Title),
		Description: models.Deref(in.Description),
		Blocks:      models.BlockList(models.CloneBlocks(in.Blocks)),
		Status:      models.DraftStatusDraft,
		CategoryID:  in.CategoryID,
		CoAuthorID:  in.CoAuthorID,
		Version:     1,
	}
	if in.Status != nil {
		d.Status = *in.Status
	}
	if d.Status == models.DraftStatusPublished {
		now := s.now()
		v := d.Version
		d.PublishedAt = &now
		d.PublishedVersion = &v
	}
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return SaveResult{}, err
	}
	s.log.Info("draft created", zap.String("id", d.ID), zap.String("user", d.UserID))
	return SaveResult{Draft: &d, Created: true, Changed: true}, nil
}

func (s *Service) update(ctx context.Context, id string, in SaveInput) (SaveResult, error) {
	existing, err := s.Load(ctx, id)
	if err != nil {
		return SaveResult{}, err
	}
	return s.updateExisting(ctx, existing, in)
}

func (s *Service) updateExisting(ctx context.Context, d *models.DraftModel, in SaveInput) (SaveResult, error) {
	if !canEdit(d, in.UserID) {
		return SaveResult{}, ErrForbidden
	}

	updates := map[string]interface{}{}
	if in.Title != nil && *in.Title != d.Title {
		updates["title"] = *in.Title
	}
	if in.Description != nil && *in.Description != d.Description {
		updates["description"] = *in.Description
	}
	if in.Blocks != nil && !reflect.DeepEqual(models.CloneBlocks(in.Blocks), models.CloneBlocks(d.Blocks)) {
		updates["blocks"] = models.BlockList(models.CloneBlocks(in.Blocks))
	}
	if in.Status != nil && *in.Status != d.Status {
		updates["status"] = *in.Status
	}
	if in.CategoryID != nil && models.Deref(d.CategoryID) != *in.CategoryID {
		updates["category_id"] = models.StringPtr(*in.CategoryID)
	}
	if in.CoAuthorID != nil && models.Deref(d.CoAuthorID) != *in.CoAuthorID {
		updates["co_author_id"] = models.StringPtr(*in.CoAuthorID)
	}

	if len(updates) == 0 {
		return SaveResult{Draft: d}, nil
	}
	if d.Locked {
		return SaveResult{}, ErrLocked
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s.snapshot(d)).Error; err != nil {
			return fmt.Errorf("snapshot draft: %w", err)
		}
		updates["version"] = d.Version + 1
		if status, ok := updates["status"]; ok && status == models.DraftStatusPublished {
			now := s.now()
			updates["published_at"] = now
			updates["published_version"] = d.Version + 1
		}
		return tx.Model(d).Updates(updates).Error
	})
	if err != nil {
		return SaveResult{}, err
	}

	fresh, err := s.Load(ctx, d.ID)
	if err != nil {
		return SaveResult{}, err
	}
	s.log.Info("draft saved", zap.String("id", d.ID), zap.Int("version", fresh.Version))
	return SaveResult{Draft: fresh, Changed: true}, nil
}

func (s *Service) snapshot(d *models.DraftModel) *models.DraftHistoryModel {
	return &models.DraftHistoryModel{
		DraftID:     d.ID,
		Version:     d.Version,
		Title:       d.Title,
		Description: d.Description,
		Blocks:      models.BlockList(models.CloneBlocks(d.Blocks)),
		SavedAt:     s.now(),
	}
}

// Delete moves a draft to the deleted state; it can be restored.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	d, err := s.owned(ctx, id, userID)
	if err != nil {
		return err
	}
	if d.Locked {
		return ErrLocked
	}
	if d.Status == models.DraftStatusDeleted {
		return nil
	}
	return s.db.WithContext(ctx).Model(d).Update("status", models.DraftStatusDeleted).Error
}

// Restore brings a deleted draft back as an unpublished draft.
func (s *Service) Restore(ctx context.Context, id, userID string) (*models.DraftModel, error) {
	d, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DraftStatusDeleted {
		return nil, ErrInvalidStatus
	}
	if err := s.db.WithContext(ctx).Model(d).Update("status", models.DraftStatusDraft).Error; err != nil {
		return nil, err
	}
	return s.Load(ctx, id)
}

// Lock freezes a draft against edits; Unlock lifts it. Both are idempotent.
func (s *Service) Lock(ctx context.Context, id, userID string) (*models.DraftModel, error) {
	return s.setLocked(ctx, id, userID, true)
}

func (s *Service) Unlock(ctx context.Context, id, userID string) (*models.DraftModel, error) {
	return s.setLocked(ctx, id, userID, false)
}

func (s *Service) setLocked(ctx context.Context, id, userID string, locked bool) (*models.DraftModel, error) {
	d, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if d.Locked != locked {
		if err := s.db.WithContext(ctx).Model(d).Update("locked", locked).Error; err != nil {
			return nil, err
		}
	}
	return s.Load(ctx, id)
}

// Publish marks the current version as published.
func (s *Service) Publish(ctx context.Context, id, userID string) (*models.DraftModel, error) {
	d, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DraftStatusDeleted {
		return nil, ErrInvalidStatus
	}
	if len(d.Blocks) == 0 {
		return nil, ErrNothingToPublish
	}
	if d.Status == models.DraftStatusPublished && d.PublishedVersion != nil && *d.PublishedVersion == d.Version {
		return d, nil
	}
	now := s.now()
	err = s.db.WithContext(ctx).Model(d).Updates(map[string]interface{}{
		"status":            models.DraftStatusPublished,
		"published_version": d.Version,
		"published_at":      now,
	}).Error
	if err != nil {
		return nil, err
	}
	s.log.Info("draft published", zap.String("id", id), zap.Int("version", d.Version))
	return s.Load(ctx, id)
}

// History returns all snapshots of a draft, newest first.
func (s *Service) History(ctx context.Context, id, userID string) ([]models.DraftHistoryModel, error) {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return nil, err
	}
	var history []models.DraftHistoryModel
	err := s.db.WithContext(ctx).Where("draft_id = ?", id).Order("version DESC").Find(&history).Error
	return history, err
}

// HistoryVersion returns one snapshot.
func (s *Service) HistoryVersion(ctx context.Context, id, userID string, version int) (*models.DraftHistoryModel, error) {
	if _, err := s.owned(ctx, id, userID); err != nil {
		return nil, err
	}
	var snap models.DraftHistoryModel
	err := s.db.WithContext(ctx).Where("draft_id = ? AND version = ?", id, version).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// RestoreVersion writes a historical version back as a new version.
func (s *Service) RestoreVersion(ctx context.Context, id, userID string, version int) (*models.DraftModel, error) {
	snap, err := s.HistoryVersion(ctx, id, userID, version)
	if err != nil {
		return nil, err
	}
	res, err := s.update(ctx, id, SaveInput{
		UserID:      userID,
		Title:       &snap.Title,
		Description: &snap.Description,
		Blocks:      models.CloneBlocks(snap.Blocks),
	})
	if err != nil {
		return nil, err
	}
	return res.Draft, nil
}

func (s *Service) owned(ctx context.Context, id, userID string) (*models.DraftModel, error) {
	d, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canEdit(d, userID) {
		return nil, ErrForbidden
	}
	return d, nil
}

func canEdit(d *models.DraftModel, userID string) bool {
	return d.UserID == userID || models.Deref(d.CoAuthorID) == userID
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// PurgeDeleted removes drafts that have sat in the deleted state since before
// cutoff, along with their history. It returns the number of drafts removed.
func (s *Service) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	var ids []string
	if err := s.db.WithContext(ctx).Model(&models.DraftModel{}).
		Where("status = ? AND updated_at < ?", models.DraftStatusDeleted, cutoff).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("draft_id IN ?", ids).Delete(&models.DraftHistoryModel{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id IN ?", ids).Delete(&models.DraftModel{})
		purged = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("purged deleted drafts", zap.Int64("count", purged))
	return purged, nil
}
