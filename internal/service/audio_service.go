package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"indi-radio-go/internal/model"
	"indi-radio-go/internal/repository"
	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/storage"
	"indi-radio-go/pkg/tasks"

	"gorm.io/gorm"
)

// UploadFile 是一次上传中的单个文件
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// AudioUploadRequest 是一批共享 date/type/channel/region 的音频文件
type AudioUploadRequest struct {
	Files       []UploadFile
	Date        string
	ContentType string
	Channel     string
	Region      string
	UserID      uint
}

// IngestReport 是批量导入的逐项结果
type IngestReport struct {
	Message   string   `json:"message"`
	Processed int      `json:"processed"`
	Inserted  int      `json:"inserted"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}

// AudioClipQuery 是音频检索条件，空字段不参与过滤
type AudioClipQuery struct {
	Date        string
	ContentType string
	Channel     string
	Region      string
	Name        string
	Pagination
}

// AudioService 接口定义了音频记录的导入、检索、重命名和删除
type AudioService interface {
	Upload(ctx context.Context, req AudioUploadRequest) (*IngestReport, error)
	Search(ctx context.Context, q AudioClipQuery) ([]model.AudioClip, int64, error)
	Rename(ctx context.Context, id uint, newName string, userID uint) (*model.AudioClip, error)
	Delete(ctx context.Context, id uint) error
}

type audioService struct {
	clipRepo    repository.AudioClipRepository
	userRepo    repository.UserRepository
	blobs       storage.BlobStore
	urls        storage.URLResolver
	events      EventPublisher
	maxPageSize int
}

func NewAudioService(
	clipRepo repository.AudioClipRepository,
	userRepo repository.UserRepository,
	blobs storage.BlobStore,
	urls storage.URLResolver,
	events EventPublisher,
	maxPageSize int,
) AudioService {
	return &audioService{
		clipRepo:    clipRepo,
		userRepo:    userRepo,
		blobs:       blobs,
		urls:        urls,
		events:      publisherOrNop(events),
		maxPageSize: maxPageSize,
	}
}

// Upload 依次处理每个文件：去重、写对象存储、写记录。
// 单个文件的失败写入报告，不会中断整批；请求取消不会中断已经开始的批次。
func (s *audioService) Upload(ctx context.Context, req AudioUploadRequest) (*IngestReport, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	uploader, err := s.resolveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	username := uploader.DisplayName()

	log.Infof("[AudioService] 开始导入音频: user=%d, files=%d, date=%s, type=%s, channel=%s, region=%s",
		req.UserID, len(req.Files), req.Date, req.ContentType, req.Channel, req.Region)

	report := &IngestReport{Message: "Upload completed", Processed: len(req.Files), Errors: []string{}}
	seen := make(map[model.ClipIdentity]struct{}, len(req.Files))
	var events []tasks.CatalogEvent
	failed := 0

	for _, f := range req.Files {
		clip, err := s.ingestOne(ctx, req, f, username, seen)
		switch {
		case errors.Is(err, errDuplicateFile):
			report.Skipped++
			report.Errors = append(report.Errors, "Duplicate file: "+f.Name)
		case err != nil:
			log.Errorf("[AudioService] 文件导入失败: %s, error: %v", f.Name, err)
			failed++
			report.Errors = append(report.Errors, fmt.Sprintf("Failed to upload %s: %v", f.Name, err))
		default:
			report.Inserted++
			events = append(events, clipEvent(tasks.EventClipCreated, clip))
		}
	}

	publish(ctx, s.events, events...)
	recordIngest(pipelineAudio, report, failed)
	log.Infof("[AudioService] 音频导入完成: processed=%d, inserted=%d, skipped=%d, errors=%d",
		report.Processed, report.Inserted, report.Skipped, len(report.Errors))
	return report, nil
}

var errDuplicateFile = errors.New("duplicate file")

func (s *audioService) ingestOne(ctx context.Context, req AudioUploadRequest, f UploadFile, username string, seen map[model.ClipIdentity]struct{}) (*model.AudioClip, error) {
	identity := model.ClipIdentity{
		FileName:    NormalizeFileName(f.Name),
		Date:        req.Date,
		ContentType: req.ContentType,
		Channel:     req.Channel,
		Region:      req.Region,
	}
	if _, ok := seen[identity]; ok {
		return nil, errDuplicateFile
	}
	_, err := s.clipRepo.FindByIdentity(ctx, identity)
	if err == nil {
		seen[identity] = struct{}{}
		return nil, errDuplicateFile
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	path := storage.ObjectPath{
		Region:      req.Region,
		Channel:     req.Channel,
		ContentType: req.ContentType,
		Date:        req.Date,
		FileName:    f.Name,
	}
	key := path.Key()
	if err := s.putBlob(ctx, key, f); err != nil {
		return nil, err
	}

	clip := &model.AudioClip{
		FileName:           identity.FileName,
		BlobURL:            s.urls.ReferenceURL(path),
		ContentType:        req.ContentType,
		Channel:            req.Channel,
		Region:             req.Region,
		Date:               req.Date,
		UploadedBy:         req.UserID,
		UploadedByUsername: &username,
	}
	if err := s.clipRepo.Create(ctx, clip); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 并发请求先写入了同名记录，对象 key 相同，不删除对象
			seen[identity] = struct{}{}
			return nil, errDuplicateFile
		}
		if delErr := s.blobs.Delete(ctx, key); delErr != nil {
			log.Errorf("[AudioService] 回滚对象失败: key=%s, error: %v", key, delErr)
		}
		return nil, fmt.Errorf("save record: %w", err)
	}
	seen[identity] = struct{}{}
	return clip, nil
}

func (s *audioService) putBlob(ctx context.Context, key string, f UploadFile) error {
	if f.Open == nil {
		return errors.New("file content unavailable")
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer rc.Close()

	if err := s.blobs.Put(ctx, key, rc, f.Size, f.ContentType); err != nil {
		return fmt.Errorf("store file: %w", err)
	}
	return nil
}

func validateUpload(req AudioUploadRequest) error {
	if len(req.Files) == 0 {
		return invalid("No files uploaded")
	}
	if !validDate(req.Date) {
		return invalid("Invalid date format. Use YYYY-MM-DD")
	}
	if !validClipType(req.ContentType) {
		return invalid("Invalid type. Must be 'ads' or 'songs'")
	}
	if strings.TrimSpace(req.Channel) == "" || strings.TrimSpace(req.Region) == "" {
		return invalid("Channel and region are required")
	}
	return nil
}

// Search 按条件分页检索。名称同时按原文和空白替换后的形式匹配，
// 因为入库时空白已被替换为 "+"。
func (s *audioService) Search(ctx context.Context, q AudioClipQuery) ([]model.AudioClip, int64, error) {
	if q.Date != "" && !validDate(q.Date) {
		return nil, 0, invalid("Invalid date format. Use YYYY-MM-DD")
	}
	page := q.Pagination.normalize(s.maxPageSize)

	filter := repository.AudioClipFilter{
		Date:        q.Date,
		ContentType: q.ContentType,
		Channel:     q.Channel,
		Region:      q.Region,
		Offset:      page.offset(),
		Limit:       page.Limit,
	}
	if name := strings.TrimSpace(q.Name); name != "" {
		filter.NameTerms = []string{name}
		if normalized := NormalizeFileName(name); normalized != name {
			filter.NameTerms = append(filter.NameTerms, normalized)
		}
	}

	clips, total, err := s.clipRepo.Search(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("search audio clips: %w", err)
	}
	return clips, total, nil
}

// Rename 修改存储的文件名。调用者身份只做校验，不写入记录。
func (s *audioService) Rename(ctx context.Context, id uint, newName string, userID uint) (*model.AudioClip, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, invalid("New file name is required")
	}
	if _, err := s.resolveUser(ctx, userID); err != nil {
		return nil, err
	}

	normalized := NormalizeFileName(newName)
	if err := s.clipRepo.UpdateFileName(ctx, id, normalized); err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrClipNotFound
		case errors.Is(err, gorm.ErrDuplicatedKey):
			return nil, ErrDuplicateClip
		}
		return nil, fmt.Errorf("rename audio clip %d: %w", id, err)
	}

	clip, err := s.clipRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClipNotFound
		}
		return nil, fmt.Errorf("load audio clip %d: %w", id, err)
	}
	log.Infof("[AudioService] 音频重命名: id=%d, fileName=%s, user=%d", id, normalized, userID)
	publish(ctx, s.events, clipEvent(tasks.EventClipRenamed, clip))
	return clip, nil
}

// Delete 先删除对象再删除记录。对象删除失败时记录保持不变；
// 记录删除失败时对象已不存在，这种不一致被接受并记录日志。
func (s *audioService) Delete(ctx context.Context, id uint) error {
	clip, err := s.clipRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClipNotFound
		}
		return fmt.Errorf("load audio clip %d: %w", id, err)
	}

	key, err := s.urls.KeyFromReference(clip.BlobURL)
	if err != nil {
		log.Warnf("[AudioService] 无法解析对象地址: id=%d, url=%s", id, clip.BlobURL)
		return fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	if err := s.blobs.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	if err := s.clipRepo.Delete(ctx, id); err != nil {
		log.Errorf("[AudioService] 对象已删除但记录删除失败: id=%d, key=%s, error: %v", id, key, err)
		return fmt.Errorf("delete audio clip %d: %w", id, err)
	}

	log.Infof("[AudioService] 音频已删除: id=%d, key=%s", id, key)
	publish(ctx, s.events, tasks.NewCatalogEvent(tasks.EventClipDeleted, clip.CatalogID(), nil))
	return nil
}

func (s *audioService) resolveUser(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("resolve user %d: %w", userID, err)
	}
	return user, nil
}

func clipEvent(kind string, clip *model.AudioClip) tasks.CatalogEvent {
	return tasks.NewCatalogEvent(kind, clip.CatalogID(), &tasks.CatalogDocument{
		Kind:        tasks.DocumentKindClip,
		FileName:    clip.FileName,
		Channel:     clip.Channel,
		Region:      clip.Region,
		Date:        clip.Date,
		ContentType: clip.ContentType,
		URL:         clip.BlobURL,
	})
}
