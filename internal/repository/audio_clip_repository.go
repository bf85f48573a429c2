// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"strings"

	"indi-radio-go/internal/model"

	"gorm.io/gorm"
)

// AudioClipFilter 描述音频记录的查询条件，空字段表示不过滤
type AudioClipFilter struct {
	Date        string
	ContentType string
	Channel     string
	Region      string
	// NameTerms 中任意一个作为不区分大小写的子串命中 file_name 即可
	NameTerms []string
	Offset    int
	Limit     int
}

// AudioClipRepository 定义了音频记录的持久化操作
type AudioClipRepository interface {
	Create(ctx context.Context, clip *model.AudioClip) error
	FindByID(ctx context.Context, id uint) (*model.AudioClip, error)
	FindByIdentity(ctx context.Context, identity model.ClipIdentity) (*model.AudioClip, error)
	Search(ctx context.Context, filter AudioClipFilter) ([]model.AudioClip, int64, error)
	UpdateFileName(ctx context.Context, id uint, fileName string) error
	Delete(ctx context.Context, id uint) error
	FindMissingUsername(ctx context.Context) ([]model.AudioClip, error)
	UpdateUsername(ctx context.Context, id uint, username string) error
}

type audioClipRepository struct {
	db *gorm.DB
}

func NewAudioClipRepository(db *gorm.DB) AudioClipRepository {
	return &audioClipRepository{db: db}
}

// Create 插入一条记录，唯一索引冲突时返回 gorm.ErrDuplicatedKey
func (r *audioClipRepository) Create(ctx context.Context, clip *model.AudioClip) error {
	return r.db.WithContext(ctx).Create(clip).Error
}

func (r *audioClipRepository) FindByID(ctx context.Context, id uint) (*model.AudioClip, error) {
	var clip model.AudioClip
	if err := r.db.WithContext(ctx).First(&clip, id).Error; err != nil {
		return nil, err
	}
	return &clip, nil
}

func (r *audioClipRepository) FindByIdentity(ctx context.Context, identity model.ClipIdentity) (*model.AudioClip, error) {
	var clip model.AudioClip
	err := r.db.WithContext(ctx).
		Where("file_name = ? AND date = ? AND content_type = ? AND channel = ? AND region = ?",
			identity.FileName, identity.Date, identity.ContentType, identity.Channel, identity.Region).
		First(&clip).Error
	if err != nil {
		return nil, err
	}
	return &clip, nil
}

// Search 返回当前页的数据和满足条件的总数
func (r *audioClipRepository) Search(ctx context.Context, filter AudioClipFilter) ([]model.AudioClip, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.AudioClip{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	clips := make([]model.AudioClip, 0, filter.Limit)
	err := r.db.WithContext(ctx).
		Scopes(filter.scope).
		Order("id ASC").
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&clips).Error
	if err != nil {
		return nil, 0, err
	}
	return clips, total, nil
}

func (f AudioClipFilter) scope(db *gorm.DB) *gorm.DB {
	if f.Date != "" {
		db = db.Where("date = ?", f.Date)
	}
	if f.ContentType != "" {
		db = db.Where("content_type = ?", f.ContentType)
	}
	if f.Channel != "" {
		db = db.Where("channel = ?", f.Channel)
	}
	if f.Region != "" {
		db = db.Where("region = ?", f.Region)
	}
	if len(f.NameTerms) > 0 {
		clauses := make([]string, 0, len(f.NameTerms))
		args := make([]interface{}, 0, len(f.NameTerms))
		for _, term := range f.NameTerms {
			clauses = append(clauses, "LOWER(file_name) LIKE ?")
			args = append(args, "%"+escapeLike(strings.ToLower(term))+"%")
		}
		db = db.Where("("+strings.Join(clauses, " OR ")+")", args...)
	}
	return db
}

// UpdateFileName 只修改 file_name，记录不存在时返回 gorm.ErrRecordNotFound
func (r *audioClipRepository) UpdateFileName(ctx context.Context, id uint, fileName string) error {
	res := r.db.WithContext(ctx).Model(&model.AudioClip{}).Where("id = ?", id).Update("file_name", fileName)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL 在值未变化时也返回 0，这里再确认一次记录是否存在
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.AudioClip{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *audioClipRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.AudioClip{}, id).Error
}

// FindMissingUsername 查找上传者用户名为空的历史记录
func (r *audioClipRepository) FindMissingUsername(ctx context.Context) ([]model.AudioClip, error) {
	var clips []model.AudioClip
	err := r.db.WithContext(ctx).
		Where("uploaded_by_username IS NULL OR uploaded_by_username = ''").
		Order("id ASC").
		Find(&clips).Error
	return clips, err
}

func (r *audioClipRepository) UpdateUsername(ctx context.Context, id uint, username string) error {
	return r.db.WithContext(ctx).Model(&model.AudioClip{}).Where("id = ?", id).Update("uploaded_by_username", username).Error
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
