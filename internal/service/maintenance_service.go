package service

import (
	"context"
	"errors"
	"fmt"

	"indi-radio-go/internal/model"
	"indi-radio-go/internal/repository"
	"indi-radio-go/pkg/log"

	"gorm.io/gorm"
)

// BackfillReport 汇总一次上传者用户名回填
type BackfillReport struct {
	Found   int
	Updated int
	Skipped int
}

// MaintenanceService 承载一次性的数据修复任务
type MaintenanceService interface {
	BackfillUploaderNames(ctx context.Context, dryRun bool) (*BackfillReport, error)
}

type maintenanceService struct {
	clipRepo repository.AudioClipRepository
	userRepo repository.UserRepository
}

func NewMaintenanceService(clipRepo repository.AudioClipRepository, userRepo repository.UserRepository) MaintenanceService {
	return &maintenanceService{clipRepo: clipRepo, userRepo: userRepo}
}

// BackfillUploaderNames 为缺少上传者用户名的历史记录补上快照。
// 上传者已不存在时写入 Unknown；dryRun 只统计不写入。
func (s *maintenanceService) BackfillUploaderNames(ctx context.Context, dryRun bool) (*BackfillReport, error) {
	clips, err := s.clipRepo.FindMissingUsername(ctx)
	if err != nil {
		return nil, fmt.Errorf("find clips without uploader name: %w", err)
	}
	report := &BackfillReport{Found: len(clips)}
	names := make(map[uint]string)

	for _, clip := range clips {
		name, ok := names[clip.UploadedBy]
		if !ok {
			name, err = s.lookupName(ctx, clip.UploadedBy)
			if err != nil {
				log.Errorf("[Backfill] 查询上传者失败: clip=%d, user=%d, error: %v", clip.ID, clip.UploadedBy, err)
				report.Skipped++
				continue
			}
			names[clip.UploadedBy] = name
		}

		if dryRun {
			log.Infof("[Backfill] (dry-run) clip=%d -> %s", clip.ID, name)
			report.Updated++
			continue
		}
		if err := s.clipRepo.UpdateUsername(ctx, clip.ID, name); err != nil {
			log.Errorf("[Backfill] 更新失败: clip=%d, error: %v", clip.ID, err)
			report.Skipped++
			continue
		}
		report.Updated++
	}
	return report, nil
}

func (s *maintenanceService) lookupName(ctx context.Context, userID uint) (string, error) {
	if userID == 0 {
		return model.UnknownUploader, nil
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.UnknownUploader, nil
	}
	if err != nil {
		return "", err
	}
	return user.DisplayName(), nil
}
