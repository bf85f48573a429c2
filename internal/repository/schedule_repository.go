package repository

import (
	"context"
	"errors"

	"indi-radio-go/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultInsertBatchSize = 500
	// 外部 id 查询按块进行，避免 IN 列表过长
	lookupChunkSize = 1000
)

// ScheduleFilter 描述排期查询条件。StartFrom/EndUntil 为 HH:MM:SS 字符串，按字典序比较。
type ScheduleFilter struct {
	Date      string
	StartFrom string
	EndUntil  string
	Channel   string
	Offset    int
	Limit     int
}

// BulkInsertResult 汇总一次批量插入的结果。InsertedIndexes 与 Failures 的 key 都是记录在输入切片中的下标，
// InsertedIndexes 只包含本次真正写入的记录，因并发导入而冲突的记录不在其中。
type BulkInsertResult struct {
	Inserted        int
	InsertedIndexes []int
	Conflicts       int
	Failures        map[int]error
}

// ScheduleRepository 定义了排期记录的持久化操作
type ScheduleRepository interface {
	FindExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	BulkInsert(ctx context.Context, records []*model.ScheduleRecord, batchSize int) (*BulkInsertResult, error)
	ListByDate(ctx context.Context, filter ScheduleFilter) ([]model.ScheduleRecord, int64, error)
	ListEPG(ctx context.Context, filter ScheduleFilter) ([]model.ScheduleRecord, int64, error)
	UpsertSlot(ctx context.Context, record *model.ScheduleRecord) error
	DistinctChannels(ctx context.Context) ([]string, error)
	DistinctDates(ctx context.Context) ([]string, error)
}

type scheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

func (r *scheduleRepository) FindExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	for start := 0; start < len(ids); start += lookupChunkSize {
		end := min(start+lookupChunkSize, len(ids))
		var found []string
		err := r.db.WithContext(ctx).
			Model(&model.ScheduleRecord{}).
			Where("external_id IN ?", ids[start:end]).
			Pluck("external_id", &found).Error
		if err != nil {
			return nil, err
		}
		for _, id := range found {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

// BulkInsert 按批插入。一批是一条多行 INSERT，要么整体写入要么整体失败；
// 失败时（包括与并发导入的唯一键冲突）逐条重试，冲突的记录被忽略并计入 Conflicts。
func (r *scheduleRepository) BulkInsert(ctx context.Context, records []*model.ScheduleRecord, batchSize int) (*BulkInsertResult, error) {
	if batchSize <= 0 {
		batchSize = defaultInsertBatchSize
	}
	result := &BulkInsertResult{Failures: make(map[int]error)}

	for start := 0; start < len(records); start += batchSize {
		end := min(start+batchSize, len(records))
		batch := records[start:end]

		if err := r.db.WithContext(ctx).Create(&batch).Error; err == nil {
			for i := start; i < end; i++ {
				result.InsertedIndexes = append(result.InsertedIndexes, i)
			}
			result.Inserted += len(batch)
			continue
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		for i, rec := range batch {
			rec.ID = 0
			res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
			switch {
			case errors.Is(res.Error, gorm.ErrDuplicatedKey):
				result.Conflicts++
			case res.Error != nil:
				result.Failures[start+i] = res.Error
			case res.RowsAffected == 0:
				result.Conflicts++
			default:
				result.Inserted++
				result.InsertedIndexes = append(result.InsertedIndexes, start+i)
			}
		}
	}
	return result, nil
}

// ListByDate 按插入顺序返回某天的排期
func (r *scheduleRepository) ListByDate(ctx context.Context, filter ScheduleFilter) ([]model.ScheduleRecord, int64, error) {
	return r.list(ctx, filter, "id ASC")
}

// ListEPG 按开始时间、频道排序返回节目单
func (r *scheduleRepository) ListEPG(ctx context.Context, filter ScheduleFilter) ([]model.ScheduleRecord, int64, error) {
	return r.list(ctx, filter, "start_time ASC, channel ASC, id ASC")
}

func (r *scheduleRepository) list(ctx context.Context, filter ScheduleFilter, order string) ([]model.ScheduleRecord, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.ScheduleRecord{}).Scopes(filter.scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	records := make([]model.ScheduleRecord, 0, filter.Limit)
	err := r.db.WithContext(ctx).
		Scopes(filter.scope).
		Order(order).
		Offset(filter.Offset).
		Limit(filter.Limit).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (f ScheduleFilter) scope(db *gorm.DB) *gorm.DB {
	db = db.Where("date = ?", f.Date)
	if f.StartFrom != "" {
		db = db.Where("start_time >= ?", f.StartFrom)
	}
	if f.EndUntil != "" {
		db = db.Where("end_time <= ?", f.EndUntil)
	}
	if f.Channel != "" {
		db = db.Where("channel = ?", f.Channel)
	}
	return db
}

// UpsertSlot 以 (date, channel, start) 定位记录：存在则更新结束时间、节目名和描述，否则插入。
// 成功后 record 被替换为库中的最新内容。
func (r *scheduleRepository) UpsertSlot(ctx context.Context, record *model.ScheduleRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.ScheduleRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("date = ? AND channel = ? AND start_time = ?", record.Date, record.Channel, record.Start).
			Order("id ASC").
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}

		err = tx.Model(&existing).Updates(map[string]interface{}{
			"end_time":    record.End,
			"program":     record.Program,
			"description": record.Description,
		}).Error
		if err != nil {
			return err
		}
		existing.End = record.End
		existing.Program = record.Program
		existing.Description = record.Description
		*record = existing
		return nil
	})
}

func (r *scheduleRepository) DistinctChannels(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "channel")
}

func (r *scheduleRepository) DistinctDates(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "date")
}

func (r *scheduleRepository) distinct(ctx context.Context, column string) ([]string, error) {
	values := make([]string, 0)
	err := r.db.WithContext(ctx).
		Model(&model.ScheduleRecord{}).
		Where(column + " <> ''").
		Distinct(column).
		Order(column + " ASC").
		Pluck(column, &values).Error
	return values, err
}
