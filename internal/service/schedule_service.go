package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"indi-radio-go/internal/model"
	"indi-radio-go/internal/repository"
	"indi-radio-go/pkg/log"
	"indi-radio-go/pkg/tasks"
)

const (
	defaultEPGStart = "07:00"
	defaultEPGEnd   = "08:00"
)

var requiredScheduleFields = []string{"program", "channel", "id", "date", "start", "end", "type", "audio", "region"}

// ScheduleQuery 是按日期查询排期的条件，时间为 HH:MM
type ScheduleQuery struct {
	Date      string
	StartTime string
	EndTime   string
	Channel   string
	Pagination
}

// SchedulePage 是一页排期以及分页信息
type SchedulePage struct {
	Records []model.ScheduleRecord
	Total   int64
	HasMore bool
}

// EPGEntry 是节目单的直接写入请求
type EPGEntry struct {
	Date        string `json:"date"`
	Channel     string `json:"channel"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ScheduleService 接口定义了排期的导入与查询
type ScheduleService interface {
	Ingest(ctx context.Context, payload []byte) (*IngestReport, error)
	ListByDate(ctx context.Context, q ScheduleQuery) (*SchedulePage, error)
	ListEPG(ctx context.Context, q ScheduleQuery) (*SchedulePage, error)
	UpsertEPGEntry(ctx context.Context, entry EPGEntry) (*model.ScheduleRecord, error)
	Channels(ctx context.Context) ([]string, error)
	Dates(ctx context.Context) ([]string, error)
}

type scheduleService struct {
	repo        repository.ScheduleRepository
	events      EventPublisher
	batchSize   int
	maxPageSize int
}

func NewScheduleService(repo repository.ScheduleRepository, events EventPublisher, batchSize, maxPageSize int) ScheduleService {
	return &scheduleService{
		repo:        repo,
		events:      publisherOrNop(events),
		batchSize:   batchSize,
		maxPageSize: maxPageSize,
	}
}

type pendingRecord struct {
	index  int
	record *model.ScheduleRecord
}

// Ingest 导入一个 JSON 数组。每个条目独立校验，批内和库中已存在的外部 id 被跳过，
// 其余记录批量插入，单条插入失败只影响该条目。
func (s *scheduleService) Ingest(ctx context.Context, payload []byte) (*IngestReport, error) {
	entries, err := decodeEntries(payload)
	if err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)

	var problems []string
	valid := make([]pendingRecord, 0, len(entries))
	for i, raw := range entries {
		rec, errs := parseScheduleEntry(i, raw)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		valid = append(valid, pendingRecord{index: i, record: rec})
	}
	if len(valid) == 0 {
		return nil, &ValidationError{Message: "No valid entries to process", Details: problems}
	}

	report := &IngestReport{Processed: len(valid), Errors: append([]string{}, problems...)}

	seen := make(map[string]struct{}, len(valid))
	candidates := make([]pendingRecord, 0, len(valid))
	ids := make([]string, 0, len(valid))
	for _, p := range valid {
		id := *p.record.ExternalID
		if _, dup := seen[id]; dup {
			report.Skipped++
			continue
		}
		seen[id] = struct{}{}
		candidates = append(candidates, p)
		ids = append(ids, id)
	}

	existing, err := s.repo.FindExistingExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("lookup existing schedule ids: %w", err)
	}
	fresh := make([]pendingRecord, 0, len(candidates))
	records := make([]*model.ScheduleRecord, 0, len(candidates))
	for _, p := range candidates {
		if _, ok := existing[*p.record.ExternalID]; ok {
			report.Skipped++
			continue
		}
		fresh = append(fresh, p)
		records = append(records, p.record)
	}

	var events []tasks.CatalogEvent
	if len(records) > 0 {
		result, err := s.repo.BulkInsert(ctx, records, s.batchSize)
		if err != nil {
			return nil, fmt.Errorf("insert schedule records: %w", err)
		}
		report.Inserted = result.Inserted
		report.Skipped += result.Conflicts

		failed := make([]int, 0, len(result.Failures))
		for idx := range result.Failures {
			failed = append(failed, idx)
		}
		sort.Ints(failed)
		for _, idx := range failed {
			report.Errors = append(report.Errors,
				fmt.Sprintf("Entry %d: Insert failed: %v", fresh[idx].index, result.Failures[idx]))
		}
		// 冲突的记录由并发的导入写入，事件只为本次写入的记录发送
		for _, idx := range result.InsertedIndexes {
			events = append(events, scheduleEvent(fresh[idx].record))
		}
	}

	switch {
	case report.Inserted > 0:
		report.Message = "Radio data uploaded successfully"
	case len(report.Errors) > len(problems):
		report.Message = "No entries were inserted"
	default:
		report.Message = "All entries are duplicates"
	}

	publish(ctx, s.events, events...)
	recordIngest(pipelineSchedule, report, len(report.Errors))
	log.Infof("[ScheduleService] 排期导入完成: entries=%d, valid=%d, inserted=%d, skipped=%d, errors=%d",
		len(entries), report.Processed, report.Inserted, report.Skipped, len(report.Errors))
	return report, nil
}

func decodeEntries(payload []byte) ([]interface{}, error) {
	payload = bytes.TrimPrefix(payload, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, invalid("JSON file is empty")
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, invalid("Invalid JSON format")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, invalid("Invalid JSON format")
	}

	entries, ok := doc.([]interface{})
	if !ok {
		return nil, invalid("JSON file must contain an array of radio data entries")
	}
	return entries, nil
}

// parseScheduleEntry 校验单个条目，每条违反的规则产生一条消息
func parseScheduleEntry(index int, raw interface{}) (*model.ScheduleRecord, []string) {
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, []string{fmt.Sprintf("Entry %d: Entry must be an object", index)}
	}

	var problems []string
	values := make(map[string]string, len(requiredScheduleFields))
	for _, field := range requiredScheduleFields {
		v, ok := scalarString(obj[field])
		if !ok {
			problems = append(problems, fmt.Sprintf("Entry %d: Missing required field: %s", index, field))
			continue
		}
		values[field] = v
	}

	if date, ok := values["date"]; ok && !validDate(date) {
		problems = append(problems, fmt.Sprintf("Entry %d: Invalid date format. Use YYYY-MM-DD", index))
	}
	start, hasStart := values["start"]
	end, hasEnd := values["end"]
	if (hasStart && !recordTimePattern.MatchString(start)) || (hasEnd && !recordTimePattern.MatchString(end)) {
		problems = append(problems, fmt.Sprintf("Entry %d: Invalid time format. Use HH:MM:SS", index))
	}
	if len(problems) > 0 {
		return nil, problems
	}

	externalID := values["id"]
	return &model.ScheduleRecord{
		ExternalID:  &externalID,
		Program:     values["program"],
		Channel:     values["channel"],
		Date:        values["date"],
		Start:       start,
		End:         end,
		ContentType: values["type"],
		Audio:       values["audio"],
		Region:      values["region"],
	}, nil
}

// scalarString 将 JSON 标量转为字符串。null、false、""、0 以及对象和数组视为缺失。
func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
		return t.String(), true
	case bool:
		if !t {
			return "", false
		}
		return "true", true
	default:
		return "", false
	}
}

func (s *scheduleService) ListByDate(ctx context.Context, q ScheduleQuery) (*SchedulePage, error) {
	filter, err := s.buildFilter(q, "", "")
	if err != nil {
		return nil, err
	}
	records, total, err := s.repo.ListByDate(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list schedule for %s: %w", q.Date, err)
	}
	return newSchedulePage(records, total, filter.Offset), nil
}

// ListEPG 返回节目单视图，未指定时间窗口时默认 07:00-08:00
func (s *scheduleService) ListEPG(ctx context.Context, q ScheduleQuery) (*SchedulePage, error) {
	filter, err := s.buildFilter(q, defaultEPGStart, defaultEPGEnd)
	if err != nil {
		return nil, err
	}
	filter.Channel = q.Channel
	records, total, err := s.repo.ListEPG(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list epg for %s: %w", q.Date, err)
	}
	return newSchedulePage(records, total, filter.Offset), nil
}

func newSchedulePage(records []model.ScheduleRecord, total int64, offset int) *SchedulePage {
	if records == nil {
		records = []model.ScheduleRecord{}
	}
	return &SchedulePage{
		Records: records,
		Total:   total,
		HasMore: int64(offset+len(records)) < total,
	}
}

// buildFilter 校验日期和时间窗口。时间比较精确到分钟：结束上限包含该分钟内的任意秒。
func (s *scheduleService) buildFilter(q ScheduleQuery, defaultStart, defaultEnd string) (repository.ScheduleFilter, error) {
	if !validDate(q.Date) {
		return repository.ScheduleFilter{}, invalid("Invalid date format. Use YYYY-MM-DD")
	}
	page := q.Pagination.normalize(s.maxPageSize)
	filter := repository.ScheduleFilter{Date: q.Date, Offset: page.offset(), Limit: page.Limit}

	start := q.StartTime
	if start == "" {
		start = defaultStart
	}
	if start != "" {
		n, ok := normalizeClock(start)
		if !ok {
			return repository.ScheduleFilter{}, invalid("Invalid start time format. Use HH:MM")
		}
		filter.StartFrom = n
	}

	end := q.EndTime
	if end == "" {
		end = defaultEnd
	}
	if end != "" {
		n, ok := normalizeClock(end)
		if !ok {
			return repository.ScheduleFilter{}, invalid("Invalid end time format. Use HH:MM")
		}
		filter.EndUntil = n + ":59"
	}
	return filter, nil
}

// UpsertEPGEntry 按 (date, channel, start) 写入一条节目单
func (s *scheduleService) UpsertEPGEntry(ctx context.Context, entry EPGEntry) (*model.ScheduleRecord, error) {
	if entry.Date == "" || entry.Channel == "" || entry.Start == "" || entry.End == "" || entry.Title == "" {
		return nil, invalid("Missing required fields")
	}
	if !validDate(entry.Date) {
		return nil, invalid("Invalid date format. Use YYYY-MM-DD")
	}
	start, ok := normalizeSlotTime(entry.Start)
	if !ok {
		return nil, invalid("Invalid start time format. Use HH:MM")
	}
	end, ok := normalizeSlotTime(entry.End)
	if !ok {
		return nil, invalid("Invalid end time format. Use HH:MM")
	}

	record := &model.ScheduleRecord{
		Date:        entry.Date,
		Channel:     entry.Channel,
		Start:       start,
		End:         end,
		Program:     entry.Title,
		Description: entry.Description,
	}
	if err := s.repo.UpsertSlot(ctx, record); err != nil {
		return nil, fmt.Errorf("save epg entry: %w", err)
	}
	log.Infof("[ScheduleService] 节目单已保存: date=%s, channel=%s, start=%s", record.Date, record.Channel, record.Start)
	publish(ctx, s.events, scheduleEvent(record))
	return record, nil
}

// normalizeSlotTime 接受 H:MM、HH:MM 或 HH:MM:SS
func normalizeSlotTime(s string) (string, bool) {
	if recordTimePattern.MatchString(s) {
		if _, ok := normalizeClock(s[:5]); ok && s[6] <= '5' {
			return s, true
		}
		return "", false
	}
	return normalizeClock(s)
}

func (s *scheduleService) Channels(ctx context.Context) ([]string, error) {
	channels, err := s.repo.DistinctChannels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}

func (s *scheduleService) Dates(ctx context.Context) ([]string, error) {
	dates, err := s.repo.DistinctDates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	return dates, nil
}

func scheduleEvent(rec *model.ScheduleRecord) tasks.CatalogEvent {
	return tasks.NewCatalogEvent(tasks.EventScheduleCreated, rec.CatalogID(), &tasks.CatalogDocument{
		Kind:        tasks.DocumentKindSchedule,
		Program:     rec.Program,
		Description: rec.Description,
		Channel:     rec.Channel,
		Region:      rec.Region,
		Date:        rec.Date,
		Start:       rec.Start,
		End:         rec.End,
		ContentType: rec.ContentType,
		URL:         rec.Audio,
	})
}
