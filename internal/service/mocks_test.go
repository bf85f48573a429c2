package service

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"

	"indi-radio-go/internal/model"
	"indi-radio-go/internal/repository"
	"indi-radio-go/pkg/tasks"

	"gorm.io/gorm"
)

// memClipRepo 是内存版 AudioClipRepository，按五元组模拟唯一索引
type memClipRepo struct {
	mu     sync.Mutex
	nextID uint
	clips  map[uint]*model.AudioClip

	createErr  func(clip *model.AudioClip) error
	deleteErr  error
	lastSearch repository.AudioClipFilter
}

func newMemClipRepo() *memClipRepo {
	return &memClipRepo{clips: make(map[uint]*model.AudioClip)}
}

func (r *memClipRepo) Create(_ context.Context, clip *model.AudioClip) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		if err := r.createErr(clip); err != nil {
			return err
		}
	}
	for _, c := range r.clips {
		if c.Identity() == clip.Identity() {
			return gorm.ErrDuplicatedKey
		}
	}
	r.nextID++
	clip.ID = r.nextID
	stored := *clip
	r.clips[clip.ID] = &stored
	return nil
}

func (r *memClipRepo) FindByID(_ context.Context, id uint) (*model.AudioClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clips[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	out := *c
	return &out, nil
}

func (r *memClipRepo) FindByIdentity(_ context.Context, identity model.ClipIdentity) (*model.AudioClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clips {
		if c.Identity() == identity {
			out := *c
			return &out, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memClipRepo) Search(_ context.Context, filter repository.AudioClipFilter) ([]model.AudioClip, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSearch = filter

	ids := make([]uint, 0, len(r.clips))
	for id := range r.clips {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var matched []model.AudioClip
	for _, id := range ids {
		c := r.clips[id]
		if filter.Date != "" && c.Date != filter.Date {
			continue
		}
		if filter.ContentType != "" && c.ContentType != filter.ContentType {
			continue
		}
		if filter.Channel != "" && c.Channel != filter.Channel {
			continue
		}
		if filter.Region != "" && c.Region != filter.Region {
			continue
		}
		if len(filter.NameTerms) > 0 {
			hit := false
			for _, term := range filter.NameTerms {
				if strings.Contains(strings.ToLower(c.FileName), strings.ToLower(term)) {
					hit = true
				}
			}
			if !hit {
				continue
			}
		}
		matched = append(matched, *c)
	}

	total := int64(len(matched))
	start := min(filter.Offset, len(matched))
	end := min(start+filter.Limit, len(matched))
	return matched[start:end], total, nil
}

func (r *memClipRepo) UpdateFileName(_ context.Context, id uint, fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clips[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	renamed := *c
	renamed.FileName = fileName
	for otherID, other := range r.clips {
		if otherID != id && other.Identity() == renamed.Identity() {
			return gorm.ErrDuplicatedKey
		}
	}
	c.FileName = fileName
	return nil
}

func (r *memClipRepo) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deleteErr != nil {
		return r.deleteErr
	}
	delete(r.clips, id)
	return nil
}

func (r *memClipRepo) FindMissingUsername(_ context.Context) ([]model.AudioClip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AudioClip
	for _, c := range r.clips {
		if c.UploadedByUsername == nil || *c.UploadedByUsername == "" {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memClipRepo) UpdateUsername(_ context.Context, id uint, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clips[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	c.UploadedByUsername = &username
	return nil
}

// seed 直接写入一条记录，绕过 Create 的钩子
func (r *memClipRepo) seed(clip model.AudioClip) uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	clip.ID = r.nextID
	r.clips[clip.ID] = &clip
	return clip.ID
}

type mockUserRepo struct {
	users map[uint]*model.User
	err   error
}

func newMockUserRepo(users ...model.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[uint]*model.User)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if u.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	user.ID = uint(len(m.users) + 1)
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) FindByID(_ context.Context, id uint) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

type blobCall struct {
	op   string
	key  string
	body string
}

// mockBlobStore 记录调用顺序，putErr/deleteErr 按 key 注入失败
type mockBlobStore struct {
	mu        sync.Mutex
	calls     []blobCall
	putErr    func(key string) error
	deleteErr error
}

func (m *mockBlobStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		if err := m.putErr(key); err != nil {
			return err
		}
	}
	body, _ := io.ReadAll(r)
	m.calls = append(m.calls, blobCall{op: "put", key: key, body: string(body)})
	return nil
}

func (m *mockBlobStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.calls = append(m.calls, blobCall{op: "delete", key: key})
	return nil
}

func (m *mockBlobStore) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

type mockPublisher struct {
	events []tasks.CatalogEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, events ...tasks.CatalogEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

// mockScheduleRepo 是函数字段风格的 ScheduleRepository
type mockScheduleRepo struct {
	FindExistingExternalIDsFunc func(ctx context.Context, ids []string) (map[string]struct{}, error)
	BulkInsertFunc              func(ctx context.Context, records []*model.ScheduleRecord, batchSize int) (*repository.BulkInsertResult, error)
	ListByDateFunc              func(ctx context.Context, filter repository.ScheduleFilter) ([]model.ScheduleRecord, int64, error)
	ListEPGFunc                 func(ctx context.Context, filter repository.ScheduleFilter) ([]model.ScheduleRecord, int64, error)
	UpsertSlotFunc              func(ctx context.Context, record *model.ScheduleRecord) error
	DistinctChannelsFunc        func(ctx context.Context) ([]string, error)
	DistinctDatesFunc           func(ctx context.Context) ([]string, error)

	calls int
}

func (m *mockScheduleRepo) FindExistingExternalIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	m.calls++
	if m.FindExistingExternalIDsFunc != nil {
		return m.FindExistingExternalIDsFunc(ctx, ids)
	}
	return map[string]struct{}{}, nil
}

func (m *mockScheduleRepo) BulkInsert(ctx context.Context, records []*model.ScheduleRecord, batchSize int) (*repository.BulkInsertResult, error) {
	m.calls++
	if m.BulkInsertFunc != nil {
		return m.BulkInsertFunc(ctx, records, batchSize)
	}
	return insertedAll(records), nil
}

// insertedAll 模拟所有记录都写入成功的批量插入结果
func insertedAll(records []*model.ScheduleRecord) *repository.BulkInsertResult {
	result := &repository.BulkInsertResult{Inserted: len(records), Failures: map[int]error{}}
	for i := range records {
		result.InsertedIndexes = append(result.InsertedIndexes, i)
	}
	return result
}

func (m *mockScheduleRepo) ListByDate(ctx context.Context, filter repository.ScheduleFilter) ([]model.ScheduleRecord, int64, error) {
	m.calls++
	if m.ListByDateFunc != nil {
		return m.ListByDateFunc(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockScheduleRepo) ListEPG(ctx context.Context, filter repository.ScheduleFilter) ([]model.ScheduleRecord, int64, error) {
	m.calls++
	if m.ListEPGFunc != nil {
		return m.ListEPGFunc(ctx, filter)
	}
	return nil, 0, nil
}

func (m *mockScheduleRepo) UpsertSlot(ctx context.Context, record *model.ScheduleRecord) error {
	m.calls++
	if m.UpsertSlotFunc != nil {
		return m.UpsertSlotFunc(ctx, record)
	}
	return nil
}

func (m *mockScheduleRepo) DistinctChannels(ctx context.Context) ([]string, error) {
	m.calls++
	if m.DistinctChannelsFunc != nil {
		return m.DistinctChannelsFunc(ctx)
	}
	return nil, nil
}

func (m *mockScheduleRepo) DistinctDates(ctx context.Context) ([]string, error) {
	m.calls++
	if m.DistinctDatesFunc != nil {
		return m.DistinctDatesFunc(ctx)
	}
	return nil, nil
}

func memFile(name, body string) UploadFile {
	return UploadFile{
		Name:        name,
		ContentType: "audio/mpeg",
		Size:        int64(len(body)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewBufferString(body)), nil
		},
	}
}
