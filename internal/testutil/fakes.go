package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/webitel/grade-exporter/internal/model"
	"github.com/webitel/grade-exporter/internal/sink"
)

// FakeSource is an in-memory GradeSource with call counters, so tests
// can assert that per-run caching prevents repeat queries.
type FakeSource struct {
	mu sync.Mutex

	Items         map[int64]*model.GradeItem
	UsersByCourse map[int64][]*model.User
	GradesByItem  map[int64][]*model.Grade

	Err error

	GetItemCalls     int
	PullUsersCalls   int
	FetchGradesCalls int
}

func NewFakeSource() *FakeSource {
	return &FakeSource{
		Items:         make(map[int64]*model.GradeItem),
		UsersByCourse: make(map[int64][]*model.User),
		GradesByItem:  make(map[int64][]*model.Grade),
	}
}

func (f *FakeSource) GetGradeItem(_ context.Context, id int64) (*model.GradeItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetItemCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Items[id], nil
}

func (f *FakeSource) PullCourseUsers(_ context.Context, courseID int64, _ []int64) (*model.UserSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PullUsersCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	snapshot := model.NewUserSnapshot()
	for _, user := range f.UsersByCourse[courseID] {
		snapshot.Add(user)
	}
	return snapshot, nil
}

func (f *FakeSource) FetchGrades(_ context.Context, itemID int64, userIDs []int64) (*model.GradeSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FetchGradesCalls++
	if f.Err != nil {
		return nil, f.Err
	}
	requested := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		requested[id] = true
	}
	snapshot := model.NewGradeSnapshot()
	for _, grade := range f.GradesByItem[itemID] {
		if requested[grade.UserID] {
			snapshot.Add(grade)
		}
	}
	return snapshot, nil
}

// ImportedRecord is one import accepted by the FakeSink.
type ImportedRecord struct {
	ExternalID string
	UserID     int64
	Grade      float64
}

// FakeSink records imports and rejects the configured users. Session
// accounting verifies the scoped release contract.
type FakeSink struct {
	mu sync.Mutex

	Reject     map[int64]bool
	AcquireErr error

	Imported []ImportedRecord

	SessionsOpened   int
	SessionsReleased int
}

func NewFakeSink() *FakeSink {
	return &FakeSink{Reject: make(map[int64]bool)}
}

func (f *FakeSink) WithSession(_ context.Context, externalID string, fn func(sink.Session) error) error {
	if f.AcquireErr != nil {
		return f.AcquireErr
	}
	f.mu.Lock()
	f.SessionsOpened++
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.SessionsReleased++
		f.mu.Unlock()
	}()
	return fn(&fakeSession{sink: f, externalID: externalID})
}

type fakeSession struct {
	sink       *FakeSink
	externalID string
}

func (s *fakeSession) Import(_ context.Context, user *model.User, grade *model.Grade) bool {
	s.sink.mu.Lock()
	defer s.sink.mu.Unlock()
	if s.sink.Reject[user.ID] {
		return false
	}
	s.sink.Imported = append(s.sink.Imported, ImportedRecord{
		ExternalID: s.externalID,
		UserID:     user.ID,
		Grade:      *grade.FinalGrade,
	})
	return true
}

// FakeQueryStore is a thread-safe in-memory store.QueryStore.
type FakeQueryStore struct {
	mu sync.Mutex

	Queries map[int64]*model.Query
	nextID  int64

	InsertErr error
	UpdateErr error
	DeleteErr error

	DeleteCalls int
}

func NewFakeQueryStore() *FakeQueryStore {
	return &FakeQueryStore{Queries: make(map[int64]*model.Query), nextID: 1}
}

func (f *FakeQueryStore) matches(q *model.Query, filter *model.QuerySearch) bool {
	if filter == nil {
		return true
	}
	if filter.ID != nil && q.ID != *filter.ID {
		return false
	}
	if filter.ExternalID != nil && (q.ExternalID == nil || *q.ExternalID != *filter.ExternalID) {
		return false
	}
	if filter.GradeItemID != nil && (q.GradeItemID == nil || *q.GradeItemID != *filter.GradeItemID) {
		return false
	}
	if filter.Automated != nil && q.Automated != *filter.Automated {
		return false
	}
	return true
}

func (f *FakeQueryStore) Search(_ context.Context, filter *model.QuerySearch) (map[int64]*model.Query, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make(map[int64]*model.Query)
	for id, q := range f.Queries {
		if f.matches(q, filter) {
			copied := *q
			result[id] = &copied
		}
	}
	return result, nil
}

func (f *FakeQueryStore) Get(ctx context.Context, filter *model.QuerySearch) (*model.Query, error) {
	matches, err := f.Search(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, match := range matches {
		return match, nil
	}
	return nil, nil
}

func (f *FakeQueryStore) Insert(_ context.Context, query *model.Query) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return 0, f.InsertErr
	}
	id := f.nextID
	f.nextID++
	copied := *query
	copied.ID = id
	f.Queries[id] = &copied
	return id, nil
}

func (f *FakeQueryStore) Update(_ context.Context, query *model.Query) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	if _, ok := f.Queries[query.ID]; !ok {
		return fmt.Errorf("no query record found")
	}
	copied := *query
	f.Queries[query.ID] = &copied
	return nil
}

func (f *FakeQueryStore) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeleteCalls++
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	if _, ok := f.Queries[id]; !ok {
		return fmt.Errorf("no query record found")
	}
	delete(f.Queries, id)
	return nil
}

// FakeHistoryStore is a thread-safe in-memory store.HistoryStore.
type FakeHistoryStore struct {
	mu sync.Mutex

	Records map[int64]*model.ExportHistory
	Items   map[int64][]model.ExportItem
	nextID  int64

	InsertErr error
}

func NewFakeHistoryStore() *FakeHistoryStore {
	return &FakeHistoryStore{
		Records: make(map[int64]*model.ExportHistory),
		Items:   make(map[int64][]model.ExportItem),
		nextID:  1,
	}
}

func (f *FakeHistoryStore) InsertExport(_ context.Context, queryID int64, outcome *model.ExportOutcome, success bool) (*model.ExportHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return nil, f.InsertErr
	}
	record := &model.ExportHistory{
		ID:        f.nextID,
		QueryID:   queryID,
		Timestamp: f.nextID, // monotonically increasing is enough here
		Success:   success,
	}
	f.nextID++
	f.Records[record.ID] = record
	for _, item := range outcome.Attempted() {
		f.Items[record.ID] = append(f.Items[record.ID], model.ExportItem{
			HistoryID: record.ID,
			UserID:    item.UserID,
			Grade:     item.FinalGrade,
		})
	}
	return record, nil
}

func (f *FakeHistoryStore) GetLastExport(_ context.Context, queryID int64, onlySuccessful bool) (*model.ExportHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.ExportHistory
	for _, record := range f.Records {
		if record.QueryID != queryID {
			continue
		}
		if onlySuccessful && !record.Success {
			continue
		}
		if latest == nil || record.Timestamp > latest.Timestamp {
			latest = record
		}
	}
	return latest, nil
}

func (f *FakeHistoryStore) WipeHistory(_ context.Context, queryID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, record := range f.Records {
		if record.QueryID == queryID {
			delete(f.Items, id)
			delete(f.Records, id)
		}
	}
	return nil
}

func (f *FakeHistoryStore) GetExportedItems(_ context.Context, historyID int64) (map[int64]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make(map[int64]float64)
	for _, item := range f.Items[historyID] {
		items[item.UserID] = item.Grade
	}
	return items, nil
}

// FakeCache is an in-memory cache.Cache.
type FakeCache struct {
	mu sync.Mutex

	Tasks    []model.ExportTask
	Statuses map[int64]model.RunStatus
}

func NewFakeCache() *FakeCache {
	return &FakeCache{Statuses: make(map[int64]model.RunStatus)}
}

func (f *FakeCache) PushExportTask(task model.ExportTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tasks = append(f.Tasks, task)
	return nil
}

func (f *FakeCache) PopExportTask() (model.ExportTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Tasks) == 0 {
		return model.ExportTask{}, fmt.Errorf("queue empty (timeout)")
	}
	task := f.Tasks[0]
	f.Tasks = f.Tasks[1:]
	return task, nil
}

func (f *FakeCache) SetRunStatus(queryID int64, status model.RunStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Statuses[queryID] = status
	return nil
}

func (f *FakeCache) GetRunStatus(queryID int64) (model.RunStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Statuses[queryID], nil
}

func (f *FakeCache) ClearRunStatus(queryID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Statuses, queryID)
	return nil
}

func (f *FakeCache) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tasks = nil
	f.Statuses = make(map[int64]model.RunStatus)
	return nil
}
