package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/ports"
)

type memLocalStore struct {
	mu       sync.Mutex
	session  *entities.Session
	profiles map[entities.Role]entities.Profile
	settings entities.Settings
	mailLog  []entities.MailLogEntry
}

func newMemLocalStore() *memLocalStore {
	return &memLocalStore{
		profiles: entities.DefaultProfiles(),
		settings: entities.DefaultSettings(),
	}
}

func (m *memLocalStore) Session() (entities.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return entities.Session{}, false
	}
	return *m.session, true
}

func (m *memLocalStore) SetSession(s entities.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &s
	return nil
}

func (m *memLocalStore) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

func (m *memLocalStore) Profiles() map[entities.Role]entities.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[entities.Role]entities.Profile, len(m.profiles))
	for k, v := range m.profiles {
		out[k] = v
	}
	return out
}

func (m *memLocalStore) Profile(role entities.Role) entities.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profiles[role]
}

func (m *memLocalStore) SetProfile(role entities.Role, p entities.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[role] = p
	return nil
}

func (m *memLocalStore) Settings() entities.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

func (m *memLocalStore) SetSettings(s entities.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s.Normalize()
	return nil
}

func (m *memLocalStore) MailLog() []entities.MailLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.MailLogEntry(nil), m.mailLog...)
}

func (m *memLocalStore) AppendMailLog(entry entities.MailLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mailLog = entities.PrependMailLog(m.mailLog, entry)
	return nil
}

type fakeEmail struct {
	mu       sync.Mutex
	statuses []int
	errs     []error
	sent     []ports.EmailParams
}

func (f *fakeEmail) Send(_ context.Context, _, _ string, params ports.EmailParams) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.sent)
	f.sent = append(f.sent, params)

	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	status := 200
	if i < len(f.statuses) {
		status = f.statuses[i]
	}
	return status, err
}

func (f *fakeEmail) calls() []ports.EmailParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.EmailParams(nil), f.sent...)
}

type fakePush struct {
	mu         sync.Mutex
	configured bool
	resp       []byte
	err        error
	sent       []ports.PushMessage
}

func (f *fakePush) Configured() bool { return f.configured }

func (f *fakePush) Send(_ context.Context, msg ports.PushMessage) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func (f *fakePush) messages() []ports.PushMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.PushMessage(nil), f.sent...)
}

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRegistrar) Init(context.Context) error { return f.err }

func (f *fakeRegistrar) Login(_ context.Context, externalID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "login:"+externalID)
	return f.err
}

func (f *fakeRegistrar) AddTag(_ context.Context, externalID, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "tag:"+externalID+":"+key+"="+value)
	return f.err
}

type memTaskStore struct {
	mu    sync.Mutex
	tasks map[string]entities.Task
	err   error
}

func newMemTaskStore(tasks ...entities.Task) *memTaskStore {
	s := &memTaskStore{tasks: make(map[string]entities.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *memTaskStore) SelectAll(context.Context) ([]entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]entities.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	entities.SortByCreatedDesc(out)
	return out, nil
}

func (s *memTaskStore) Get(_ context.Context, id string) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	return &t, nil
}

func (s *memTaskStore) Insert(_ context.Context, nt entities.NewTask) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	t := entities.Task{
		ID:          uuid.NewString(),
		Title:       nt.Title,
		Notes:       nt.Notes,
		Assignee:    nt.Assignee,
		CreatedAt:   nt.CreatedAt,
		DueAt:       nt.DueAt,
		Status:      entities.TaskStatusPending,
		CreatorRole: nt.CreatorRole,
	}
	s.tasks[t.ID] = t
	return &t, nil
}

func (s *memTaskStore) Update(_ context.Context, id string, p entities.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return entities.ErrTaskNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.DueAt != nil {
		t.DueAt = *p.DueAt
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Notified != nil {
		t.Notified = *p.Notified
	}
	s.tasks[id] = t
	return nil
}

func (s *memTaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *memTaskStore) MarkNotified(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	t, ok := s.tasks[id]
	if !ok {
		return false, entities.ErrTaskNotFound
	}
	if t.Notified {
		return false, nil
	}
	t.Notified = true
	s.tasks[id] = t
	return true, nil
}

func (s *memTaskStore) Subscribe(context.Context) (ports.Subscription, error) {
	return nil, nil
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// listMirror applies change events the same way the lifecycle engine does,
// minus the notified merge.
type listMirror struct {
	mu     sync.Mutex
	tasks  []entities.Task
	events []ports.ChangeEvent
}

func (m *listMirror) Tasks() []entities.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entities.Task(nil), m.tasks...)
}

func (m *listMirror) Task(id string) (entities.Task, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return entities.Task{}, false
}

func (m *listMirror) ApplyRemoteChange(_ context.Context, ev ports.ChangeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	id := ev.TaskID()
	for i, t := range m.tasks {
		if t.ID != id {
			continue
		}
		if ev.Kind == ports.ChangeDelete {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
		} else {
			m.tasks[i] = *ev.New
		}
		return
	}
	if ev.Kind == ports.ChangeInsert {
		m.tasks = append([]entities.Task{*ev.New}, m.tasks...)
	}
}
