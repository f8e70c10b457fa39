package lifecycle

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/familyboard/core/internal/domain/entities"
	"github.com/familyboard/core/internal/ports"
)

type stubStore struct {
	mu        sync.Mutex
	tasks     []entities.Task
	selectErr error
	markErr   error
	markCalls []string
	onMark    func(id string)
	sub       *stubSubscription
}

func newStubStore(tasks ...entities.Task) *stubStore {
	return &stubStore{tasks: tasks}
}

func (s *stubStore) SelectAll(context.Context) ([]entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selectErr != nil {
		return nil, s.selectErr
	}
	return append([]entities.Task(nil), s.tasks...), nil
}

func (s *stubStore) Get(_ context.Context, id string) (*entities.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, entities.ErrTaskNotFound
}

func (s *stubStore) Insert(context.Context, entities.NewTask) (*entities.Task, error) {
	return nil, nil
}

func (s *stubStore) Update(context.Context, string, entities.TaskPatch) error { return nil }

func (s *stubStore) Delete(context.Context, string) error { return nil }

func (s *stubStore) MarkNotified(_ context.Context, id string) (bool, error) {
	if s.onMark != nil {
		s.onMark(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.markCalls = append(s.markCalls, id)
	if s.markErr != nil {
		return false, s.markErr
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			if s.tasks[i].Notified {
				return false, nil
			}
			s.tasks[i].Notified = true
			return true, nil
		}
	}
	return false, entities.ErrTaskNotFound
}

func (s *stubStore) Subscribe(context.Context) (ports.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub == nil {
		s.sub = &stubSubscription{events: make(chan ports.ChangeEvent, 16)}
	}
	return s.sub, nil
}

func (s *stubStore) set(t entities.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t
			return
		}
	}
	s.tasks = append(s.tasks, t)
}

func (s *stubStore) setMarkErr(err error) {
	s.mu.Lock()
	s.markErr = err
	s.mu.Unlock()
}

func (s *stubStore) marks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.markCalls...)
}

type stubSubscription struct {
	events chan ports.ChangeEvent
	mu     sync.Mutex
	closed bool
}

func (s *stubSubscription) Events() <-chan ports.ChangeEvent { return s.events }

func (s *stubSubscription) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *stubSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type sentEmail struct {
	To, Text, Name string
}

type sentPush struct {
	Role        entities.Role
	Title, Body string
}

type recordingDispatcher struct {
	mu     sync.Mutex
	push   bool
	emails []sentEmail
	pushes []sentPush
}

func (d *recordingDispatcher) SendEmail(_ context.Context, to, text, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails = append(d.emails, sentEmail{To: to, Text: text, Name: name})
	return true
}

func (d *recordingDispatcher) SendPush(context.Context, ports.PushRequest) (json.RawMessage, error) {
	return nil, nil
}

func (d *recordingDispatcher) NotifyRole(_ context.Context, role entities.Role, title, body string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pushes = append(d.pushes, sentPush{Role: role, Title: title, Body: body})
	return true
}

func (d *recordingDispatcher) PushConfigured() bool { return d.push }

func (d *recordingDispatcher) sentEmails() []sentEmail {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentEmail(nil), d.emails...)
}

func (d *recordingDispatcher) sentPushes() []sentPush {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]sentPush(nil), d.pushes...)
}

type stubLocal struct {
	profiles map[entities.Role]entities.Profile
	settings entities.Settings
}

func newStubLocal() *stubLocal {
	return &stubLocal{
		profiles: map[entities.Role]entities.Profile{
			entities.RoleMother: {Name: "Maryam", Email: "mom@example.com"},
			entities.RoleFather: {Name: "Ali", Email: "dad@example.com"},
			entities.RoleSon:    {Name: "Reza", Email: "not-an-email"},
		},
		settings: entities.DefaultSettings(),
	}
}

func (l *stubLocal) Session() (entities.Session, bool) { return entities.Session{}, false }
func (l *stubLocal) SetSession(entities.Session) error { return nil }
func (l *stubLocal) ClearSession() error { return nil }
func (l *stubLocal) Settings() entities.Settings { return l.settings }
func (l *stubLocal) SetSettings(s entities.Settings) error { l.settings = s; return nil }
func (l *stubLocal) MailLog() []entities.MailLogEntry { return nil }
func (l *stubLocal) AppendMailLog(entities.MailLogEntry) error {
	return nil
}

func (l *stubLocal) Profiles() map[entities.Role]entities.Profile {
	out := make(map[entities.Role]entities.Profile, len(l.profiles))
	for k, v := range l.profiles {
		out[k] = v
	}
	return out
}

func (l *stubLocal) Profile(r entities.Role) entities.Profile { return l.profiles[r] }

func (l *stubLocal) SetProfile(r entities.Role, p entities.Profile) error {
	l.profiles[r] = p
	return nil
}
