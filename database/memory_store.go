package database

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Cognio-so/agt-tester/model"
	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It backs DB_DRIVER=memory
// and the handler tests.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]*model.User
	chats       map[string]model.ChatHistory
	assignments map[string]model.GptAssignment
	favorites   map[string]model.Favorite

	// failCascadeAt names a collection whose delete step fails, for tests
	failCascadeAt string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       map[string]*model.User{},
		chats:       map[string]model.ChatHistory{},
		assignments: map[string]model.GptAssignment{},
		favorites:   map[string]model.Favorite{},
	}
}

// FailCascadeAt makes DeleteUserCascade fail once it reaches collection.
// An empty name clears the failure.
func (m *MemoryStore) FailCascadeAt(collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCascadeAt = collection
}

// AddChatHistory stores a chat history document
func (m *MemoryStore) AddChatHistory(h model.ChatHistory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.Key == "" {
		h.Key = uuid.NewString()
	}
	m.chats[h.Key] = h
}

// AddAssignment stores a GPT assignment document
func (m *MemoryStore) AddAssignment(a model.GptAssignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Key == "" {
		a.Key = uuid.NewString()
	}
	m.assignments[a.Key] = a
}

// AddFavorite stores a favorite document
func (m *MemoryStore) AddFavorite(f model.Favorite) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f.Key == "" {
		f.Key = uuid.NewString()
	}
	m.favorites[f.Key] = f
}

func (m *MemoryStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.emailTakenLocked(u.Email, "") {
		return ErrDuplicateEmail
	}
	if u.Key == "" {
		u.Key = uuid.NewString()
	}
	m.users[u.Key] = cloneUser(u)
	return nil
}

func (m *MemoryStore) FindUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	return m.findFirst(func(u *model.User) bool { return strings.EqualFold(u.Email, email) })
}

func (m *MemoryStore) FindUserByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	if googleID == "" {
		return nil, ErrNotFound
	}
	return m.findFirst(func(u *model.User) bool { return u.GoogleID == googleID })
}

func (m *MemoryStore) FindUserByVerificationCode(_ context.Context, code string, now time.Time) (*model.User, error) {
	if code == "" {
		return nil, ErrNotFound
	}
	return m.findFirst(func(u *model.User) bool {
		return u.VerificationToken == code &&
			u.VerificationTokenExpiresAt != nil && u.VerificationTokenExpiresAt.After(now)
	})
}

func (m *MemoryStore) FindUserByResetToken(_ context.Context, token string, now time.Time) (*model.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return m.findFirst(func(u *model.User) bool {
		return u.ResetPasswordToken == token &&
			u.ResetPasswordExpiresAt != nil && u.ResetPasswordExpiresAt.After(now)
	})
}

func (m *MemoryStore) UpdateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[u.Key]; !ok {
		return ErrNotFound
	}
	if m.emailTakenLocked(u.Email, u.Key) {
		return ErrDuplicateEmail
	}
	m.users[u.Key] = cloneUser(u)
	return nil
}

func (m *MemoryStore) SetLastActive(_ context.Context, id string, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if at == nil {
		u.LastActive = nil
	} else {
		t := *at
		u.LastActive = &t
		u.UpdatedAt = t
	}
	return nil
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]*model.User, error) {
	return m.sortedUsers(""), nil
}

func (m *MemoryStore) CountUsers(_ context.Context, excludeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.users)
	if _, ok := m.users[excludeID]; ok {
		n--
	}
	return n, nil
}

func (m *MemoryStore) ListUsersPage(_ context.Context, excludeID string, skip, limit int) ([]*model.User, error) {
	users := m.sortedUsers(excludeID)
	if skip < 0 || skip >= len(users) {
		return []*model.User{}, nil
	}
	end := len(users)
	if limit > 0 && limit < end-skip {
		end = skip + limit
	}
	return users[skip:end], nil
}

func (m *MemoryStore) CountAssignmentsByUser(_ context.Context, userIDs []string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		wanted[id] = true
	}
	counts := map[string]int{}
	for _, a := range m.assignments {
		if wanted[a.UserID] {
			counts[a.UserID]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) CountAssignmentsForUser(_ context.Context, userID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, a := range m.assignments {
		if a.UserID == userID {
			n++
		}
	}
	return n, nil
}

// DeleteUserCascade applies the deletes to copies and swaps them in only when
// every step succeeded.
func (m *MemoryStore) DeleteUserCascade(_ context.Context, userID string) (model.DeletionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res model.DeletionResult
	if _, ok := m.users[userID]; !ok {
		return res, ErrNotFound
	}

	chats := maps.Clone(m.chats)
	assignments := maps.Clone(m.assignments)
	favorites := maps.Clone(m.favorites)
	users := maps.Clone(m.users)

	if err := m.cascadeStep(model.CollectionChatHistories); err != nil {
		return model.DeletionResult{}, err
	}
	res.ChatHistory = deleteOwned(chats, userID, func(h model.ChatHistory) string { return h.UserID })

	if err := m.cascadeStep(model.CollectionGptAssignments); err != nil {
		return model.DeletionResult{}, err
	}
	res.GptAssignments = deleteOwned(assignments, userID, func(a model.GptAssignment) string { return a.UserID })

	if err := m.cascadeStep(model.CollectionFavorites); err != nil {
		return model.DeletionResult{}, err
	}
	res.Favorites = deleteOwned(favorites, userID, func(f model.Favorite) string { return f.UserID })

	if err := m.cascadeStep(model.CollectionUsers); err != nil {
		return model.DeletionResult{}, err
	}
	delete(users, userID)
	res.User = true

	m.chats, m.assignments, m.favorites, m.users = chats, assignments, favorites, users
	return res, nil
}

func (m *MemoryStore) cascadeStep(collection string) error {
	if m.failCascadeAt == collection {
		return fmt.Errorf("delete from %s: injected failure", collection)
	}
	return nil
}

func deleteOwned[T any](docs map[string]T, userID string, owner func(T) string) int {
	n := 0
	for k, d := range docs {
		if owner(d) == userID {
			delete(docs, k)
			n++
		}
	}
	return n
}

func (m *MemoryStore) findFirst(match func(*model.User) bool) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) emailTakenLocked(email, exceptKey string) bool {
	for k, u := range m.users {
		if k != exceptKey && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (m *MemoryStore) sortedUsers(excludeID string) []*model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*model.User, 0, len(m.users))
	for k, u := range m.users {
		if k == excludeID {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func cloneUser(u *model.User) *model.User {
	c := *u
	c.APIKeys = maps.Clone(u.APIKeys)
	c.LastActive = cloneTime(u.LastActive)
	c.VerificationTokenExpiresAt = cloneTime(u.VerificationTokenExpiresAt)
	c.ResetPasswordExpiresAt = cloneTime(u.ResetPasswordExpiresAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
