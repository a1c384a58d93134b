// Package memstore is an in-memory implementation of the store interfaces.
// It backs unit tests of the services and the job pipeline, and honours the
// same contracts as the PostgreSQL stores, including conditional job
// transitions and transaction rollback.
package memstore

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/phrazzld/digest-api/internal/domain"
	"github.com/phrazzld/digest-api/internal/store"
)

// DB holds the shared state behind the three stores.
type DB struct {
	mu            sync.Mutex
	txMu          sync.Mutex
	users         map[int64]domain.User
	jobs          map[int64]domain.Job
	notifications map[int64]domain.Notification
	nextUserID    int64
	nextJobID     int64
	nextNoteID    int64

	// Now supplies timestamps for transitions.
	Now func() time.Time
}

// New returns an empty database.
func New() *DB {
	return &DB{
		users:         map[int64]domain.User{},
		jobs:          map[int64]domain.Job{},
		notifications: map[int64]domain.Notification{},
		Now:           func() time.Time { return time.Now().UTC() },
	}
}

// Users returns a UserStore on db.
func (db *DB) Users() *UserStore { return &UserStore{db: db} }

// Jobs returns a JobStore on db.
func (db *DB) Jobs() *JobStore { return &JobStore{db: db} }

// Notifications returns a NotificationStore on db.
func (db *DB) Notifications() *NotificationStore { return &NotificationStore{db: db} }

// RunInTx implements store.Transactor. Transactions are serialized, and the
// state is restored when fn fails.
func (db *DB) RunInTx(ctx context.Context, fn store.TxFn) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.Lock()
	users, jobs, notes := maps.Clone(db.users), maps.Clone(db.jobs), maps.Clone(db.notifications)
	db.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		db.mu.Lock()
		db.users, db.jobs, db.notifications = users, jobs, notes
		db.mu.Unlock()
		return err
	}
	return nil
}

// PutJob stores a copy of job as-is, for arranging test fixtures. A zero
// ID is assigned the next sequence value.
func (db *DB) PutJob(job domain.Job) domain.Job {
	db.mu.Lock()
	defer db.mu.Unlock()
	if job.ID == 0 {
		db.nextJobID++
		job.ID = db.nextJobID
	} else if job.ID > db.nextJobID {
		db.nextJobID = job.ID
	}
	db.jobs[job.ID] = job
	return job
}

// PutUser stores a copy of user as-is, assigning an ID when zero.
func (db *DB) PutUser(user domain.User) domain.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	if user.ID == 0 {
		db.nextUserID++
		user.ID = db.nextUserID
	} else if user.ID > db.nextUserID {
		db.nextUserID = user.ID
	}
	db.users[user.ID] = user
	return user
}

// UserStore implements store.UserStore.
type UserStore struct{ db *DB }

var _ store.UserStore = (*UserStore)(nil)

func (s *UserStore) WithTx(*sql.Tx) store.UserStore { return s }

func (s *UserStore) Create(_ context.Context, user *domain.User) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if strings.EqualFold(u.Username, user.Username) {
			return store.ErrUsernameExists
		}
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrEmailExists
		}
	}
	s.db.nextUserID++
	user.ID = s.db.nextUserID
	s.db.users[user.ID] = *user
	return nil
}

func (s *UserStore) GetByID(_ context.Context, id int64) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &u, nil
}

func (s *UserStore) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (s *UserStore) AdjustCredits(_ context.Context, id int64, delta int) (*domain.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	u.Credits += delta
	s.db.users[id] = u
	return &u, nil
}

func (s *UserStore) ResetCredits(_ context.Context, baseline int) ([]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	ids := []int64{}
	for id, u := range s.db.users {
		if u.Credits != baseline {
			u.Credits = baseline
			s.db.users[id] = u
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// JobStore implements store.JobStore.
type JobStore struct{ db *DB }

var _ store.JobStore = (*JobStore)(nil)

func (s *JobStore) WithTx(*sql.Tx) store.JobStore { return s }

func (s *JobStore) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[job.UserID]; !ok {
		return fmt.Errorf("%w: user %d does not exist", store.ErrInvalidEntity, job.UserID)
	}
	s.db.nextJobID++
	job.ID = s.db.nextJobID
	s.db.jobs[job.ID] = *job
	return nil
}

func (s *JobStore) GetByID(_ context.Context, id int64) (*domain.Job, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	j, ok := s.db.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &j, nil
}

func (s *JobStore) Transition(
	_ context.Context,
	id int64,
	from, to domain.JobStatus,
	output *string,
) (*domain.Job, error) {
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	if to.IsTerminal() != (output != nil) {
		return nil, fmt.Errorf("%w: output is required exactly for terminal statuses", store.ErrInvalidEntity)
	}

	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	j, ok := s.db.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	if j.Status != from {
		return nil, fmt.Errorf("%w: job %d is %s", store.ErrStaleTransition, id, j.Status)
	}
	j.Status = to
	if output != nil {
		text := *output
		j.OutputText = &text
	}
	j.UpdatedAt = s.db.Now()
	s.db.jobs[id] = j
	return &j, nil
}

func (s *JobStore) CountUserJobsUpTo(_ context.Context, userID, jobID int64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n := 0
	for _, j := range s.db.jobs {
		if j.UserID == userID && j.ID <= jobID {
			n++
		}
	}
	return n, nil
}

func (s *JobStore) ListByUser(_ context.Context, userID int64, limit, offset int) ([]*domain.Job, error) {
	jobs := s.filter(func(j domain.Job) bool { return j.UserID == userID })
	slices.Reverse(jobs)
	return page(jobs, limit, offset), nil
}

func (s *JobStore) ListByStatus(_ context.Context, status domain.JobStatus, limit int) ([]*domain.Job, error) {
	return page(s.filter(func(j domain.Job) bool { return j.Status == status }), limit, 0), nil
}

func (s *JobStore) ListStuck(_ context.Context, before time.Time, limit int) ([]*domain.Job, error) {
	return page(s.filter(func(j domain.Job) bool {
		return j.Status == domain.JobStatusProcessing && j.UpdatedAt.Before(before)
	}), limit, 0), nil
}

// filter returns matching jobs in ascending ID order.
func (s *JobStore) filter(keep func(domain.Job) bool) []*domain.Job {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []*domain.Job{}
	for _, id := range slices.Sorted(maps.Keys(s.db.jobs)) {
		j := s.db.jobs[id]
		if keep(j) {
			out = append(out, &j)
		}
	}
	return out
}

// NotificationStore implements store.NotificationStore.
type NotificationStore struct{ db *DB }

var _ store.NotificationStore = (*NotificationStore)(nil)

func (s *NotificationStore) WithTx(*sql.Tx) store.NotificationStore { return s }

func (s *NotificationStore) Create(_ context.Context, n *domain.Notification) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.users[n.UserID]; !ok {
		return fmt.Errorf("%w: user %d does not exist", store.ErrInvalidEntity, n.UserID)
	}
	s.db.nextNoteID++
	n.ID = s.db.nextNoteID
	s.db.notifications[n.ID] = *n
	return nil
}

func (s *NotificationStore) ListByUser(_ context.Context, userID int64, limit, offset int) ([]*domain.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []*domain.Notification{}
	for _, id := range slices.Sorted(maps.Keys(s.db.notifications)) {
		n := s.db.notifications[id]
		if n.UserID == userID {
			out = append(out, &n)
		}
	}
	return page(out, limit, offset), nil
}

func (s *NotificationStore) MarkRead(_ context.Context, userID, id int64) (*domain.Notification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	n, ok := s.db.notifications[id]
	if !ok || n.UserID != userID {
		return nil, store.ErrNotificationNotFound
	}
	n.IsRead = true
	s.db.notifications[id] = n
	return &n, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset > len(items) {
		return items[:0]
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
