package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ebuddy/user-admin-backend/database"
	"github.com/ebuddy/user-admin-backend/internal/identity"
	"github.com/ebuddy/user-admin-backend/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var errBoom = errors.New("boom")

// fakeIdentity wraps the in-memory gateway with error injection.
type fakeIdentity struct {
	*identity.MemoryGateway
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	customErr error
	findErr   error

	deleteCalls []string
	updateCalls int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{MemoryGateway: identity.NewMemoryGateway("test-secret")}
}

func (f *fakeIdentity) CreateAccount(ctx context.Context, in identity.AccountToCreate) (*identity.Account, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.MemoryGateway.CreateAccount(ctx, in)
}

func (f *fakeIdentity) FindAccountByEmail(ctx context.Context, email string) (*identity.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.MemoryGateway.FindAccountByEmail(ctx, email)
}

func (f *fakeIdentity) GetAccount(ctx context.Context, id string) (*identity.Account, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.MemoryGateway.GetAccount(ctx, id)
}

func (f *fakeIdentity) UpdateAccount(ctx context.Context, id string, u identity.AccountUpdate) error {
	f.updateCalls++
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.MemoryGateway.UpdateAccount(ctx, id, u)
}

func (f *fakeIdentity) DeleteAccount(ctx context.Context, id string) error {
	f.deleteCalls = append(f.deleteCalls, id)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.MemoryGateway.DeleteAccount(ctx, id)
}

func (f *fakeIdentity) IssueCustomToken(ctx context.Context, id string) (string, error) {
	if f.customErr != nil {
		return "", f.customErr
	}
	return f.MemoryGateway.IssueCustomToken(ctx, id)
}

// fakeStore wraps the in-memory store with error injection and write counting.
type fakeStore struct {
	*database.MemoryStore
	getErr    error
	listErr   error
	setErr    error
	updateErr error
	deleteErr error
	addErr    error

	mu     sync.Mutex
	writes int
}

func newFakeStore() *fakeStore {
	return &fakeStore{MemoryStore: database.NewMemoryStore()}
}

func (s *fakeStore) countWrite() {
	s.mu.Lock()
	s.writes++
	s.mu.Unlock()
}

func (s *fakeStore) Get(ctx context.Context, col, key string) (database.Document, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.MemoryStore.Get(ctx, col, key)
}

func (s *fakeStore) List(ctx context.Context, col string) ([]database.Document, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.MemoryStore.List(ctx, col)
}

func (s *fakeStore) Set(ctx context.Context, col, key string, fields database.Document) error {
	s.countWrite()
	if s.setErr != nil {
		return s.setErr
	}
	return s.MemoryStore.Set(ctx, col, key, fields)
}

func (s *fakeStore) Update(ctx context.Context, col, key string, patch database.Document) error {
	s.countWrite()
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.Update(ctx, col, key, patch)
}

func (s *fakeStore) Delete(ctx context.Context, col, key string) error {
	s.countWrite()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.MemoryStore.Delete(ctx, col, key)
}

func (s *fakeStore) Add(ctx context.Context, col string, fields database.Document) (string, error) {
	if s.addErr != nil {
		return "", s.addErr
	}
	return s.MemoryStore.Add(ctx, col, fields)
}

// recordingAuditor keeps every entry in memory.
type recordingAuditor struct {
	entries []model.AuditEntry
}

func (a *recordingAuditor) Record(_ context.Context, userID string, action model.AuditAction, details map[string]interface{}) {
	a.entries = append(a.entries, model.AuditEntry{UserID: userID, Action: action, Details: details})
}

func (a *recordingAuditor) actions() []model.AuditAction {
	out := make([]model.AuditAction, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

// swallowedOps returns the op of every SwallowedError that was logged.
func swallowedOps(t *testing.T, logs *observer.ObservedLogs) []string {
	t.Helper()
	var ops []string
	for _, entry := range logs.FilterMessage("Best-effort operation failed").All() {
		for _, f := range entry.Context {
			if f.Key != "error" {
				continue
			}
			err, ok := f.Interface.(error)
			if !ok {
				continue
			}
			var se *SwallowedError
			if errors.As(err, &se) {
				ops = append(ops, se.Op)
			}
		}
	}
	return ops
}

func containsOp(ops []string, op string) bool {
	for _, o := range ops {
		if o == op {
			return true
		}
	}
	return false
}

func float64Ptr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64       { return &v }
func stringPtr(v string) *string    { return &v }

func validNewUser(email string) model.NewUser {
	return model.NewUser{
		Name:                      "Ann",
		Email:                     email,
		TotalAverageWeightRatings: float64Ptr(4.5),
		NumberOfRents:             int64Ptr(2),
		RecentlyActive:            int64Ptr(1700000000000),
	}
}
