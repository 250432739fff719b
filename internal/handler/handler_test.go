package handler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tidemail/imap-service-mailbox/internal/alias"
	"github.com/tidemail/imap-service-mailbox/internal/changelog"
	"github.com/tidemail/imap-service-mailbox/internal/mailbox"
	"github.com/tidemail/imap-service-mailbox/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSession() *session.Session {
	return &session.Session{
		ID:        "sess-1",
		AccountID: "acct-1",
		AliasID:   "alias-1",
		Locale:    "en",
	}
}

type mockRefresher struct {
	refreshFunc func(ctx context.Context, sess *session.Session, command string) (*alias.Alias, error)
	commands    []string
}

func (m *mockRefresher) Refresh(ctx context.Context, sess *session.Session, command string) (*alias.Alias, error) {
	m.commands = append(m.commands, command)
	if m.refreshFunc != nil {
		return m.refreshFunc(ctx, sess, command)
	}
	return &alias.Alias{
		AliasID:   "alias-1",
		AccountID: "acct-1",
		Locale:    "en",
	}, nil
}

type mockQuotaSource struct {
	isOverQuotaFunc func(ctx context.Context, accountID, aliasID string) (bool, error)
	calls           int
}

func (m *mockQuotaSource) IsOverQuota(ctx context.Context, accountID, aliasID string) (bool, error) {
	m.calls++
	if m.isOverQuotaFunc != nil {
		return m.isOverQuotaFunc(ctx, accountID, aliasID)
	}
	return false, nil
}

type mockMailboxRepo struct {
	findByPathFunc     func(ctx context.Context, accountID, path string) (*mailbox.Mailbox, error)
	countMailboxesFunc func(ctx context.Context, accountID string) (int, error)
	createFunc         func(ctx context.Context, mbox *mailbox.Mailbox) error
	setSubscribedFunc  func(ctx context.Context, accountID, path string, subscribed bool) (*mailbox.Mailbox, error)
	deleteFunc         func(ctx context.Context, accountID, path string) (*mailbox.Mailbox, error)
	renameFunc         func(ctx context.Context, accountID, oldPath, newPath string) (*mailbox.Mailbox, error)

	creates int
}

func (m *mockMailboxRepo) FindByPath(ctx context.Context, accountID, path string) (*mailbox.Mailbox, error) {
	if m.findByPathFunc != nil {
		return m.findByPathFunc(ctx, accountID, path)
	}
	return nil, mailbox.ErrMailboxNotFound
}

func (m *mockMailboxRepo) CountMailboxes(ctx context.Context, accountID string) (int, error) {
	if m.countMailboxesFunc != nil {
		return m.countMailboxesFunc(ctx, accountID)
	}
	return 3, nil
}

func (m *mockMailboxRepo) Create(ctx context.Context, mbox *mailbox.Mailbox) error {
	m.creates++
	if m.createFunc != nil {
		return m.createFunc(ctx, mbox)
	}
	return nil
}

func (m *mockMailboxRepo) SetSubscribed(ctx context.Context, accountID, path string, subscribed bool) (*mailbox.Mailbox, error) {
	if m.setSubscribedFunc != nil {
		return m.setSubscribedFunc(ctx, accountID, path, subscribed)
	}
	return &mailbox.Mailbox{AccountID: accountID, Path: path, Subscribed: subscribed}, nil
}

func (m *mockMailboxRepo) Delete(ctx context.Context, accountID, path string) (*mailbox.Mailbox, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, accountID, path)
	}
	return &mailbox.Mailbox{MailboxID: "mbx-1", AccountID: accountID, Path: path}, nil
}

func (m *mockMailboxRepo) Rename(ctx context.Context, accountID, oldPath, newPath string) (*mailbox.Mailbox, error) {
	if m.renameFunc != nil {
		return m.renameFunc(ctx, accountID, oldPath, newPath)
	}
	return &mailbox.Mailbox{MailboxID: "mbx-1", AccountID: accountID, Path: newPath}, nil
}

type mockNotifier struct {
	addEntryFunc func(ctx context.Context, entry changelog.Entry) (int64, error)
	fireFunc     func(ctx context.Context, accountID string) error

	mu      sync.Mutex
	entries []changelog.Entry
	fires   int
}

func (m *mockNotifier) AddEntry(ctx context.Context, entry changelog.Entry) (int64, error) {
	if m.addEntryFunc != nil {
		return m.addEntryFunc(ctx, entry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return int64(len(m.entries)), nil
}

func (m *mockNotifier) Fire(ctx context.Context, accountID string) error {
	if m.fireFunc != nil {
		return m.fireFunc(ctx, accountID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fires++
	return nil
}

func (m *mockNotifier) recorded() []changelog.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]changelog.Entry(nil), m.entries...)
}

type mockStoragePublisher struct {
	requestRecomputeFunc func(ctx context.Context, accountID, aliasID string) error

	mu       sync.Mutex
	requests int
}

func (m *mockStoragePublisher) RequestRecompute(ctx context.Context, accountID, aliasID string) error {
	m.mu.Lock()
	m.requests++
	m.mu.Unlock()
	if m.requestRecomputeFunc != nil {
		return m.requestRecomputeFunc(ctx, accountID, aliasID)
	}
	return nil
}

func (m *mockStoragePublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// fakeMailboxStore is an in-memory Repository with the store's
// conditional-insert semantics, for exercising concurrent creates.
type fakeMailboxStore struct {
	mu    sync.Mutex
	boxes map[string]*mailbox.Mailbox // keyed by path
}

func newFakeMailboxStore() *fakeMailboxStore {
	return &fakeMailboxStore{boxes: make(map[string]*mailbox.Mailbox)}
}

func (f *fakeMailboxStore) FindByPath(ctx context.Context, accountID, path string) (*mailbox.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mbox, ok := f.boxes[path]; ok {
		copied := *mbox
		return &copied, nil
	}
	return nil, mailbox.ErrMailboxNotFound
}

func (f *fakeMailboxStore) CountMailboxes(ctx context.Context, accountID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.boxes), nil
}

func (f *fakeMailboxStore) Create(ctx context.Context, mbox *mailbox.Mailbox) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.boxes[mbox.Path]; ok {
		return mailbox.ErrMailboxExists
	}
	copied := *mbox
	f.boxes[mbox.Path] = &copied
	return nil
}

func (f *fakeMailboxStore) SetSubscribed(ctx context.Context, accountID, path string, subscribed bool) (*mailbox.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mbox, ok := f.boxes[path]
	if !ok {
		return nil, mailbox.ErrMailboxNotFound
	}
	mbox.Subscribed = subscribed
	mbox.UpdatedAt = time.Now().UTC()
	copied := *mbox
	return &copied, nil
}

func (f *fakeMailboxStore) Delete(ctx context.Context, accountID, path string) (*mailbox.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mbox, ok := f.boxes[path]
	if !ok {
		return nil, mailbox.ErrMailboxNotFound
	}
	delete(f.boxes, path)
	return mbox, nil
}

func (f *fakeMailboxStore) Rename(ctx context.Context, accountID, oldPath, newPath string) (*mailbox.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	mbox, ok := f.boxes[oldPath]
	if !ok {
		return nil, mailbox.ErrMailboxNotFound
	}
	if _, ok := f.boxes[newPath]; ok {
		return nil, mailbox.ErrMailboxExists
	}
	delete(f.boxes, oldPath)
	mbox.Path = newPath
	f.boxes[newPath] = mbox
	copied := *mbox
	return &copied, nil
}

func (f *fakeMailboxStore) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.boxes)
}

// newTestHandler wires a Handler with benign defaults; callers override
// individual mocks as needed.
func newTestHandler(repo mailbox.Repository, notifier *mockNotifier, storage *mockStoragePublisher) *Handler {
	if notifier == nil {
		notifier = &mockNotifier{}
	}
	if storage == nil {
		storage = &mockStoragePublisher{}
	}
	return New(&mockRefresher{}, &mockQuotaSource{}, repo, notifier, storage, testLogger(), Config{})
}

// sanity check that generated IDs look like UUIDs in tests that assert
// on returned identifiers.
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
