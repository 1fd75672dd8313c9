package ledger_test

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/jonanatree/payledger/ledger"
	"golang.org/x/exp/slog"
)

// fakeIdentity stands in for the external identity provider.
type fakeIdentity struct {
	mu    sync.Mutex
	users map[string]string // email -> password
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{users: make(map[string]string)}
}

func (f *fakeIdentity) SignUp(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[email]; ok {
		return "", fmt.Errorf("email already in use")
	}
	f.users[email] = password
	return "uid-" + email, nil
}

func (f *fakeIdentity) SignIn(_ context.Context, email, password string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.users[email]; !ok || p != password {
		return "", fmt.Errorf("invalid credentials")
	}
	return "uid-" + email, nil
}

// recordingNotifier captures push attempts so tests can assert on them.
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []sentNotification
	fail  bool
	fired chan struct{}
}

type sentNotification struct {
	Topic, Title, Body string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{fired: make(chan struct{}, 16)}
}

func (n *recordingNotifier) NotifyTopic(_ context.Context, topic, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	defer func() { n.fired <- struct{}{} }()
	if n.fail {
		return fmt.Errorf("push gateway unavailable")
	}
	n.sent = append(n.sent, sentNotification{Topic: topic, Title: title, Body: body})
	return nil
}

func (n *recordingNotifier) all() []sentNotification {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentNotification, len(n.sent))
	copy(out, n.sent)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo *ledger.Repository) (*ledger.Service, *fakeIdentity, *recordingNotifier) {
	id := newFakeIdentity()
	notifier := newRecordingNotifier()
	return ledger.NewService(repo, id, notifier, testLogger()), id, notifier
}
