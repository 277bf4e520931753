package inbound

import (
	"context"
	"errors"
	"sync"

	"github.com/emersion/go-imap/v2"

	"github.com/znz-systems/mailbrief/internal/blob"
	"github.com/znz-systems/mailbrief/internal/mailbox"
	"github.com/znz-systems/mailbrief/internal/stage"
)

type storedObject struct {
	contentType string
	body        []byte
	metadata    map[string]string
}

type memoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]storedObject
	putErr  error
}

func newMemoryBlobStore() *memoryBlobStore {
	return &memoryBlobStore{objects: map[string]storedObject{}}
}

func (m *memoryBlobStore) Put(_ context.Context, key, contentType string, body []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[key] = storedObject{contentType: contentType, body: body, metadata: metadata}
	return nil
}

func (m *memoryBlobStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, blob.ErrObjectNotFound
	}
	return obj.body, nil
}

type fakeSession struct {
	uids      []imap.UID
	messages  map[imap.UID][]byte
	fetchErr  map[imap.UID]error
	seenErr   map[imap.UID]error
	searchErr error
	seen      map[imap.UID]bool
	loggedOut bool
}

func newFakeSession(uids []imap.UID, messages map[imap.UID][]byte) *fakeSession {
	return &fakeSession{
		uids:     uids,
		messages: messages,
		fetchErr: map[imap.UID]error{},
		seenErr:  map[imap.UID]error{},
		seen:     map[imap.UID]bool{},
	}
}

func (f *fakeSession) SearchUnseen(_ context.Context) ([]imap.UID, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var uids []imap.UID
	for _, uid := range f.uids {
		if !f.seen[uid] {
			uids = append(uids, uid)
		}
	}
	return uids, nil
}

func (f *fakeSession) Fetch(_ context.Context, uid imap.UID) ([]byte, error) {
	if err := f.fetchErr[uid]; err != nil {
		return nil, err
	}
	raw, ok := f.messages[uid]
	if !ok {
		return nil, mailbox.ErrMessageGone
	}
	return raw, nil
}

func (f *fakeSession) MarkSeen(_ context.Context, uid imap.UID) error {
	if err := f.seenErr[uid]; err != nil {
		return err
	}
	f.seen[uid] = true
	return nil
}

func (f *fakeSession) Logout() error {
	f.loggedOut = true
	return nil
}

type fakeDialer struct {
	sessions []*fakeSession
	dials    int
	err      error
}

func (d *fakeDialer) Dial(_ context.Context) (mailbox.Session, error) {
	if d.err != nil {
		return nil, d.err
	}
	if d.dials >= len(d.sessions) {
		return nil, errors.Join(stage.ErrTransientIO, errors.New("no more sessions"))
	}
	s := d.sessions[d.dials]
	d.dials++
	return s, nil
}
