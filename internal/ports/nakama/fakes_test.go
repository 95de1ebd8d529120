package nakama

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

type objectKey struct {
	collection string
	key        string
	userID     string
}

type sentNotification struct {
	userID  string
	subject string
	code    int
	content map[string]interface{}
}

// fakeNakama implements the storage and notification calls of runtime.NakamaModule
// with Nakama's version semantics: "*" creates only, any other non-empty
// version must match the stored one. Other module methods panic.
type fakeNakama struct {
	runtime.NakamaModule

	mu            sync.Mutex
	objects       map[objectKey]*api.StorageObject
	versions      int
	notifications []sentNotification

	// beforeUpdate runs inside MultiUpdate before versions are checked.
	beforeUpdate func(f *fakeNakama)
	deleteErr    error
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{objects: make(map[objectKey]*api.StorageObject)}
}

func (f *fakeNakama) nextVersion() string {
	f.versions++
	return "v" + strconv.Itoa(f.versions)
}

// bump rewrites an object in place, as a concurrent writer would.
func (f *fakeNakama) bump(collection, key, userID string) {
	if obj, ok := f.objects[objectKey{collection, key, userID}]; ok {
		obj.Version = f.nextVersion()
	}
}

func (f *fakeNakama) StorageRead(_ context.Context, reads []*runtime.StorageRead) ([]*api.StorageObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*api.StorageObject, 0, len(reads))
	for _, r := range reads {
		if obj, ok := f.objects[objectKey{r.Collection, r.Key, r.UserID}]; ok {
			cp := *obj
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeNakama) StorageList(_ context.Context, _, userID, collection string, limit int, cursor string) ([]*api.StorageObject, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*api.StorageObject
	for k, obj := range f.objects {
		if k.collection == collection && k.userID == userID {
			cp := *obj
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	next := strconv.Itoa(end)
	if end >= len(matched) {
		end = len(matched)
		next = ""
	}
	return matched[start:end], next, nil
}

func (f *fakeNakama) StorageDelete(_ context.Context, deletes []*runtime.StorageDelete) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for _, d := range deletes {
		obj, ok := f.objects[objectKey{d.Collection, d.Key, d.UserID}]
		if ok && d.Version != "" && obj.Version != d.Version {
			return runtime.ErrStorageRejectedVersion
		}
	}
	for _, d := range deletes {
		delete(f.objects, objectKey{d.Collection, d.Key, d.UserID})
	}
	return nil
}

func (f *fakeNakama) MultiUpdate(_ context.Context, _ []*runtime.AccountUpdate, writes []*runtime.StorageWrite, deletes []*runtime.StorageDelete, _ []*runtime.WalletUpdate, _ bool) ([]*api.StorageObjectAck, []*runtime.WalletUpdateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beforeUpdate != nil {
		f.beforeUpdate(f)
	}

	for _, w := range writes {
		existing, ok := f.objects[objectKey{w.Collection, w.Key, w.UserID}]
		switch {
		case w.Version == "*" && ok:
			return nil, nil, runtime.ErrStorageRejectedVersion
		case w.Version != "" && w.Version != "*" && (!ok || existing.Version != w.Version):
			return nil, nil, runtime.ErrStorageRejectedVersion
		}
	}

	acks := make([]*api.StorageObjectAck, 0, len(writes))
	for _, w := range writes {
		obj := &api.StorageObject{
			Collection: w.Collection,
			Key:        w.Key,
			UserId:     w.UserID,
			Value:      w.Value,
			Version:    f.nextVersion(),
		}
		f.objects[objectKey{w.Collection, w.Key, w.UserID}] = obj
		acks = append(acks, &api.StorageObjectAck{Collection: obj.Collection, Key: obj.Key, UserId: obj.UserId, Version: obj.Version})
	}
	for _, d := range deletes {
		delete(f.objects, objectKey{d.Collection, d.Key, d.UserID})
	}
	return acks, nil, nil
}

func (f *fakeNakama) NotificationSend(_ context.Context, userID, subject string, content map[string]interface{}, code int, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, sentNotification{userID: userID, subject: subject, code: code, content: content})
	return nil
}

func (f *fakeNakama) count(collection string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.objects {
		if k.collection == collection {
			n++
		}
	}
	return n
}
