package handlers

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// memUserStore backs handler tests and the real token service at once: it
// implements both handlers.UserStore and auth.CredentialStore.
type memUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]models.User)}
}

func (s *memUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Handle == user.Handle || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memUserStore) FindByIdentity(_ context.Context, handle, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if (handle != "" && user.Handle == handle) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUserStore) UpdateProfile(_ context.Context, id, fullName, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	for otherID, other := range s.users {
		if otherID != id && other.Email == email {
			return models.User{}, repositories.ErrConflict
		}
	}
	user.FullName = fullName
	user.Email = email
	s.users[id] = user
	return user, nil
}

func (s *memUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[id] = user
	return nil
}

func (s *memUserStore) UpdateAvatar(_ context.Context, id, avatarURL string) (models.User, error) {
	return s.updateImage(id, avatarURL, true)
}

func (s *memUserStore) UpdateCoverImage(_ context.Context, id, coverImageURL string) (models.User, error) {
	return s.updateImage(id, coverImageURL, false)
}

func (s *memUserStore) updateImage(id, url string, avatar bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	if avatar {
		user.AvatarURL = url
	} else {
		user.CoverImageURL = url
	}
	s.users[id] = user
	return user, nil
}

func (s *memUserStore) SetRefreshToken(_ context.Context, id, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.RefreshToken = refreshToken
	s.users[id] = user
	return nil
}

func (s *memUserStore) get(t *testing.T, id string) models.User {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		t.Fatalf("user %s not in store", id)
	}
	return user
}

type fakeMedia struct {
	mu     sync.Mutex
	fail   bool
	serial int
}

func (m *fakeMedia) Upload(_ context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", nil
	}
	// Same contract as the real uploader: the temp file is consumed either way.
	_ = os.Remove(localPath)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return "", context.DeadlineExceeded
	}
	m.serial++
	return fmt.Sprintf("https://cdn.test/media/%d.png", m.serial), nil
}

type fakeJanitor struct {
	mu   sync.Mutex
	urls []string
}

func (j *fakeJanitor) Enqueue(url string) {
	j.mu.Lock()
	j.urls = append(j.urls, url)
	j.mu.Unlock()
}

func (j *fakeJanitor) enqueued() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.urls...)
}

type fakeProfiles struct {
	profiles map[string]models.ChannelProfile
}

func (f *fakeProfiles) ChannelProfile(_ context.Context, handle, viewerID string) (models.ChannelProfile, error) {
	profile, ok := f.profiles[handle]
	if !ok {
		return models.ChannelProfile{}, repositories.ErrNotFound
	}
	return profile, nil
}

type fakeSubscriptions struct {
	mu     sync.Mutex
	active map[string]bool
}

func (f *fakeSubscriptions) Toggle(_ context.Context, subscriberID, channelID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.active == nil {
		f.active = make(map[string]bool)
	}
	key := subscriberID + "->" + channelID
	f.active[key] = !f.active[key]
	return f.active[key], nil
}

type fakeWatches struct {
	mu       sync.Mutex
	entries  []models.WatchEntry
	recorded []string
	missing  bool
}

func (f *fakeWatches) RecordWatch(_ context.Context, userID, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.missing {
		return repositories.ErrNotFound
	}
	f.recorded = append(f.recorded, userID+":"+videoID)
	return nil
}

func (f *fakeWatches) WatchHistory(_ context.Context, _ string) ([]models.WatchEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

type testEnv struct {
	mux      *http.ServeMux
	store    *memUserStore
	tokens   *auth.TokenService
	media    *fakeMedia
	janitor  *fakeJanitor
	profiles *fakeProfiles
	subs     *fakeSubscriptions
	watches  *fakeWatches
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemUserStore()
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		Issuer:        "vidtube-test",
	}, store)
	if err != nil {
		t.Fatalf("new token service: %v", err)
	}

	media := &fakeMedia{}
	janitor := &fakeJanitor{}
	profiles := &fakeProfiles{profiles: map[string]models.ChannelProfile{}}
	subs := &fakeSubscriptions{}
	watches := &fakeWatches{}

	mux := http.NewServeMux()
	RegisterRoutes(mux, Dependencies{
		Users:         store,
		Tokens:        tokens,
		Media:         media,
		Janitor:       janitor,
		Profiles:      profiles,
		Subscriptions: subs,
		Watches:       watches,
		RequireAuth:   auth.RequireAuth(tokens, store),
	})

	return &testEnv{
		mux:      mux,
		store:    store,
		tokens:   tokens,
		media:    media,
		janitor:  janitor,
		profiles: profiles,
		subs:     subs,
		watches:  watches,
	}
}

// multipartBody builds a multipart payload with text fields and PNG-ish files.
func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field %s: %v", name, err)
		}
	}
	for name, content := range files {
		part, err := writer.CreateFormFile(name, name+".png")
		if err != nil {
			t.Fatalf("create file part %s: %v", name, err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write file part %s: %v", name, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	return &buf, writer.FormDataContentType()
}
