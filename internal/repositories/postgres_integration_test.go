package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "ana", "ana@example.com")

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.Handle != user.Handle || fetched.Email != user.Email || fetched.Password != user.Password {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	byHandle, err := repo.FindByIdentity(ctx, "ana", "")
	if err != nil {
		t.Fatalf("find by handle: %v", err)
	}
	if byHandle.ID != user.ID {
		t.Fatalf("expected user %s by handle, got %s", user.ID, byHandle.ID)
	}

	byEmail, err := repo.FindByIdentity(ctx, "", "ana@example.com")
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}
	if byEmail.ID != user.ID {
		t.Fatalf("expected user %s by email, got %s", user.ID, byEmail.ID)
	}

	if _, err := repo.FindByIdentity(ctx, "", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank identity must not match any row, got %v", err)
	}

	dup := user
	dup.ID = uuid.NewString()
	dup.Email = "other@example.com"
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate handle, got %v", err)
	}
}

func TestPostgresUserRepository_Updates(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "ana", "ana@example.com")

	updated, err := repo.UpdateProfile(ctx, user.ID, "Ana Updated", "ana2@example.com")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FullName != "Ana Updated" || updated.Email != "ana2@example.com" {
		t.Fatalf("unexpected updated profile: %+v", updated)
	}

	other := createTestUser(t, repo, "bruno", "bruno@example.com")
	if _, err := repo.UpdateProfile(ctx, other.ID, "Bruno", "ana2@example.com"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict taking another user's email, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, user.ID, "rotated-hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find after password update: %v", err)
	}
	if fetched.Password != "rotated-hash" {
		t.Fatalf("expected rotated hash, got %q", fetched.Password)
	}

	withAvatar, err := repo.UpdateAvatar(ctx, user.ID, "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("update avatar: %v", err)
	}
	if withAvatar.AvatarURL != "https://cdn.example.com/a.png" {
		t.Fatalf("unexpected avatar url: %q", withAvatar.AvatarURL)
	}

	withCover, err := repo.UpdateCoverImage(ctx, user.ID, "https://cdn.example.com/c.png")
	if err != nil {
		t.Fatalf("update cover image: %v", err)
	}
	if withCover.CoverImageURL != "https://cdn.example.com/c.png" {
		t.Fatalf("unexpected cover url: %q", withCover.CoverImageURL)
	}

	if _, err := repo.UpdateProfile(ctx, uuid.NewString(), "Ghost", "ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresUserRepository_RefreshTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "ana", "ana@example.com")

	if err := repo.SetRefreshToken(ctx, user.ID, "token-1"); err != nil {
		t.Fatalf("set refresh token: %v", err)
	}

	fetched, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if fetched.RefreshToken != "token-1" {
		t.Fatalf("expected token-1 stored, got %q", fetched.RefreshToken)
	}

	// Rotation overwrites; revocation clears.
	if err := repo.SetRefreshToken(ctx, user.ID, "token-2"); err != nil {
		t.Fatalf("rotate refresh token: %v", err)
	}
	if err := repo.SetRefreshToken(ctx, user.ID, ""); err != nil {
		t.Fatalf("clear refresh token: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find after clear: %v", err)
	}
	if fetched.RefreshToken != "" {
		t.Fatalf("expected cleared token, got %q", fetched.RefreshToken)
	}

	if err := repo.SetRefreshToken(ctx, uuid.NewString(), "token"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestPostgresSubscriptionRepository_Toggle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	viewer := createTestUser(t, userRepo, "viewer", "viewer@example.com")
	channel := createTestUser(t, userRepo, "channel", "channel@example.com")

	repo := NewPostgresSubscriptionRepository(testPool)

	subscribed, err := repo.Toggle(ctx, viewer.ID, channel.ID)
	if err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	if !subscribed {
		t.Fatal("first toggle should subscribe")
	}

	count, err := repo.CountForChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 subscriber, got %d", count)
	}

	subscribed, err = repo.Toggle(ctx, viewer.ID, channel.ID)
	if err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	if subscribed {
		t.Fatal("second toggle should unsubscribe")
	}

	count, err = repo.CountForChannel(ctx, channel.ID)
	if err != nil {
		t.Fatalf("count after unsubscribe: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 subscribers, got %d", count)
	}

	if _, err := repo.Toggle(ctx, viewer.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound toggling unknown channel, got %v", err)
	}
}

func TestPostgresUserRepository_ChannelProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	channel := createTestUser(t, userRepo, "channel", "channel@example.com")
	viewer := createTestUser(t, userRepo, "viewer", "viewer@example.com")
	fan := createTestUser(t, userRepo, "fan", "fan@example.com")

	subRepo := NewPostgresSubscriptionRepository(testPool)
	if _, err := subRepo.Toggle(ctx, viewer.ID, channel.ID); err != nil {
		t.Fatalf("subscribe viewer: %v", err)
	}
	if _, err := subRepo.Toggle(ctx, fan.ID, channel.ID); err != nil {
		t.Fatalf("subscribe fan: %v", err)
	}
	if _, err := subRepo.Toggle(ctx, channel.ID, viewer.ID); err != nil {
		t.Fatalf("subscribe channel to viewer: %v", err)
	}

	profile, err := userRepo.ChannelProfile(ctx, "channel", viewer.ID)
	if err != nil {
		t.Fatalf("channel profile: %v", err)
	}

	if profile.SubscriberCount != 2 {
		t.Fatalf("expected 2 subscribers, got %d", profile.SubscriberCount)
	}
	if profile.SubscribedToCount != 1 {
		t.Fatalf("expected 1 outbound subscription, got %d", profile.SubscribedToCount)
	}
	if !profile.ViewerIsSubscribed {
		t.Fatal("viewer should be marked as subscribed")
	}

	profile, err = userRepo.ChannelProfile(ctx, "channel", uuid.NewString())
	if err != nil {
		t.Fatalf("channel profile for stranger: %v", err)
	}
	if profile.ViewerIsSubscribed {
		t.Fatal("stranger should not be marked as subscribed")
	}

	if _, err := userRepo.ChannelProfile(ctx, "ghost", viewer.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown handle, got %v", err)
	}
}

func TestPostgresVideoRepository_WatchHistory(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	owner := createTestUser(t, userRepo, "owner", "owner@example.com")
	viewer := createTestUser(t, userRepo, "viewer", "viewer@example.com")

	videoRepo := NewPostgresVideoRepository(testPool)

	first := models.Video{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Title:     "First",
		VideoURL:  "https://cdn.example.com/v1.mp4",
		CreatedAt: time.Now().UTC(),
	}
	second := models.Video{
		ID:        uuid.NewString(),
		OwnerID:   owner.ID,
		Title:     "Second",
		VideoURL:  "https://cdn.example.com/v2.mp4",
		CreatedAt: time.Now().UTC(),
	}
	for _, video := range []models.Video{first, second} {
		if err := videoRepo.CreateVideo(ctx, video); err != nil {
			t.Fatalf("create video %s: %v", video.Title, err)
		}
	}

	if err := videoRepo.RecordWatch(ctx, viewer.ID, first.ID); err != nil {
		t.Fatalf("record first watch: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := videoRepo.RecordWatch(ctx, viewer.ID, second.ID); err != nil {
		t.Fatalf("record second watch: %v", err)
	}

	entries, err := videoRepo.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("watch history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Video.ID != second.ID || entries[1].Video.ID != first.ID {
		t.Fatalf("expected most recent watch first, got %+v", entries)
	}
	if entries[0].Owner.Handle != "owner" {
		t.Fatalf("expected owner handle joined, got %+v", entries[0].Owner)
	}

	// Rewatching bumps the entry instead of duplicating it.
	time.Sleep(10 * time.Millisecond)
	if err := videoRepo.RecordWatch(ctx, viewer.ID, first.ID); err != nil {
		t.Fatalf("rewatch first: %v", err)
	}
	entries, err = videoRepo.WatchHistory(ctx, viewer.ID)
	if err != nil {
		t.Fatalf("watch history after rewatch: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after rewatch, got %d", len(entries))
	}
	if entries[0].Video.ID != first.ID {
		t.Fatalf("expected rewatched video first, got %s", entries[0].Video.ID)
	}

	if err := videoRepo.RecordWatch(ctx, viewer.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown video, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE watch_history, subscriptions, videos, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, handle, email string) models.User {
	t.Helper()
	user := models.User{
		ID:        uuid.NewString(),
		Handle:    handle,
		Email:     email,
		FullName:  "Test User",
		Password:  "password-hash",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}
