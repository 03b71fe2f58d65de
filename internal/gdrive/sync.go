// Package gdrive backs the local database up to a Google Drive folder.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const DefaultInterval = 5 * time.Minute

// Snapshotter writes a consistent copy of the database to path.
type Snapshotter interface {
	Snapshot(path string) error
}

type files interface {
	create(ctx context.Context, name, folderID string, media io.Reader) (string, error)
	update(ctx context.Context, fileID string, media io.Reader) error
}

type driveFiles struct {
	service *drive.Service
}

func (d driveFiles) create(ctx context.Context, name, folderID string, media io.Reader) (string, error) {
	f, err := d.service.Files.Create(&drive.File{
		Name:     name,
		MimeType: "application/vnd.sqlite3",
		Parents:  []string{folderID},
	}).Media(media).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return f.Id, nil
}

func (d driveFiles) update(ctx context.Context, fileID string, media io.Reader) error {
	_, err := d.service.Files.Update(fileID, &drive.File{}).Media(media).Context(ctx).Do()
	return err
}

// Syncer uploads one backup file per day, replacing it on later syncs.
type Syncer struct {
	files    files
	folderID string
	fileIDs  map[string]string
	mu       sync.Mutex
}

func NewSyncer(ctx context.Context, credPath, folderID string) (*Syncer, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveFileScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newSyncer(driveFiles{service: svc}, folderID), nil
}

func newSyncer(f files, folderID string) *Syncer {
	return &Syncer{
		files:    f,
		folderID: folderID,
		fileIDs:  make(map[string]string),
	}
}

// BackupName is the Drive file name used for date (YYYY-MM-DD).
func BackupName(date string) string {
	return fmt.Sprintf("voice-tutor-%s.db", date)
}

// Sync uploads the file at localPath as the backup for date.
func (s *Syncer) Sync(ctx context.Context, localPath, date string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	if fileID, ok := s.fileIDs[date]; ok {
		if err := s.files.update(ctx, fileID, f); err != nil {
			return fmt.Errorf("drive update: %w", err)
		}
		return nil
	}

	id, err := s.files.create(ctx, BackupName(date), s.folderID, f)
	if err != nil {
		return fmt.Errorf("drive create: %w", err)
	}

	s.fileIDs[date] = id
	return nil
}

// Backup snapshots db into a temporary file and syncs it.
func (s *Syncer) Backup(ctx context.Context, db Snapshotter, now time.Time) error {
	dir, err := os.MkdirTemp("", "voice-tutor-backup-")
	if err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	path := filepath.Join(dir, "snapshot.db")
	if err := db.Snapshot(path); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}
	return s.Sync(ctx, path, now.UTC().Format("2006-01-02"))
}

// Run backs db up every interval until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context, db Snapshotter, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Backup(ctx, db, now); err != nil {
				slog.Warn("gdrive: backup failed", "error", err)
				continue
			}
			slog.Debug("gdrive: backup uploaded", "date", now.UTC().Format("2006-01-02"))
		}
	}
}
