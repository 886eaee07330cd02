package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"veriscope/internal/config"
	"veriscope/internal/fileutil"
	"veriscope/internal/jobs"
	"veriscope/internal/logging"
	"veriscope/internal/services"
)

// Registry is the store surface intake needs to register media items.
type Registry interface {
	RegisterMedia(ctx context.Context, item *jobs.MediaItem) (*jobs.MediaItem, bool, error)
	GetMediaBySHA256(ctx context.Context, hash string) (*jobs.MediaItem, error)
}

// Intake moves submitted files into the media library and registers them,
// deduplicating on content hash. Identical bytes submitted twice resolve to
// the same media item regardless of filename.
type Intake struct {
	store  Registry
	cfg    *config.Config
	logger *slog.Logger
}

// NewIntake constructs the intake service.
func NewIntake(store Registry, cfg *config.Config, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Intake{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "intake"),
	}
}

// Ingest validates, hashes, copies, and registers the file at source. The
// second return is false when the same bytes were already registered; the
// existing item is returned and the submission is not copied again.
func (in *Intake) Ingest(ctx context.Context, source string) (*jobs.MediaItem, bool, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media", "empty source path", nil)
	}
	absSource, err := filepath.Abs(source)
	if err != nil {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media", "resolve source path", err)
	}

	info, err := os.Stat(absSource)
	if err != nil {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media", "source not readable", err)
	}
	if info.IsDir() {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media", "source is a directory", nil)
	}
	if !in.cfg.ExtensionAllowed(absSource) {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media",
			fmt.Sprintf("unsupported media extension %q", filepath.Ext(absSource)), nil)
	}
	kind, ok := KindForPath(absSource)
	if !ok {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media",
			fmt.Sprintf("cannot classify media extension %q", filepath.Ext(absSource)), nil)
	}
	if max := in.cfg.MaxMediaBytes(); max > 0 && info.Size() > max {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media",
			fmt.Sprintf("file size %d exceeds the %d byte limit", info.Size(), max), nil)
	}

	hash, size, err := ChecksumFile(absSource)
	if err != nil {
		return nil, false, services.Wrap(services.ErrInput, "", "ingest media", "hash source", err)
	}

	if existing, err := in.store.GetMediaBySHA256(ctx, hash); err != nil {
		return nil, false, err
	} else if existing != nil {
		if err := in.restoreIfMissing(absSource, existing); err != nil {
			return nil, false, err
		}
		in.logger.Debug("media already registered",
			logging.String(logging.FieldMediaID, existing.ID),
			logging.String("sha256", shortHash(hash)),
		)
		return existing, false, nil
	}

	id := uuid.NewString()
	storagePath := filepath.Join(in.cfg.MediaDir(), StoredName(id, absSource))
	if err := os.MkdirAll(in.cfg.MediaDir(), 0o755); err != nil {
		return nil, false, fmt.Errorf("create media directory: %w", err)
	}
	copiedHash, err := fileutil.CopyFileVerified(absSource, storagePath)
	if err != nil {
		return nil, false, services.Wrap(services.ErrIntegrity, "", "ingest media", "copy into media library", err)
	}
	if copiedHash != hash {
		_ = os.Remove(storagePath)
		return nil, false, services.Wrap(services.ErrIntegrity, "", "ingest media", "source changed while hashing", nil)
	}

	item := &jobs.MediaItem{
		ID:               id,
		Filename:         StoredName(id, absSource),
		OriginalFilename: filepath.Base(absSource),
		SHA256:           hash,
		FileSize:         size,
		MediaType:        kind,
		MimeType:         MIMEForPath(absSource),
		StoragePath:      storagePath,
	}
	stored, created, err := in.store.RegisterMedia(ctx, item)
	if err != nil {
		_ = os.Remove(storagePath)
		return nil, false, err
	}
	if !created {
		// A concurrent submission of the same bytes won the registration.
		_ = os.Remove(storagePath)
		return stored, false, nil
	}

	in.logger.Info("media registered",
		logging.String(logging.FieldMediaID, stored.ID),
		logging.String("sha256", shortHash(hash)),
		logging.Int64("bytes", size),
		logging.String("media_type", string(kind)),
		logging.String("filename", stored.OriginalFilename),
	)
	return stored, true, nil
}

// restoreIfMissing re-copies the submitted bytes when the library file behind
// an existing registration has disappeared.
func (in *Intake) restoreIfMissing(source string, item *jobs.MediaItem) error {
	_, err := os.Stat(item.StoragePath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat library copy: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(item.StoragePath), 0o755); err != nil {
		return fmt.Errorf("create media directory: %w", err)
	}
	copiedHash, err := fileutil.CopyFileVerified(source, item.StoragePath)
	if err != nil {
		return services.Wrap(services.ErrIntegrity, "", "ingest media", "restore library copy", err)
	}
	if copiedHash != item.SHA256 {
		_ = os.Remove(item.StoragePath)
		return services.Wrap(services.ErrIntegrity, "", "ingest media", "restored bytes do not match the registered hash", nil)
	}

	in.logger.Info("restored missing library copy",
		logging.String(logging.FieldMediaID, item.ID),
		logging.String("path", item.StoragePath),
	)
	return nil
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
