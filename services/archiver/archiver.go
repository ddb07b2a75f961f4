// Package archiver moves installer files produced by CI runs into blob
// storage and records them against their build. CI uploads artifacts as zip
// bundles; the archiver unpacks each bundle, keeps only installer files and
// uploads them individually.
package archiver

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"web2desk/pkg/github"
	"web2desk/pkg/telemetry"
)

// BlobStore is the subset of the storage client the archiver needs.
type BlobStore interface {
	Upload(ctx context.Context, bucket, key string, data []byte, contentType string) error
	PublicURL(bucket, key string) string
}

// BundleSource lists and downloads the artifact bundles of a CI run.
type BundleSource interface {
	ListRunArtifacts(ctx context.Context, runID int64) ([]github.RunArtifact, error)
	DownloadArtifact(ctx context.Context, archiveURL string) ([]byte, error)
}

type artifactModel struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	BuildID     uuid.UUID `gorm:"type:uuid"`
	FileType    string
	FileName    string
	FileSize    string
	StoragePath string
	DownloadURL *string
	CreatedAt   time.Time
}

func (artifactModel) TableName() string { return "build_artifacts" }

// Archiver persists run artifacts for completed builds.
type Archiver struct {
	db     *gorm.DB
	blobs  BlobStore
	source BundleSource
	bucket string
	log    zerolog.Logger
}

func New(db *gorm.DB, blobs BlobStore, source BundleSource, bucket string, log zerolog.Logger) *Archiver {
	return &Archiver{
		db:     db,
		blobs:  blobs,
		source: source,
		bucket: bucket,
		log:    log.With().Str("component", "archiver").Logger(),
	}
}

// Archive stores every installer file found in the run's bundles and
// returns the number of files recorded. A file that is already recorded for
// the build is skipped, so re-running after a partial failure only fills
// the gaps. Upload or download failures are logged and skipped; the
// remaining files still go through.
func (a *Archiver) Archive(ctx context.Context, buildID uuid.UUID, appName string, runID int64) (int, error) {
	bundles, err := a.source.ListRunArtifacts(ctx, runID)
	if err != nil {
		return 0, fmt.Errorf("list run artifacts: %w", err)
	}

	seen, err := a.recordedNames(ctx, buildID)
	if err != nil {
		return 0, err
	}

	appSlug := slug.Make(appName)
	if appSlug == "" {
		appSlug = "app"
	}

	stored := 0
	for _, bundle := range bundles {
		if bundle.Expired {
			a.log.Warn().Str("bundle", bundle.Name).Int64("run_id", runID).Msg("artifact bundle expired, skipping")
			continue
		}

		data, err := a.source.DownloadArtifact(ctx, bundle.ArchiveDownloadURL)
		if err != nil {
			a.log.Error().Err(err).Str("bundle", bundle.Name).Msg("download artifact bundle")
			continue
		}

		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			a.log.Error().Err(err).Str("bundle", bundle.Name).Msg("open artifact bundle")
			continue
		}

		for _, f := range zr.File {
			if f.FileInfo().IsDir() || f.UncompressedSize64 == 0 {
				continue
			}
			base := path.Base(f.Name)
			ext, ok := installerExt(base)
			if !ok {
				continue
			}

			fileName := fmt.Sprintf("%s-%s-%s", appSlug, bundle.Name, base)
			if seen[fileName] {
				continue
			}

			content, err := readZipFile(f)
			if err != nil {
				a.log.Error().Err(err).Str("file", f.Name).Msg("extract installer")
				continue
			}

			storagePath := fmt.Sprintf("%s/%s", buildID, fileName)
			if err := a.blobs.Upload(ctx, a.bucket, storagePath, content, contentTypeFor(ext)); err != nil {
				a.log.Error().Err(err).Str("file", fileName).Msg("upload installer")
				continue
			}

			url := a.blobs.PublicURL(a.bucket, storagePath)
			row := artifactModel{
				ID:          uuid.New(),
				BuildID:     buildID,
				FileType:    ext,
				FileName:    fileName,
				FileSize:    FormatBytes(int64(len(content))),
				StoragePath: storagePath,
				DownloadURL: &url,
			}
			if err := a.db.WithContext(ctx).Create(&row).Error; err != nil {
				a.log.Error().Err(err).Str("file", fileName).Msg("record artifact")
				continue
			}

			seen[fileName] = true
			stored++
			telemetry.ArtifactsStored.Inc()
		}
	}

	if stored == 0 && len(seen) == 0 {
		a.log.Warn().Stringer("build_id", buildID).Int64("run_id", runID).Msg("completed run produced no installer files")
	}
	return stored, nil
}

func (a *Archiver) recordedNames(ctx context.Context, buildID uuid.UUID) (map[string]bool, error) {
	var names []string
	if err := a.db.WithContext(ctx).
		Model(&artifactModel{}).
		Where("build_id = ?", buildID).
		Pluck("file_name", &names).Error; err != nil {
		return nil, fmt.Errorf("load recorded artifacts: %w", err)
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	return seen, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
