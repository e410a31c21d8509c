package services

import (
	"context"
	"path"
	"time"

	"notebook_server_go/data"
	"notebook_server_go/filestore"
	"notebook_server_go/metrics"
	"notebook_server_go/models"

	"github.com/rs/zerolog"
)

// SweepReport summarizes one orphan sweep.
type SweepReport struct {
	DryRun bool `json:"dry_run"`
	// Scanned counts gallery blobs looked at.
	Scanned int `json:"scanned"`
	// Orphans lists gallery blobs without an image row, and notes
	// directories no folder refers to, relative to the upload root.
	Orphans []string `json:"orphans"`
	// Young counts orphans skipped because they are inside the grace period.
	Young   int `json:"young"`
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// SweepService finds and removes blobs the database no longer knows about.
// Only files older than the grace period are touched, which keeps uploads
// whose row is still being written out of reach.
type SweepService struct {
	store   *data.Store
	files   *filestore.Store
	grace   time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
	now     func() time.Time
}

func NewSweepService(store *data.Store, files *filestore.Store, grace time.Duration, m *metrics.Metrics, log zerolog.Logger) *SweepService {
	return &SweepService{
		store:   store,
		files:   files,
		grace:   grace,
		metrics: m,
		log:     log.With().Str("component", "sweep").Logger(),
		now:     time.Now,
	}
}

// Sweep scans the gallery area and the notes directories. With dryRun set
// it only reports what it would remove.
func (s *SweepService) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	report := &SweepReport{DryRun: dryRun, Orphans: []string{}}
	cutoff := s.now().Add(-s.grace)

	if err := s.sweepGallery(ctx, report, cutoff); err != nil {
		return nil, err
	}
	if err := s.sweepNotes(ctx, report, cutoff); err != nil {
		return nil, err
	}

	s.log.Info().
		Bool("dry_run", dryRun).
		Int("scanned", report.Scanned).
		Int("orphans", len(report.Orphans)).
		Int("young", report.Young).
		Int("removed", report.Removed).
		Int("failed", report.Failed).
		Msg("orphan sweep finished")
	return report, nil
}

func (s *SweepService) sweepGallery(ctx context.Context, report *SweepReport, cutoff time.Time) error {
	names, err := data.GetAllImageFilenames(ctx, s.store.DB())
	if err != nil {
		return models.NewStorageError("failed to list image rows", err)
	}
	known := make(map[string]struct{}, len(names))
	for _, n := range names {
		known[n] = struct{}{}
	}

	entries, err := s.files.List("")
	if err != nil {
		return models.NewStorageError("failed to list gallery blobs", err)
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Scanned++
		if _, ok := known[e.Name]; ok {
			continue
		}
		if e.ModTime.After(cutoff) {
			report.Young++
			continue
		}
		report.Orphans = append(report.Orphans, e.Name)
		if report.DryRun {
			continue
		}
		if err := s.files.Delete("", e.Name); err != nil {
			report.Failed++
			s.log.Warn().Err(err).Str("blob", e.Name).Msg("failed to remove orphaned blob")
			continue
		}
		report.Removed++
		s.metrics.OrphansRemoved.Inc()
	}
	return nil
}

func (s *SweepService) sweepNotes(ctx context.Context, report *SweepReport, cutoff time.Time) error {
	dirs, err := s.files.ListDirs(filestore.NotesDir)
	if err != nil {
		return models.NewStorageError("failed to list notes directories", err)
	}
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return err
		}
		inUse, err := notesDirInUse(ctx, s.store.DB(), dir)
		if err != nil {
			return models.NewStorageError("failed to check notes directory", err)
		}
		if inUse {
			continue
		}

		subpath := path.Join(filestore.NotesDir, dir)
		files, err := s.files.List(subpath)
		if err != nil {
			return models.NewStorageError("failed to list notes directory", err)
		}
		young := false
		for _, f := range files {
			if f.ModTime.After(cutoff) {
				young = true
				break
			}
		}
		if young {
			report.Young++
			continue
		}

		report.Orphans = append(report.Orphans, subpath+"/")
		if report.DryRun {
			continue
		}
		if err := s.files.RemoveDir(subpath); err != nil {
			report.Failed++
			s.log.Warn().Err(err).Str("dir", subpath).Msg("failed to remove orphaned notes directory")
			continue
		}
		report.Removed++
		s.metrics.OrphansRemoved.Add(float64(len(files)))
	}
	return nil
}
