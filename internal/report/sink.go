package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"veriscope/internal/fileutil"
	"veriscope/internal/jobs"
	"veriscope/internal/services"
)

// Sink persists a finished report.
type Sink interface {
	Submit(ctx context.Context, rpt *jobs.Report) error
}

// StoreSink writes the report artifact to the reports directory and records
// the report row. The artifact write happens first so the row never points at
// a file that does not exist.
type StoreSink struct {
	store      *jobs.Store
	reportsDir string
}

// NewStoreSink constructs the default report sink.
func NewStoreSink(store *jobs.Store, reportsDir string) *StoreSink {
	return &StoreSink{store: store, reportsDir: reportsDir}
}

// Submit writes the JSON artifact atomically and saves the report row with
// its artifact path filled in.
func (s *StoreSink) Submit(ctx context.Context, rpt *jobs.Report) error {
	if s == nil || s.store == nil {
		return services.Wrap(services.ErrConfiguration, "report", "submit", "report sink is not configured", nil)
	}
	if rpt == nil || rpt.JobID == 0 {
		return services.Wrap(services.ErrInput, "report", "submit", "report has no job", nil)
	}

	if s.reportsDir != "" {
		if err := os.MkdirAll(s.reportsDir, 0o755); err != nil {
			return services.Wrap(services.ErrTransient, "report", "create reports dir", "", err)
		}
		path := filepath.Join(s.reportsDir, fmt.Sprintf("job_%d.json", rpt.JobID))
		if err := fileutil.WriteFileAtomic(path, []byte(rpt.SummaryJSON), 0o644); err != nil {
			return services.Wrap(services.ErrTransient, "report", "write artifact", "", err)
		}
		rpt.ArtifactPath = path
	}

	return s.store.SaveReport(ctx, rpt)
}
