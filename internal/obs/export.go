package obs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/yanun0323/logs"
)

// ExporterConfig controls periodic snapshot export.
type ExporterConfig struct {
	Dir      string
	Interval time.Duration
}

// Exporter periodically writes metric snapshots as JSON files so an
// external sink can poll them.
type Exporter struct {
	cfg     ExporterConfig
	metrics *Metrics
}

// NewExporter creates an exporter and ensures the target directory exists.
func NewExporter(cfg ExporterConfig, metrics *Metrics) (*Exporter, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	return &Exporter{cfg: cfg, metrics: metrics}, nil
}

// Run exports snapshots until the context is done, writing a final
// snapshot on exit.
func (e *Exporter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.export()
			return
		case <-ticker.C:
			e.export()
		}
	}
}

func (e *Exporter) export() {
	snapshot := e.metrics.Snapshot()
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		logs.Errorf("marshal metrics snapshot, err: %+v", err)
		return
	}
	name := filepath.Join(e.cfg.Dir, "metrics_"+snapshot.TakenAt.Format("20060102_150405")+".json")
	if err := os.WriteFile(name, data, 0o644); err != nil {
		logs.Errorf("write metrics snapshot, err: %+v", err)
	}
}
