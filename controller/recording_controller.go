package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nhashaamn/resq/models"
	"github.com/Nhashaamn/resq/utils"
	"github.com/Nhashaamn/resq/views"
)

// IncidentStore is the durable history the recorder writes to.
type IncidentStore interface {
	RecordShake(ev models.ShakeEvent, suppressed bool) error
	RecordIncident(inc models.Incident) error
}

// RecordingController is the final pipeline stage. It reads Records and
// writes them to:
//   - shakes.csv     (every shake event, with a suppressed flag)
//   - incidents.csv  (every resolved countdown)
//   - the incident store, when one is configured
//
// CSV writes are buffered and flushed periodically.
type RecordingController struct {
	storageCfg utils.StorageConfig
	sessionDir string
	store      IncidentStore

	shakeWriter    *views.CSVWriter
	incidentWriter *views.CSVWriter

	shakesWritten    uint64
	incidentsWritten uint64
	wg               sync.WaitGroup
}

// NewRecordingController sets up the session directory and CSV writers.
// store may be nil.
func NewRecordingController(storageCfg utils.StorageConfig, store IncidentStore) (*RecordingController, error) {
	sessionDir := filepath.Join(storageCfg.BaseDir, utils.SessionName(storageCfg.SessionPrefix))
	if err := os.MkdirAll(sessionDir, 0755); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	csvCfg := storageCfg.CSV
	bufSize := csvCfg.BufferSizeKB * 1024

	rc := &RecordingController{
		storageCfg: storageCfg,
		sessionDir: sessionDir,
		store:      store,
	}

	var err error
	rc.shakeWriter, err = views.NewCSVWriter(
		filepath.Join(sessionDir, views.FileShakes.String()), bufSize, csvCfg.WriteHeader,
		views.SchemaColumns[views.FileShakes],
	)
	if err != nil {
		return nil, err
	}

	rc.incidentWriter, err = views.NewCSVWriter(
		filepath.Join(sessionDir, views.FileIncidents.String()), bufSize, csvCfg.WriteHeader,
		views.SchemaColumns[views.FileIncidents],
	)
	if err != nil {
		rc.shakeWriter.Close()
		return nil, err
	}

	utils.L().Info("recording controller ready", "session", sessionDir)
	return rc, nil
}

// Start begins consuming records. It also starts a periodic flush goroutine.
func (rc *RecordingController) Start(ctx context.Context, in <-chan Record) {
	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		flushMs := rc.storageCfg.CSV.FlushIntervalMs
		if flushMs <= 0 {
			flushMs = 500
		}
		ticker := time.NewTicker(time.Duration(flushMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				rc.flushAll()
				return
			case <-ticker.C:
				rc.flushAll()
			}
		}
	}()

	rc.wg.Add(1)
	go func() {
		defer rc.wg.Done()
		// drain until the emergency stage closes its output so that
		// incidents resolved during shutdown are still persisted
		for rec := range in {
			rc.write(rec)
		}
	}()

	utils.L().Info("recording controller started")
}

func (rc *RecordingController) write(rec Record) {
	if rec.Shake != nil {
		if err := rc.shakeWriter.WriteRow(append(rec.Shake.CSVRow(), boolStr(rec.Suppressed))); err != nil {
			utils.L().Error("write shake row", "event", rec.Shake.ID, "error", err)
		}
		atomic.AddUint64(&rc.shakesWritten, 1)
		if rc.store != nil {
			if err := rc.store.RecordShake(*rec.Shake, rec.Suppressed); err != nil {
				utils.L().Error("store shake", "event", rec.Shake.ID, "error", err)
			}
		}
	}

	if rec.Incident != nil {
		if err := rc.incidentWriter.WriteRow(rec.Incident.CSVRow()); err != nil {
			utils.L().Error("write incident row", "incident", rec.Incident.ID, "error", err)
		}
		atomic.AddUint64(&rc.incidentsWritten, 1)
		if rc.store != nil {
			if err := rc.store.RecordIncident(*rec.Incident); err != nil {
				utils.L().Error("store incident", "incident", rec.Incident.ID, "error", err)
			}
		}
	}
}

func (rc *RecordingController) flushAll() {
	for _, w := range []*views.CSVWriter{rc.shakeWriter, rc.incidentWriter} {
		if err := w.Flush(); err != nil {
			utils.L().Error("flush csv", "error", err)
		}
	}
}

// Stop waits for the writer goroutines, then flushes and closes every CSV.
func (rc *RecordingController) Stop() {
	rc.wg.Wait()
	for _, w := range []*views.CSVWriter{rc.shakeWriter, rc.incidentWriter} {
		if err := w.Close(); err != nil {
			utils.L().Error("close csv", "error", err)
		}
	}

	utils.L().Info("recording controller stopped",
		"shakes", atomic.LoadUint64(&rc.shakesWritten),
		"incidents", atomic.LoadUint64(&rc.incidentsWritten),
		"session", rc.sessionDir)
}

// SessionDir returns the path to the active session directory.
func (rc *RecordingController) SessionDir() string {
	return rc.sessionDir
}

// Written returns how many shakes and incidents have been recorded.
func (rc *RecordingController) Written() (shakes, incidents uint64) {
	return atomic.LoadUint64(&rc.shakesWritten), atomic.LoadUint64(&rc.incidentsWritten)
}

func boolStr(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
