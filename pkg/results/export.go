// Package results exports finished batch results as NDJSON, CSV and
// JSON summary files, and archives records in SQLite.
package results

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"simulator/pkg/batch"
	"simulator/pkg/logx"
)

// csvHeader is the fixed export column order.
var csvHeader = []string{
	"session_id", "scenario", "prompt_version", "score", "comment",
	"turns", "start_ts", "status", "duration_seconds", "evaluation_status",
}

// Exporter writes result files under a results directory.
type Exporter struct {
	dir    string
	logger *logx.Logger
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir, logger: logx.NewLogger("results")}
}

// SaveNDJSON writes one JSON object per record, each tagged with the
// batch id and export timestamp. Returns the file path.
func (e *Exporter) SaveNDJSON(batchID string, records []batch.Record) (string, error) {
	path := e.filePath("batch", batchID, "ndjson")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create ndjson file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	exportedAt := time.Now().Format(time.RFC3339)
	for i := range records {
		row := struct {
			BatchID         string `json:"batch_id"`
			ExportTimestamp string `json:"export_timestamp"`
			batch.Record
		}{batchID, exportedAt, records[i]}
		if err := enc.Encode(row); err != nil {
			return "", fmt.Errorf("encode record %d: %w", i, err)
		}
	}

	e.logger.Info("saved NDJSON results: batch=%s file=%s records=%d", batchID, path, len(records))
	return path, nil
}

// SaveCSV writes the flat per-record export. Newlines inside comments
// are flattened so each record stays on one row for spreadsheet use.
func (e *Exporter) SaveCSV(batchID string, records []batch.Record, promptVersion string) (string, error) {
	if promptVersion == "" {
		promptVersion = "default"
	}
	path := e.filePath("batch", batchID, "csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv header: %w", err)
	}

	for i := range records {
		rec := &records[i]
		startTS := ""
		if !rec.StartTime.IsZero() {
			startTS = rec.StartTime.Format(time.RFC3339)
		}
		row := []string{
			rec.SessionID,
			rec.Scenario,
			promptVersion,
			strconv.Itoa(rec.Score),
			flattenNewlines(rec.Comment),
			strconv.Itoa(rec.TotalTurns),
			startTS,
			string(rec.Status),
			strconv.FormatFloat(rec.DurationSeconds, 'f', -1, 64),
			string(rec.EvaluationStatus),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write csv record %d: %w", i, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}

	e.logger.Info("saved CSV results: batch=%s file=%s records=%d", batchID, path, len(records))
	return path, nil
}

// SaveSummary writes a summary report as indented JSON.
func (e *Exporter) SaveSummary(summary Summary) (string, error) {
	path := e.filePath("summary", summary.BatchID, "json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write summary file: %w", err)
	}

	e.logger.Info("saved summary report: batch=%s file=%s", summary.BatchID, path)
	return path, nil
}

// FileInfo describes one exported result file.
type FileInfo struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"filepath"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ListFiles enumerates exported files, newest first. A non-empty
// batchID filters to files containing it.
func (e *Exporter) ListFiles(batchID string) ([]FileInfo, error) {
	entries, err := os.ReadDir(e.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read results dir: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if batchID != "" && !strings.Contains(entry.Name(), batchID) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Filename:   entry.Name(),
			Path:       filepath.Join(e.dir, entry.Name()),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModifiedAt.After(files[j].ModifiedAt)
	})
	return files, nil
}

func (e *Exporter) filePath(prefix, batchID, ext string) string {
	timestamp := time.Now().Format("20060102_150405")
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s_%s.%s", prefix, batchID, timestamp, ext))
}

func flattenNewlines(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}
