// Package extractions reads document extraction files for the CLI.
//
// A file holds a single extraction, a list of extractions, or a mapping
// with a "documents" list. JSON files are accepted as YAML.
package extractions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/fleetmap/pkg/errors"
	"github.com/agentstation/fleetmap/pkg/logging"
	"github.com/agentstation/fleetmap/pkg/reconciler"
	"github.com/agentstation/fleetmap/pkg/vehicles"
)

// Load reads every path in order. Directories are expanded to their
// .yaml, .yml and .json files sorted by name.
func Load(paths ...string) ([]vehicles.DocumentExtraction, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}

	var out []vehicles.DocumentExtraction
	for _, path := range files {
		docs, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, docs...)
	}
	return out, nil
}

// LoadFile reads the extractions in one file.
func LoadFile(path string) ([]vehicles.DocumentExtraction, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}

	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		if docs, ok := v["documents"]; ok {
			list, ok := docs.([]any)
			if !ok {
				return nil, errors.NewParseError("yaml", path, "documents must be a list", nil)
			}
			items = list
		} else {
			items = []any{v}
		}
	default:
		return nil, errors.NewParseError("yaml", path, fmt.Sprintf("unexpected top-level %T", raw), nil)
	}

	out := make([]vehicles.DocumentExtraction, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.NewParseError("yaml", path, fmt.Sprintf("document %d is not a mapping", i), nil)
		}
		ext, err := decode(m)
		if err != nil {
			return nil, errors.WrapParse("yaml", fmt.Sprintf("%s[%d]", path, i), err)
		}
		if ext.FileName == "" {
			ext.FileName = filepath.Base(path)
		}
		out = append(out, ext)
	}
	return out, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.WrapIO("stat", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.WrapIO("read", p, err)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch filepath.Ext(e.Name()) {
			case ".yaml", ".yml", ".json":
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// decode maps a loosely typed document onto an extraction. Scalar field
// values of any kind are kept as their string form.
func decode(m map[string]any) (vehicles.DocumentExtraction, error) {
	ext := vehicles.DocumentExtraction{
		DocumentID:   str(m["documentId"]),
		VIN:          vehicles.VIN(str(m["vin"])),
		DocumentType: vehicles.DocumentType(str(m["documentType"])),
		Source:       vehicles.Source(str(m["source"])),
		FileName:     str(m["fileName"]),
		Fields:       vehicles.Fields{},
	}

	if v, ok := m["extractionConfidence"]; ok && v != nil {
		c, err := strconv.ParseFloat(str(v), 64)
		if err != nil {
			return ext, fmt.Errorf("extractionConfidence: %w", err)
		}
		ext.ExtractionConfidence = c
	}

	switch v := m["receivedAt"].(type) {
	case nil:
	case time.Time:
		ext.ReceivedAt = v
	default:
		t, err := time.Parse(time.RFC3339, str(v))
		if err != nil {
			return ext, fmt.Errorf("receivedAt: %w", err)
		}
		ext.ReceivedAt = t
	}

	if raw, ok := m["fields"]; ok && raw != nil {
		fields, ok := raw.(map[string]any)
		if !ok {
			return ext, errors.New("fields must be a mapping")
		}
		for k, v := range fields {
			if v == nil {
				continue
			}
			ext.Fields[vehicles.FieldName(k)] = str(v)
		}
	}
	return ext, nil
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprint(t)
	}
}

// IngestFunc adds one extraction. Both the reconciler and the fleet view
// service provide one.
type IngestFunc func(ctx context.Context, ext vehicles.DocumentExtraction) (*reconciler.AddResult, error)

// Rejection records a document the reconciler refused.
type Rejection struct {
	DocumentID string `json:"documentId" yaml:"documentId"`
	FileName   string `json:"fileName,omitempty" yaml:"fileName,omitempty"`
	Error      string `json:"error" yaml:"error"`
}

// Summary totals an ingest run.
type Summary struct {
	Processed  int         `json:"processed" yaml:"processed"`
	Stored     int         `json:"stored" yaml:"stored"`
	Duplicates int         `json:"duplicates" yaml:"duplicates"`
	Vehicles   int         `json:"vehicles" yaml:"vehicles"`
	Conflicts  int         `json:"conflicts" yaml:"conflicts"`
	Warnings   []string    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Rejected   []Rejection `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

// Ingest feeds docs to add in order. Invalid documents are recorded and
// skipped; any other error stops the run.
func Ingest(ctx context.Context, add IngestFunc, docs []vehicles.DocumentExtraction) (*Summary, error) {
	sum := &Summary{}
	seen := make(map[vehicles.VIN]struct{})
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Processed++

		res, err := add(ctx, doc)
		if err != nil {
			if !errors.IsValidationError(err) {
				return sum, err
			}
			sum.Rejected = append(sum.Rejected, Rejection{DocumentID: doc.DocumentID, FileName: doc.FileName, Error: err.Error()})
			continue
		}

		if res.Duplicate {
			sum.Duplicates++
		} else {
			sum.Stored++
		}
		if _, ok := seen[res.VIN]; !ok {
			seen[res.VIN] = struct{}{}
			sum.Vehicles++
		}
		sum.Conflicts += len(res.Conflicts)
		sum.Warnings = append(sum.Warnings, res.Warnings...)
	}
	return sum, nil
}

// ReconcileFiles loads paths into rec and logs every rejected document.
func ReconcileFiles(ctx context.Context, rec reconciler.Reconciler, paths ...string) (*Summary, error) {
	docs, err := Load(paths...)
	if err != nil {
		return nil, err
	}
	sum, err := Ingest(ctx, rec.AddDocument, docs)
	if err != nil {
		return sum, err
	}

	logger := logging.FromContext(ctx)
	for _, r := range sum.Rejected {
		logger.Warn().
			Str("document_id", r.DocumentID).
			Str("file", r.FileName).
			Str("error", r.Error).
			Msg("Document rejected")
	}
	logger.Debug().
		Int("processed", sum.Processed).
		Int("stored", sum.Stored).
		Int("duplicates", sum.Duplicates).
		Int("vehicles", sum.Vehicles).
		Int("conflicts", sum.Conflicts).
		Msg("Extractions reconciled")
	return sum, nil
}
