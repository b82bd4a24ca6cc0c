package pkistore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/constants"
)

const manifestFile = "manifest.yaml"

// Classifier decides which export subdirectory a certificate goes to.
type Classifier interface {
	Classify(ctx context.Context, name string) constants.CertificateType
}

// Exporter copies the CA certificate and all issued certificates into an export directory.
type Exporter struct {
	layout     Layout
	dir        string
	classifier Classifier
	now        func() time.Time
}

// NewExporter creates an exporter writing to dir.
func NewExporter(layout Layout, dir string, classifier Classifier) *Exporter {
	return &Exporter{layout: layout, dir: dir, classifier: classifier, now: time.Now}
}

// Export copies ca.crt to <dir>/ca.crt and each issued certificate to
// <dir>/<type>/<name>.crt, then writes manifest.yaml. A missing issued directory
// is an empty, successful export.
func (e *Exporter) Export(ctx context.Context) (*models.ExportResult, error) {
	for _, sub := range []constants.CertificateType{constants.CertificateTypeServer, constants.CertificateTypeClient} {
		if err := os.MkdirAll(filepath.Join(e.dir, string(sub)), 0o755); err != nil {
			return nil, fmt.Errorf("create export dir: %w", err)
		}
	}

	manifest := &models.ExportManifest{GeneratedAt: e.now().UTC(), Entries: []models.ExportedEntry{}}

	if exists(e.layout.CACert()) {
		dst := filepath.Join(e.dir, "ca.crt")
		if err := copyFile(e.layout.CACert(), dst, 0o644); err != nil {
			return nil, fmt.Errorf("copy ca.crt: %w", err)
		}
		manifest.CA = "ca.crt"
	}

	entries, err := os.ReadDir(e.layout.IssuedDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := e.writeManifest(manifest); err != nil {
				return nil, err
			}
			return &models.ExportResult{
				Success:   true,
				Exported:  0,
				Message:   "No certificates directory found",
				Directory: e.dir,
				Manifest:  manifest,
			}, nil
		}
		return nil, fmt.Errorf("read issued dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), certExt) {
			continue
		}
		name := CertName(entry.Name())
		typ := e.classifier.Classify(ctx, name)
		rel := filepath.Join(string(typ), entry.Name())
		if err := copyFile(filepath.Join(e.layout.IssuedDir(), entry.Name()), filepath.Join(e.dir, rel), 0o644); err != nil {
			return nil, fmt.Errorf("copy %s: %w", entry.Name(), err)
		}
		manifest.Entries = append(manifest.Entries, models.ExportedEntry{Name: name, Type: string(typ), Path: filepath.ToSlash(rel)})
	}

	if err := e.writeManifest(manifest); err != nil {
		return nil, err
	}

	return &models.ExportResult{
		Success:   true,
		Exported:  len(manifest.Entries),
		Message:   fmt.Sprintf("Synchronized %d certificates to export directory", len(manifest.Entries)),
		Directory: e.dir,
		Manifest:  manifest,
	}, nil
}

func (e *Exporter) writeManifest(m *models.ExportManifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.dir, manifestFile), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
