package pkistore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/logger"
)

const inventoryCacheName = "inventory"

// Inventory lists issued certificates with their metadata and usage class.
type Inventory struct {
	layout      Layout
	inspector   service.CertificateInspector
	classifier  *service.Classifier
	cache       *cache.Cache
	concurrency int
	timeout     time.Duration
	metrics     service.Metrics
	logger      logger.Logger
}

// InventoryOptions configures an Inventory.
type InventoryOptions struct {
	Concurrency int
	Timeout     time.Duration
	CacheTTL    time.Duration
	Metrics     service.Metrics
}

// NewInventory creates an inventory over layout.
func NewInventory(layout Layout, inspector service.CertificateInspector, classifier *service.Classifier, opts InventoryOptions, log logger.Logger) *Inventory {
	if opts.Concurrency < 1 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = constants.DefaultIntrospectionTimeout
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.Metrics == nil {
		opts.Metrics = service.NopMetrics{}
	}
	return &Inventory{
		layout:      layout,
		inspector:   inspector,
		classifier:  classifier,
		cache:       cache.New(opts.CacheTTL, 2*opts.CacheTTL),
		concurrency: opts.Concurrency,
		timeout:     opts.Timeout,
		metrics:     opts.Metrics,
		logger:      log.WithComponent("inventory"),
	}
}

var _ service.CertificateInventory = (*Inventory)(nil)

// List enumerates pki/issued/*.crt in name order. A missing directory is an empty inventory.
// Artifacts that cannot be inspected are still listed, with status unknown.
func (inv *Inventory) List(ctx context.Context) ([]models.CertificateRecord, error) {
	entries, err := os.ReadDir(inv.layout.IssuedDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.CertificateRecord{}, nil
		}
		return nil, fmt.Errorf("read issued dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), certExt) {
			continue
		}
		names = append(names, CertName(e.Name()))
	}

	records := make([]models.CertificateRecord, len(names))
	g := new(errgroup.Group)
	g.SetLimit(inv.concurrency)
	for i, name := range names {
		g.Go(func() error {
			records[i] = inv.describe(ctx, name)
			return nil
		})
	}
	_ = g.Wait()

	return records, nil
}

// Invalidate drops all cached metadata.
func (inv *Inventory) Invalidate() {
	inv.cache.Flush()
}

// Evict drops cached metadata for one certificate file.
func (inv *Inventory) Evict(path string) {
	prefix := path + "|"
	for k := range inv.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			inv.cache.Delete(k)
		}
	}
}

// Classify returns the usage class of the named issued certificate.
func (inv *Inventory) Classify(ctx context.Context, name string) constants.CertificateType {
	return inv.describe(ctx, name).Type
}

func (inv *Inventory) describe(ctx context.Context, name string) models.CertificateRecord {
	path := inv.layout.IssuedCert(name)
	info, err := os.Stat(path)
	if err != nil {
		return models.UnknownCertificate(name)
	}
	key := fmt.Sprintf("%s|%d|%d", path, info.ModTime().UnixNano(), info.Size())
	if cached, ok := inv.cache.Get(key); ok {
		inv.metrics.RecordCacheAccess(inventoryCacheName, true)
		return cached.(models.CertificateRecord)
	}
	inv.metrics.RecordCacheAccess(inventoryCacheName, false)

	var (
		meta    *models.CertificateMetadata
		metaErr error
		eku     string
	)
	g := new(errgroup.Group)
	g.Go(func() error {
		c, cancel := context.WithTimeout(ctx, inv.timeout)
		defer cancel()
		meta, metaErr = inv.inspector.Inspect(c, path)
		return nil
	})
	g.Go(func() error {
		c, cancel := context.WithTimeout(ctx, inv.timeout)
		defer cancel()
		text, err := inv.inspector.ExtendedKeyUsage(c, path)
		if err != nil {
			inv.logger.Debug(ctx, "Extended key usage unavailable", logger.String("certificate", name), logger.Error(err))
			return nil
		}
		eku = text
		return nil
	})
	_ = g.Wait()

	if metaErr != nil {
		inv.logger.Warn(ctx, "Failed to inspect certificate", logger.String("certificate", name), logger.Error(metaErr))
		return models.UnknownCertificate(name)
	}

	created, expires := meta.NotBefore, meta.NotAfter
	rec := models.CertificateRecord{
		Name:      name,
		Type:      inv.classifier.Classify(service.Evidence{Name: name, Subject: meta.Subject, ExtendedKeyUsage: eku}),
		CreatedAt: &created,
		ExpiresAt: &expires,
		Subject:   meta.Subject,
		Status:    constants.CertificateStatusActive,
	}
	inv.cache.SetDefault(key, rec)
	return rec
}
