package pkistore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service"
	"github.com/turtacn/certgate/internal/domain/service/mocks"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/logger"
)

func newLayout(t *testing.T, certs ...string) Layout {
	t.Helper()
	l := NewLayout(t.TempDir())
	require.NoError(t, os.MkdirAll(l.IssuedDir(), 0o755))
	for _, c := range certs {
		require.NoError(t, os.WriteFile(l.IssuedCert(c), []byte("cert "+c), 0o644))
	}
	return l
}

func meta(subject string) *models.CertificateMetadata {
	return &models.CertificateMetadata{
		Subject:   subject,
		NotBefore: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func newInventory(l Layout, insp service.CertificateInspector) *Inventory {
	return NewInventory(l, insp, service.NewClassifier(), InventoryOptions{Concurrency: 2, Timeout: time.Second}, logger.NewNopLogger())
}

func TestInventory_MissingDirIsEmpty(t *testing.T) {
	inv := newInventory(NewLayout(t.TempDir()), new(mocks.MockCertificateInspector))

	recs, err := inv.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestInventory_ListClassifiesInOrder(t *testing.T) {
	l := newLayout(t, "web01", "alice", "admin01", "vpn-gw")
	require.NoError(t, os.WriteFile(filepath.Join(l.IssuedDir(), "notes.txt"), []byte("x"), 0o644))

	insp := new(mocks.MockCertificateInspector)
	insp.On("Inspect", mock.Anything, l.IssuedCert("web01")).Return(meta("CN = web01"), nil)
	insp.On("Inspect", mock.Anything, l.IssuedCert("alice")).Return(meta("CN = alice, emailAddress = alice@example.com"), nil)
	insp.On("Inspect", mock.Anything, l.IssuedCert("admin01")).Return(meta("CN = admin01"), nil)
	insp.On("Inspect", mock.Anything, l.IssuedCert("vpn-gw")).Return(meta("CN = vpn-gw"), nil)
	insp.On("ExtendedKeyUsage", mock.Anything, l.IssuedCert("web01")).Return("", nil)
	insp.On("ExtendedKeyUsage", mock.Anything, l.IssuedCert("alice")).Return("", nil)
	insp.On("ExtendedKeyUsage", mock.Anything, l.IssuedCert("admin01")).Return("", errors.New("openssl: unable to load"))
	insp.On("ExtendedKeyUsage", mock.Anything, l.IssuedCert("vpn-gw")).
		Return("X509v3 Extended Key Usage: \n    "+service.EKUClientAuth, nil)

	recs, err := newInventory(l, insp).List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 4)

	got := map[string]constants.CertificateType{}
	order := make([]string, 0, len(recs))
	for _, r := range recs {
		got[r.Name] = r.Type
		order = append(order, r.Name)
		assert.Equal(t, constants.CertificateStatusActive, r.Status)
		require.NotNil(t, r.ExpiresAt)
	}
	assert.Equal(t, []string{"admin01", "alice", "vpn-gw", "web01"}, order)
	assert.Equal(t, constants.CertificateTypeServer, got["web01"])
	assert.Equal(t, constants.CertificateTypeClient, got["alice"], "email in subject")
	assert.Equal(t, constants.CertificateTypeClient, got["admin01"], "EKU failure falls back to name")
	assert.Equal(t, constants.CertificateTypeClient, got["vpn-gw"], "EKU beats name")
}

func TestInventory_UninspectableIsUnknownServer(t *testing.T) {
	l := newLayout(t, "client-broken")
	insp := new(mocks.MockCertificateInspector)
	insp.On("Inspect", mock.Anything, mock.Anything).Return(nil, errors.New("bad PEM"))
	insp.On("ExtendedKeyUsage", mock.Anything, mock.Anything).Return("", nil)

	recs, err := newInventory(l, insp).List(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, models.UnknownCertificate("client-broken"), recs[0])
}

func TestInventory_CachesUntilFileChanges(t *testing.T) {
	l := newLayout(t, "web01")
	insp := new(mocks.MockCertificateInspector)
	insp.On("Inspect", mock.Anything, mock.Anything).Return(meta("CN = web01"), nil)
	insp.On("ExtendedKeyUsage", mock.Anything, mock.Anything).Return("", nil)
	inv := newInventory(l, insp)
	ctx := context.Background()

	_, err := inv.List(ctx)
	require.NoError(t, err)
	_, err = inv.List(ctx)
	require.NoError(t, err)
	insp.AssertNumberOfCalls(t, "Inspect", 1)

	inv.Evict(l.IssuedCert("web01"))
	_, err = inv.List(ctx)
	require.NoError(t, err)
	insp.AssertNumberOfCalls(t, "Inspect", 2)

	inv.Invalidate()
	_, err = inv.List(ctx)
	require.NoError(t, err)
	insp.AssertNumberOfCalls(t, "Inspect", 3)
}

// slowInspector counts concurrent Inspect calls.
type slowInspector struct {
	inFlight, peak atomic.Int32
}

func (s *slowInspector) Inspect(ctx context.Context, _ string) (*models.CertificateMetadata, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return meta("CN = x"), nil
}

func (s *slowInspector) ExtendedKeyUsage(context.Context, string) (string, error) { return "", nil }
func (s *slowInspector) Describe(context.Context, string) (string, error)         { return "", nil }

func TestInventory_BoundedConcurrency(t *testing.T) {
	l := newLayout(t, "a", "b", "c", "d", "e", "f", "g", "h")
	insp := &slowInspector{}

	recs, err := newInventory(l, insp).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, 8)
	assert.LessOrEqual(t, insp.peak.Load(), int32(2))
	assert.Equal(t, "a", recs[0].Name)
	assert.Equal(t, "h", recs[7].Name)
}

func TestWatcher_EvictsOnWrite(t *testing.T) {
	l := newLayout(t, "web01")
	insp := new(mocks.MockCertificateInspector)
	insp.On("Inspect", mock.Anything, mock.Anything).Return(meta("CN = web01"), nil)
	insp.On("ExtendedKeyUsage", mock.Anything, mock.Anything).Return("", nil)
	inv := newInventory(l, insp)

	_, err := inv.List(context.Background())
	require.NoError(t, err)
	require.Len(t, inv.cache.Items(), 1)

	w, err := NewWatcher(inv, logger.NewNopLogger())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
		<-w.Done()
	})

	require.NoError(t, os.Remove(l.IssuedCert("web01")))
	assert.Eventually(t, func() bool { return len(inv.cache.Items()) == 0 }, 2*time.Second, 20*time.Millisecond)
}
