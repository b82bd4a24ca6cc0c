package service

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/internal/application/dto"
	"github.com/turtacn/certgate/internal/config"
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/internal/domain/service/mocks"
	"github.com/turtacn/certgate/internal/infrastructure/pkistore"
	"github.com/turtacn/certgate/pkg/constants"
	"github.com/turtacn/certgate/pkg/errors"
	"github.com/turtacn/certgate/pkg/logger"
)

type stubInventory struct {
	records     []models.CertificateRecord
	invalidated int
}

func (s *stubInventory) List(context.Context) ([]models.CertificateRecord, error) {
	return s.records, nil
}

func (s *stubInventory) Invalidate() { s.invalidated++ }

type stubExporter struct {
	result *models.ExportResult
}

func (s *stubExporter) Export(context.Context) (*models.ExportResult, error) {
	return s.result, nil
}

type certFixture struct {
	layout    pkistore.Layout
	executor  *mocks.MockCommandExecutor
	audit     *mocks.MockAuditService
	inventory *stubInventory
	svc       *CertificateAppService
}

func newCertFixture(t *testing.T, policy string) *certFixture {
	f := &certFixture{
		layout:    pkistore.NewLayout(t.TempDir()),
		executor:  new(mocks.MockCommandExecutor),
		audit:     new(mocks.MockAuditService),
		inventory: &stubInventory{},
	}
	f.audit.On("LogEvent", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.svc = NewCertificateAppService(CertificateAppServiceDeps{
		Layout:       f.layout,
		Executor:     f.executor,
		Inventory:    f.inventory,
		Exporter:     &stubExporter{result: &models.ExportResult{Success: true, Exported: 2, Directory: "/data/certificates"}},
		RevokePolicy: policy,
		Audit:        f.audit,
	}, logger.NewNopLogger())
	return f
}

func (f *certFixture) seed(t *testing.T, name string, cert, key, req bool) {
	if cert {
		writeFile(t, f.layout.IssuedCert(name), "cert")
	}
	if key {
		writeFile(t, f.layout.PrivateKey(name), "key")
	}
	if req {
		writeFile(t, f.layout.Request(name), "req")
	}
}

func (f *certFixture) revokeReturns(name string, res *models.ExecResult, err error) {
	f.executor.On("Execute", mock.Anything, constants.OpRevokeCertificate, []string{name}).Return(res, err)
}

func TestCertificateAppService_Delete_AllArtifacts(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)
	f.seed(t, "web01", true, true, true)
	f.revokeReturns("web01", &models.ExecResult{Success: true}, nil)

	report, err := f.svc.Delete(context.Background(), "web01")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{"revoked from CA", "certificate", "private key", "certificate request"}, report.Deleted)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, models.OutcomeRevoked, report.Outcome(models.StepRevoke))
	assert.NoFileExists(t, f.layout.IssuedCert("web01"))
	assert.NoFileExists(t, f.layout.PrivateKey("web01"))
	assert.NoFileExists(t, f.layout.Request("web01"))
}

func TestCertificateAppService_Delete_CertificateOnly(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)
	f.seed(t, "web02", true, false, false)
	f.revokeReturns("web02", &models.ExecResult{Success: true}, nil)

	report, err := f.svc.Delete(context.Background(), "web02")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Contains(t, report.Deleted, "certificate")
	assert.Equal(t, []string{"Private key file not found"}, report.Warnings)
	assert.Equal(t, models.OutcomeNotFound, report.Outcome(models.StepPrivateKey))
	f.executor.AssertExpectations(t)
}

func TestCertificateAppService_Delete_KeyOnly(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)
	f.seed(t, "laptop", false, true, false)

	report, err := f.svc.Delete(context.Background(), "laptop")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{"private key"}, report.Deleted)
	assert.Equal(t, []string{"Certificate file not found"}, report.Warnings)
	assert.Equal(t, models.OutcomeSkipped, report.Outcome(models.StepRevoke))
	assert.Equal(t, models.OutcomeNotFound, report.Outcome(models.StepRequest))
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestCertificateAppService_Delete_RevokeMovesArtifacts(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyRequired)
	f.seed(t, "web03", true, true, true)
	// revoke-certificate relocates the issued files into pki/revoked.
	f.executor.On("Execute", mock.Anything, constants.OpRevokeCertificate, []string{"web03"}).
		Run(func(mock.Arguments) {
			for _, p := range []string{f.layout.IssuedCert("web03"), f.layout.PrivateKey("web03"), f.layout.Request("web03")} {
				require.NoError(t, os.Remove(p))
			}
		}).
		Return(&models.ExecResult{Success: true}, nil).Once()

	report, err := f.svc.Delete(context.Background(), "web03")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{"revoked from CA", "certificate", "private key", "certificate request"}, report.Deleted)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, models.OutcomeDeleted, report.Outcome(models.StepCertificate))
	assert.Equal(t, models.OutcomeDeleted, report.Outcome(models.StepPrivateKey))
	assert.Equal(t, models.OutcomeDeleted, report.Outcome(models.StepRequest))
	f.executor.AssertExpectations(t)
}

func TestCertificateAppService_Delete_NothingThere(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)

	report, err := f.svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code())
	assert.Equal(t, "Certificate 'ghost' not found or could not be deleted", appErr.Error())
	assert.Equal(t, []string{"Certificate file not found", "Private key file not found"}, report.Warnings)
	assert.False(t, report.Success)
}

func TestCertificateAppService_Delete_RevokeFailureBestEffort(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)
	f.seed(t, "web02", true, true, false)
	f.revokeReturns("web02", &models.ExecResult{Success: false, Stderr: "already revoked", ExitCode: 1}, nil)

	report, err := f.svc.Delete(context.Background(), "web02")
	require.NoError(t, err)
	assert.True(t, report.Success)
	assert.Equal(t, []string{"Revocation failed: already revoked"}, report.Warnings)
	assert.Equal(t, models.OutcomeFailed, report.Outcome(models.StepRevoke))
	assert.NoFileExists(t, f.layout.IssuedCert("web02"))
}

func TestCertificateAppService_Delete_RevokeFailureRequired(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyRequired)
	f.seed(t, "web03", true, true, true)
	f.revokeReturns("web03", &models.ExecResult{TimedOut: true}, errors.Timeout(constants.OpRevokeCertificate, "30s"))

	report, err := f.svc.Delete(context.Background(), "web03")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodePartialFailure))
	assert.Equal(t, models.OutcomeSkipped, report.Outcome(models.StepCertificate))
	assert.FileExists(t, f.layout.IssuedCert("web03"))
	assert.FileExists(t, f.layout.PrivateKey("web03"))
	assert.FileExists(t, f.layout.Request("web03"))
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "Revocation failed: ")
}

func TestCertificateAppService_Delete_InvalidName(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)
	for _, name := range []string{"", "../etc/passwd", "a b", "x;rm"} {
		_, err := f.svc.Delete(context.Background(), name)
		assert.True(t, errors.HasCode(err, errors.CodeValidation), name)
	}
}

func TestCertificateAppService_ReservedCAName(t *testing.T) {
	f := newCertFixture(t, config.RevokePolicyBestEffort)
	writeFile(t, f.layout.CAKey(), "ca key")
	writeFile(t, f.layout.CACert(), "ca cert")

	_, err := f.svc.Delete(context.Background(), "ca")
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
	_, err = f.svc.Renew(context.Background(), "ca")
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
	_, err = f.svc.IssueServer(context.Background(), dto.ServerCertRequest{Name: "ca", IP: "10.0.0.1"})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
	_, err = f.svc.IssueClient(context.Background(), dto.ClientCertRequest{Name: "ca"})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
	_, err = f.svc.ArtifactPath(context.Background(), "ca", models.ArtifactKey)
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	art, err := f.svc.ArtifactPath(context.Background(), "", models.ArtifactCA)
	require.NoError(t, err)
	assert.Equal(t, f.layout.CACert(), art.Path)

	assert.FileExists(t, f.layout.CAKey())
	f.executor.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything, mock.Anything)
}

func TestCertificateAppService_Issue(t *testing.T) {
	f := newCertFixture(t, "")
	f.executor.On("Execute", mock.Anything, constants.OpCreateServer, []string{"web01", "10.0.0.5", "web01.example.com"}).
		Return(&models.ExecResult{Success: true, Stdout: "issued"}, nil).Once()
	f.executor.On("Execute", mock.Anything, constants.OpCreateClient, []string{"Alice.Smith", ""}).
		Return(&models.ExecResult{Success: true}, nil).Once()

	res, err := f.svc.IssueServer(context.Background(), dto.ServerCertRequest{Name: "web01", IP: "10.0.0.5", DNS: "web01.example.com"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = f.svc.IssueClient(context.Background(), dto.ClientCertRequest{Name: "Alice.Smith"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	invalid := []dto.ServerCertRequest{
		{Name: "Web01"},
		{Name: "web 01"},
		{Name: "web01", IP: "999.1.1.1"},
		{Name: "web01", DNS: "not a host"},
	}
	for _, req := range invalid {
		_, err := f.svc.IssueServer(context.Background(), req)
		assert.True(t, errors.HasCode(err, errors.CodeValidation), "%+v", req)
	}
	_, err = f.svc.IssueClient(context.Background(), dto.ClientCertRequest{Name: "alice", Email: "nope"})
	assert.True(t, errors.HasCode(err, errors.CodeValidation))

	f.executor.AssertExpectations(t)
}

func TestCertificateAppService_Renew(t *testing.T) {
	f := newCertFixture(t, "")
	f.executor.On("Execute", mock.Anything, constants.OpRenewCertificate, []string{"web01"}).
		Return(&models.ExecResult{Success: true}, nil).Once()

	res, err := f.svc.Renew(context.Background(), "web01")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, f.inventory.invalidated)

	_, err = f.svc.Renew(context.Background(), "web01;reboot")
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestCertificateAppService_ArtifactPath(t *testing.T) {
	f := newCertFixture(t, "")
	f.seed(t, "web01", true, false, false)

	art, err := f.svc.ArtifactPath(context.Background(), "web01", models.ArtifactCert)
	require.NoError(t, err)
	assert.Equal(t, "web01.crt", art.Filename)
	assert.False(t, art.Private)

	_, err = f.svc.ArtifactPath(context.Background(), "web01", models.ArtifactKey)
	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, errors.CodeNotFound, appErr.Code())
	assert.Contains(t, appErr.Metadata()["hint"], "Private keys")

	_, err = f.svc.ArtifactPath(context.Background(), "web01", models.ArtifactKind("p12"))
	assert.True(t, errors.HasCode(err, errors.CodeValidation))
}

func TestCertificateAppService_Export(t *testing.T) {
	f := newCertFixture(t, "")
	res, err := f.svc.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Exported)
	f.audit.AssertCalled(t, "LogEvent", mock.Anything, auditedAction(constants.AuditActionCertExport, models.AuditResultSuccess))
}
