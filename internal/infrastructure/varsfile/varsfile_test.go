package varsfile

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/errors"
)

func validConfig() models.CAConfig {
	return models.CAConfig{
		Country:            "DE",
		Province:           "Bavaria",
		City:               "Munich",
		Organization:       `Acme "Widgets" $HOME`,
		Email:              "pki@acme.example",
		OrganizationalUnit: "Platform `Ops`",
		KeySize:            4096,
		CAExpireDays:       7300,
		CertExpireDays:     825,
		Digest:             "sha384",
	}
}

func TestStore_ReadAbsentReturnsDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "vars"))

	cfg, exists, err := s.Read()
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, models.DefaultCAConfig(), cfg)
}

func TestStore_RoundTrip(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "vars"))
	want := validConfig()

	require.NoError(t, s.Write(want))
	got, exists, err := s.Read()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, want, got)
}

func TestStore_WriteFillsDefaultOU(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "vars"))
	cfg := validConfig()
	cfg.OrganizationalUnit = ""

	require.NoError(t, s.Write(cfg))
	got, _, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, "IT Department", got.OrganizationalUnit)
}

func TestStore_InvalidWriteLeavesFileUntouched(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vars")
	original := []byte("set_var EASYRSA_REQ_COUNTRY \"FR\"\n")
	require.NoError(t, os.WriteFile(path, original, 0o644))
	s := NewStore(path)

	tests := []struct {
		name   string
		mutate func(*models.CAConfig)
	}{
		{"country too long", func(c *models.CAConfig) { c.Country = "ITA" }},
		{"country not alpha", func(c *models.CAConfig) { c.Country = "I1" }},
		{"bad email", func(c *models.CAConfig) { c.Email = "nobody" }},
		{"key too small", func(c *models.CAConfig) { c.KeySize = 512 }},
		{"ca validity too long", func(c *models.CAConfig) { c.CAExpireDays = 10951 }},
		{"cert validity zero", func(c *models.CAConfig) { c.CertExpireDays = 0 }},
		{"digest md5", func(c *models.CAConfig) { c.Digest = "md5" }},
		{"empty city", func(c *models.CAConfig) { c.City = "" }},
		{"newline in province", func(c *models.CAConfig) { c.Province = "Bavaria\nset_var EASYRSA_DIGEST md5" }},
		{"carriage return in city", func(c *models.CAConfig) { c.City = "Munich\r" }},
		{"newline in organization", func(c *models.CAConfig) { c.Organization = "Acme\nInc" }},
		{"control character in unit", func(c *models.CAConfig) { c.OrganizationalUnit = "Ops\x00" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := s.Write(cfg)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeValidation))

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, original, data)
		})
	}
}

func TestStore_ConcurrentWritesNeverTear(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "vars"))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cfg := validConfig()
			cfg.CertExpireDays = 100 + i
			assert.NoError(t, s.Write(cfg))
		}(i)
	}
	wg.Wait()

	got, exists, err := s.Read()
	require.NoError(t, err)
	assert.True(t, exists)
	assert.GreaterOrEqual(t, got.CertExpireDays, 100)
	assert.Less(t, got.CertExpireDays, 116)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestParse(t *testing.T) {
	content := `
# easy-rsa vars
if [ -z "$EASYRSA_CALLER" ]; then
	echo "not sourced" >&2
fi
set_var EASYRSA_REQ_COUNTRY  'US'
SET_VAR easyrsa_req_province "New \"York\""
set_var EASYRSA_REQ_CITY     Albany   # bare value with trailing comment
set_var EASYRSA_REQ_ORG      ""
set_var EASYRSA_KEY_SIZE     abc
set_var EASYRSA_CA_EXPIRE    1825
set_var EASYRSA_ALGO         ec
#set_var EASYRSA_DIGEST      "sha512"
set_var EASYRSA_REQ_COUNTRY  "CA"
`
	cfg := Parse(content)
	def := models.DefaultCAConfig()

	assert.Equal(t, "US", cfg.Country, "first occurrence wins")
	assert.Equal(t, `New "York"`, cfg.Province)
	assert.Equal(t, "Albany", cfg.City)
	assert.Equal(t, def.Organization, cfg.Organization, "empty value falls back")
	assert.Equal(t, def.KeySize, cfg.KeySize, "unparsable int falls back")
	assert.Equal(t, 1825, cfg.CAExpireDays)
	assert.Equal(t, def.Digest, cfg.Digest, "commented directive ignored")
	assert.Equal(t, def.Email, cfg.Email)
}

func TestEncodeEscapesAndStripsNewlines(t *testing.T) {
	cfg := models.DefaultCAConfig()
	cfg.Organization = "Evil\"; rm -rf /\nset_var EASYRSA_DIGEST \"md5\""

	out := Encode(cfg)
	assert.Contains(t, out, `"Evil\"; rm -rf /set_var EASYRSA_DIGEST \"md5\""`)
	assert.NotContains(t, out, "\nset_var EASYRSA_DIGEST \"md5\"")

	parsed := Parse(out)
	assert.Equal(t, "sha256", parsed.Digest)
	assert.Equal(t, "Evil\"; rm -rf /set_var EASYRSA_DIGEST \"md5\"", parsed.Organization)
}
