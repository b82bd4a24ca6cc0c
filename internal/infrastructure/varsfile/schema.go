// Package varsfile reads and writes the easy-rsa vars file.
package varsfile

import (
	"strconv"

	"github.com/turtacn/certgate/internal/domain/models"
)

type kind int

const (
	kindString kind = iota
	kindInt
)

// entry binds one CAConfig field to its easy-rsa directive.
type entry struct {
	directive string
	kind      kind
	get       func(*models.CAConfig) string
	set       func(*models.CAConfig, string) bool
}

func stringField(directive string, ptr func(*models.CAConfig) *string) entry {
	return entry{
		directive: directive,
		kind:      kindString,
		get:       func(c *models.CAConfig) string { return *ptr(c) },
		set: func(c *models.CAConfig, v string) bool {
			if v == "" {
				return false
			}
			*ptr(c) = v
			return true
		},
	}
}

func intField(directive string, ptr func(*models.CAConfig) *int) entry {
	return entry{
		directive: directive,
		kind:      kindInt,
		get:       func(c *models.CAConfig) string { return strconv.Itoa(*ptr(c)) },
		set: func(c *models.CAConfig, v string) bool {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				return false
			}
			*ptr(c) = n
			return true
		},
	}
}

// schema is the single source of truth for the vars file layout, in output order.
// Defaults come from models.DefaultCAConfig.
var schema = []entry{
	stringField("EASYRSA_REQ_COUNTRY", func(c *models.CAConfig) *string { return &c.Country }),
	stringField("EASYRSA_REQ_PROVINCE", func(c *models.CAConfig) *string { return &c.Province }),
	stringField("EASYRSA_REQ_CITY", func(c *models.CAConfig) *string { return &c.City }),
	stringField("EASYRSA_REQ_ORG", func(c *models.CAConfig) *string { return &c.Organization }),
	stringField("EASYRSA_REQ_EMAIL", func(c *models.CAConfig) *string { return &c.Email }),
	stringField("EASYRSA_REQ_OU", func(c *models.CAConfig) *string { return &c.OrganizationalUnit }),
	intField("EASYRSA_KEY_SIZE", func(c *models.CAConfig) *int { return &c.KeySize }),
	intField("EASYRSA_CA_EXPIRE", func(c *models.CAConfig) *int { return &c.CAExpireDays }),
	intField("EASYRSA_CERT_EXPIRE", func(c *models.CAConfig) *int { return &c.CertExpireDays }),
	stringField("EASYRSA_DIGEST", func(c *models.CAConfig) *string { return &c.Digest }),
}

var byDirective = func() map[string]entry {
	m := make(map[string]entry, len(schema))
	for _, e := range schema {
		m[e.directive] = e
	}
	return m
}()
