package models

// CAConfig is the normalized form of the easy-rsa vars file: default subject fields
// plus key and validity policy for issuance.
type CAConfig struct {
	Country            string `json:"country" validate:"required,len=2,alpha"`
	Province           string `json:"province" validate:"required,min=1,singleline"`
	City               string `json:"city" validate:"required,min=1,singleline"`
	Organization       string `json:"org" validate:"required,min=1,singleline"`
	Email              string `json:"email" validate:"required,email"`
	OrganizationalUnit string `json:"ou" validate:"omitempty,singleline"`
	KeySize            int    `json:"keySize" validate:"min=1024,max=4096"`
	CAExpireDays       int    `json:"caExpire" validate:"min=1,max=10950"`
	CertExpireDays     int    `json:"certExpire" validate:"min=1,max=3650"`
	Digest             string `json:"digest" validate:"oneof=sha256 sha384 sha512"`
}

// DefaultCAConfig returns the configuration used when no vars file exists.
func DefaultCAConfig() CAConfig {
	return CAConfig{
		Country:            "IT",
		Province:           "Rome",
		City:               "Rome",
		Organization:       "My Organization",
		Email:              "admin@example.com",
		OrganizationalUnit: "IT Department",
		KeySize:            2048,
		CAExpireDays:       3650,
		CertExpireDays:     365,
		Digest:             "sha256",
	}
}
