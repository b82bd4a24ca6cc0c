package dto

import (
	"github.com/turtacn/certgate/internal/domain/models"
	"github.com/turtacn/certgate/pkg/constants"
)

// VarsRequest 更新 vars 配置请求 DTO
// Omitted optional fields fall back to the defaults.
type VarsRequest struct {
	Country    string `json:"country" validate:"required,len=2,alpha"`
	Province   string `json:"province" validate:"required,min=1,singleline"`
	City       string `json:"city" validate:"required,min=1,singleline"`
	Org        string `json:"org" validate:"required,min=1,singleline"`
	Email      string `json:"email" validate:"required,email"`
	OU         string `json:"ou" validate:"omitempty,min=1,singleline"`
	KeySize    int    `json:"keySize" validate:"omitempty,min=1024,max=4096"`
	CAExpire   int    `json:"caExpire" validate:"omitempty,min=1,max=10950"`
	CertExpire int    `json:"certExpire" validate:"omitempty,min=1,max=3650"`
	Digest     string `json:"digest" validate:"omitempty,oneof=sha256 sha384 sha512"`
}

// ToCAConfig fills omitted fields from the defaults.
func (r *VarsRequest) ToCAConfig() models.CAConfig {
	cfg := models.DefaultCAConfig()
	cfg.Country = r.Country
	cfg.Province = r.Province
	cfg.City = r.City
	cfg.Organization = r.Org
	cfg.Email = r.Email
	if r.OU != "" {
		cfg.OrganizationalUnit = r.OU
	}
	if r.KeySize != 0 {
		cfg.KeySize = r.KeySize
	}
	if r.CAExpire != 0 {
		cfg.CAExpireDays = r.CAExpire
	}
	if r.CertExpire != 0 {
		cfg.CertExpireDays = r.CertExpire
	}
	if r.Digest != "" {
		cfg.Digest = r.Digest
	}
	return cfg
}

// VarsResponse vars 配置响应
type VarsResponse struct {
	Exists bool            `json:"exists"`
	Config models.CAConfig `json:"config"`
}

// VarsUpdateResponse vars 更新响应
type VarsUpdateResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Config  models.CAConfig `json:"config"`
}

// CreateCARequest 创建 CA 请求 DTO
type CreateCARequest struct {
	Country  string `json:"country" validate:"required,len=2,alpha"`
	Province string `json:"province" validate:"required,min=1,singleline"`
	City     string `json:"city" validate:"required,min=1,singleline"`
	Org      string `json:"org" validate:"required,min=1,singleline"`
	Email    string `json:"email" validate:"required,email"`
	OU       string `json:"ou" validate:"omitempty,singleline"`
}

// Args returns the positional create-ca arguments.
func (r *CreateCARequest) Args() []string {
	ou := r.OU
	if ou == "" {
		ou = constants.DefaultOrganizationalUnit
	}
	return []string{r.Country, r.Province, r.City, r.Org, r.Email, ou}
}

// CAStatusResponse CA 状态响应
type CAStatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	*models.CAState
}
