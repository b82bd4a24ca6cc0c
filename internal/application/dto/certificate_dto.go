package dto

import "github.com/turtacn/certgate/internal/domain/models"

// ServerCertRequest 服务器证书签发请求 DTO
type ServerCertRequest struct {
	Name string `json:"name" validate:"required,servername"`
	IP   string `json:"ip" validate:"omitempty,ip"`
	DNS  string `json:"dns" validate:"omitempty,fqdn"`
}

// ClientCertRequest 客户端证书签发请求 DTO
type ClientCertRequest struct {
	Name  string `json:"name" validate:"required,clientname"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CertificateListResponse 证书列表响应
type CertificateListResponse struct {
	Success      bool                       `json:"success"`
	Certificates []models.CertificateRecord `json:"certificates"`
}

// DeleteResponse 证书删除响应
type DeleteResponse struct {
	Message string `json:"message"`
	*models.DeleteReport
}

// AuditListResponse 审计事件列表响应
type AuditListResponse struct {
	Success bool                `json:"success"`
	Events  []models.AuditEvent `json:"events"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}
