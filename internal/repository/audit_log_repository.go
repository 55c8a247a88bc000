package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 監査ログの保存・取得の約束。
type AuditLogRepository interface {
	//監査ログを1件保存
	Create(ctx context.Context, log model.AuditLog) error

	//対象ごとの監査ログ（新しい順）
	ListByResource(ctx context.Context, resourceType model.AuditResourceType, resourceID int64) ([]model.AuditLog, error)
}
