package repository

import (
	"time"

	"github.com/mautops/docflow-gin/internal/model"
	"gorm.io/gorm"
)

// DocumentStore 文档存储, 本模块只负责标记归档
type DocumentStore interface {
	FindByID(id string) (*model.DocumentModel, error)
	MarkArchived(id string, at time.Time) error
	WithTx(tx *gorm.DB) DocumentStore
}

// documentRepository 文档存储实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentStore 创建文档存储
func NewDocumentStore(db *gorm.DB) DocumentStore {
	return &documentRepository{db: db}
}

// WithTx 返回绑定到事务的存储
func (r *documentRepository) WithTx(tx *gorm.DB) DocumentStore {
	return &documentRepository{db: tx}
}

// FindByID 根据 ID 查找文档
func (r *documentRepository) FindByID(id string) (*model.DocumentModel, error) {
	var doc model.DocumentModel
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// MarkArchived 标记文档已归档, 文档不存在时返回 gorm.ErrRecordNotFound
func (r *documentRepository) MarkArchived(id string, at time.Time) error {
	result := r.db.Model(&model.DocumentModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"archived":    true,
			"archived_at": at,
			"updated_at":  at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
