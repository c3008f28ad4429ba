package repository

import (
	"poll_web/internal/models"
	"poll_web/internal/storage"
)

type TemplateRepository interface {
	Create(template *models.Template) error
	FindAll() ([]models.Template, error)
	Delete(id uint) error
}

type templateRepository struct {
	db *storage.PostgresDB
}

func NewTemplateRepository(db *storage.PostgresDB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) Create(template *models.Template) error {
	return r.db.Create(template).Error
}

func (r *templateRepository) FindAll() ([]models.Template, error) {
	var templates []models.Template
	err := r.db.Order("created_at DESC").Find(&templates).Error
	return templates, err
}

func (r *templateRepository) Delete(id uint) error {
	return r.db.Delete(&models.Template{}, id).Error
}
