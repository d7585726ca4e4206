package repository

import (
	"context"

	"github.com/Eursukkul/studio-ledger/internal/models"
	"gorm.io/gorm"
)

type DisciplineRepository interface {
	Create(ctx context.Context, d *models.Discipline) error
	FindByID(ctx context.Context, id uint) (*models.Discipline, error)
	List(ctx context.Context, activeOnly bool) ([]models.Discipline, error)
	Update(ctx context.Context, d *models.Discipline) error
	Delete(ctx context.Context, id uint) error
}

type InstructorRepository interface {
	Create(ctx context.Context, i *models.Instructor) error
	FindByID(ctx context.Context, id uint) (*models.Instructor, error)
	List(ctx context.Context, activeOnly bool) ([]models.Instructor, error)
}

type PackageRepository interface {
	Create(ctx context.Context, p *models.Package) error
	FindByID(ctx context.Context, id uint) (*models.Package, error)
	FindBySlug(ctx context.Context, slug string) (*models.Package, error)
	ListActive(ctx context.Context) ([]models.Package, error)
}

type disciplineRepository struct {
	db *gorm.DB
}

func NewDisciplineRepository(db *gorm.DB) DisciplineRepository {
	return &disciplineRepository{db: db}
}

func (r *disciplineRepository) Create(ctx context.Context, d *models.Discipline) error {
	return r.db.WithContext(ctx).Create(d).Error
}

func (r *disciplineRepository) FindByID(ctx context.Context, id uint) (*models.Discipline, error) {
	var d models.Discipline
	if err := r.db.WithContext(ctx).First(&d, id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *disciplineRepository) List(ctx context.Context, activeOnly bool) ([]models.Discipline, error) {
	var list []models.Discipline
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("display_order ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// Update writes the cosmetic fields only; slug and identity stay fixed.
func (r *disciplineRepository) Update(ctx context.Context, d *models.Discipline) error {
	return r.db.WithContext(ctx).
		Model(&models.Discipline{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"name":          d.Name,
			"description":   d.Description,
			"benefits":      d.Benefits,
			"display_order": d.Order,
			"is_active":     d.IsActive,
		}).Error
}

func (r *disciplineRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Discipline{}, id).Error
}

type instructorRepository struct {
	db *gorm.DB
}

func NewInstructorRepository(db *gorm.DB) InstructorRepository {
	return &instructorRepository{db: db}
}

func (r *instructorRepository) Create(ctx context.Context, i *models.Instructor) error {
	return r.db.WithContext(ctx).Create(i).Error
}

func (r *instructorRepository) FindByID(ctx context.Context, id uint) (*models.Instructor, error) {
	var i models.Instructor
	if err := r.db.WithContext(ctx).First(&i, id).Error; err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *instructorRepository) List(ctx context.Context, activeOnly bool) ([]models.Instructor, error) {
	var list []models.Instructor
	q := r.db.WithContext(ctx)
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Order("name ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

type packageRepository struct {
	db *gorm.DB
}

func NewPackageRepository(db *gorm.DB) PackageRepository {
	return &packageRepository{db: db}
}

func (r *packageRepository) Create(ctx context.Context, p *models.Package) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *packageRepository) FindByID(ctx context.Context, id uint) (*models.Package, error) {
	var p models.Package
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepository) FindBySlug(ctx context.Context, slug string) (*models.Package, error) {
	var p models.Package
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepository) ListActive(ctx context.Context) ([]models.Package, error) {
	var list []models.Package
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("is_featured DESC, price ASC, id ASC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
