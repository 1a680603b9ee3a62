package types

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name      string    `gorm:"not null;column:name" json:"name"`
	SlugName  string    `gorm:"uniqueIndex;not null;column:slug_name" json:"slug_name"`
	IsActive  bool      `gorm:"not null;default:true;column:is_active" json:"is_active"`
	SortOrder int       `gorm:"not null;default:0;column:sort_order" json:"sort_order"`
	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Category) TableName() string {
	return "categories"
}

type Product struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RestaurantID uuid.UUID  `gorm:"type:uuid;index;column:restaurant_id" json:"restaurant_id"`
	CategoryID   *uuid.UUID `gorm:"type:uuid;index;column:category_id" json:"category_id,omitempty"`
	Category     *Category  `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Name         string     `gorm:"not null;column:name" json:"name"`
	Slug         string     `gorm:"index;column:slug" json:"slug"`
	Description  string     `gorm:"column:description" json:"description"`
	Price        float64    `gorm:"type:numeric(10,2);not null;column:price" json:"price"`
	IsActive     bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	Available    bool       `gorm:"not null;default:true;column:available" json:"available"`
	CreatedAt    time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt    *time.Time `gorm:"index;column:deleted_at" json:"deleted_at,omitempty"`
}

func (Product) TableName() string {
	return "products"
}
