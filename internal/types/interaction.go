package types

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is one view/click event. Append only: repeated views of the
// same product create repeated rows.
type Interaction struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index:idx_interactions_user;column:user_id" json:"user_id"`
	ProductID uuid.UUID `gorm:"type:uuid;not null;index:idx_interactions_product;column:product_id" json:"product_id"`
	Product   *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt time.Time `gorm:"not null;default:now();index:idx_interactions_created_at" json:"created_at"`
}

func (Interaction) TableName() string {
	return "interactions"
}
