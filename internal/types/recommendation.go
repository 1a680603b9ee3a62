package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Recommendation is the durable per-user top-K list. The row is replaced
// wholesale on every recomputation; ProductIDs order is the ranking.
type Recommendation struct {
	ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex;column:user_id" json:"user_id"`
	ProductIDs datatypes.JSON `gorm:"type:jsonb;not null;default:'[]';column:product_ids" json:"product_ids"`
	CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt  time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Recommendation) TableName() string {
	return "recommendations"
}

func (r *Recommendation) ProductIDList() []uuid.UUID {
	var ids []uuid.UUID
	if len(r.ProductIDs) == 0 {
		return ids
	}
	if err := json.Unmarshal(r.ProductIDs, &ids); err != nil {
		return nil
	}
	return ids
}

func (r *Recommendation) SetProductIDs(ids []uuid.UUID) error {
	if ids == nil {
		ids = []uuid.UUID{}
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	r.ProductIDs = datatypes.JSON(raw)
	return nil
}
