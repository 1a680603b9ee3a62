package repos

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/savoro/savoro-backend/internal/logger"
	"github.com/savoro/savoro-backend/internal/types"
)

// testDB opens the database named by TEST_POSTGRES_DSN, migrates the
// schema and hands the test a transaction that is rolled back on
// cleanup, so tests never see each other's rows.
func testDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set TEST_POSTGRES_DSN to run repo tests against Postgres")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		t.Fatalf("create uuid extension: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Category{},
		&types.Product{},
		&types.User{},
		&types.Interaction{},
		&types.Rating{},
		&types.Recommendation{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	tx := db.Begin()
	if tx.Error != nil {
		t.Fatalf("begin tx: %v", tx.Error)
	}
	t.Cleanup(func() {
		tx.Rollback()
	})

	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(func() {
		log.Sync()
	})

	return tx, log
}

func seedUser(t *testing.T, tx *gorm.DB, email string) *types.User {
	t.Helper()
	user := &types.User{ID: uuid.New(), Email: email, FirstName: "Test", LastName: "User", IsActive: true}
	if err := tx.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

func seedCategory(t *testing.T, tx *gorm.DB, name string) *types.Category {
	t.Helper()
	cat := &types.Category{ID: uuid.New(), Name: name, SlugName: name, IsActive: true}
	if err := tx.Create(cat).Error; err != nil {
		t.Fatalf("seed category %s: %v", name, err)
	}
	return cat
}

func seedProduct(t *testing.T, tx *gorm.DB, name string, categoryID *uuid.UUID) *types.Product {
	t.Helper()
	product := &types.Product{
		ID:           uuid.New(),
		RestaurantID: uuid.New(),
		CategoryID:   categoryID,
		Name:         name,
		Slug:         name,
		Price:        9.50,
		IsActive:     true,
		Available:    true,
	}
	if err := tx.Create(product).Error; err != nil {
		t.Fatalf("seed product %s: %v", name, err)
	}
	return product
}

func seedInteraction(t *testing.T, tx *gorm.DB, userID, productID uuid.UUID, at time.Time) {
	t.Helper()
	interaction := &types.Interaction{ID: uuid.New(), UserID: userID, ProductID: productID, CreatedAt: at}
	if err := tx.Create(interaction).Error; err != nil {
		t.Fatalf("seed interaction: %v", err)
	}
}

func seedRating(t *testing.T, tx *gorm.DB, userID, productID uuid.UUID, rating int) {
	t.Helper()
	row := &types.Rating{ID: uuid.New(), UserID: userID, ProductID: productID, Rating: rating}
	if err := tx.Create(row).Error; err != nil {
		t.Fatalf("seed rating: %v", err)
	}
}
