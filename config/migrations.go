package config

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kendall-kelly/triloka-construction-api/models"
	"gorm.io/gorm"
)

// RunMigrations applies every pending schema migration in order
func RunMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "20250601_create_users",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.User{}, &models.AccessToken{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.AccessToken{}, &models.User{})
			},
		},
		{
			ID: "20250601_create_project_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.ProjectRequest{}, &models.RequestDocument{},
					&models.Quotation{}, &models.QuotationItem{}, &models.Negotiation{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Negotiation{}, &models.QuotationItem{},
					&models.Quotation{}, &models.RequestDocument{}, &models.ProjectRequest{})
			},
		},
		{
			ID: "20250601_create_billing_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Item{}, &models.Invoice{}, &models.InvoiceItem{}, &models.Payment{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.Payment{}, &models.InvoiceItem{}, &models.Invoice{}, &models.Item{})
			},
		},
		{
			ID: "20250601_create_notification_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&models.Notification{}, &models.ActivityLog{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&models.ActivityLog{}, &models.Notification{})
			},
		},
	})

	return m.Migrate()
}
