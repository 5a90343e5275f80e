package services

import (
	"fmt"
	"strings"

	"github.com/kendall-kelly/triloka-construction-api/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemInput creates or replaces an inventory item
type ItemInput struct {
	ItemCode          string
	Name              string
	Description       string
	Unit              string
	StockQuantity     int
	MinStockThreshold int
	UnitPrice         decimal.Decimal
	IsActive          bool
}

// ItemFilter narrows inventory listings
type ItemFilter struct {
	ActiveOnly bool
	Search     string
}

// InventoryService manages stock items and low-stock alerts
type InventoryService struct {
	db *gorm.DB
}

// NewInventoryService creates an inventory service
func NewInventoryService(db *gorm.DB) *InventoryService {
	return &InventoryService{db: db}
}

func validateItemInput(in ItemInput) map[string]string {
	fields := map[string]string{}
	if strings.TrimSpace(in.ItemCode) == "" {
		fields["item_code"] = "is required"
	}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "is required"
	}
	if strings.TrimSpace(in.Unit) == "" {
		fields["unit"] = "is required"
	}
	if in.StockQuantity < 0 {
		fields["stock_quantity"] = "must not be negative"
	}
	if in.MinStockThreshold < 0 {
		fields["min_stock_threshold"] = "must not be negative"
	}
	if in.UnitPrice.IsNegative() {
		fields["unit_price"] = "must not be negative"
	}
	return fields
}

func (s *InventoryService) codeTaken(tx *gorm.DB, code string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&models.Item{}).Where("item_code = ? AND id <> ?", code, exceptID).Count(&count).Error
	return count > 0, err
}

func notifyLowStock(tx *gorm.DB, item *models.Item) error {
	return NewNotificationService(tx).NotifyAdmins(models.NotificationStockAlert, "Low stock",
		fmt.Sprintf("%s (%s) is down to %d %s, threshold %d", item.Name, item.ItemCode, item.StockQuantity, item.Unit, item.MinStockThreshold),
		models.Ref(models.EntityItem, item.ID))
}

// Create adds an item and alerts admins when it starts out low
func (s *InventoryService) Create(actor Actor, in ItemInput) (*models.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if fields := validateItemInput(in); len(fields) > 0 {
		return nil, Validation(fields)
	}

	item := models.Item{
		ItemCode:          strings.TrimSpace(in.ItemCode),
		Name:              in.Name,
		Description:       in.Description,
		Unit:              in.Unit,
		StockQuantity:     in.StockQuantity,
		MinStockThreshold: in.MinStockThreshold,
		UnitPrice:         in.UnitPrice,
		IsActive:          in.IsActive,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		taken, err := s.codeTaken(tx, item.ItemCode, 0)
		if err != nil {
			return err
		}
		if taken {
			return Conflict("ITEM_CODE_EXISTS", "An item with this code already exists")
		}
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if item.IsLowStock() {
			if err := notifyLowStock(tx, &item); err != nil {
				return err
			}
		}
		return NewActivityService(tx).Log(actor, "create_item", "Created item "+item.ItemCode,
			models.Ref(models.EntityItem, item.ID), nil)
	})
	if err != nil {
		return nil, wrap(err, "Failed to create item")
	}
	return &item, nil
}

// Update replaces an item and alerts admins when it crosses into low stock
func (s *InventoryService) Update(actor Actor, id uint, in ItemInput) (*models.Item, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if fields := validateItemInput(in); len(fields) > 0 {
		return nil, Validation(fields)
	}

	var item models.Item
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&item, id).Error; err != nil {
			return notFoundOr(err, "ITEM_NOT_FOUND", "Item not found")
		}
		taken, err := s.codeTaken(tx, strings.TrimSpace(in.ItemCode), item.ID)
		if err != nil {
			return err
		}
		if taken {
			return Conflict("ITEM_CODE_EXISTS", "An item with this code already exists")
		}

		wasLow := item.IsLowStock()
		item.ItemCode = strings.TrimSpace(in.ItemCode)
		item.Name = in.Name
		item.Description = in.Description
		item.Unit = in.Unit
		item.StockQuantity = in.StockQuantity
		item.MinStockThreshold = in.MinStockThreshold
		item.UnitPrice = in.UnitPrice
		item.IsActive = in.IsActive
		if err := tx.Save(&item).Error; err != nil {
			return err
		}

		if !wasLow && item.IsLowStock() {
			if err := notifyLowStock(tx, &item); err != nil {
				return err
			}
		}
		return NewActivityService(tx).Log(actor, "update_item", "Updated item "+item.ItemCode,
			models.Ref(models.EntityItem, item.ID), map[string]interface{}{"stock_quantity": item.StockQuantity})
	})
	if err != nil {
		return nil, wrap(err, "Failed to update item")
	}
	return &item, nil
}

// Delete removes an item that no invoice line references
func (s *InventoryService) Delete(actor Actor, id uint) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.First(&item, id).Error; err != nil {
			return notFoundOr(err, "ITEM_NOT_FOUND", "Item not found")
		}

		var used int64
		if err := tx.Model(&models.InvoiceItem{}).Where("item_id = ?", item.ID).Count(&used).Error; err != nil {
			return err
		}
		if used > 0 {
			return RuleViolation("ITEM_IN_USE", "Items used on invoices cannot be deleted; deactivate them instead")
		}

		if err := tx.Delete(&item).Error; err != nil {
			return err
		}
		return NewActivityService(tx).Log(actor, "delete_item", "Deleted item "+item.ItemCode,
			models.Ref(models.EntityItem, item.ID), nil)
	})
	return wrap(err, "Failed to delete item")
}

// List returns items ordered by name
func (s *InventoryService) List(filter ItemFilter) ([]models.Item, error) {
	query := s.db.Model(&models.Item{})
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("item_code LIKE ? OR name LIKE ?", like, like)
	}

	var items []models.Item
	if err := query.Order("name ASC, id ASC").Find(&items).Error; err != nil {
		return nil, Internal("Failed to list items", err)
	}
	return items, nil
}

// Get returns one item
func (s *InventoryService) Get(id uint) (*models.Item, error) {
	var item models.Item
	if err := s.db.First(&item, id).Error; err != nil {
		return nil, notFoundOr(err, "ITEM_NOT_FOUND", "Item not found")
	}
	return &item, nil
}

// LowStock returns active items at or below their threshold, scarcest first
func (s *InventoryService) LowStock() ([]models.Item, error) {
	var items []models.Item
	if err := s.db.Where("is_active = ? AND stock_quantity <= min_stock_threshold", true).
		Order("stock_quantity ASC, name ASC").Find(&items).Error; err != nil {
		return nil, Internal("Failed to list low stock items", err)
	}
	return items, nil
}
