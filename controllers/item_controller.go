package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/middleware"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/shopspring/decimal"
)

// ItemRequest represents the request body for creating or replacing an inventory item
type ItemRequest struct {
	ItemCode          string          `json:"item_code" binding:"required,max=50"`
	Name              string          `json:"name" binding:"required,max=255"`
	Description       string          `json:"description"`
	Unit              string          `json:"unit" binding:"required,max=50"`
	StockQuantity     int             `json:"stock_quantity" binding:"gte=0"`
	MinStockThreshold int             `json:"min_stock_threshold" binding:"gte=0"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	IsActive          *bool           `json:"is_active"`
}

func (r ItemRequest) input() services.ItemInput {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return services.ItemInput{
		ItemCode:          r.ItemCode,
		Name:              r.Name,
		Description:       r.Description,
		Unit:              r.Unit,
		StockQuantity:     r.StockQuantity,
		MinStockThreshold: r.MinStockThreshold,
		UnitPrice:         r.UnitPrice,
		IsActive:          active,
	}
}

func inventoryService() *services.InventoryService {
	return services.NewInventoryService(config.GetDB())
}

// ListItems handles GET /api/v1/items - clients only see active items
func ListItems(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	activeOnly := !actor.IsAdmin()
	if v := queryBool(c, "active"); v != nil && actor.IsAdmin() {
		activeOnly = *v
	}

	items, err := inventoryService().List(services.ItemFilter{
		ActiveOnly: activeOnly,
		Search:     c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

// GetItem handles GET /api/v1/items/:id
func GetItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	item, err := inventoryService().Get(id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !item.IsActive && !middleware.ActorFrom(c).IsAdmin() {
		respondErrorCode(c, http.StatusNotFound, "ITEM_NOT_FOUND", "Item not found", nil)
		return
	}
	respondOK(c, http.StatusOK, item)
}

// ListLowStockItems handles GET /api/v1/admin/items/low-stock
func ListLowStockItems(c *gin.Context) {
	items, err := inventoryService().LowStock()
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, items)
}

// CreateItem handles POST /api/v1/admin/items
func CreateItem(c *gin.Context) {
	var req ItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := inventoryService().Create(middleware.ActorFrom(c), req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/v1/admin/items/:id
func UpdateItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ItemRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := inventoryService().Update(middleware.ActorFrom(c), id, req.input())
	if err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondOK(c, http.StatusOK, item)
}

// DeleteItem handles DELETE /api/v1/admin/items/:id
func DeleteItem(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := inventoryService().Delete(middleware.ActorFrom(c), id); err != nil {
		respondError(c, err)
		return
	}

	invalidateDashboard(c)
	respondMessage(c, "Item deleted successfully", nil)
}
