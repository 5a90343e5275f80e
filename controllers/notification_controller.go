package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/config"
	"github.com/kendall-kelly/triloka-construction-api/services"
)

func notificationService() *services.NotificationService {
	return services.NewNotificationService(config.GetDB())
}

// ListNotifications handles GET /api/v1/notifications?unread=true&type=...&limit=...
func ListNotifications(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	unreadOnly := false
	if v := queryBool(c, "unread"); v != nil {
		unreadOnly = *v
	}

	notifications, unread, err := notificationService().List(user, services.NotificationFilter{
		UnreadOnly: unreadOnly,
		Type:       c.Query("type"),
		Limit:      int(queryUint(c, "limit")),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
	})
}

// GetNotification handles GET /api/v1/notifications/:id
func GetNotification(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	n, err := notificationService().Get(user, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, n)
}

// MarkNotificationRead handles PUT /api/v1/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	n, err := notificationService().MarkRead(user, id)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, n)
}

// MarkAllNotificationsRead handles PUT /api/v1/notifications/read-all
func MarkAllNotificationsRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	updated, err := notificationService().MarkAllRead(user)
	if err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "All notifications marked as read", gin.H{"updated": updated})
}

// DeleteNotification handles DELETE /api/v1/notifications/:id
func DeleteNotification(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := notificationService().Delete(user, id); err != nil {
		respondError(c, err)
		return
	}
	respondMessage(c, "Notification deleted successfully", nil)
}
