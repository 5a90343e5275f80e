package controllers

import (
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/triloka-construction-api/services"
	"github.com/kendall-kelly/triloka-construction-api/utils"
)

var servedFolders = []string{services.FolderPaymentProofs, services.FolderRequestDocuments}

// ServeFile handles GET /api/v1/files/*key - streams a stored upload
func ServeFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	// Security: Prevent directory traversal attacks
	if key == "" || strings.Contains(key, "..") || strings.Contains(key, "\\") || path.Clean(key) != key {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_FILENAME",
				"message": "Invalid filename",
			},
		})
		return
	}

	folder, _, found := strings.Cut(key, "/")
	allowed := false
	for _, f := range servedFolders {
		if found && folder == f {
			allowed = true
			break
		}
	}
	if !allowed {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "File not found",
			},
		})
		return
	}

	reader, err := services.GetFileStorage().Open(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FILE_NOT_FOUND",
				"message": "File not found",
			},
		})
		return
	}
	defer reader.Close()

	c.Header("Content-Type", utils.ContentType(key))
	c.Header("Cache-Control", "private, max-age=86400")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, reader); err != nil {
		log.Printf("Failed to stream file %s: %v", key, err)
	}
}
