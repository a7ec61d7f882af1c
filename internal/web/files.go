package web

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"focusflow/internal/storage"
)

// serveFile streams a locally stored blob. Keys are prefixed with the
// owner id, so callers only ever see their own files.
func (s *server) serveFile(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	owner := identity(c).UserID()
	if !ownedKey(key, owner) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}

	rc, err := s.Blobs.Open(c.Request.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "file not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "file unavailable"})
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, -1, contentType, rc, nil)
}

// ownedKey accepts keys under owner/ whose segments are all plain names.
// Dots inside a name ("report..v2.txt") are fine.
func ownedKey(key, owner string) bool {
	if owner == "" || !strings.HasPrefix(key, owner+"/") {
		return false
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}
