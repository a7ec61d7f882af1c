package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type categoryBody struct {
	Name string `form:"name" json:"name"`
}

func (s *server) listCategories(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	s.mount(c, ws.Categories.Fetch)
	c.JSON(http.StatusOK, ws.Categories.Snapshot())
}

func (s *server) addCategory(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	var b categoryBody
	if err := c.ShouldBind(&b); err != nil {
		badRequest(c, err)
		return
	}
	cat, err := ws.Categories.Add(c.Request.Context(), b.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cat)
}

// deleteCategory removes the first category with the given name. Records
// tagged with it keep the tag.
func (s *server) deleteCategory(c *gin.Context) {
	ws, ok := s.workspace(c)
	if !ok {
		return
	}
	if err := ws.Categories.Delete(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
