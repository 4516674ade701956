package api

import (
	"net/http"

	"asset-service/internal/models"
	"asset-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func pathID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid " + entity + " ID",
			"details": err.Error(),
		})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) listAssets(c *gin.Context) {
	assets, err := h.assets.List(c.Request.Context(), models.AssetFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Sort:     c.Query("sort"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) createAsset(c *gin.Context) {
	var in service.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}

	asset, err := h.assets.Create(c.Request.Context(), &in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func (h *Handler) getAsset(c *gin.Context) {
	id, ok := pathID(c, "asset")
	if !ok {
		return
	}

	asset, err := h.assets.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *Handler) updateAsset(c *gin.Context) {
	id, ok := pathID(c, "asset")
	if !ok {
		return
	}

	var in service.AssetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badBody(c, err)
		return
	}

	asset, err := h.assets.Update(c.Request.Context(), id, &in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (h *Handler) deleteAsset(c *gin.Context) {
	id, ok := pathID(c, "asset")
	if !ok {
		return
	}

	if err := h.assets.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
