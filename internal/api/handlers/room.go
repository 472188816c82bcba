package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collabboard/internal/models"
	"collabboard/internal/repository"
	"collabboard/internal/service"
)

// 公開房間列表單次回傳的上限
const publicRoomsLimit = 10

// RoomHandler 處理房間的 REST 請求
type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{roomService: roomService}
}

// CreateRoom 處理創建新房間的請求
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var input struct {
		Name        string             `json:"name" binding:"required"`
		AccessLevel models.AccessLevel `json:"accessLevel"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Room name is required",
		})
		return
	}

	if input.AccessLevel != "" &&
		input.AccessLevel != models.AccessLevelPublic &&
		input.AccessLevel != models.AccessLevelPrivate {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid access level",
		})
		return
	}

	room, err := h.roomService.CreateRoom(input.Name, input.AccessLevel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to create room",
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"roomId":  room.ID,
		"message": "Room created successfully",
	})
}

// GetRoom 處理獲取單一房間訊息的請求
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("roomId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid room ID",
		})
		return
	}

	room, err := h.roomService.GetRoom(uint(roomID))
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Room not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to fetch room",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"room": gin.H{
			"id":          room.ID,
			"name":        room.Name,
			"accessLevel": room.AccessLevel,
			"users":       room.Members,
			"createdAt":   room.CreatedAt,
		},
	})
}

// UpdateRoom 處理修改房間存取等級的請求
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("roomId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid room ID",
		})
		return
	}

	var input struct {
		AccessLevel models.AccessLevel `json:"accessLevel"`
	}
	if err := c.ShouldBindJSON(&input); err != nil ||
		(input.AccessLevel != models.AccessLevelPublic && input.AccessLevel != models.AccessLevelPrivate) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid access level",
		})
		return
	}

	room, err := h.roomService.UpdateAccessLevel(uint(roomID), input.AccessLevel)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Room not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to update room",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"room": gin.H{
			"id":          room.ID,
			"name":        room.Name,
			"accessLevel": room.AccessLevel,
		},
		"message": "Room updated successfully",
	})
}

// DeleteRoom 處理刪除房間的請求
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID, err := strconv.ParseUint(c.Param("roomId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid room ID",
		})
		return
	}

	if err := h.roomService.DeleteRoom(uint(roomID)); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Room not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to delete room",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Room deleted successfully",
	})
}

// ListPublicRooms 處理獲取公開房間列表的請求，最新建立的在前
func (h *RoomHandler) ListPublicRooms(c *gin.Context) {
	rooms, err := h.roomService.ListPublicRooms(publicRoomsLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to fetch public rooms",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rooms":   rooms,
	})
}
