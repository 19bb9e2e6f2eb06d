package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/huddleworks/huddle/internal/backup"
	"github.com/huddleworks/huddle/internal/guard"
	"github.com/huddleworks/huddle/internal/localstore"
	"github.com/huddleworks/huddle/internal/migration"
	"github.com/huddleworks/huddle/internal/store"
)

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.WithContext(c.Request.Context()).Exec("SELECT 1").Error; err != nil {
			abortError(c, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func handleListConversations(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.Query("owner")
		if owner == "" {
			abortError(c, http.StatusBadRequest, "owner query parameter is required")
			return
		}
		convs, err := store.List(db.WithContext(c.Request.Context()), owner)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": convs})
	}
}

func handleCreateConversation(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		OwnerID string `json:"ownerId"`
		Title   string `json:"title"`
		Mode    string `json:"mode"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		conv, err := store.Create(db.WithContext(c.Request.Context()), req.OwnerID, req.Title, req.Mode)
		switch {
		case errors.Is(err, store.ErrNotFound):
			abortError(c, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, store.ErrInvalidMode):
			abortError(c, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, conv)
	}
}

func handleListMessages(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := store.Messages(db.WithContext(c.Request.Context()), c.Param("id"))
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

func handleAppendMessage(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		msg, err := store.AppendMessage(db.WithContext(c.Request.Context()), c.Param("id"), req.Role, req.Content)
		switch {
		case errors.Is(err, store.ErrNotFound):
			abortError(c, http.StatusNotFound, err.Error())
			return
		case errors.Is(err, store.ErrInvalidRole):
			abortError(c, http.StatusBadRequest, err.Error())
			return
		case err != nil:
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func handleArchive(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := store.Archive(db.WithContext(c.Request.Context()), c.Param("id"))
		if errors.Is(err, store.ErrNotFound) {
			abortError(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"archived": true})
	}
}

// handleMigrate accepts a raw client-local blob and runs it through the
// recovery and migration pipeline. The blob is staged in an in-memory port
// so the coordinator sees it exactly as a client-local store would hold it.
// The client keeps its own completed flag; this endpoint is stateless.
func handleMigrate(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		UserID string `json:"userId"`
		Blob   string `json:"blob"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			abortError(c, http.StatusBadRequest, "userId is required")
			return
		}

		port := localstore.NewMemoryPort()
		if req.Blob != "" {
			if err := port.Set(localstore.KeyChatHistory, []byte(req.Blob)); err != nil {
				abortError(c, http.StatusInternalServerError, err.Error())
				return
			}
		}
		coord := migration.New(db, localstore.New(port))

		res, err := coord.Migrate(c.Request.Context(), req.UserID)
		if errors.Is(err, migration.ErrNoUsableData) {
			abortError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleExport records an immutable conversation-backup row holding the
// user's full conversation set, including archived conversations.
func handleExport(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		UserID string `json:"userId"`
	}
	type exportedConversation struct {
		Conversation interface{} `json:"conversation"`
		Messages     interface{} `json:"messages"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.UserID == "" {
			abortError(c, http.StatusBadRequest, "userId is required")
			return
		}

		gdb := db.WithContext(c.Request.Context())
		convs, err := store.ListAll(gdb, req.UserID)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}

		exported := make([]exportedConversation, 0, len(convs))
		for _, conv := range convs {
			msgs, err := store.Messages(gdb, conv.ID)
			if err != nil {
				abortError(c, http.StatusInternalServerError, err.Error())
				return
			}
			exported = append(exported, exportedConversation{Conversation: conv, Messages: msgs})
		}

		payload, err := json.Marshal(exported)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		b, err := store.RecordBackup(gdb, req.UserID, "client-export", string(payload))
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusCreated, gin.H{"backupId": b.ID, "conversations": len(exported)})
	}
}

func handleAdminBackup(db *gorm.DB, dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := backup.Full(db.WithContext(c.Request.Context()), dir)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"file": res.File, "counts": res.Counts})
	}
}

func handleSafeDelete(db *gorm.DB) gin.HandlerFunc {
	type request struct {
		PreserveData bool   `json:"preserveData"`
		Reason       string `json:"reason"`
		ActorID      string `json:"actorId"`
	}
	return func(c *gin.Context) {
		var req request
		if err := c.ShouldBindJSON(&req); err != nil {
			abortError(c, http.StatusBadRequest, "invalid request body")
			return
		}

		out, err := guard.SafeDelete(db.WithContext(c.Request.Context()), c.Param("id"), guard.Options{
			PreserveData: req.PreserveData,
			Reason:       req.Reason,
			ActorID:      req.ActorID,
		})
		if errors.Is(err, guard.ErrNotFound) {
			abortError(c, http.StatusNotFound, err.Error())
			return
		}
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		// A refusal is a successful policy decision, not a transport error.
		c.JSON(http.StatusOK, gin.H{
			"success":     out.Success,
			"softDeleted": out.SoftDeleted,
			"reason":      out.Reason,
		})
	}
}

func handleOrphans(db *gorm.DB) gin.HandlerFunc {
	type orphanSet struct {
		Child   string         `json:"child"`
		Parent  string         `json:"parent"`
		FK      string         `json:"fk"`
		Orphans []guard.Orphan `json:"orphans"`
	}
	// Audit targets: every parent/child edge in the schema.
	targets := []orphanSet{
		{Child: "team_members", Parent: "users", FK: "user_id"},
		{Child: "conversations", Parent: "users", FK: "owner_id"},
		{Child: "messages", Parent: "conversations", FK: "conversation_id"},
		{Child: "conversation_backups", Parent: "users", FK: "user_id"},
	}
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		sets := make([]orphanSet, 0, len(targets))
		for _, tgt := range targets {
			orphans, err := guard.FindOrphans(gdb, tgt.Child, tgt.Parent, tgt.FK)
			if err != nil {
				abortError(c, http.StatusInternalServerError, err.Error())
				return
			}
			tgt.Orphans = orphans
			sets = append(sets, tgt)
		}
		estimate, err := guard.EstimateDeletedOwners(gdb)
		if err != nil {
			abortError(c, http.StatusInternalServerError, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"sets": sets,
			// Lower bound: owners with no dependent rows leave no orphans.
			"deletedOwnersAtLeast": estimate,
		})
	}
}
