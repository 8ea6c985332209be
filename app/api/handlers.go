package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/canvas-comb/app/database"
	"github.com/lysyi3m/canvas-comb/app/feed"
	"github.com/lysyi3m/canvas-comb/app/sources"
	"github.com/lysyi3m/canvas-comb/app/tasks"
)

const defaultFeedSize = 50

func NewHandler(configCache *sources.ConfigCache, contentRepo database.ContentRepository,
	featureRepo database.FeatureRepository, scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		contentRepo: contentRepo,
		featureRepo: featureRepo,
		generator:   feed.NewGenerator(),
		configCache: configCache,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	items, err := h.contentRepo.GetRecentItems(defaultFeedSize)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_items", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(items)
	if err != nil {
		slog.Error("RSS generation error", "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Items", strconv.Itoa(len(items)))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if itemCount, err := h.contentRepo.GetItemCount(); err == nil {
		health["items"] = itemCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.contentRepo.GetStats()
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := map[string]interface{}{
		"items":         stats.ItemCount,
		"features":      stats.FeatureCount,
		"options":       stats.OptionCount,
		"announcements": stats.AnnouncementCount,
	}
	if stats.LastFeedRun != nil {
		response["last_run_at"] = stats.LastFeedRun
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) APIListItems(c *gin.Context) {
	limit := defaultFeedSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = parsed
	}

	items, err := h.contentRepo.GetRecentItems(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_recent_items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		payload = append(payload, itemInfo(item))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"items": payload,
		"total": len(payload),
	})
}

func (h *Handler) APIGetItem(c *gin.Context) {
	sourceID := c.Param("source_id")

	item, err := h.contentRepo.GetItemBySourceID(sourceID)
	if err != nil {
		slog.Error("Database error", "operation", "get_item", "source_id", sourceID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Item not found"})
		return
	}

	details := itemInfo(*item)
	details["content"] = item.Content

	if comments, err := h.contentRepo.GetComments(item.ID); err == nil && len(comments) > 0 {
		commentInfos := make([]map[string]interface{}, 0, len(comments))
		for _, comment := range comments {
			commentInfos = append(commentInfos, map[string]interface{}{
				"author":    comment.Author,
				"body":      comment.Body,
				"posted_at": comment.PostedAt,
			})
		}
		details["comments"] = commentInfos
	}

	if refs, err := h.featureRepo.GetRefsByContent(item.ID); err == nil && len(refs) > 0 {
		refInfos := make([]map[string]interface{}, 0, len(refs))
		for _, ref := range refs {
			refInfos = append(refInfos, map[string]interface{}{
				"feature_id":   ref.FeatureID,
				"option_id":    ref.OptionID,
				"mention_type": ref.MentionType,
			})
		}
		details["feature_refs"] = refInfos
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIListFeatures(c *gin.Context) {
	features, err := h.featureRepo.GetFeatures()
	if err != nil {
		slog.Error("Database error", "operation", "get_features", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(features))
	for _, feature := range features {
		payload = append(payload, featureInfo(feature))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"features": payload,
		"total":    len(payload),
	})
}

func (h *Handler) APIGetFeature(c *gin.Context) {
	featureID := c.Param("id")

	feature, err := h.featureRepo.GetFeature(featureID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feature", "feature", featureID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if feature == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feature not found"})
		return
	}

	details := featureInfo(*feature)

	if options, err := h.featureRepo.GetFeatureOptions(featureID); err == nil {
		optionInfos := make([]map[string]interface{}, 0, len(options))
		for _, option := range options {
			optionInfos = append(optionInfos, optionInfo(option))
		}
		details["options"] = optionInfos
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIGetFeatureOptions(c *gin.Context) {
	featureID := c.Param("id")

	feature, err := h.featureRepo.GetFeature(featureID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feature", "feature", featureID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if feature == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feature not found"})
		return
	}

	options, err := h.featureRepo.GetFeatureOptions(featureID)
	if err != nil {
		slog.Error("Database error", "operation", "get_feature_options", "feature", featureID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(options))
	for _, option := range options {
		payload = append(payload, optionInfo(option))
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"feature_id": featureID,
		"options":    payload,
		"total":      len(payload),
	})
}

func (h *Handler) APIGetOptionAnnouncements(c *gin.Context) {
	optionID := c.Param("id")

	option, err := h.featureRepo.GetOption(optionID)
	if err != nil {
		slog.Error("Database error", "operation", "get_option", "option", optionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if option == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Option not found"})
		return
	}

	announcements, err := h.featureRepo.GetAnnouncementsByOption(optionID)
	if err != nil {
		slog.Error("Database error", "operation", "get_announcements", "option", optionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	payload := make([]map[string]interface{}, 0, len(announcements))
	for _, a := range announcements {
		info := map[string]interface{}{
			"id":         a.ID,
			"content_id": a.ContentID,
			"feature_id": a.FeatureID,
			"anchor_id":  a.AnchorID,
			"created_at": a.CreatedAt,
		}
		if a.EnableLocation != nil {
			info["enable_location"] = *a.EnableLocation
		}
		if a.Permissions != nil {
			info["permissions"] = *a.Permissions
		}
		if a.AffectedAreas != nil {
			info["affected_areas"] = *a.AffectedAreas
		}
		if a.BetaDate != nil {
			info["beta_date"] = a.BetaDate
		}
		if a.ProductionDate != nil {
			info["production_date"] = a.ProductionDate
		}
		payload = append(payload, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"option_id":     optionID,
		"announcements": payload,
		"total":         len(payload),
	})
}

func (h *Handler) APITriggerAggregation(c *gin.Context) {
	queued, err := h.scheduler.EnqueueAggregation()
	if err != nil {
		slog.Error("Failed to trigger aggregation", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to trigger aggregation",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Aggregation triggered",
		"sources": queued,
	})
}

func itemInfo(item database.Item) map[string]interface{} {
	info := map[string]interface{}{
		"source_id":        item.SourceID,
		"source":           item.Source,
		"title":            item.Title,
		"url":              item.URL,
		"content_type":     item.ContentType,
		"summary":          item.Summary,
		"sentiment":        item.Sentiment,
		"primary_topic":    item.PrimaryTopic,
		"topics":           item.Topics,
		"engagement_score": item.EngagementScore,
		"comment_count":    item.CommentCount,
		"created_at":       item.CreatedAt,
	}
	if item.PublishedDate != nil {
		info["published_date"] = item.PublishedDate
	}
	if item.LastCommentAt != nil {
		info["last_comment_at"] = item.LastCommentAt
	}
	return info
}

func featureInfo(feature database.Feature) map[string]interface{} {
	info := map[string]interface{}{
		"feature_id": feature.FeatureID,
		"name":       feature.Name,
		"status":     feature.Status,
	}
	if feature.Description != nil {
		info["description"] = *feature.Description
	}
	if feature.LLMGeneratedAt != nil {
		info["llm_generated_at"] = feature.LLMGeneratedAt
	}
	return info
}

func optionInfo(option database.FeatureOption) map[string]interface{} {
	info := map[string]interface{}{
		"option_id":  option.OptionID,
		"feature_id": option.FeatureID,
		"name":       option.Name,
		"status":     option.Status,
		"first_seen": option.FirstSeen,
		"last_seen":  option.LastSeen,
	}
	if option.CanonicalName != "" {
		info["canonical_name"] = option.CanonicalName
	}
	if option.ConfigLevel != nil {
		info["config_level"] = *option.ConfigLevel
	}
	if option.DefaultState != nil {
		info["default_state"] = *option.DefaultState
	}
	if option.BetaDate != nil {
		info["beta_date"] = option.BetaDate
	}
	if option.ProductionDate != nil {
		info["production_date"] = option.ProductionDate
	}
	if option.DeprecationDate != nil {
		info["deprecation_date"] = option.DeprecationDate
	}
	if option.MetaSummary != nil {
		info["meta_summary"] = *option.MetaSummary
	}
	return info
}
