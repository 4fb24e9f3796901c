package api

import (
	"net/http"

	"clipstream/video-app/internal/progress"
	"clipstream/video-app/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	uploadService service.UploadService,
	deliveryService service.DeliveryService,
	tracker *progress.Tracker,
) {
	videoHandler := NewVideoHandler(uploadService, deliveryService)
	progressHandler := NewProgressHandler(tracker)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		videoGroup := apiV1.Group("/videos")
		{
			videoGroup.POST("", videoHandler.UploadVideo)
			videoGroup.GET("", videoHandler.ListMyVideos)
			videoGroup.GET("/:videoId", videoHandler.GetVideo)
			videoGroup.GET("/:videoId/thumbnail", videoHandler.GetThumbnail)
			videoGroup.GET("/:videoId/qualities", videoHandler.GetQualities)
			videoGroup.GET("/:videoId/manifest.mpd", videoHandler.GetManifest)
			videoGroup.GET("/:videoId/dash/:segment", videoHandler.GetSegment)
		}

		uploadGroup := apiV1.Group("/uploads")
		{
			uploadGroup.GET("/:uploadId/progress", progressHandler.GetProgress)
			uploadGroup.GET("/:uploadId/progress/stream", progressHandler.StreamProgress)
		}
	}
}

// abortWithError sends a standardized JSON error response.
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}
