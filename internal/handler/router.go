package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/drivehub-api/internal/middleware"
	"github.com/noah-isme/drivehub-api/internal/service"
)

// Handlers bundles everything the router needs.
type Handlers struct {
	Auth          *service.AuthService
	Folders       *FolderHandler
	Files         *FileHandler
	Shares        *ShareHandler
	PublicShares  *PublicShareHandler
	Trash         *TrashHandler
	Collaborators *CollaboratorHandler
	Dashboard     *DashboardHandler
}

// RegisterRoutes mounts the API surface under the given prefix. The public
// share routes sit outside the prefix so short links stay short.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	public := r.Group("/s")
	public.Use(middleware.OptionalJWT(h.Auth))
	{
		public.GET("/:token", h.PublicShares.Resolve)
		public.GET("/:token/browse", h.PublicShares.Browse)
		public.POST("/:token/download", h.PublicShares.Download)
	}

	api := r.Group(prefix)
	api.Use(middleware.JWT(h.Auth))
	{
		folders := api.Group("/folders")
		{
			folders.POST("", h.Folders.Create)
			folders.GET("", h.Folders.ListRoot)
			folders.GET("/:id", h.Folders.Get)
			folders.PATCH("/:id/rename", h.Folders.Rename)
			folders.PATCH("/:id/move", h.Folders.Move)
			folders.DELETE("/:id", h.Folders.Trash)
		}

		files := api.Group("/files")
		{
			files.POST("", h.Files.Upload)
			files.GET("/:id", h.Files.Get)
			files.PATCH("/:id", h.Files.Update)
			files.PATCH("/:id/move", h.Files.Move)
			files.GET("/:id/download", h.Files.Download)
			files.DELETE("/:id", h.Files.Trash)
		}

		shares := api.Group("/shares")
		{
			shares.POST("", h.Shares.Create)
			shares.GET("", h.Shares.List)
			shares.PATCH("/:id", h.Shares.Update)
			shares.DELETE("/:id", h.Shares.Delete)
		}

		collaborators := api.Group("/collaborators")
		{
			collaborators.POST("", h.Collaborators.Grant)
			collaborators.GET("", h.Collaborators.List)
			collaborators.DELETE("", h.Collaborators.Revoke)
		}

		trash := api.Group("/trash")
		{
			trash.GET("", h.Trash.List)
			trash.DELETE("", h.Trash.Empty)
			trash.POST("/files/:id/restore", h.Trash.RestoreFile)
			trash.POST("/folders/:id/restore", h.Trash.RestoreFolder)
			trash.DELETE("/files/:id", h.Trash.PurgeFile)
			trash.DELETE("/folders/:id", h.Trash.PurgeFolder)
		}

		dashboard := api.Group("/dashboard")
		{
			dashboard.GET("/stats", h.Dashboard.Stats)
			dashboard.GET("/overview", middleware.RequireAdmin(), h.Dashboard.Overview)
		}
	}
}
