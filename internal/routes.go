package internal

import (
	"net/http"
	"rsd/internal/controllers"
	"rsd/internal/providers"
	"rsd/internal/structures"
)

func InitRoutes(apiController *controllers.ApiController, conf *structures.Config) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/events", http.HandlerFunc(apiController.ReceiveEvent))

	routers.Post("/reactions", http.HandlerFunc(apiController.PostReaction))
	routers.Delete("/reactions", http.HandlerFunc(apiController.DeleteReaction))
	routers.Post("/views", http.HandlerFunc(apiController.PostView))
	routers.Get("/engagement", http.HandlerFunc(apiController.GetEngagement))

	routers.Post("/activity", http.HandlerFunc(apiController.PostActivity))
	routers.Get("/presence", http.HandlerFunc(apiController.GetPresence))
	routers.Get("/viewers", http.HandlerFunc(apiController.GetViewers))

	routers.Post("/feed", http.HandlerFunc(apiController.PublishFeedUpdate))
	routers.Get("/feed", http.HandlerFunc(apiController.GetFeed))
	routers.Post("/feed/read", http.HandlerFunc(apiController.MarkFeedRead))

	routers.Post("/notifications", http.HandlerFunc(apiController.SendNotification))
	routers.Get("/notifications", http.HandlerFunc(apiController.GetNotifications))
	routers.Post("/notifications/read", http.HandlerFunc(apiController.MarkNotificationRead))
	routers.Post("/notifications/read-all", http.HandlerFunc(apiController.MarkAllNotificationsRead))
	routers.Delete("/notifications", http.HandlerFunc(apiController.DeleteNotification))

	routers.Post("/sync/mutations", http.HandlerFunc(apiController.SubmitMutation))
	routers.Post("/sync/resolve", http.HandlerFunc(apiController.ResolveConflict))
	routers.Get("/sync/status", http.HandlerFunc(apiController.GetSyncStatus))
	routers.Post("/sync/now", http.HandlerFunc(apiController.SyncNow))

	return routers
}
