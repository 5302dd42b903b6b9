package worker

import (
	"github.com/vetlink/consultation-service/internal/service"
)

// StartNotificationWorker registers the advisory notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
