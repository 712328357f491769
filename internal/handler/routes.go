package handler

import "github.com/gin-gonic/gin"

func RegisterRoutes(api *gin.RouterGroup, widget *WidgetHandler, creds *CredentialHandler, settings *SettingsHandler) {
	w := api.Group("/widget")
	{
		w.POST("/session", widget.CreateSession)
		w.GET("/session/:session_id", widget.GetSession)
		w.DELETE("/session/:session_id", widget.DeleteSession)
		w.PUT("/session/:session_id/composer", widget.UpdateComposer)
		w.POST("/session/:session_id/send", widget.Send)
		w.POST("/session/:session_id/suggestion/:index", widget.SendSuggestion)
		w.POST("/session/:session_id/image", widget.GenerateImage)
		w.GET("/session/:session_id/events", widget.Events)
	}

	cred := api.Group("/credential")
	{
		cred.GET("", creds.Get)
		cred.PUT("", creds.Set)
		cred.PUT("/remember", creds.SetRemember)
	}

	s := api.Group("/settings")
	{
		s.GET("", settings.Get)
		s.PUT("/model", settings.SetModel)
	}
}
