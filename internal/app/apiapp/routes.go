package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campusmatch/backend/internal/config"
	authsvc "github.com/campusmatch/backend/internal/services/auth"
	chatsvc "github.com/campusmatch/backend/internal/services/chat"
	matchingsvc "github.com/campusmatch/backend/internal/services/matching"
	profilesvc "github.com/campusmatch/backend/internal/services/profiles"
	"github.com/campusmatch/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService     *authsvc.Service
	MatchingService *matchingsvc.Service
	ChatService     *chatsvc.Service
	ProfileService  *profilesvc.Service
	Logger          *zap.Logger
	Config          config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService)
	profileHandler := handlers.NewProfileHandler(deps.ProfileService)
	candidateHandler := handlers.NewCandidateHandler(deps.MatchingService)
	matchesHandler := handlers.NewMatchesHandler(deps.MatchingService)
	chatHandler := handlers.NewChatHandler(deps.ChatService)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)

	r.Get("/healthz", healthHandler.Get)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/verify", authHandler.VerifyEmail)
		r.With(authMW).Post("/verify/resend", authHandler.ResendVerification)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Get("/profile", profileHandler.Me)
		r.With(authMW).Put("/profile/core", profileHandler.Core)
		r.With(authMW).Put("/profile/preferences", profileHandler.Preferences)
		r.With(authMW).Post("/profile/location", profileHandler.Location)
		r.With(authMW).Post("/profile/photos", profileHandler.AddPhoto)
		r.With(authMW).Delete("/profile/photos/{photo_id}", profileHandler.RemovePhoto)
		r.With(authMW).Put("/profile/photos/{photo_id}/main", profileHandler.SetMainPhoto)

		r.With(authMW).Get("/candidates", candidateHandler.List)
		r.With(authMW).Post("/like", matchesHandler.Like)
		r.With(authMW).Post("/dislike", matchesHandler.Dislike)
		r.With(authMW).Get("/matches", matchesHandler.List)
		r.With(authMW).Post("/unmatch", matchesHandler.Unmatch)

		r.With(authMW).Post("/conversations", chatHandler.Open)
		r.With(authMW).Get("/conversations", chatHandler.List)
		r.With(authMW).Get("/conversations/{conversation_id}/messages", chatHandler.Messages)
		r.With(authMW).Post("/conversations/{conversation_id}/messages", chatHandler.Send)
		r.With(authMW).Post("/conversations/{conversation_id}/read", chatHandler.MarkRead)
		r.With(authMW).Delete("/conversations/{conversation_id}/messages/{message_id}", chatHandler.DeleteMessage)
	})
}
