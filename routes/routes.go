package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"

	"github.com/strideteam/competition-engine/handlers"
	"github.com/strideteam/competition-engine/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	schedulerHandler *handlers.SchedulerHandler,
	competitionHandler *handlers.CompetitionHandler,
	webSocketHandler *handlers.WebSocketHandler,
	healthHandler *handlers.HealthHandler,
	schedulerTokenSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", healthHandler.Healthz)

	// Публичные маршруты для просмотра соревнований
	router.Route("/competitions", func(r chi.Router) {
		r.Get("/", competitionHandler.List)
		r.Get("/{competitionID}", competitionHandler.GetByID)
		r.Get("/{competitionID}/payouts", competitionHandler.ListPayouts)
	})

	// Внутренние маршруты только для cron-инфраструктуры
	router.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireServiceToken(schedulerTokenSecret))
		r.Post("/scheduler/run", schedulerHandler.TriggerRun)
	})

	router.Get("/ws/feed", webSocketHandler.ServeFeed)
	router.Get("/ws/competitions/{competitionID}", webSocketHandler.ServeCompetition)
}
