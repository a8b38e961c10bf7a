//go:build wireinject
// +build wireinject

package di

import (
	"MealSignal/pkg/config"
	"MealSignal/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideRecorder,
		ProvideEndpointMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideOpener,
		ProvideCSVSource,
		ProvideSignalStore,
		ProvideSignalSource,
		ProvideEventPublisher,

		// Use cases
		ProvideRecommender,
		ProvideLeaderboard,
		ProvideQuizService,
		ProvideRateLimiter,

		// Transport
		ProvideHealthChecks,
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideIngest,

		ProvideApp,
	)
	return &server.App{}, nil
}
