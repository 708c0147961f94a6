//go:build wireinject
// +build wireinject

package di

import (
	"LevelCast/pkg/config"
	"LevelCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideLocation,
		ProvideClock,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarFeed,
		ProvideCorpusStore,
		ProvideTickPublisher,
		ProvideSnapshotArchiver,
		ProvideArchiveHandler,

		// Use cases
		ProvideBroadcaster,
		ProvideOrchestrator,

		// Handlers
		ProvideRESTHandler,
		ProvideWSHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
