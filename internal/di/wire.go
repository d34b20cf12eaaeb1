//go:build wireinject
// +build wireinject

package di

import (
	"OptForge/pkg/config"
	"OptForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,

		// Domain services
		ProvideRateService,
		ProvideDividendService,

		// Adapters
		ProvideSource,
		ProvideSink,
		ProvideArtifactIndex,

		// Use cases
		ProvideAssembler,
		ProvidePlanner,
		ProvideController,

		// Application server
		ProvideOpsHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
