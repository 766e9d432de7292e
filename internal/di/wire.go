//go:build wireinject
// +build wireinject

package di

import (
	"UrbanPull/pkg/config"
	"UrbanPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application with
// a cleanup that releases them in reverse order.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
    wire.Build(
        // Infrastructure
        ProvideKafkaProducer,
        ProvideLogger,
        ProvideMetrics,
        ProvideCache,
        ProvideRateLimiter,
        ProvideClickHouseClient,

        // Repositories and upstream
        ProvideUDAClient,
        ProvideStorage,
        ProvidePublisher,

        // Use cases
        ProvideSnapshotProcessor,
        ProvidePipeline,
        ProvideWatchlist,
        ProvideHub,
        ProvideIndicatorQuery,
        ProvideCollector,
        ProvideRefreshQueue,
        ProvideKafkaConsumer,

        // Transport
        ProvideIndicatorsHandler,
        ProvideHTTPServer,

        // Application server
        ProvideApp,
    )
    return nil, nil, nil
}
