package logging_test

import (
	"github.com/FreePeak/golang-mcp-gateway/internal/infrastructure/logging"
)

func Example() {
	logger, err := logging.New(logging.DevelopmentConfig())
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("gateway created", logging.Fields{
		"gateway_id": "3f2a",
		"owner":      "client-a",
	})

	sessionLogger := logger.Named("session").With(logging.Fields{"gateway_id": "3f2a"})
	sessionLogger.Debug("sse client attached")
}

func Example_fromEnvironmentLevel() {
	level, err := logging.ParseLevel("warn")
	if err != nil {
		panic(err)
	}

	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.InitialFields = logging.Fields{"service": "mcp-gateway"}

	logger, err := logging.New(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Warn("backend unavailable", logging.Fields{"backend": "files"})
}
