package main

import (
	"context"

	"github.com/KarpovAlexandrGo/tasks-api/internal/app"
	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
)

// @title           Tasks API
// @version         1.0
// @description     CRUD service for managing tasks.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8000
// @BasePath  /api/v1

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load config")
	}

	a, err := app.NewApp(context.Background(), cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize app")
	}

	if err := a.Run(); err != nil {
		logger.Log.WithError(err).Fatal("Failed to run app")
	}
}
