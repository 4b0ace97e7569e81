// Command agendactl runs the agenda checks outside the HTTP server. A cron
// entry calling "agendactl check" is what turns the urgent list into push
// notifications.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/aldoetobex/legal-desk-backend/internal/config"
	"github.com/aldoetobex/legal-desk-backend/internal/logging"
	"github.com/aldoetobex/legal-desk-backend/internal/notifications"
	"github.com/aldoetobex/legal-desk-backend/internal/notify"
	"github.com/aldoetobex/legal-desk-backend/pkg/database"
)

func main() {
	if err := newRootCmd(loadEnv).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv connects to the store configured in the environment.
func loadEnv() (*env, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	pub := notify.New(cfg.Notify, log)
	return &env{
		db:  db,
		svc: notifications.NewService(db, pub, cfg.Notify.Topic, cfg.App.Location, log),
	}, nil
}
