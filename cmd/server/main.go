package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"gatecount-service/internal/config"
	"gatecount-service/internal/db"
	gatehttp "gatecount-service/internal/http"
	"gatecount-service/internal/repository"
	"gatecount-service/internal/service"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log = log.Level(level)

	gdb, err := db.Connect(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := repository.NewGateRepository(gdb)
	gateService := service.NewGateService(repo, log)
	countingService := service.NewCountingService(repo, gateService, log, cfg.Camera.DefaultObjectClass)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := gateService.LoadActiveConfigs(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load active gate configs")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := gatehttp.NewHandler(gateService, countingService, log)
	handler.Register(router, gatehttp.JWTAuth(cfg.Auth.JWTSecret, log))

	log.Info().Str("addr", cfg.Server.Addr).Msg("starting gatecount service")
	if err := router.Run(cfg.Server.Addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
