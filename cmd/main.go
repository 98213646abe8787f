package main

import (
	"io"
	"time"

	"raffle/internal/handlers"
	"raffle/internal/models"
	"raffle/internal/services"

	"github.com/caarlos0/env/v11"
	"github.com/gin-gonic/gin"
	"github.com/google/logger"
)

type config struct {
	Addr          string        `env:"RAFFLE_ADDR" envDefault:":8080"`
	EntranceFee   uint64        `env:"RAFFLE_ENTRANCE_FEE" envDefault:"100"`
	DrawInterval  time.Duration `env:"RAFFLE_DRAW_INTERVAL" envDefault:"30s"`
	RewardAmount  uint64        `env:"RAFFLE_REWARD_AMOUNT" envDefault:"10"`
	KeeperCadence time.Duration `env:"RAFFLE_KEEPER_CADENCE" envDefault:"5s"`
	// local: requests self-fulfil after FulfilDelay.
	// callback: an external provider posts to /randomness/:requestId.
	RandomnessMode string        `env:"RAFFLE_RANDOMNESS_MODE" envDefault:"local"`
	FulfilDelay    time.Duration `env:"RAFFLE_FULFIL_DELAY" envDefault:"2s"`
}

func main() {
	defer logger.Init("raffle", true, false, io.Discard).Close()

	// 1. Load configuration from the environment
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		logger.Fatalf("Failed to parse config: %v", err)
	}

	// 2. Initialize the ledgers and the randomness provider
	bank := services.NewBank()
	mint := services.NewTokenMint()
	random := services.NewRandomnessService(cfg.RandomnessMode == "local", cfg.FulfilDelay)

	// 3. Initialize the registry and its collaborators
	registry := services.NewRegistry(random, bank, mint)
	referrals := services.NewReferralService()
	stats := services.NewStatsService(registry)

	// 4. Create the default raffle instance
	if _, err := registry.Create(models.RaffleParams{
		EntranceFee:  cfg.EntranceFee,
		DrawInterval: cfg.DrawInterval,
		RewardAmount: cfg.RewardAmount,
	}); err != nil {
		logger.Fatalf("Failed to create default raffle: %v", err)
	}

	// 5. Set up the Gin router
	httpHandler := handlers.NewHTTPHandler(registry, referrals, stats, random, bank, mint)
	r := gin.Default()
	httpHandler.RegisterRoutes(r)

	// 6. Start the background keeper that triggers eligible draws
	keeper := services.NewKeeper(registry, cfg.KeeperCadence)
	go keeper.Run(make(chan struct{}))

	// 7. Run the server
	logger.Infof("Server starting on %s", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		logger.Fatalf("Failed to run server: %v", err)
	}
}
