package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/geusenergia/energisa-faturas/internal/api"
	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/logger"
	"github.com/geusenergia/energisa-faturas/internal/services"

	_ "github.com/geusenergia/energisa-faturas/docs"
)

// @title Energisa Faturas API
// @version 1.0
// @description Servico de captura e conciliacao de faturas das geradoras no portal Energisa
// @BasePath /
func main() {
	// .env is optional; in containers everything comes from the real env.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Configuracao invalida")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	container, err := services.NewContainer(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Falha ao inicializar os servicos")
	}

	server := api.NewServer(cfg, log, container)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Servidor HTTP encerrou com erro")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Sinal de encerramento recebido")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Encerramento do servidor falhou")
	}
	if err := container.Close(); err != nil {
		log.WithError(err).Error("Encerramento dos servicos falhou")
	}
	log.Info("Servico finalizado")
}
