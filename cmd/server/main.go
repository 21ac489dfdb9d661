package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/mmo-tools/internal/app"
	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/logging"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", os.Getenv("TOOLS_CONFIG"), "путь к YAML конфигурации")
	printToken := flag.Bool("admin-token", true, "вывести в лог токен администратора")
	flag.Parse()

	// Инициализируем систему логирования
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()

	logging.Info("⛏️ Запуск сервера многоблочных инструментов...")

	// === КОНФИГУРАЦИЯ ===
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Error("❌ Ошибка загрузки конфигурации: %v", err)
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	level := logging.ParseLevel(cfg.Server.LogLevel)
	logger := logging.GetToolsLogger()
	logger.SetLevel(level, level)
	serverLog := logging.GetServerLogger()
	serverLog.SetLevel(level, level)
	defer func() { _ = logging.GetLoggerManager().CloseAll() }()

	if !cfg.Settings.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// Канал для получения сигналов ОС
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ИНИЦИАЛИЗАЦИЯ КОМПОНЕНТОВ ===
	serverLog.Debug("Сборка компонентов...")
	server, err := app.New(ctx, app.Options{
		Config:     cfg,
		ConfigPath: *configPath,
		Logger:     logger,
	})
	if err != nil {
		serverLog.Error("❌ Ошибка создания сервера: %v", err)
		log.Fatalf("❌ Ошибка создания сервера: %v", err)
	}

	port := cfg.Server.GetRESTPort()
	serverLog.Info("✅ Инструменты: %d видов, тиков в секунду: %d", len(cfg.Tools), cfg.Server.TickRate)
	serverLog.Info("   🌐 Admin API: http://localhost:%d", port)
	serverLog.Info("   ❤️  Health check: http://localhost:%d/health", port)
	serverLog.Info("   📊 Метрики: http://localhost:%d/metrics", port)

	if *printToken {
		token, err := server.IssueAdminToken()
		if err != nil {
			serverLog.Error("❌ Не удалось выпустить токен администратора: %v", err)
		} else {
			serverLog.Info("🔐 Токен администратора: %s", token)
			serverLog.Info("💡 curl -H 'Authorization: Bearer %s' http://localhost:%d/api/stats", token, port)
		}
	}

	serverLog.Debug("Ожидание сигналов завершения...")
	if err := server.Run(ctx); err != nil {
		serverLog.Error("❌ Сервер остановлен с ошибкой: %v", err)
		os.Exit(1)
	}

	serverLog.Info("👋 Сервер успешно остановлен")
}
