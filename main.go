package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/panyam/adaptiva/config"
	"github.com/panyam/adaptiva/services"
	"github.com/panyam/adaptiva/web"
)

var (
	gw_addr     = flag.String("gw_addr", DefaultGatewayAddress(), "Address where the http endpoint is running")
	config_file = flag.String("config", os.Getenv("ADAPTIVA_CONFIG"), "Optional YAML config file")
)

func main() {
	envfile := ".env"
	if os.Getenv("ADAPTIVA_ENV") == "dev" {
		envfile = ".env.dev"
	}
	log.Println("loading env file: ", envfile)
	if err := godotenv.Load(envfile); err != nil && !os.IsNotExist(err) {
		log.Fatal("Error loading .env file", envfile, err)
	}

	flag.Parse()
	cfg, err := config.Load(*config_file)
	if err != nil {
		log.Fatal("Error loading config: ", err)
	}
	cfg.Server.Address = *gw_addr

	level, _ := config.ParseLevel(cfg.Server.LogLevel)
	slog.SetDefault(services.NewLogger(os.Stdout, cfg.IsDev(), level))

	if err := web.Serve(context.Background(), cfg); err != nil {
		slog.Error("Server exited", "error", err)
		os.Exit(1)
	}
}
