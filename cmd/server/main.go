package main

import (
	"fmt"
	"log"
	"os"

	"github.com/caarlos0/env/v6"
	"go.uber.org/zap"

	"dotchat/internal/server"
	"dotchat/internal/storage"
)

func usage() {
	fmt.Printf("Usage: %s <private key PEM file> <certificate PEM file>\n", os.Args[0])
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "-h" {
		usage()
		return
	}
	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()
	sugar.Info("Server is starting")

	srvCfg := server.EnvConfig{}
	if err := env.Parse(&srvCfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}
	storeCfg := storage.Config{}
	if err := env.Parse(&storeCfg); err != nil {
		sugar.Fatalf("Cannot parse env config: %v", err)
	}

	tlsConf, err := server.LoadTLS(os.Args[1], os.Args[2])
	if err != nil {
		sugar.Fatalf("Cannot load TLS key pair: %v", err)
	}

	store, err := storage.New(sugar, storeCfg)
	if err != nil {
		sugar.Fatalf("Cannot create Store instance: %v", err)
	}

	srv, err := server.New(sugar, store,
		server.WithEnvConfig(srvCfg),
		server.WithTLSConfig(tlsConf),
	)
	if err != nil {
		sugar.Fatalf("Cannot create Server instance: %v", err)
	}

	if err := srv.Start(); err != nil {
		sugar.Fatalf("Cannot start server: %v", err)
	}
}
