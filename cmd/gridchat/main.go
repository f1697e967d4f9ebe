package main

import (
	"fmt"
	"net/http"

	"gridchat/internal/config"
	"gridchat/internal/llm"
	"gridchat/internal/logger"
	"gridchat/internal/orchestrator"
	"gridchat/internal/server"
	"gridchat/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)

	requestLog := store.New(cfg.Store.Path)
	defer requestLog.Close()

	llmClient := llm.NewClient(cfg.LLM)
	orch := orchestrator.New(cfg, llmClient, requestLog)
	srv := server.New(orch)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", addr)
	if err := http.ListenAndServe(addr, srv); err != nil {
		logger.L.Error("server stopped", "error", err)
	}
}
