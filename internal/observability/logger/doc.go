// Package logger provides a singleton Zap logger with context-based scoping.
//
// Initialization (once, in main):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
// In handlers/services (request-scoped):
//
//	log := logger.From(ctx)
//	log.Info("token issued", logger.UserID(id))
//
// Without a context the singleton is the fallback:
//
//	logger.L().Info("service started")
package logger
