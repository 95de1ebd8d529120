package nakama

import (
	"context"
	"database/sql"

	"taskboard/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// InitModule loads the board config and wires RPCs for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	vars, _ := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string)
	envCfg, err := config.ParseEnvMap(vars)
	if err != nil {
		logger.Warn("InitModule: invalid env config, using defaults: %v", err)
		envCfg, _ = config.ParseEnvMap(nil)
	}
	if err := config.LoadGameConfig(envCfg.GameConfigPath); err != nil {
		logger.Warn("InitModule: %v; using default board layout", err)
	}

	if err := RegisterRPCs(initializer); err != nil {
		return err
	}

	logger.Info("Taskboard Go module loaded.")
	return nil
}
