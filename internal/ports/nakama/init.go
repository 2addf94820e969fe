package nakama

import (
	"context"
	"database/sql"

	"spades/internal/app"
	"spades/internal/config"

	"github.com/heroiclabs/nakama-common/runtime"
)

// module owns the state shared by the RPCs and every match of this runtime.
type module struct {
	registry *app.Registry
}

func newModule(codeLength int) *module {
	return &module{registry: app.NewRegistry(nil, codeLength)}
}

// InitModule wires RPCs and match handlers for Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if err := config.LoadGameConfig(config.DefaultConfigPath); err != nil {
		logger.Warn("InitModule: Could not load game config, using defaults: %v", err)
	}

	m := newModule(config.GetGameConfig().CodeLength)
	if err := m.registerRPCs(initializer); err != nil {
		return err
	}

	if err := initializer.RegisterMatch(MatchNameSpades, func(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule) (runtime.Match, error) {
		return newMatchHandler(m.registry), nil
	}); err != nil {
		return err
	}

	logger.Info("Spades Go module loaded.")
	return nil
}
