package observability

import (
	"fmt"
	"strings"

	"github.com/railzwaylabs/orderetl/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the root logger. Format "json" gives production encoding, anything else console.
func NewLogger(cfg config.Config) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if raw := strings.TrimSpace(cfg.Log.Level); raw != "" {
		if err := level.UnmarshalText([]byte(raw)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", raw, err)
		}
	}

	var zcfg zap.Config
	if strings.EqualFold(cfg.Log.Format, "json") {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zcfg.Level = level
	zcfg.OutputPaths = []string{"stderr"}

	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.With(zap.String("app", "orderetl")), nil
}
