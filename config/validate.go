package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate 按结构体标签校验，再做跨字段检查。
func Validate(cfg AppConfig) error {
	if strings.TrimSpace(cfg.Symbol) == "" {
		return errNoSymbol
	}
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return ErrInvalid("invalid config: " + strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Paper.TickSize > 0 && cfg.Paper.StartPrice > 0 && cfg.Paper.StartPrice < cfg.Paper.TickSize {
		return ErrInvalid("paper.startPrice must be >= paper.tickSize")
	}
	if cfg.Gateway.Offline && cfg.Paper.StartPrice <= 0 {
		return ErrInvalid("gateway.offline requires paper.startPrice > 0")
	}
	return nil
}
