package service

import (
	"budget-bubble-backend/internal/common/logger"
	"budget-bubble-backend/internal/features/profile/models"
)

// LogThemeApplier records theme changes. Clients restyle themselves from
// the theme in the returned state.
type LogThemeApplier struct{}

func (LogThemeApplier) ApplyTheme(userID string, theme models.Theme) {
	logger.Debug().Str("user_id", userID).Str("theme", string(theme)).Msg("Theme applied")
}
