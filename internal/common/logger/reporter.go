package logger

import "github.com/rs/zerolog"

// Reporter sends background failures (remote writes, subscriptions) to a
// component logger.
type Reporter struct {
	log zerolog.Logger
}

func NewReporter(component string) *Reporter {
	return &Reporter{log: Component(component)}
}

func (r *Reporter) Report(op, userID string, err error) {
	if err == nil {
		return
	}
	r.log.Error().
		Err(err).
		Str("operation", op).
		Str("user_id", userID).
		Msg("Background operation failed")
}
