package recommend

import "github.com/okian/ecoinvest/pkg/logger"

// Option configures a Handler.
type Option func(*Handler)

// WithLatestOnly drops replies of submissions that were superseded by a
// newer one before they resolved.
func WithLatestOnly() Option {
	return func(h *Handler) { h.latestOnly = true }
}

// WithLogger sets the handler's logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l.Named("recommend")
		}
	}
}
