package server

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// authFlowMaxAge is how long an external sign in may take before its state is dropped
const authFlowMaxAge = 10 * time.Minute

// RunMaintenance purges expired sessions, sign-in codes and abandoned auth flows every
// interval until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.purgeExpired(ctx)
		}
	}
}

func (s *Server) purgeExpired(ctx context.Context) {
	removed, err := s.auth.PurgeExpired(ctx)
	if err != nil {
		log.Err(err).Msg("[Maintenance] failed to purge expired sessions")
	}

	flows, err := s.authFlows.DeleteCreatedBefore(ctx, time.Now().Add(-authFlowMaxAge))
	if err != nil {
		log.Err(err).Msg("[Maintenance] failed to purge auth flows")
	}

	if removed > 0 || flows > 0 {
		log.Debug().Int("sessions_and_codes", removed).Int("auth_flows", flows).Msg("[Maintenance] purged expired records")
	}
}
