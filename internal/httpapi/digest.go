package httpapi

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	res, err := s.digest.Run(r.Context())
	if err != nil {
		s.metrics.DigestRuns.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("digest generation failed")
		respondError(w, http.StatusInternalServerError, "digest_failed")
		return
	}
	s.metrics.DigestRuns.WithLabelValues("ok").Inc()
	respondJSON(w, http.StatusOK, res)
}
