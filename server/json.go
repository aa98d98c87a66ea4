package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

const maxRequestBytes = 1 << 20

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("[writeJSON] encode response")
	}
}

// writeDetail writes the {"detail": ...} error body the session guard surfaces verbatim.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "Malformed request body.")
		return false
	}
	return true
}
