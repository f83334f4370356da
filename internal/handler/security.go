package handler

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey authenticates admin requests by hashing the provided API
// key, looking it up in the repository, and performing a constant-time
// comparison to prevent timing attacks.
func (h *Handler) requireAPIKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(apiKeyHeader)
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key")
			return
		}

		hash := sha256.Sum256([]byte(key))
		hexHash := hex.EncodeToString(hash[:])

		info, err := h.apikeys.FindByHash(r.Context(), hexHash)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// The lookup already matched, but compare anyway in case the
		// repository returned a stale or wrong row.
		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash[:], stored) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next(w, r)
	})
}
