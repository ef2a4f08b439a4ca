package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ledger/internal/domain"
)

const maxBodyBytes = 1 << 20

var errBadID = errors.New("invalid id")

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Error("write response body")
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError отображает доменные ошибки на HTTP-статусы:
// validation → 400 {"<field>": "<message>"}, not found → 404, email занят → 409.
func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{validation.Field: validation.Message})
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "Not found.")
	case errors.Is(err, domain.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, map[string]string{"email": "customer with this email already exists."})
	default:
		h.logger.WithError(err).WithField("request_id", RequestID(r.Context())).Error("request failed")
		writeDetail(w, http.StatusInternalServerError, "Internal server error.")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return &domain.ValidationError{Field: "detail", Message: "JSON parse error."}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// withID разбирает {id} из пути; нечисловой или переполненный id даёт 404.
func withID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := pathID(r)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Not found.")
		return 0, false
	}
	return id, true
}

func required(field string) error {
	return &domain.ValidationError{Field: field, Message: "This field is required."}
}
