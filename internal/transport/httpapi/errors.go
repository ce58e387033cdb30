package httpapi

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

// writeError транслирует доменную ошибку в HTTP статус. Ошибки целостности и
// неизвестные ошибки логируются, клиентские возвращаются как есть.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, domain.ErrOrderNotFound), errors.Is(err, domain.ErrPaymentNotFound):
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, domain.ErrStockUnavailable):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, domain.ErrInvalidStateTransition),
		errors.Is(err, domain.ErrPaymentStateConflict),
		domain.IsVersionConflict(err):
		writeJSON(w, http.StatusConflict, errorBody(err.Error()))
	case errors.Is(err, domain.ErrAmountIntegrity):
		h.logger.WithError(err).WithField("path", r.URL.Path).Error("payment amount integrity violation")
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, domain.ErrGatewayTemporary), errors.Is(err, domain.ErrGatewayUnavailable):
		h.logger.WithError(err).WithField("path", r.URL.Path).Warn("payment gateway failure")
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	default:
		h.logger.WithError(err).WithFields(log.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
