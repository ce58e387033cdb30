package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orderflow/internal/domain"
)

// HeaderIdempotencyKey — заголовок, которым клиент передаёт ключ идемпотентности.
const HeaderIdempotencyKey = "Idempotency-Key"

// HeaderIdempotentReplay выставляется в ответах, воспроизведённых из сохранённой записи.
const HeaderIdempotentReplay = "X-Idempotent-Replay"

const defaultIdempotencyTTL = 24 * time.Hour

// responseRecorder буферизует ответ handler'а, чтобы сохранить его в записи идемпотентности.
type responseRecorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// IdempotencyMiddleware гарантирует однократную обработку запросов с одинаковым
// Idempotency-Key. Повторный запрос с тем же телом получает сохранённый ответ,
// с другим телом — отказ, параллельный повтор — конфликт.
func IdempotencyMiddleware(repo domain.IdempotencyRepository, logger *log.Entry) func(http.Handler) http.Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if key == "" {
				writeJSON(w, http.StatusBadRequest, errorBody("Idempotency-Key header is required"))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody("failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			requestHash := hashRequest(r.Method, r.URL.Path, body)
			ttlAt := time.Now().UTC().Add(defaultIdempotencyTTL)

			record, err := repo.CreateProcessing(key, requestHash, ttlAt)
			switch {
			case err == nil:
				// Новый ключ, обрабатываем запрос и сохраняем результат.
			case errors.Is(err, domain.ErrIdempotencyHashMismatch):
				writeJSON(w, http.StatusUnprocessableEntity, errorBody("idempotency key is used with different request"))
				return
			case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
				replayRecord(w, record)
				return
			default:
				logger.WithError(err).WithField("idempotency_key", key).Error("idempotency lookup failed")
				writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}

			var markErr error
			if status >= 200 && status < 300 {
				markErr = repo.MarkDone(key, recorder.body.Bytes(), status)
			} else {
				markErr = repo.MarkFailed(key, recorder.body.Bytes(), status)
			}
			if markErr != nil {
				logger.WithError(markErr).WithField("idempotency_key", key).Error("failed to store idempotency result")
			}
		})
	}
}

func replayRecord(w http.ResponseWriter, record domain.IdempotencyRecord) {
	if record.Status == domain.IdempotencyStatusProcessing {
		writeJSON(w, http.StatusConflict, errorBody("request with this idempotency key is being processed"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set(HeaderIdempotentReplay, "true")
	status := record.HTTPStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

func hashRequest(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(":"))
	h.Write([]byte(path))
	h.Write([]byte(":"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
