package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/tourbook-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "Idempotent-Replayed"

	// CheckoutIdempotencyTTL keeps order submissions deduplicated for a week.
	CheckoutIdempotencyTTL = 7 * 24 * time.Hour

	maxIdempotencyKeyLen = 128
	maxIdempotentBody    = 64 << 10
)

type recordState string

const (
	statePending recordState = "pending"
	stateDone    recordState = "done"
)

// idempotencyRecord is stored under the key from claim until expiry. A
// pending record blocks concurrent duplicates; a done record is replayed.
type idempotencyRecord struct {
	State       recordState `json:"state"`
	RequestHash string      `json:"request_hash"`
	Status      int         `json:"status,omitempty"`
	ContentType string      `json:"content_type,omitempty"`
	Body        []byte      `json:"body,omitempty"`
}

// Idempotent guards a route with the Idempotency-Key header, scoped to the
// storefront session. Successful and 4xx responses are replayed for ttl;
// 5xx responses release the key so the client can try again.
func Idempotent(store pkgredis.IdempotencyStore, logg *logger.Logger, ttl time.Duration) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = CheckoutIdempotencyTTL
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if store == nil {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "idempotency store unavailable"))
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
					WithDetails(map[string]any{"header": idempotencyHeader, "max_length": maxIdempotencyKeyLen}))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBody+1))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			if len(body) > maxIdempotentBody {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "request body too large"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashRequest(body)
			key := store.IdempotencyKey(SessionIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)
			ctx = logg.WithField(ctx, "idempotency_key", clientKey)

			existing, claimed, err := claim(ctx, store, key, hash, ttl)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if !claimed {
				replayOrReject(ctx, logg, w, existing, hash)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r.WithContext(ctx))
			settle(ctx, logg, store, key, hash, ttl, capture)
		})
	}
}

// claim stores a pending record. When the key is taken it returns the
// current record instead.
func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, ttl time.Duration) (*idempotencyRecord, bool, error) {
	pending, _ := json.Marshal(idempotencyRecord{State: statePending, RequestHash: hash})
	// one retry covers a record expiring between SETNX and GET
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := store.SetNX(ctx, key, string(pending), ttl)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
		}
		if ok {
			return nil, true, nil
		}
		raw, err := store.Get(ctx, key)
		if errors.Is(err, pkgredis.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read idempotency record")
		}
		var record idempotencyRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
		}
		return &record, false, nil
	}
	return nil, false, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress")
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, record *idempotencyRecord, hash string) {
	switch {
	case record.RequestHash != hash:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State != stateDone:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is in progress"))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(replayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

// settle replaces the pending record with the outcome, or drops it on 5xx.
func settle(ctx context.Context, logg *logger.Logger, store pkgredis.IdempotencyStore, key, hash string, ttl time.Duration, capture *responseCapture) {
	status := capture.statusOrOK()
	if status >= http.StatusInternalServerError {
		if err := store.Del(ctx, key); err != nil {
			logg.Error(ctx, "release idempotency claim", err)
		}
		return
	}

	payload, err := json.Marshal(idempotencyRecord{
		State:       stateDone,
		RequestHash: hash,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		logg.Error(ctx, "encode idempotency record", err)
		return
	}
	if err := store.Set(ctx, key, string(payload), ttl); err != nil {
		logg.Error(ctx, "persist idempotency record", err)
	}
}

func hashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseCapture) statusOrOK() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}
