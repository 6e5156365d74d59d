package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// HeaderIdempotencyKey lets a client retry a command without repeating it.
const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyStore is satisfied by redisx.Idempotency.
type IdempotencyStore interface {
	// Begin claims key in scope. When the key is already held it returns the
	// stored response, or nil while the first command is still running.
	Begin(ctx context.Context, scope, key string) (resp []byte, claimed bool, err error)
	Complete(ctx context.Context, scope, key string, resp []byte) error
	Release(ctx context.Context, scope, key string) error
}

type storedResponse struct {
	Code int             `json:"code"`
	Body json.RawMessage `json:"body"`
}

// idempotent replays the first answer given to a command carrying the same
// Idempotency-Key. The key is claimed before the command runs, so a retry
// that arrives while the first attempt is in flight gets 409 instead of
// running it twice. Server errors release the key. Store failures degrade to
// plain execution.
func (a *API) idempotent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(HeaderIdempotencyKey)
		if a.Idem == nil || key == "" || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		scope := string(roleOf(r)) + ":" + r.URL.Path

		b, claimed, err := a.Idem.Begin(ctx, scope, key)
		switch {
		case err != nil:
			a.Log.WarnContext(ctx, "idempotency claim failed", "error", err)
			next.ServeHTTP(w, r)
			return
		case !claimed && b == nil:
			writeJSON(w, http.StatusConflict, map[string]string{"message": "a request with this Idempotency-Key is still in progress"})
			return
		case !claimed:
			var sr storedResponse
			if err := json.Unmarshal(b, &sr); err != nil {
				a.Log.WarnContext(ctx, "idempotency record unreadable", "error", err)
				writeJSON(w, http.StatusConflict, map[string]string{"message": "Idempotency-Key already used"})
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replay", "true")
			w.WriteHeader(sr.Code)
			_, _ = w.Write(sr.Body)
			return
		}

		// the command may outlive the request context
		sctx := context.WithoutCancel(ctx)
		done := false
		defer func() {
			if !done {
				if err := a.Idem.Release(sctx, scope, key); err != nil {
					a.Log.WarnContext(ctx, "idempotency release failed", "error", err)
				}
			}
		}()

		var buf bytes.Buffer
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Tee(&buf)
		next.ServeHTTP(ww, r)

		if ww.Status() >= http.StatusInternalServerError {
			return
		}
		resp, err := json.Marshal(storedResponse{Code: ww.Status(), Body: bytes.TrimSpace(buf.Bytes())})
		if err != nil {
			return
		}
		if err := a.Idem.Complete(sctx, scope, key, resp); err != nil {
			a.Log.WarnContext(ctx, "idempotency complete failed", "error", err)
			return
		}
		done = true
	})
}
