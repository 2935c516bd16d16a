// Package requestid carries the id of the API request that started a
// pipeline run, so the logs of a run can be joined with its HTTP request.
package requestid

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const HeaderName = "X-Request-ID"

type ctxKey struct{}

// Generate returns a time ordered id.
func Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func ToContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns "" when ctx carries no id.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func FromRequest(r *http.Request) string {
	return FromContext(r.Context())
}
