package middleware

import (
	"context"
	"net/http"
)

type actorHolder struct {
	set     bool
	actorID int64
	role    string
}

type holderKey struct{}

func withHolder(ctx context.Context, h *actorHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func holderFrom(r *http.Request) *actorHolder {
	h, _ := r.Context().Value(holderKey{}).(*actorHolder)
	return h
}
