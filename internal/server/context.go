package server

import (
	"context"

	"kochchi/internal/session"
)

type contextKey string

const contextKeyCredential contextKey = "credential"

func withCredential(ctx context.Context, cred *session.Credential) context.Context {
	return context.WithValue(ctx, contextKeyCredential, cred)
}

func credentialFrom(ctx context.Context) (*session.Credential, bool) {
	cred, ok := ctx.Value(contextKeyCredential).(*session.Credential)
	return cred, ok && cred != nil
}
