package handler

import (
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
)

const (
	// SecuritySchemeName names the admin API key scheme in the OpenAPI
	// document.
	SecuritySchemeName = "apiKey"
	// APIKeyHeader carries the admin API key.
	APIKeyHeader = "api_key"
)

// SecurityScheme describes the admin API key for the OpenAPI document.
func SecurityScheme() *huma.SecurityScheme {
	return &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: APIKeyHeader,
	}
}

func requiresAPIKey(op *huma.Operation) bool {
	if op == nil {
		return false
	}
	return slices.ContainsFunc(op.Security, func(req map[string][]string) bool {
		_, ok := req[SecuritySchemeName]
		return ok
	})
}

// requireAPIKey authenticates operations that declare the API key security
// requirement and tags the request logger with the key id.
func (h *Handler) requireAPIKey(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if !requiresAPIKey(ctx.Operation()) {
			next(ctx)
			return
		}

		key, err := h.auth.Authenticate(ctx.Context(), ctx.Header(APIKeyHeader), auth.ScopeOrdersAdmin)
		if err != nil {
			lg := zctx.From(ctx.Context()).With(zap.String("operation", ctx.Operation().OperationID))
			status, msg := http.StatusInternalServerError, "internal error"
			switch {
			case errors.Is(err, auth.ErrForbidden):
				status, msg = http.StatusForbidden, "forbidden"
			case errors.Is(err, auth.ErrUnauthorized):
				status, msg = http.StatusUnauthorized, "unauthorized"
			}
			if status == http.StatusInternalServerError {
				lg.Error("API key check failed", zap.Error(err))
			} else {
				lg.Info("API key rejected", zap.Error(err))
			}
			_ = huma.WriteErr(api, ctx, status, msg)
			return
		}

		next(huma.WithContext(ctx, zctx.With(ctx.Context(), zap.String("api_key_id", key.ID))))
	}
}
