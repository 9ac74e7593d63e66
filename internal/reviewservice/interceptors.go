package reviewservice

import (
	"context"
	"errors"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/justinas/alice"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/domino14/review_engine/internal/auth"
)

// NewAuthInterceptor is a connectrpc interceptor that uses a JWT.
func NewAuthInterceptor(secretKey []byte) connect.UnaryInterceptorFunc {
	interceptor := func(next connect.UnaryFunc) connect.UnaryFunc {
		return connect.UnaryFunc(func(
			ctx context.Context,
			req connect.AnyRequest,
		) (connect.AnyResponse, error) {

			header := req.Header().Get("Authorization")
			if header == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("no auth method"))
			}
			user, err := auth.VerifyToken(header, secretKey)
			if err != nil {
				log.Err(err).Msg("err-parsing-token")
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("could not parse token"))
			}
			ctx = auth.StoreUserInContext(ctx, user.UserID, user.Username)
			return next(ctx, req)
		})
	}
	return connect.UnaryInterceptorFunc(interceptor)
}

// Middleware wraps h with request logging. Each request gets an id and a
// request-scoped logger, available to handlers through log.Ctx.
func Middleware(logger zerolog.Logger) alice.Chain {
	return alice.New(
		hlog.NewHandler(logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.MethodHandler("method"),
		hlog.URLHandler("path"),
		hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			hlog.FromRequest(r).Info().Int("status", status).Int("size", size).
				Dur("duration", duration).Msg("request")
		}),
	)
}
