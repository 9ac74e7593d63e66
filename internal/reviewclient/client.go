// Package reviewclient is a thin typed transport for the remote review
// service. It holds no state and does not retry.
package reviewclient

import (
	"context"
	"strings"
	"time"

	"connectrpc.com/connect"

	"github.com/domino14/review_engine/internal/review"
)

type Client struct {
	activeSession     *connect.Client[review.ActiveSessionRequest, review.ActiveSessionResponse]
	startSession      *connect.Client[review.StartRequest, review.Session]
	submitReview      *connect.Client[review.SubmitRequest, review.Session]
	completeSession   *connect.Client[review.CompleteRequest, review.Session]
	dueCards          *connect.Client[review.CardsRequest, review.DueCardsResponse]
	newCards          *connect.Client[review.CardsRequest, review.CardsResponse]
	difficultCards    *connect.Client[review.CardsRequest, review.CardsResponse]
	randomCards       *connect.Client[review.CardsRequest, review.CardsResponse]
	statistics        *connect.Client[review.StatisticsRequest, review.Statistics]
	preferences       *connect.Client[review.Empty, review.Preferences]
	updatePreferences *connect.Client[review.Preferences, review.Preferences]
	availableModes    *connect.Client[review.Empty, review.ModesResponse]
	suspendCard       *connect.Client[review.CardRequest, review.Empty]
	unsuspendCard     *connect.Client[review.CardRequest, review.Empty]
	resetCard         *connect.Client[review.CardRequest, review.Empty]
	deleteCard        *connect.Client[review.CardRequest, review.Empty]
}

// NewClient builds a client for the service at baseURL. If token is not
// empty it is sent as a bearer token on every call.
func NewClient(httpClient connect.HTTPClient, baseURL, token string, opts ...connect.ClientOption) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(review.JSONCodec{})}, opts...)
	if token != "" {
		opts = append(opts, connect.WithInterceptors(NewBearerInterceptor(token)))
	}
	return &Client{
		activeSession: connect.NewClient[review.ActiveSessionRequest, review.ActiveSessionResponse](
			httpClient, baseURL+review.ProcedureGetActiveSession, opts...),
		startSession: connect.NewClient[review.StartRequest, review.Session](
			httpClient, baseURL+review.ProcedureStartSession, opts...),
		submitReview: connect.NewClient[review.SubmitRequest, review.Session](
			httpClient, baseURL+review.ProcedureSubmitReview, opts...),
		completeSession: connect.NewClient[review.CompleteRequest, review.Session](
			httpClient, baseURL+review.ProcedureCompleteSession, opts...),
		dueCards: connect.NewClient[review.CardsRequest, review.DueCardsResponse](
			httpClient, baseURL+review.ProcedureGetDueCards, opts...),
		newCards: connect.NewClient[review.CardsRequest, review.CardsResponse](
			httpClient, baseURL+review.ProcedureGetNewCards, opts...),
		difficultCards: connect.NewClient[review.CardsRequest, review.CardsResponse](
			httpClient, baseURL+review.ProcedureGetDifficultCards, opts...),
		randomCards: connect.NewClient[review.CardsRequest, review.CardsResponse](
			httpClient, baseURL+review.ProcedureGetRandomCards, opts...),
		statistics: connect.NewClient[review.StatisticsRequest, review.Statistics](
			httpClient, baseURL+review.ProcedureGetStatistics, opts...),
		preferences: connect.NewClient[review.Empty, review.Preferences](
			httpClient, baseURL+review.ProcedureGetPreferences, opts...),
		updatePreferences: connect.NewClient[review.Preferences, review.Preferences](
			httpClient, baseURL+review.ProcedureUpdatePreferences, opts...),
		availableModes: connect.NewClient[review.Empty, review.ModesResponse](
			httpClient, baseURL+review.ProcedureGetAvailableModes, opts...),
		suspendCard: connect.NewClient[review.CardRequest, review.Empty](
			httpClient, baseURL+review.ProcedureSuspendCard, opts...),
		unsuspendCard: connect.NewClient[review.CardRequest, review.Empty](
			httpClient, baseURL+review.ProcedureUnsuspendCard, opts...),
		resetCard: connect.NewClient[review.CardRequest, review.Empty](
			httpClient, baseURL+review.ProcedureResetCard, opts...),
		deleteCard: connect.NewClient[review.CardRequest, review.Empty](
			httpClient, baseURL+review.ProcedureDeleteCard, opts...),
	}
}

// NewBearerInterceptor attaches an Authorization header to outgoing calls.
func NewBearerInterceptor(token string) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				req.Header().Set("Authorization", "Bearer "+token)
			}
			return next(ctx, req)
		}
	}
}

func call[Req, Res any](ctx context.Context, c *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := c.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

// ActiveSession returns the user's session in progress, or nil if there is
// none.
func (c *Client) ActiveSession(ctx context.Context) (*review.Session, error) {
	resp, err := call(ctx, c.activeSession, &review.ActiveSessionRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

func (c *Client) StartSession(ctx context.Context, req *review.StartRequest) (*review.Session, error) {
	return call(ctx, c.startSession, req)
}

func (c *Client) SubmitReview(ctx context.Context, req *review.SubmitRequest) (*review.Session, error) {
	return call(ctx, c.submitReview, req)
}

func (c *Client) CompleteSession(ctx context.Context, sessionID string) (*review.Session, error) {
	return call(ctx, c.completeSession, &review.CompleteRequest{SessionID: sessionID})
}

func (c *Client) DueCards(ctx context.Context, limit int) (*review.DueCardsResponse, error) {
	return call(ctx, c.dueCards, &review.CardsRequest{Limit: limit})
}

func (c *Client) NewCards(ctx context.Context, limit int) ([]review.Card, error) {
	return cards(ctx, c.newCards, limit)
}

func (c *Client) DifficultCards(ctx context.Context, limit int) ([]review.Card, error) {
	return cards(ctx, c.difficultCards, limit)
}

func (c *Client) RandomCards(ctx context.Context, limit int) ([]review.Card, error) {
	return cards(ctx, c.randomCards, limit)
}

func cards(ctx context.Context, c *connect.Client[review.CardsRequest, review.CardsResponse], limit int) ([]review.Card, error) {
	resp, err := call(ctx, c, &review.CardsRequest{Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Cards, nil
}

// Statistics fetches review statistics between two calendar days. Zero
// times leave the bound to the service (the current month).
func (c *Client) Statistics(ctx context.Context, from, to time.Time) (*review.Statistics, error) {
	req := &review.StatisticsRequest{}
	if !from.IsZero() {
		req.From = from.Format(time.DateOnly)
	}
	if !to.IsZero() {
		req.To = to.Format(time.DateOnly)
	}
	return call(ctx, c.statistics, req)
}

func (c *Client) Preferences(ctx context.Context) (*review.Preferences, error) {
	return call(ctx, c.preferences, &review.Empty{})
}

func (c *Client) UpdatePreferences(ctx context.Context, prefs *review.Preferences) (*review.Preferences, error) {
	return call(ctx, c.updatePreferences, prefs)
}

func (c *Client) AvailableModes(ctx context.Context) ([]review.ModeInfo, error) {
	resp, err := call(ctx, c.availableModes, &review.Empty{})
	if err != nil {
		return nil, err
	}
	return resp.Modes, nil
}

func (c *Client) SuspendCard(ctx context.Context, cardID string) error {
	_, err := call(ctx, c.suspendCard, &review.CardRequest{CardID: cardID})
	return err
}

func (c *Client) UnsuspendCard(ctx context.Context, cardID string) error {
	_, err := call(ctx, c.unsuspendCard, &review.CardRequest{CardID: cardID})
	return err
}

func (c *Client) ResetCard(ctx context.Context, cardID string) error {
	_, err := call(ctx, c.resetCard, &review.CardRequest{CardID: cardID})
	return err
}

func (c *Client) DeleteCard(ctx context.Context, cardID string) error {
	_, err := call(ctx, c.deleteCard, &review.CardRequest{CardID: cardID})
	return err
}
