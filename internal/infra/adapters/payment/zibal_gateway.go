package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/mehran-shabani/Apatie/internal/domain"
	"github.com/mehran-shabani/Apatie/internal/domain/ports/adapter"
	"github.com/mehran-shabani/Apatie/internal/infra/metrics"
)

var _ adapter.PaymentGateway = (*ZibalGateway)(nil)

// Zibal result codes.
const (
	ResultSuccess         = 100
	ResultPaymentNotFound = 102
	ResultAlreadyVerified = 201
)

// Zibal payment status codes.
const (
	StatusPaid      = 1
	StatusPending   = -1
	StatusCancelled = -2
)

// MinAmountIRR is the provider minimum; checked locally before any network call.
const MinAmountIRR = 1000

const (
	maxAttempts    = 3
	defaultTimeout = 10 * time.Second
	defaultBase    = "https://gateway.zibal.ir"
)

// GatewayError is any failure talking to the provider: timeout, transport
// error, malformed response, or a business rejection on inquiry.
type GatewayError struct {
	Op         string
	ResultCode int
	Err        error
}

func (e *GatewayError) Error() string {
	if e.ResultCode != 0 {
		return fmt.Sprintf("zibal %s: result=%d: %v", e.Op, e.ResultCode, e.Err)
	}
	return fmt.Sprintf("zibal %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsGatewayError reports whether err is (or wraps) a GatewayError.
func IsGatewayError(err error) bool {
	var ge *GatewayError
	return errors.As(err, &ge)
}

// Config is pure data; the client holds no global state.
type Config struct {
	MerchantID  string
	GatewayBase string // redirect base, e.g. https://gateway.zibal.ir
	APIBase     string // API base; same host unless overridden
	Timeout     time.Duration
	Sandbox     bool
}

func (c *Config) normalize(log *zerolog.Logger) {
	if c.GatewayBase == "" {
		c.GatewayBase = defaultBase
	}
	if c.APIBase == "" {
		c.APIBase = c.GatewayBase
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	// Zibal sandbox only accepts the shared "zibal" merchant.
	if c.Sandbox && c.MerchantID != "zibal" {
		log.Warn().Str("merchant", c.MerchantID).Msg("sandbox mode enabled; forcing merchant to 'zibal'")
		c.MerchantID = "zibal"
	}
	if c.MerchantID == "" {
		c.MerchantID = "zibal"
	}
}

// Doer abstracts the HTTP client so tests can inject a double.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ZibalGateway implements adapter.PaymentGateway against the Zibal REST API.
type ZibalGateway struct {
	cfg      Config
	client   Doer
	cb       *gobreaker.CircuitBreaker
	validate *validator.Validate
	log      *zerolog.Logger
}

func NewZibalGateway(cfg Config, logger *zerolog.Logger) *ZibalGateway {
	l := logger.With().Str("component", "ZibalGateway").Logger()
	cfg.normalize(&l)

	g := &ZibalGateway{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		validate: validator.New(),
		log:      &l,
	}
	g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "zibal-api",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn().Str("breaker", name).Stringer("from", from).Stringer("to", to).Msg("circuit breaker state change")
		},
	})
	return g
}

// SetHTTPClient replaces the transport; used by tests.
func (g *ZibalGateway) SetHTTPClient(d Doer) { g.client = d }

func (g *ZibalGateway) Name() string { return "zibal" }

// StartURL builds the user redirect target for a track id.
func (g *ZibalGateway) StartURL(trackID int64) string {
	return g.cfg.GatewayBase + "/start/" + strconv.FormatInt(trackID, 10)
}

// Result is the only field every Zibal response carries; trackId and amount
// are absent on business rejections, so they stay unvalidated.
type requestResponse struct {
	TrackID int64  `json:"trackId"`
	Result  int    `json:"result" validate:"required"`
	Message string `json:"message"`
}

type verifyResponse struct {
	PaidAt      string  `json:"paidAt"`
	Amount      int64   `json:"amount"`
	Result      int     `json:"result" validate:"required"`
	Status      int     `json:"status"`
	RefNumber   *int64  `json:"refNumber"`
	Description *string `json:"description"`
	CardNumber  *string `json:"cardNumber"`
	OrderID     *string `json:"orderId"`
	Message     string  `json:"message"`
}

type inquiryResponse struct {
	Result  int    `json:"result" validate:"required"`
	Status  int    `json:"status"`
	Amount  int64  `json:"amount"`
	Message string `json:"message"`
}

// RequestPayment asks Zibal for a new payment. The minimum-amount rule is a
// local business check and never reaches the wire.
func (g *ZibalGateway) RequestPayment(ctx context.Context, req adapter.PaymentRequest) (*adapter.PaymentRequestResult, error) {
	if req.AmountIRR < MinAmountIRR {
		return nil, fmt.Errorf("amount must be at least %d rials: %w", MinAmountIRR, domain.ErrInvalidArgument)
	}
	if req.OrderID == "" || req.CallbackURL == "" {
		return nil, fmt.Errorf("orderId and callbackUrl are required: %w", domain.ErrInvalidArgument)
	}

	payload := map[string]interface{}{
		"merchant":    g.cfg.MerchantID,
		"amount":      req.AmountIRR,
		"orderId":     req.OrderID,
		"callbackUrl": req.CallbackURL,
	}
	if req.Mobile != "" {
		payload["mobile"] = req.Mobile
	}
	if req.Description != "" {
		payload["description"] = req.Description
	}

	var out requestResponse
	if err := g.post(ctx, "v1/request", payload, &out); err != nil {
		return nil, err
	}
	return &adapter.PaymentRequestResult{
		TrackID:    out.TrackID,
		ResultCode: out.Result,
		Message:    out.Message,
		Success:    out.Result == ResultSuccess,
	}, nil
}

// VerifyPayment finalizes the payment with the provider. result 201 means the
// payment was already confirmed by a prior verify; that is surfaced as
// Success with IsDuplicate set, not as an error.
func (g *ZibalGateway) VerifyPayment(ctx context.Context, trackID int64) (*adapter.VerifyResult, error) {
	payload := map[string]interface{}{
		"merchant": g.cfg.MerchantID,
		"trackId":  trackID,
	}

	var out verifyResponse
	if err := g.post(ctx, "v1/verify", payload, &out); err != nil {
		return nil, err
	}

	res := &adapter.VerifyResult{
		ResultCode:  out.Result,
		AmountIRR:   out.Amount,
		Status:      out.Status,
		PaidAtRaw:   out.PaidAt,
		Message:     out.Message,
		Success:     out.Result == ResultSuccess || out.Result == ResultAlreadyVerified,
		IsDuplicate: out.Result == ResultAlreadyVerified,
	}
	if out.RefNumber != nil {
		res.RefNumber = strconv.FormatInt(*out.RefNumber, 10)
	}
	if out.CardNumber != nil {
		res.CardPANMasked = *out.CardNumber
	}
	if out.OrderID != nil {
		res.OrderID = *out.OrderID
	}
	if t, ok := parsePaidAt(out.PaidAt); ok {
		res.PaidAt = &t
	}
	return res, nil
}

// Inquiry reads the provider-side status. A nonzero business rejection
// (result != 100) is a GatewayError, mirroring the transport-failure path.
func (g *ZibalGateway) Inquiry(ctx context.Context, trackID int64) (*adapter.InquiryResult, error) {
	payload := map[string]interface{}{
		"merchant": g.cfg.MerchantID,
		"trackId":  trackID,
	}

	var out inquiryResponse
	if err := g.post(ctx, "v1/inquiry", payload, &out); err != nil {
		return nil, err
	}
	if out.Result != ResultSuccess {
		return nil, &GatewayError{
			Op:         "inquiry",
			ResultCode: out.Result,
			Err:        errors.New(ResultMessage(out.Result)),
		}
	}
	return &adapter.InquiryResult{
		ResultCode: out.Result,
		Status:     out.Status,
		AmountIRR:  out.Amount,
		Message:    out.Message,
	}, nil
}

// post sends one API call with bounded retries. Transport-level failures
// (dial/timeout/non-2xx) are retried up to maxAttempts with exponential
// backoff; a malformed or schema-invalid body is terminal on the first read.
func (g *ZibalGateway) post(ctx context.Context, endpoint string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &GatewayError{Op: endpoint, Err: err}
	}

	bo := &backoff.Backoff{Min: time.Second, Max: 5 * time.Second, Factor: 2, Jitter: true}
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := g.roundTrip(ctx, endpoint, body)
		if err == nil {
			if decodeErr := g.decode(endpoint, raw, out); decodeErr != nil {
				metrics.ObserveGatewayCall(endpoint, "invalid_response", time.Since(start))
				return decodeErr
			}
			metrics.ObserveGatewayCall(endpoint, "ok", time.Since(start))
			return nil
		}
		var ge *GatewayError
		if errors.As(err, &ge) {
			// roundTrip only wraps non-retryable faults (unreadable 2xx body).
			metrics.ObserveGatewayCall(endpoint, "invalid_response", time.Since(start))
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			d := bo.Duration()
			g.log.Warn().Err(err).Str("endpoint", endpoint).Int("attempt", attempt).Dur("backoff", d).
				Msg("gateway call failed; retrying")
			select {
			case <-ctx.Done():
				attempt = maxAttempts
			case <-time.After(d):
			}
		}
	}
	metrics.ObserveGatewayCall(endpoint, "error", time.Since(start))
	return &GatewayError{Op: endpoint, Err: lastErr}
}

func (g *ZibalGateway) roundTrip(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	res, err := g.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.APIBase+"/"+endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("http %d", resp.StatusCode)
		}
		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			// A 2xx with an unreadable body is a provider bug, not a
			// transient transport fault; do not retry it.
			return nil, &GatewayError{Op: endpoint, Err: fmt.Errorf("invalid response: %w", err)}
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(json.RawMessage), nil
}

func (g *ZibalGateway) decode(endpoint string, raw json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &GatewayError{Op: endpoint, Err: fmt.Errorf("invalid response: %w", err)}
	}
	if err := g.validate.Struct(out); err != nil {
		return &GatewayError{Op: endpoint, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return nil
}

// parsePaidAt accepts the timestamp shapes Zibal has been seen returning.
func parsePaidAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
