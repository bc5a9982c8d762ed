package paymentprovider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/Zhima-Mochi/marketplace-checkout/internal/domain/payment"
)

var _ domain.EventVerifier = (*Verifier)(nil)

const (
	SignatureHeader           = "Payment-Signature"
	DefaultSignatureTolerance = 5 * time.Minute
	signatureScheme           = "v1"
)

// Verifier checks the signature header of a webhook delivery and decodes it.
// The header has the form "t=<unix>,v1=<hex>[,v1=<hex>...]" where each v1 is
// HMAC-SHA256 over "<t>.<raw body>". Several v1 entries may be present while a
// secret is being rotated; one match is enough.
type Verifier struct {
	secrets   [][]byte
	tolerance time.Duration
	now       func() time.Time
}

// NewVerifier accepts signatures from any of the given secrets.
func NewVerifier(tolerance time.Duration, secrets ...string) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultSignatureTolerance
	}
	v := &Verifier{tolerance: tolerance, now: time.Now}
	for _, s := range secrets {
		if s != "" {
			v.secrets = append(v.secrets, []byte(s))
		}
	}
	return v
}

func (v *Verifier) Verify(payload []byte, header string) (domain.Event, error) {
	if len(v.secrets) == 0 {
		return domain.Event{}, fmt.Errorf("%w: no webhook secret configured", domain.ErrSignatureMismatch)
	}
	ts, sigs, err := parseHeader(header)
	if err != nil {
		return domain.Event{}, err
	}
	if age := v.now().Sub(time.Unix(ts, 0)); age > v.tolerance || age < -v.tolerance {
		return domain.Event{}, fmt.Errorf("%w: timestamp outside tolerance", domain.ErrSignatureMismatch)
	}
	if !v.matches(ts, payload, sigs) {
		return domain.Event{}, domain.ErrSignatureMismatch
	}
	return decodeEvent(payload)
}

func (v *Verifier) matches(ts int64, payload []byte, sigs [][]byte) bool {
	for _, secret := range v.secrets {
		expected := computeSignature(secret, ts, payload)
		for _, sig := range sigs {
			if hmac.Equal(expected, sig) {
				return true
			}
		}
	}
	return false
}

func parseHeader(header string) (int64, [][]byte, error) {
	if strings.TrimSpace(header) == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", domain.ErrSignatureMismatch)
	}
	var (
		ts      int64
		haveTS  bool
		entries [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		k, val, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: bad timestamp", domain.ErrSignatureMismatch)
			}
			ts, haveTS = n, true
		case signatureScheme:
			sig, err := hex.DecodeString(val)
			if err != nil {
				continue
			}
			entries = append(entries, sig)
		}
	}
	if !haveTS || len(entries) == 0 {
		return 0, nil, fmt.Errorf("%w: incomplete signature header", domain.ErrSignatureMismatch)
	}
	return ts, entries, nil
}

func computeSignature(secret []byte, ts int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// Sign builds a signature header for payload, as the provider would. Used by
// tests and local tooling that replays deliveries.
func Sign(secret string, payload []byte, at time.Time) string {
	ts := at.Unix()
	return fmt.Sprintf("t=%d,%s=%s", ts, signatureScheme, hex.EncodeToString(computeSignature([]byte(secret), ts, payload)))
}

type envelope struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object eventObject `json:"object"`
	} `json:"data"`
}

type eventObject struct {
	ID              string            `json:"id"`
	AmountTotal     *int64            `json:"amount_total"`
	Amount          *int64            `json:"amount"`
	Currency        string            `json:"currency"`
	Metadata        map[string]string `json:"metadata"`
	CustomerEmail   string            `json:"customer_email"`
	ReceiptEmail    string            `json:"receipt_email"`
	CustomerDetails *struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	} `json:"customer_details"`
}

func decodeEvent(payload []byte) (domain.Event, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return domain.Event{}, fmt.Errorf("%w: %w", domain.ErrMalformedEvent, err)
	}
	if env.ID == "" || env.Type == "" {
		return domain.Event{}, fmt.Errorf("%w: id and type are required", domain.ErrMalformedEvent)
	}

	obj := env.Data.Object
	ev := domain.Event{
		ID:          env.ID,
		Type:        domain.EventType(env.Type),
		ObjectID:    obj.ID,
		Currency:    strings.ToUpper(obj.Currency),
		Correlation: domain.CorrelationFromMetadata(obj.Metadata),
	}
	if env.Created > 0 {
		ev.Created = time.Unix(env.Created, 0).UTC()
	}
	switch {
	case obj.AmountTotal != nil:
		ev.Amount = *obj.AmountTotal
	case obj.Amount != nil:
		ev.Amount = *obj.Amount
	}
	switch {
	case obj.CustomerDetails != nil && obj.CustomerDetails.Email != "":
		ev.CustomerEmail = obj.CustomerDetails.Email
	case obj.CustomerEmail != "":
		ev.CustomerEmail = obj.CustomerEmail
	default:
		ev.CustomerEmail = obj.ReceiptEmail
	}
	return ev, nil
}
