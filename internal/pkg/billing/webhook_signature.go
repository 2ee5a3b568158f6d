package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	signatureScheme = "v1"

	// DefaultSignatureTolerance is the accepted clock skew between the
	// processor's signing timestamp and our clock, in both directions.
	DefaultSignatureTolerance = 5 * time.Minute
)

// VerifySignature checks a "t=<unix>,v1=<hex>" signature header against the
// raw request body. The digest is HMAC-SHA256(secret, "<t>.<body>"), so the
// body must be the exact bytes received.
func VerifySignature(payload []byte, signatureHeader, secret string, now time.Time, tolerance time.Duration) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrSignatureInvalid)
	}

	ts, sigs, err := parseSignatureHeader(signatureHeader)
	if err != nil {
		return err
	}

	expected := computeSignature(ts, payload, secret)
	matched := false
	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: digest mismatch", ErrSignatureInvalid)
	}

	if tolerance > 0 {
		skew := now.Sub(time.Unix(ts, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > tolerance {
			return fmt.Errorf("%w: %w (skew %s)", ErrSignatureInvalid, ErrSignatureExpired, skew.Truncate(time.Second))
		}
	}
	return nil
}

// SignatureHeader builds a header value the way the processor does.
func SignatureHeader(ts time.Time, payload []byte, secret string) string {
	unix := ts.Unix()
	return fmt.Sprintf("t=%d,%s=%s", unix, signatureScheme, hex.EncodeToString(computeSignature(unix, payload, secret)))
}

func computeSignature(ts int64, payload []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(ts, 10)))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

func parseSignatureHeader(header string) (int64, [][]byte, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, fmt.Errorf("%w: missing signature header", ErrSignatureInvalid)
	}

	var (
		ts    int64
		hasTS bool
		sigs  [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("%w: malformed timestamp", ErrSignatureInvalid)
			}
			ts = parsed
			hasTS = true
		case signatureScheme:
			sig, err := hex.DecodeString(strings.ToLower(value))
			if err != nil {
				// Other entries may still match.
				continue
			}
			sigs = append(sigs, sig)
		}
	}

	if !hasTS {
		return 0, nil, fmt.Errorf("%w: missing timestamp", ErrSignatureInvalid)
	}
	if len(sigs) == 0 {
		return 0, nil, fmt.Errorf("%w: no %s signature", ErrSignatureInvalid, signatureScheme)
	}
	return ts, sigs, nil
}
