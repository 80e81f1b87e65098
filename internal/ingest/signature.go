package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureHeader carries the webhook signature
const SignatureHeader = "Mux-Signature"

// DefaultSignatureTolerance is how old a signed timestamp may be
const DefaultSignatureTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("webhook signature missing")
	ErrInvalidSignature = errors.New("webhook signature invalid")
	ErrStaleSignature   = errors.New("webhook signature timestamp outside tolerance")
)

// SignPayload computes the header value for body at time ts
func SignPayload(body []byte, secret string, ts time.Time) string {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", timestamp, computeSignature(timestamp, body, secret))
}

func computeSignature(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against the raw body.
// Any of several v1 values may match
func VerifySignature(header string, body []byte, secret string, tolerance time.Duration, now time.Time) error {
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var signatures []string
	for _, element := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(element), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == "" || len(signatures) == 0 {
		return fmt.Errorf("%w: missing timestamp or signature", ErrInvalidSignature)
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrInvalidSignature)
	}
	if tolerance > 0 {
		age := now.Sub(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrStaleSignature
		}
	}

	expected := []byte(computeSignature(timestamp, body, secret))
	for _, signature := range signatures {
		if hmac.Equal(expected, []byte(signature)) {
			return nil
		}
	}
	return ErrInvalidSignature
}
