// Package usecase validates Telegram Mini App initData credentials.
package usecase

import (
	"bytes"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Hollow93/social-casino/internal/modules/auth/domain"
)

const webAppDataKey = "WebAppData"

// Validator checks initData with the bot-token HMAC scheme and falls back to
// the Ed25519 third-party signature scheme. It holds no mutable state.
type Validator struct {
	botToken  string
	botID     int64
	publicKey ed25519.PublicKey
	maxAge    time.Duration
	maxSkew   time.Duration
	now       func() time.Time
}

// NewValidator creates a validator. A zero botID disables the signature fallback.
func NewValidator(botToken string, botID int64, publicKeyHex string, maxAge, maxSkew time.Duration) (*Validator, error) {
	var publicKey ed25519.PublicKey
	if botID != 0 {
		raw, err := hex.DecodeString(publicKeyHex)
		if err != nil {
			return nil, fmt.Errorf("decode public key: %w", err)
		}
		if len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
		}
		publicKey = raw
	}

	return &Validator{
		botToken:  botToken,
		botID:     botID,
		publicKey: publicKey,
		maxAge:    maxAge,
		maxSkew:   maxSkew,
		now:       time.Now,
	}, nil
}

// Validate checks the credential against the current time
func (v *Validator) Validate(initData string) domain.Result {
	return v.ValidateAt(initData, v.now())
}

// ValidateAt checks the credential as if evaluated at now
func (v *Validator) ValidateAt(initData string, now time.Time) domain.Result {
	pairs := parsePairs(initData)
	checkString := buildCheckString(pairs)

	res := v.validateHash(pairs, checkString)
	if res.Accepted {
		return v.postChecks(pairs, now, domain.ReasonOKHash)
	}
	if v.botID == 0 {
		return res
	}

	res = v.validateSignature(pairs, checkString)
	if res.Accepted {
		return v.postChecks(pairs, now, domain.ReasonOKSignature)
	}
	return res
}

func (v *Validator) validateHash(pairs map[string]string, checkString string) domain.Result {
	given := strings.ToLower(pairs["hash"])
	if given == "" {
		return domain.Reject(domain.ReasonMissingHash)
	}

	secret := hmacSHA256([]byte(webAppDataKey), []byte(v.botToken))
	calc := hex.EncodeToString(hmacSHA256(secret, []byte(checkString)))

	if !hmac.Equal([]byte(calc), []byte(given)) {
		return domain.Reject(domain.ReasonBadHash)
	}
	return domain.Result{Accepted: true, Reason: domain.ReasonOKHash}
}

func (v *Validator) validateSignature(pairs map[string]string, checkString string) domain.Result {
	sigB64 := pairs["signature"]
	if sigB64 == "" {
		return domain.Reject(domain.ReasonMissingSignature)
	}

	sig, err := decodeBase64URL(sigB64)
	if err != nil {
		return domain.Reject(domain.ReasonBadSignatureB64)
	}

	message := strconv.FormatInt(v.botID, 10) + ":" + webAppDataKey + "\n" + checkString
	if !ed25519.Verify(v.publicKey, []byte(message), sig) {
		return domain.Reject(domain.ReasonBadSignature)
	}
	return domain.Result{Accepted: true, Reason: domain.ReasonOKSignature}
}

// postChecks bounds staleness and clock skew, then extracts the user.
func (v *Validator) postChecks(pairs map[string]string, now time.Time, ok domain.Reason) domain.Result {
	rawDate, present := pairs["auth_date"]
	if !present {
		rawDate = "0"
	}
	authDate, err := strconv.ParseInt(rawDate, 10, 64)
	if err != nil {
		return domain.Reject(domain.ReasonBadAuthDate)
	}

	age := now.Unix() - authDate
	if age < -int64(v.maxSkew/time.Second) || age > int64(v.maxAge/time.Second) {
		return domain.Reject(domain.ReasonAuthDateTooOld)
	}

	rawUser, present := pairs["user"]
	if !present {
		rawUser = "{}"
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rawUser), &fields); err != nil {
		return domain.Reject(domain.ReasonBadUserJSON)
	}
	if _, hasID := fields["id"]; !hasID {
		return domain.Reject(domain.ReasonMissingUser)
	}

	var identity domain.Identity
	dec := json.NewDecoder(bytes.NewReader([]byte(rawUser)))
	if err := dec.Decode(&identity); err != nil {
		return domain.Reject(domain.ReasonBadUserJSON)
	}
	identity.StartParam = pairs["start_param"]

	return domain.Result{Accepted: true, Identity: &identity, Reason: ok}
}

// parsePairs decodes the query string; a repeated key keeps its last value.
// Malformed segments are skipped rather than failing the whole credential.
func parsePairs(initData string) map[string]string {
	pairs := make(map[string]string)
	for _, segment := range strings.Split(initData, "&") {
		if segment == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(segment, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			continue
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

// buildCheckString joins every pair except hash and signature as sorted key=value lines
func buildCheckString(pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		if k == "hash" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+pairs[k])
	}
	return strings.Join(lines, "\n")
}

// SignInitData returns vals encoded as initData with a bot-token hash, as the
// platform would issue it. Used by load-test clients that own the token.
func SignInitData(botToken string, vals url.Values) string {
	pairs := make(map[string]string, len(vals))
	for k := range vals {
		pairs[k] = vals.Get(k)
	}
	secret := hmacSHA256([]byte(webAppDataKey), []byte(botToken))

	signed := url.Values{}
	for k, v := range pairs {
		signed.Set(k, v)
	}
	signed.Set("hash", hex.EncodeToString(hmacSHA256(secret, []byte(buildCheckString(pairs)))))
	return signed.Encode()
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// decodeBase64URL accepts unpadded url-safe base64
func decodeBase64URL(s string) ([]byte, error) {
	if pad := (4 - len(s)%4) % 4; pad > 0 {
		s += strings.Repeat("=", pad)
	}
	return base64.URLEncoding.DecodeString(s)
}
