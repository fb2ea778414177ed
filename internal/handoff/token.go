// Package handoff implements the in-person return check. The claimant shows
// a short-lived signed code, and the finder scans it to mark the item as
// returned.
package handoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Purpose tags payloads meant for return verification.
const Purpose = "verify_return"

// Validity is how long an issued code can be redeemed.
const Validity = 10 * time.Minute

var (
	ErrUnrecognized = errors.New("unrecognized format")
	ErrInvalid      = errors.New("invalid code")
	ErrExpired      = errors.New("QR code expired")
)

type payloadClaims struct {
	ItemID string `json:"item_id"`
	Action string `json:"action"`
	TS     int64  `json:"ts"`
	jwt.RegisteredClaims
}

// Token is a decoded handoff code.
type Token struct {
	ItemID   string    `json:"item_id"`
	HolderID string    `json:"holder_id"`
	IssuedAt time.Time `json:"issued_at"`
	Payload  string    `json:"payload"`
}

// ExpiresAt returns the instant after which the code is refused.
func (t Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(Validity)
}

// Codec signs and checks handoff payloads with a per-installation key.
type Codec struct {
	secret []byte
}

// NewCodec returns a codec using secret as the HMAC key.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Issue creates a signed payload for itemID, bound to the claimant holding it.
func (c *Codec) Issue(itemID, holderID string, now time.Time) (Token, error) {
	claims := payloadClaims{
		ItemID: itemID,
		Action: Purpose,
		TS:     now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: holderID,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return Token{}, fmt.Errorf("signing handoff payload: %w", err)
	}
	return Token{
		ItemID:   itemID,
		HolderID: holderID,
		IssuedAt: time.UnixMilli(claims.TS),
		Payload:  signed,
	}, nil
}

// Parse checks the payload's format, signature and fields without looking
// at its age.
func (c *Codec) Parse(payload string) (Token, error) {
	var claims payloadClaims
	_, err := jwt.ParseWithClaims(payload, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return Token{}, fmt.Errorf("%w: %v", ErrUnrecognized, err)
		}
		return Token{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Action != Purpose || claims.ItemID == "" || claims.TS == 0 || claims.Subject == "" {
		return Token{}, ErrInvalid
	}
	return Token{
		ItemID:   claims.ItemID,
		HolderID: claims.Subject,
		IssuedAt: time.UnixMilli(claims.TS),
		Payload:  payload,
	}, nil
}

// Validate parses the payload and refuses it once more than Validity has
// passed since issuance.
func (c *Codec) Validate(payload string, now time.Time) (Token, error) {
	t, err := c.Parse(payload)
	if err != nil {
		return Token{}, err
	}
	if now.UnixMilli()-t.IssuedAt.UnixMilli() > Validity.Milliseconds() {
		return Token{}, ErrExpired
	}
	return t, nil
}
