package handoff

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is how long an enrollment link stays valid.
const DefaultTTL = 10 * time.Minute

// issuer names this console in the token.
const issuer = "gymdesk"

// ErrInvalidToken is returned for tokens that are malformed, expired or signed with another key.
var ErrInvalidToken = errors.New("invalid hand-off token")

type claims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// Issuer signs short-lived links that open the face capture page for one member.
type Issuer struct {
	secret  []byte
	pageURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer returns an issuer signing HS256 tokens with secret.
// PRE: secret is non-empty; pageURL is an absolute URL
// POST: ttl <= 0 uses DefaultTTL
func NewIssuer(secret, pageURL string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("hand-off secret cannot be empty")
	}
	u, err := url.Parse(pageURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("face page URL %q is not absolute", pageURL)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), pageURL: pageURL, ttl: ttl, now: time.Now}, nil
}

// Token signs a token whose subject is the member id.
// PRE: memberID > 0
func (i *Issuer) Token(memberID int64, name string) (string, error) {
	if memberID <= 0 {
		return "", errors.New("member id must be positive")
	}
	now := i.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(memberID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Name: name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Link returns the face capture page URL carrying a token for memberID.
// POST: the page URL's existing query parameters are preserved
func (i *Issuer) Link(memberID int64, name string) (string, error) {
	tok, err := i.Token(memberID, name)
	if err != nil {
		return "", err
	}
	u, _ := url.Parse(i.pageURL)
	q := u.Query()
	q.Set("token", tok)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Parse verifies a token and returns the member id it was issued for.
// POST: errors wrap ErrInvalidToken
func (i *Issuer) Parse(token string) (int64, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return id, nil
}
