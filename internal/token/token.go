package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes a token to exactly one state transition.
type Purpose string

const (
	PurposeApproveGeneration Purpose = "approve-generation"
	PurposeSkipStory         Purpose = "skip-story"
	PurposePublishDraft      Purpose = "publish-draft"
	PurposeRejectDraft       Purpose = "reject-draft"
)

var (
	ErrExpired      = errors.New("token expired")
	ErrBadSignature = errors.New("token signature invalid")
	ErrMalformed    = errors.New("token malformed")
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

type actionClaims struct {
	Purpose Purpose `json:"purpose"`
	// Slug rides along on publish-draft tokens only. A draft's slug exists
	// before publication but is never stored on an unpublished record, so
	// the signed token is where it survives the review window.
	Slug string `json:"slug,omitempty"`
	jwt.RegisteredClaims
}

// Claims is what a verified token authorizes.
type Claims struct {
	SubjectID uuid.UUID
	Slug      string
}

// Issuer mints and verifies single-purpose, expiring action tokens. Tokens
// are HS256-signed with a process-wide secret; nothing is persisted, so
// replay protection comes from the caller re-checking the record's current
// status before acting.
type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Issue creates a token authorizing one purpose on one story for ttl.
func (i *Issuer) Issue(subjectID uuid.UUID, purpose Purpose, ttl time.Duration) (string, error) {
	return i.sign(actionClaims{Purpose: purpose}, subjectID, ttl)
}

// IssuePublish creates a publish-draft token that also carries the slug the
// generation service produced for the draft.
func (i *Issuer) IssuePublish(subjectID uuid.UUID, slug string, ttl time.Duration) (string, error) {
	return i.sign(actionClaims{Purpose: PurposePublishDraft, Slug: slug}, subjectID, ttl)
}

func (i *Issuer) sign(claims actionClaims, subjectID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subjectID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign action token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and purpose, and returns what the token
// authorizes. The purpose must match the endpoint consuming the token; an
// approve-generation token never satisfies a publish-draft check.
func (i *Issuer) Verify(tokenString string, purpose Purpose) (Claims, error) {
	var claims actionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrBadSignature
		default:
			return Claims{}, ErrMalformed
		}
	}

	if claims.Purpose != purpose {
		return Claims{}, ErrWrongPurpose
	}

	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Claims{}, ErrMalformed
	}
	return Claims{SubjectID: subjectID, Slug: claims.Slug}, nil
}
