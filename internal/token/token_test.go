package token

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer("test-secret")
	storyID := uuid.New()

	tok, err := issuer.Issue(storyID, PurposeApproveGeneration, time.Hour)
	require.NoError(t, err)

	claims, err := issuer.Verify(tok, PurposeApproveGeneration)
	require.NoError(t, err)
	assert.Equal(t, storyID, claims.SubjectID)
	assert.Empty(t, claims.Slug)
}

func TestIssuePublishCarriesSlug(t *testing.T) {
	issuer := NewIssuer("test-secret")
	storyID := uuid.New()

	tok, err := issuer.IssuePublish(storyID, "big-solar-breakthrough", time.Hour)
	require.NoError(t, err)

	claims, err := issuer.Verify(tok, PurposePublishDraft)
	require.NoError(t, err)
	assert.Equal(t, storyID, claims.SubjectID)
	assert.Equal(t, "big-solar-breakthrough", claims.Slug)
}

func TestVerifyRejectsCrossPurpose(t *testing.T) {
	issuer := NewIssuer("test-secret")

	tok, err := issuer.Issue(uuid.New(), PurposeApproveGeneration, time.Hour)
	require.NoError(t, err)

	_, err = issuer.Verify(tok, PurposePublishDraft)
	assert.ErrorIs(t, err, ErrWrongPurpose)
}

func TestVerifyRejectsExpired(t *testing.T) {
	issuer := NewIssuer("test-secret")

	// correctly signed but already past its expiry
	tok, err := issuer.Issue(uuid.New(), PurposeSkipStory, -time.Minute)
	require.NoError(t, err)

	_, err = issuer.Verify(tok, PurposeSkipStory)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	issuer := NewIssuer("test-secret")
	other := NewIssuer("other-secret")

	tok, err := other.Issue(uuid.New(), PurposeRejectDraft, time.Hour)
	require.NoError(t, err)

	_, err = issuer.Verify(tok, PurposeRejectDraft)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	issuer := NewIssuer("test-secret")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"truncated", "aaa.bbb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Verify(tt.token, PurposeSkipStory)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestVerifyRejectsSwappedPayload(t *testing.T) {
	issuer := NewIssuer("test-secret")

	a, err := issuer.Issue(uuid.New(), PurposeApproveGeneration, time.Hour)
	require.NoError(t, err)
	b, err := issuer.Issue(uuid.New(), PurposeSkipStory, time.Hour)
	require.NoError(t, err)

	// payload of one token with the signature of another
	aParts := strings.Split(a, ".")
	bParts := strings.Split(b, ".")
	require.Len(t, aParts, 3)
	require.Len(t, bParts, 3)
	frankenstein := strings.Join([]string{aParts[0], aParts[1], bParts[2]}, ".")

	_, err = issuer.Verify(frankenstein, PurposeApproveGeneration)
	assert.ErrorIs(t, err, ErrBadSignature)
}
