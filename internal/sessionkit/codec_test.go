package sessionkit

import (
	"testing"
	"time"
)

func TestDecodeMalformedYieldsNil(t *testing.T) {
	t.Parallel()
	codec := NewTokenCodec()

	for _, token := range []string{"", "   ", "not-a-jwt", "a.b", "a.b.c"} {
		if claims := codec.Decode(token); claims != nil {
			t.Fatalf("expected nil claims for %q, got %+v", token, claims)
		}
	}
}

func TestDecodeRequiresSubject(t *testing.T) {
	t.Parallel()
	codec := NewTokenCodec()

	token := mintTestCredential(t, "", time.Now().Add(time.Hour))
	if claims := codec.Decode(token); claims != nil {
		t.Fatalf("expected nil claims for subject-less token, got %+v", claims)
	}
}

func TestDecodeCachesPerToken(t *testing.T) {
	t.Parallel()
	codec := NewTokenCodec()
	token := mintTestCredential(t, "user-1", time.Now().Add(time.Hour))

	first := codec.Decode(token)
	if first == nil {
		t.Fatalf("expected claims")
	}
	second := codec.Decode(token)
	if first != second {
		t.Fatalf("expected cached claims pointer on repeated decode")
	}

	codec.Invalidate()
	third := codec.Decode(token)
	if third == nil {
		t.Fatalf("expected claims after invalidate")
	}
	if third == first {
		t.Fatalf("expected fresh parse after invalidate")
	}
}

func TestDecodeExtractsIdentityFields(t *testing.T) {
	t.Parallel()
	codec := NewTokenCodec()
	token := mintTestCredential(t, "user-7", time.Now().Add(time.Hour))

	claims := codec.Decode(token)
	if claims == nil {
		t.Fatalf("expected claims")
	}
	if claims.SubjectID() != "user-7" {
		t.Fatalf("expected subject user-7, got %q", claims.SubjectID())
	}
	if claims.UserRole != "user" {
		t.Fatalf("expected role user, got %q", claims.UserRole)
	}
	if claims.UserEmail != "user-7@example.com" {
		t.Fatalf("unexpected email %q", claims.UserEmail)
	}
}

func TestIsExpiredBoundaryIsInclusive(t *testing.T) {
	t.Parallel()
	codec := NewTokenCodec()
	reference := time.Unix(1700000000, 0).UTC()

	claims := codec.Decode(mintTestCredential(t, "user-1", reference))
	if claims == nil {
		t.Fatalf("expected claims")
	}

	// exp == now is expired; one second earlier is not.
	if !codec.IsExpired(claims, reference) {
		t.Fatalf("expected expired at exp == now")
	}
	if !codec.IsExpired(claims, reference.Add(time.Second)) {
		t.Fatalf("expected expired past exp")
	}
	if codec.IsExpired(claims, reference.Add(-time.Second)) {
		t.Fatalf("expected not expired before exp")
	}
}

func TestIsExpiredNilClaims(t *testing.T) {
	t.Parallel()
	codec := NewTokenCodec()
	if !codec.IsExpired(nil, time.Now()) {
		t.Fatalf("expected nil claims to be treated as expired")
	}
}
