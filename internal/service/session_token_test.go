package service

import (
	"testing"
	"time"
)

func TestSessionTokenRoundTrip(t *testing.T) {
	token, err := SignSessionToken("secret", "consign", Actor{ID: 7, Username: "op1", Role: "Operator", StationCode: "khi"}, time.Hour)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	claims, err := ParseSessionToken("secret", "consign", token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	actor := claims.Actor()
	if actor.ID != 7 || actor.Role != "operator" || actor.StationCode != "KHI" {
		t.Fatalf("unexpected actor: %+v", actor)
	}
}

func TestParseSessionTokenRejectsBadTokens(t *testing.T) {
	valid, _ := SignSessionToken("secret", "consign", Actor{ID: 7, Username: "op1", Role: "operator"}, time.Hour)
	if _, err := ParseSessionToken("other", "consign", valid); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := ParseSessionToken("secret", "someone-else", valid); err == nil {
		t.Fatalf("expected issuer error")
	}
	expired, _ := SignSessionToken("secret", "consign", Actor{ID: 7, Role: "operator"}, -time.Minute)
	if _, err := ParseSessionToken("secret", "consign", expired); err == nil {
		t.Fatalf("expected expiry error")
	}
	noRole, _ := SignSessionToken("secret", "consign", Actor{ID: 7}, time.Hour)
	if _, err := ParseSessionToken("secret", "consign", noRole); err == nil {
		t.Fatalf("expected missing role error")
	}
}
