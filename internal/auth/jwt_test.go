package auth

import (
	"testing"
	"time"
)

var secret = []byte("segredo-de-teste-com-32-caracteres!!")

func TestBuildEParseJWT(t *testing.T) {
	token, err := BuildJWT(secret, "user-1", RoleOperador, time.Hour)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	claims, err := ParseJWT(secret, token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.Role != RoleOperador {
		t.Errorf("claims: %+v", claims)
	}
}

func TestParseJWT_SegredoErrado(t *testing.T) {
	token, err := BuildJWT(secret, "user-1", RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := ParseJWT([]byte("outro-segredo-tambem-com-32-chars!!!"), token); err == nil {
		t.Error("parse com segredo errado deveria falhar")
	}
}

func TestParseJWT_Expirado(t *testing.T) {
	token, err := BuildJWT(secret, "user-1", RoleOperador, -time.Minute)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := ParseJWT(secret, token); err == nil {
		t.Error("token expirado deveria falhar")
	}
}
