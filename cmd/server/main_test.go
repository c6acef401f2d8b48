package main

import (
	"testing"

	"github.com/aamamaludin23/electronkasir/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", ManagerPIN: "739154", AdminPassword: "s3cure-admin"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "123456", AdminPassword: "s3cure-admin"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", ManagerPIN: "739154", AdminPassword: "admin"},
	}
	for _, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("expected weak security config to be rejected: %+v", cfg)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:    "0123456789abcdef0123456789abcdef",
		ManagerPIN:    "739154",
		AdminPassword: "s3cure-admin",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidatePINStrength(t *testing.T) {
	weak := []string{"000000", "999999", "123456", "987654", "112233", "12a456"}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Fatalf("expected %s to be rejected", pin)
		}
	}
	if err := validatePINStrength("739154"); err != nil {
		t.Fatalf("expected 739154 to pass, got %v", err)
	}
}
