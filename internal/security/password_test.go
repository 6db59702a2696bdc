package security

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")

	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	if hash == "s3cret-pass" {
		t.Fatalf("hash must not equal the plaintext")
	}

	if err := CheckPassword(hash, "s3cret-pass"); err != nil {
		t.Fatalf("correct password rejected: %v", err)
	}

	if err := CheckPassword(hash, "wrong-pass"); err == nil {
		t.Fatalf("wrong password accepted")
	}
}

func TestIsBcryptHash(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		want   bool
	}{
		{name: "bcrypt_2a", stored: "$2a$10$abcdefghijklmnopqrstuv", want: true},
		{name: "bcrypt_2b", stored: "$2b$12$abcdefghijklmnopqrstuv", want: true},
		{name: "bcrypt_2y", stored: "$2y$10$abcdefghijklmnopqrstuv", want: true},
		{name: "legacy_plaintext", stored: "oldpass123", want: false},
		{name: "empty", stored: "", want: false},
		{name: "plaintext_with_dollar", stored: "$ecret", want: false},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			if got := IsBcryptHash(tt.stored); got != tt.want {
				t.Fatalf("IsBcryptHash(%q) = %v, want %v", tt.stored, got, tt.want)
			}
		})
	}
}

func TestCheckLegacyPassword(t *testing.T) {
	if !CheckLegacyPassword("oldpass123", "oldpass123") {
		t.Fatalf("matching legacy credential rejected")
	}

	if CheckLegacyPassword("oldpass123", "oldpass124") {
		t.Fatalf("mismatched legacy credential accepted")
	}

	if CheckLegacyPassword("oldpass123", "oldpass12") {
		t.Fatalf("shorter legacy credential accepted")
	}
}
