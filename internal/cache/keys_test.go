// v1
// internal/cache/keys_test.go
package cache

import "testing"

func TestCodesKeyCanonicalization(t *testing.T) {
	if CodesKey("nbc_2025") != CodesKey("  NBC_2025 ") {
		t.Fatalf("expected identical keys for systems differing by case and padding")
	}
	if CodesKey("NBC_2025") == CodesKey("IRC_2024") {
		t.Fatalf("expected different keys for different systems")
	}
	if CodesKey("") == SystemsKey() {
		t.Fatalf("codes and systems keys must not collide")
	}
}
