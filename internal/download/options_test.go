package download

import "testing"

func TestResolveConfig_RetryCountUnsetUsesDefault(t *testing.T) {
	r, err := resolveConfig(Config{URL: "http://example.com/f", DestFile: "/tmp/f"})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if r.retryCount != 10 {
		t.Errorf("retryCount = %d, want default 10", r.retryCount)
	}
}

// A caller explicitly asking for zero retries (one attempt only) must get
// exactly that, not the default — zero is a meaningful, distinct value
// from "unset".
func TestResolveConfig_RetryCountExplicitZero(t *testing.T) {
	r, err := resolveConfig(Config{
		URL: "http://example.com/f", DestFile: "/tmp/f",
		RetryCount: IntPtr(0),
	})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if r.retryCount != 0 {
		t.Errorf("retryCount = %d, want explicit 0", r.retryCount)
	}
}

func TestResolveConfig_RetryCountExplicitNonZero(t *testing.T) {
	r, err := resolveConfig(Config{
		URL: "http://example.com/f", DestFile: "/tmp/f",
		RetryCount: IntPtr(3),
	})
	if err != nil {
		t.Fatalf("resolveConfig: %v", err)
	}
	if r.retryCount != 3 {
		t.Errorf("retryCount = %d, want 3", r.retryCount)
	}
}

func TestResolveConfig_RetryCountNegativeRejected(t *testing.T) {
	_, err := resolveConfig(Config{
		URL: "http://example.com/f", DestFile: "/tmp/f",
		RetryCount: IntPtr(-1),
	})
	if err == nil {
		t.Fatal("expected an error for a negative retry count")
	}
	if ce, ok := err.(*ConfigError); !ok || ce.Field != "RetryCount" {
		t.Errorf("expected *ConfigError{Field: RetryCount}, got %T: %v", err, err)
	}
}
