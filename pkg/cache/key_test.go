package cache

import (
	"net/url"
	"strings"
	"testing"
)

func TestGenerateKey_Deterministic(t *testing.T) {
	params := url.Values{"lat": {"35.0"}, "lng": {"139.0"}}

	k1 := GenerateKey("/v1/points/near", params)
	k2 := GenerateKey("/v1/points/near", params)

	if k1 != k2 {
		t.Errorf("Same inputs produced different keys: %q vs %q", k1, k2)
	}
}

func TestGenerateKey_OrderIndependent(t *testing.T) {
	// url.Values iteration order is random, so building the same logical
	// parameter set repeatedly exercises order independence directly.
	base := GenerateKey("/v1/search", url.Values{
		"a": {"1"}, "b": {"2"}, "c": {"3"}, "d": {"4"}, "e": {"5"},
	})

	for i := 0; i < 20; i++ {
		params := url.Values{}
		params.Set("e", "5")
		params.Set("c", "3")
		params.Set("a", "1")
		params.Set("d", "4")
		params.Set("b", "2")

		if key := GenerateKey("/v1/search", params); key != base {
			t.Fatalf("Key changed with parameter insertion order: %q vs %q", key, base)
		}
	}
}

func TestGenerateKey_MultiValueOrderIndependent(t *testing.T) {
	k1 := GenerateKey("/v1/search", url.Values{"tag": {"b", "a"}})
	k2 := GenerateKey("/v1/search", url.Values{"tag": {"a", "b"}})

	if k1 != k2 {
		t.Errorf("Multi-value parameter order changed the key: %q vs %q", k1, k2)
	}
}

func TestGenerateKey_DistinguishesInputs(t *testing.T) {
	tests := []struct {
		name      string
		endpointA string
		paramsA   url.Values
		endpointB string
		paramsB   url.Values
	}{
		{"different endpoints", "/v1/a", nil, "/v1/b", nil},
		{"different values", "/v1/a", url.Values{"q": {"x"}}, "/v1/a", url.Values{"q": {"y"}}},
		{"different names", "/v1/a", url.Values{"q": {"x"}}, "/v1/a", url.Values{"p": {"x"}}},
		{"params vs none", "/v1/a", url.Values{"q": {"x"}}, "/v1/a", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kA := GenerateKey(tt.endpointA, tt.paramsA)
			kB := GenerateKey(tt.endpointB, tt.paramsB)
			if kA == kB {
				t.Errorf("Distinct inputs collided on key %q", kA)
			}
		})
	}
}

func TestGenerateKey_Format(t *testing.T) {
	key := GenerateKey("/v1/points/near", url.Values{"lat": {"35.0"}})

	if !strings.HasPrefix(key, "near_") {
		t.Errorf("Key %q should be prefixed with the last path segment", key)
	}
	if got := len(key) - len("near_"); got != 16 {
		t.Errorf("Hash suffix length = %d, want 16", got)
	}
}

func TestGenerateKey_EmptyEndpoint(t *testing.T) {
	key := GenerateKey("/", nil)
	if !strings.HasPrefix(key, "root_") {
		t.Errorf("Key for bare endpoint = %q, want root_ prefix", key)
	}
}
