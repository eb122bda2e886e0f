package fetcher

import (
	"crypto/rand"
	"math/big"
	"net/http"
)

const jitterResolution = 1 << 53

// browserHeaders returns the header set sent with every attempt for the
// given identity.
func browserHeaders(identity string) http.Header {
	h := http.Header{}
	h.Set("User-Agent", identity)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.5")
	h.Set("Accept-Encoding", "gzip, deflate")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h
}

// mergeHeaders layers caller headers over the identity headers.
func mergeHeaders(base, overrides http.Header) http.Header {
	out := cloneHeader(base)
	for k, values := range overrides {
		out[http.CanonicalHeaderKey(k)] = append([]string(nil), values...)
	}
	return out
}

// randomIndex returns a uniform index in [0, n).
func randomIndex(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// randomFraction returns a uniform value in [0, 1).
func randomFraction() float64 {
	v, err := rand.Int(rand.Reader, big.NewInt(jitterResolution))
	if err != nil {
		return 0.5
	}
	return float64(v.Int64()) / jitterResolution
}
