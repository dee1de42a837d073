package zadarma

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"net/url"
)

// signature builds the Authorization header value for a request.
// The signed payload is method + sorted query string + md5(query string),
// HMAC-SHA1'd with the secret; the hex digest is then base64 encoded.
func signature(key, secret, method string, params url.Values) string {
	query := params.Encode()
	sum := md5.Sum([]byte(query))

	mac := hmac.New(sha1.New, []byte(secret))
	mac.Write([]byte(method + query + hex.EncodeToString(sum[:])))
	digest := hex.EncodeToString(mac.Sum(nil))

	return key + ":" + base64.StdEncoding.EncodeToString([]byte(digest))
}
