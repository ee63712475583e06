package social

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// oauth1Signer builds OAuth 1.0a HMAC-SHA1 authorization headers.
type oauth1Signer struct {
	consumerKey    string
	consumerSecret string
	token          string
	tokenSecret    string
	nonce          func() string
	now            func() time.Time
}

// authorize returns the Authorization header for a request. Query parameters
// of u are part of the signature; JSON bodies are not.
func (s *oauth1Signer) authorize(method string, u *url.URL) string {
	oauth := map[string]string{
		"oauth_consumer_key":     s.consumerKey,
		"oauth_nonce":            s.nonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.now().Unix(), 10),
		"oauth_token":            s.token,
		"oauth_version":          "1.0",
	}
	oauth["oauth_signature"] = s.sign(method, u, oauth)

	pairs := make([]string, 0, len(oauth))
	for k, v := range oauth {
		pairs = append(pairs, percentEncode(k)+"=\""+percentEncode(v)+"\"")
	}
	slices.Sort(pairs)

	return "OAuth " + strings.Join(pairs, ", ")
}

func (s *oauth1Signer) sign(method string, u *url.URL, oauth map[string]string) string {
	type param struct{ k, v string }

	var params []param
	for k, v := range oauth {
		params = append(params, param{percentEncode(k), percentEncode(v)})
	}
	for k, vs := range u.Query() {
		for _, v := range vs {
			params = append(params, param{percentEncode(k), percentEncode(v)})
		}
	}
	slices.SortFunc(params, func(a, b param) int {
		if c := strings.Compare(a.k, b.k); c != 0 {
			return c
		}
		return strings.Compare(a.v, b.v)
	})

	encoded := make([]string, len(params))
	for i, p := range params {
		encoded[i] = p.k + "=" + p.v
	}

	baseURL := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + u.EscapedPath()
	signatureBase := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(encoded, "&"))
	signingKey := percentEncode(s.consumerSecret) + "&" + percentEncode(s.tokenSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(signatureBase))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// percentEncode applies RFC 3986 encoding. url.QueryEscape differs only in
// writing spaces as '+'.
func percentEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func randomNonce() string {
	b := make([]byte, 32)
	rand.Read(b)
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return -1
	}, base64.StdEncoding.EncodeToString(b))
}
