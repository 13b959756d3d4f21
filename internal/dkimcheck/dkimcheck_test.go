package dkimcheck

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/emersion/go-msgauth/dkim"
	"github.com/stretchr/testify/assert"
)

const message = "From: a@example.com\r\n" +
	"To: b@example.org\r\n" +
	"Subject: hello\r\n" +
	"\r\n" +
	"body\r\n"

func sign(t *testing.T, key ed25519.PrivateKey, msg string) []byte {
	var buf bytes.Buffer
	err := dkim.Sign(&buf, strings.NewReader(msg), &dkim.SignOptions{
		Domain:   "example.com",
		Selector: "selector",
		Signer:   key,
	})
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	return buf.Bytes()
}

func record(pub ed25519.PublicKey) string {
	return "v=DKIM1; k=ed25519; p=" + base64.StdEncoding.EncodeToString(pub)
}

func TestParseKeyTable(t *testing.T) {
	t.Setenv("SMTPC_DKIM_TEST_KEY", "p=abc")
	kt, err := ParseKeyTable([]byte(`
Selector._domainkey.Example.com.: "v=DKIM1; ${env.SMTPC_DKIM_TEST_KEY}"
other._domainkey.example.org:
  - "v=DKIM1; p=one"
  - "v=DKIM1; p=two"
`))
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	assert.Equal(t, KeyTable{
		"selector._domainkey.example.com": {"v=DKIM1; p=abc"},
		"other._domainkey.example.org":    {"v=DKIM1; p=one", "v=DKIM1; p=two"},
	}, kt)

	txts, err := kt.LookupTXT("SELECTOR._domainkey.example.com")
	if assert.NoError(t, err) {
		assert.Equal(t, []string{"v=DKIM1; p=abc"}, txts)
	}
	_, err = kt.LookupTXT("missing._domainkey.example.com")
	assert.ErrorIs(t, err, ErrNoKey)

	_, err = ParseKeyTable([]byte("a: {b: c}"))
	assert.Error(t, err)
	_, err = ParseKeyTable([]byte("a: [1, {b: c}]"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	if !assert.NoError(t, err) {
		t.FailNow()
	}
	signed := sign(t, key, message)
	kt := KeyTable{"selector._domainkey.example.com": {record(pub)}}

	results, err := Verify(bytes.NewReader(signed), kt)
	if assert.NoError(t, err) && assert.Len(t, results, 1) {
		assert.Equal(t, "example.com", results[0].Domain)
		assert.True(t, results[0].OK())
	}

	tampered := bytes.Replace(signed, []byte("body"), []byte("evil"), 1)
	results, err = Verify(bytes.NewReader(tampered), kt)
	if assert.NoError(t, err) && assert.Len(t, results, 1) {
		assert.False(t, results[0].OK())
	}

	results, err = Verify(bytes.NewReader(signed), KeyTable{})
	if assert.NoError(t, err) && assert.Len(t, results, 1) {
		assert.False(t, results[0].OK())
	}

	results, err = Verify(strings.NewReader(message), kt)
	if assert.NoError(t, err) {
		assert.Empty(t, results)
	}
}
