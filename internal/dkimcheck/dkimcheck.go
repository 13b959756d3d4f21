// Package dkimcheck verifies DKIM signatures without DNS, against a table of
// TXT records loaded from YAML.
package dkimcheck

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/emersion/go-msgauth/dkim"
	yaml "gopkg.in/yaml.v3"

	"github.com/teawithsand/smtpc/internal/expand"
)

var ErrNoKey = errors.New("no key record")

// KeyTable maps a record name such as "selector._domainkey.example.com" to
// its TXT records.
type KeyTable map[string][]string

func (kt *KeyTable) UnmarshalYAML(n *yaml.Node) error {
	var records map[string]interface{}
	err := n.Decode(&records)
	if err != nil {
		return err
	}
	_kt := make(KeyTable, len(records))
	for name, v := range records {
		name = strings.ToLower(strings.TrimSuffix(name, "."))
		switch v := v.(type) {
		case string:
			_kt[name] = []string{expand.ExpandEnv(v)}
		case []interface{}:
			txts := make([]string, 0, len(v))
			for _, txt := range v {
				if txt, ok := txt.(string); !ok {
					return fmt.Errorf("record for %q is not a string", name)
				} else {
					txts = append(txts, expand.ExpandEnv(txt))
				}
			}
			_kt[name] = txts
		default:
			return fmt.Errorf("value for key %q is not a string or a list of strings", name)
		}
	}
	*kt = _kt
	return nil
}

func ParseKeyTable(b []byte) (KeyTable, error) {
	var kt KeyTable
	err := yaml.Unmarshal(b, &kt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse key table: %w", err)
	}
	return kt, nil
}

func LoadKeyTable(path string) (KeyTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseKeyTable(b)
}

func (kt KeyTable) LookupTXT(domain string) ([]string, error) {
	txts, ok := kt[strings.ToLower(strings.TrimSuffix(domain, "."))]
	if !ok {
		return nil, fmt.Errorf("%s: %w", domain, ErrNoKey)
	}
	return txts, nil
}

// Result is the outcome of one signature.
type Result struct {
	Domain     string
	Identifier string
	Err        error
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Verify checks every DKIM-Signature of the message read from r.
func Verify(r io.Reader, kt KeyTable) ([]Result, error) {
	verifications, err := dkim.VerifyWithOptions(
		r,
		&dkim.VerifyOptions{
			LookupTXT: kt.LookupTXT,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error occurred during DKIM verification: %w", err)
	}
	results := make([]Result, len(verifications))
	for i, v := range verifications {
		results[i] = Result{
			Domain:     v.Domain,
			Identifier: v.Identifier,
			Err:        v.Err,
		}
	}
	return results, nil
}
