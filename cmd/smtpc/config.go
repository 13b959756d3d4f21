package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	yaml "gopkg.in/yaml.v3"

	"github.com/teawithsand/smtpc/internal/expand"
)

// yamlLoader resolves flags from a YAML mapping of flag names to values.
// Both "dkim-keys" and "dkim_keys" spellings are accepted, and string values
// may refer to environment variables as ${env.NAME}.
func yamlLoader(r io.Reader) (kong.Resolver, error) {
	var values map[string]interface{}
	err := yaml.NewDecoder(r).Decode(&values)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (interface{}, error) {
		for _, name := range []string{flag.Name, strings.ReplaceAll(flag.Name, "-", "_")} {
			v, ok := values[name]
			if !ok {
				continue
			}
			switch v := v.(type) {
			case string:
				return expand.ExpandEnv(v), nil
			case []interface{}:
				ss := make([]string, 0, len(v))
				for _, e := range v {
					ss = append(ss, expand.ExpandEnv(fmt.Sprint(e)))
				}
				return strings.Join(ss, ","), nil
			default:
				return v, nil
			}
		}
		return nil, nil
	}), nil
}
