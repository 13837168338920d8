package config

import (
	"fmt"
	"strconv"
	"strings"
)

// resolveKeys builds the ordered key list: credentials.keys first, then every env
// slot PREFIX1..PREFIXn. Gaps and blanks are skipped, duplicates keep the first position.
func (c *CredentialsConfig) resolveKeys(lookup func(string) (string, bool)) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(k string) {
		k = strings.TrimSpace(k)
		if k == "" {
			return
		}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range c.Keys {
		add(k)
	}
	if lookup != nil {
		for i := 1; i <= c.MaxEnvSlots; i++ {
			if v, ok := lookup(c.EnvPrefix + strconv.Itoa(i)); ok {
				add(v)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no provider credentials configured: set credentials.keys or %s1..%s%d",
			c.EnvPrefix, c.EnvPrefix, c.MaxEnvSlots)
	}
	return out, nil
}
