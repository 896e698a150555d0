package fetch

import "math/rand"

// defaultUserAgents is the rotation pool used when the config does not
// supply its own. Common desktop browser strings.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:89.0) Gecko/20100101 Firefox/89.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36 Edg/91.0.864.59",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/96.0.4664.110 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:95.0) Gecko/20100101 Firefox/95.0",
}

// UserAgentPicker selects the User-Agent header for each request.
type UserAgentPicker struct {
	defaultAgent string
	pool         []string
	rotate       bool
}

// NewUserAgentPicker builds a picker. When rotate is false, Pick always
// returns defaultAgent. An empty pool falls back to the built-in list
// plus the configured default agent.
func NewUserAgentPicker(defaultAgent string, pool []string, rotate bool) *UserAgentPicker {
	if len(pool) == 0 {
		pool = append(append([]string{}, defaultUserAgents...), defaultAgent)
	}
	return &UserAgentPicker{
		defaultAgent: defaultAgent,
		pool:         pool,
		rotate:       rotate,
	}
}

// Pick returns the User-Agent for the next request.
func (p *UserAgentPicker) Pick() string {
	if !p.rotate || len(p.pool) == 0 {
		return p.defaultAgent
	}
	return p.pool[rand.Intn(len(p.pool))]
}
