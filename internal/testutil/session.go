package testutil

// DefaultSession is used when a scenario does not name its session.
const DefaultSession = "test-session-default"

// FixedSessionGenerator returns the same session token on every call, so all
// journal entries of a scenario share one session.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator creates a generator for token. An empty token
// falls back to DefaultSession.
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = DefaultSession
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed token. Implements journal.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
