package seed

import (
	"testing"

	"github.com/bissquit/incident-console/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestDemoData(t *testing.T) {
	roles := map[domain.Role]bool{}
	for _, u := range users {
		roles[u.role] = true
	}
	assert.Len(t, roles, 3, "every role has a demo user")

	for _, s := range services {
		for _, sev := range []domain.Severity{
			domain.SeveritySEV1, domain.SeveritySEV2, domain.SeveritySEV3, domain.SeveritySEV4,
		} {
			assert.Positive(t, s.policy[sev], "%s %s", s.name, sev)
		}
	}

	for _, rb := range runbooks {
		assert.Less(t, rb.service, len(services), rb.title)
		assert.NotEmpty(t, rb.steps, rb.title)
	}
}
