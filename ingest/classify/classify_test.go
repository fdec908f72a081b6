package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Technology(t *testing.T) {
	assert.Equal(t, string(Technology), Classify("Kubernetes", "Entity"))
	assert.Equal(t, string(Technology), Classify("PyTorch", "Entity"))
}

func TestClassify_OrganizationByTitleCasePair(t *testing.T) {
	assert.Equal(t, string(Organization), Classify("Acme Robotics", "Entity"))
}

func TestClassify_OrganizationBySuffix(t *testing.T) {
	assert.Equal(t, string(Organization), Classify("Initech Corp", "Entity"))
	assert.Equal(t, string(Organization), Classify("Widget Labs", "Entity"))
}

func TestClassify_Role(t *testing.T) {
	// Single-token role names skip the >=2-title-case-token org rule.
	assert.Equal(t, string(Role), Classify("Engineer", "Entity"))
	assert.Equal(t, string(Role), Classify("CTO", "Entity"))
}

func TestClassify_TwoTitleCaseTokensPreferOrganizationOverRole(t *testing.T) {
	// Spec's organization rule (>=2 Title-Case tokens) is checked before
	// the role keyword rule, so a two-word role name still resolves to
	// Organization.
	assert.Equal(t, string(Organization), Classify("Senior Engineer", "Entity"))
}

func TestClassify_Achievement(t *testing.T) {
	assert.Equal(t, string(Achievement), Classify("Best paper award", "Entity"))
}

func TestClassify_FallsBackToExistingLabel(t *testing.T) {
	assert.Equal(t, "Entity", Classify("xyz", "Entity"))
}

func TestClassify_PriorityOrder(t *testing.T) {
	// Technology keyword should win even when the name also looks like an org.
	assert.Equal(t, string(Technology), Classify("Docker Inc", "Entity"))
}
