package service

import (
	"testing"

	"github.com/haatos/simple-cd/internal/pipeline"
	"github.com/stretchr/testify/assert"
)

func TestManifest_ParseDeployManifest(t *testing.T) {
	t.Run("success - full manifest is parsed", func(t *testing.T) {
		// arrange
		input := []byte(`
stack: MicroservicesStack
app_dir: infra
require_approval: broadening
image_tag: v1.2.3
artifacts: cdk.out
`)

		// act
		m, err := ParseDeployManifest(input)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, "MicroservicesStack", m.Stack)
		assert.Equal(t, "infra", m.AppDir)
		assert.Equal(t, "broadening", m.RequireApproval)
		assert.Equal(t, "v1.2.3", m.ImageTag)
		assert.Equal(t, "cdk.out", m.Artifacts)
	})

	t.Run("success - empty manifest falls back to defaults", func(t *testing.T) {
		// arrange
		input := []byte(`{}`)

		// act
		m, err := ParseDeployManifest(input)

		// assert
		assert.NoError(t, err)
		assert.Equal(t, DefaultStackName, m.Stack)
		assert.Equal(t, pipeline.ApprovalNever, m.RequireApproval)

		def := m.StackDefinition()
		assert.Equal(t, DefaultStackName, def.StackName)
		assert.Equal(t, pipeline.ApprovalNever, def.RequireApproval)
	})

	t.Run("fail - invalid yaml", func(t *testing.T) {
		// act
		_, err := ParseDeployManifest([]byte("stack: [unclosed"))

		// assert
		assert.Error(t, err)
	})
}

func TestWorkspace_RepositoryDir(t *testing.T) {
	t.Run("success - repository directory derived from clone url", func(t *testing.T) {
		assert.Equal(
			t, "microservices",
			repositoryDir("git@example.com:org/microservices.git"),
		)
		assert.Equal(
			t, "microservices",
			repositoryDir("https://example.com/org/microservices"),
		)
	})
}
