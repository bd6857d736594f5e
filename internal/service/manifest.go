package service

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/haatos/simple-cd/internal/pipeline"
)

// DefaultStackName matches the stack name the default cdk app declares.
const DefaultStackName = "MicroservicesStack"

// DeployManifest is the simple-cd.yml file read from the target repository.
type DeployManifest struct {
	// Stack is the name of the stack to deploy.
	Stack string `yaml:"stack"`
	// AppDir is the cdk app directory relative to the repository root.
	AppDir string `yaml:"app_dir"`
	// RequireApproval mirrors cdk's --require-approval values. Empty means
	// "never": deploys are unattended and auto-approved.
	RequireApproval string `yaml:"require_approval"`
	// ImageTag is the tag each service unit image must carry. Empty means
	// "latest".
	ImageTag string `yaml:"image_tag"`
	// Artifacts is a directory to collect after a passed run, relative to
	// the cdk app directory.
	Artifacts string `yaml:"artifacts"`
}

func ReadDeployManifest(path string) (*DeployManifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDeployManifest(b)
}

func ParseDeployManifest(b []byte) (*DeployManifest, error) {
	m := new(DeployManifest)
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, err
	}
	if m.Stack == "" {
		m.Stack = DefaultStackName
	}
	if m.RequireApproval == "" {
		m.RequireApproval = pipeline.ApprovalNever
	}
	return m, nil
}

func (m *DeployManifest) StackDefinition() pipeline.StackDefinition {
	return pipeline.StackDefinition{
		StackName:       m.Stack,
		AppDir:          m.AppDir,
		RequireApproval: m.RequireApproval,
	}
}
