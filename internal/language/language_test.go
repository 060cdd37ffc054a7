package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		{"main.go", Go},
		{"src/app.py", Python},
		{"web/index.JS", JavaScript},
		{"web/app.tsx", TypeScript},
		{"conf/settings.yml", YAML},
		{"requirements.txt", Requirements},
		{"deploy/requirements-dev.txt", Requirements},
		{"frontend/package.json", PackageJSON},
		{"go.mod", GoMod},
		{"Dockerfile", Dockerfile},
		{"build/Dockerfile.prod", Dockerfile},
		{".github/workflows/ci.yml", GitHubWorkflow},
		{"svc/.github/workflows/release.yaml", GitHubWorkflow},
		{".env", Env},
		{"README", Unknown},
		{"image.png", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path))
		})
	}
}

func TestEcosystem(t *testing.T) {
	assert.Equal(t, "pypi", Ecosystem(Requirements))
	assert.Equal(t, "npm", Ecosystem(PackageJSON))
	assert.Equal(t, "", Ecosystem(Go))
	assert.True(t, IsManifest(Dockerfile))
	assert.False(t, IsManifest(Python))
}
