package build

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readDockerfile(t *testing.T) string {
	t.Helper()
	content, err := os.ReadFile("Dockerfile")
	require.NoError(t, err, "Dockerfile should exist in build/ directory")
	return string(content)
}

func TestDockerfileStructure(t *testing.T) {
	content := readDockerfile(t)

	// Multi-stage: Go toolchain for the build, slim Debian for the runtime
	stages := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.HasPrefix(line, "FROM ") {
			stages++
		}
	}
	assert.Equal(t, 2, stages, "Dockerfile should have exactly two stages")
	assert.Contains(t, content, "FROM golang:", "Dockerfile should build with the Go image")
	assert.Contains(t, content, "AS builder")
	assert.Contains(t, content, "COPY --from=builder")

	assert.Contains(t, content, "RUN apt-get update", "Dockerfile should install system dependencies")
	assert.Contains(t, content, "ffmpeg", "Dockerfile should install FFmpeg for audio decoding")
	assert.Contains(t, content, "go build", "Dockerfile should build the Go application")
	assert.Contains(t, content, "./cmd/diarizer")
	assert.Contains(t, content, `ENTRYPOINT ["diarizer"]`)
}

func TestDockerfileRunsAsSystemUser(t *testing.T) {
	content := readDockerfile(t)

	assert.Contains(t, content, "useradd -r", "Dockerfile should create a system user")
	assert.Contains(t, content, "USER diarizer")
	assert.Contains(t, content, "HEALTHCHECK")
}

func TestDockerfileCoverage(t *testing.T) {
	content := readDockerfile(t)

	assert.Contains(t, content, "go test")
	assert.Contains(t, content, "-coverprofile")
}

func TestDockerfileOptimization(t *testing.T) {
	content := readDockerfile(t)

	modCopy := strings.Index(content, "COPY go.mod")
	download := strings.Index(content, "RUN go mod download")
	sourceCopy := strings.Index(content, "COPY internal")

	require.NotEqual(t, -1, modCopy, "Dockerfile should copy go.mod first for dependency caching")
	require.NotEqual(t, -1, download, "Dockerfile should download dependencies before copying source")
	require.NotEqual(t, -1, sourceCopy)
	assert.Less(t, modCopy, download)
	assert.Less(t, download, sourceCopy)
	assert.Contains(t, content, "CGO_ENABLED=0")
	assert.Contains(t, content, "-X main.version=")
}

func TestDockerfileSecrets(t *testing.T) {
	content := strings.ToLower(readDockerfile(t))

	secretPatterns := []string{
		"password",
		"secret",
		"key=",
		"token",
		"api_key",
	}

	for _, pattern := range secretPatterns {
		assert.NotContains(t, content, pattern,
			"Dockerfile should not contain hardcoded secrets: %s", pattern)
	}
}
