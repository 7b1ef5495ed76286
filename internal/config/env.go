package config

import (
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "QTDEPLOY"

// Environment holds the overrides read from QTDEPLOY_* variables. envconfig
// falls back to the unprefixed name, so a plain GITHUB_TOKEN is honoured too.
type Environment struct {
	GitHubUser            string `envconfig:"GITHUB_USER"`
	GitHubPassword        string `envconfig:"GITHUB_PASSWORD"`
	GitHubToken           string `envconfig:"GITHUB_TOKEN"`
	GitHubRetries         int    `envconfig:"GITHUB_RETRIES" default:"0"`
	MirrorAccessKeyID     string `envconfig:"MIRROR_ACCESS_KEY_ID"`
	MirrorSecretAccessKey string `envconfig:"MIRROR_SECRET_ACCESS_KEY"`
}

func NewEnvironment() (*Environment, error) {
	var env Environment
	err := envconfig.Process(envPrefix, &env)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
