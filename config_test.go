package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			port:       8080,
			dataFile:   "partyquest.json",
			sessionTTL: 2 * time.Hour,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{name: "cert without key", mutate: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: true},
		{name: "key without cert", mutate: func(c *Config) { c.tlsKey = "key.pem" }, wantErr: true},
		{name: "cert and key together", mutate: func(c *Config) { c.tlsCert = "cert.pem"; c.tlsKey = "key.pem" }},
		{name: "port too low", mutate: func(c *Config) { c.port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.port = 65536 }, wantErr: true},
		{name: "zero session ttl", mutate: func(c *Config) { c.sessionTTL = 0 }, wantErr: true},
		{name: "empty data file", mutate: func(c *Config) { c.dataFile = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert = "cert.pem"
	cfg.tlsKey = "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestConfigRemoteConfigured(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.remoteConfigured())

	cfg.binID = "bin"
	assert.False(t, cfg.remoteConfigured())

	cfg.binKey = "key"
	assert.True(t, cfg.remoteConfigured())
}
