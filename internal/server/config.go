package server

import (
	"crypto/tls"
	"time"
)

// defaultAcceptPoll bounds each accept call so the loop can observe the
// shutdown flag.
const defaultAcceptPoll = 100 * time.Millisecond

// DefaultPort is the TCP port the server listens on.
const DefaultPort uint16 = 42069

// Option alters the default configuration used during Server
// construction.
type Option interface {
	apply(*config)
}

type optionFunc func(c *config)

func (f optionFunc) apply(c *config) { f(c) }

// config defines fields used for configuring a Server instance.
type config struct {
	host       string
	port       uint16
	tlsConf    *tls.Config
	reapEvery  time.Duration
	acceptPoll time.Duration
}

// EnvConfig defines fields used for parsing from environment variables.
type EnvConfig struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port uint16 `env:"PORT" envDefault:"42069"`
}

// WithEnvConfig makes a parsed EnvConfig act as the source of the
// listen address.
func WithEnvConfig(cfg EnvConfig) Option {
	return optionFunc(func(c *config) {
		c.host = cfg.Host
		c.port = cfg.Port
	})
}

// WithTLSConfig sets the TLS configuration for accepted sessions.
func WithTLSConfig(tlsConf *tls.Config) Option {
	return optionFunc(func(c *config) {
		c.tlsConf = tlsConf
	})
}

// ReapInterval overrides how often terminated workers are swept from
// the connection set.
func ReapInterval(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.reapEvery = d
	})
}

// AcceptPoll overrides the accept deadline of the listen loop.
func AcceptPoll(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.acceptPoll = d
	})
}

// LoadTLS builds a server-side TLS configuration from a PEM private key
// and certificate file.
func LoadTLS(keyFile, certFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{Certificates: []tls.Certificate{cert}}, nil
}
