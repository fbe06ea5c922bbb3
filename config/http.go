package config

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Mode is the gin mode: debug, release or test.
	Mode string `json:"mode"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Mode == "" {
		c.Mode = "release"
	}
}
