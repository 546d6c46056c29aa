package redisstream

// Settings holds Redis Streams transport configuration for Watermill.
type Settings struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Topic    string `mapstructure:"topic"`
	Group    string `mapstructure:"group"`
	Consumer string `mapstructure:"consumer"`
}

const (
	DefaultAddr     = "localhost:6379"
	DefaultTopic    = "deskhand.replies"
	DefaultGroup    = "deskhand-tail"
	DefaultConsumer = "tail-1"
)

// WithDefaults fills empty fields.
func (s Settings) WithDefaults() Settings {
	if s.Addr == "" {
		s.Addr = DefaultAddr
	}
	if s.Topic == "" {
		s.Topic = DefaultTopic
	}
	if s.Group == "" {
		s.Group = DefaultGroup
	}
	if s.Consumer == "" {
		s.Consumer = DefaultConsumer
	}
	return s
}
