package structures

import "time"

type Server struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"required|uint|min:1"`
}

type Persistence struct {
	FilePath     string        `yaml:"filePath" validate:"required|unixPath"`
	SaveInterval time.Duration `yaml:"saveInterval" validate:"required|min:1"`
}

type LoggerConfig struct {
	Level string `yaml:"level" validate:"required|in:trace,debug,info,warn,error,fatal,panic"`
	Mode  uint32 `yaml:"mode" validate:"required|uint"`
	Dir   string `yaml:"dir" validate:"required|unixPath"`
}

type ChannelConfig struct {
	RetainPerKey    int `yaml:"retainPerKey"`
	SubscriberDepth int `yaml:"subscriberDepth"`
}

type EngagementConfig struct {
	RecentReactionsCap int           `yaml:"recentReactionsCap"`
	ViewSessionWindow  time.Duration `yaml:"viewSessionWindow"`
	CoalesceWindow     time.Duration `yaml:"coalesceWindow"`
}

type PresenceConfig struct {
	SweepInterval     time.Duration `yaml:"sweepInterval"`
	TypingTTL         time.Duration `yaml:"typingTTL"`
	ViewingTTL        time.Duration `yaml:"viewingTTL"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

type FeedConfig struct {
	Capacity    int           `yaml:"capacity"`
	DedupWindow time.Duration `yaml:"dedupWindow"`
}

type NotifyConfig struct {
	MaxPerUser int           `yaml:"maxPerUser"`
	ArchiveDir string        `yaml:"archiveDir"`
	ArchiveTTL time.Duration `yaml:"archiveTTL"`
}

type SyncConfig struct {
	RetryBudget  int           `yaml:"retryBudget"`
	BaseBackoff  time.Duration `yaml:"baseBackoff"`
	SyncInterval time.Duration `yaml:"syncInterval"`
}

type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	Size    int  `yaml:"size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

type Config struct {
	AppName     string
	Debug       bool
	Path        string
	WebServer   Server           `yaml:"webServer"`
	Persistence Persistence      `yaml:"persistence"`
	Logger      LoggerConfig     `yaml:"logger"`
	Channel     ChannelConfig    `yaml:"channel"`
	Engagement  EngagementConfig `yaml:"engagement"`
	Presence    PresenceConfig   `yaml:"presence"`
	Feed        FeedConfig       `yaml:"feed"`
	Notify      NotifyConfig     `yaml:"notify"`
	Sync        SyncConfig       `yaml:"sync"`
	Cache       CacheConfig      `yaml:"cache"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

// ApplyDefaults fills zero-valued tuning knobs so that a minimal config
// file (server + logger + persistence) is enough to run.
func (c *Config) ApplyDefaults() {
	if c.Channel.RetainPerKey == 0 {
		c.Channel.RetainPerKey = 256
	}
	if c.Channel.SubscriberDepth == 0 {
		c.Channel.SubscriberDepth = 64
	}
	if c.Engagement.RecentReactionsCap == 0 {
		c.Engagement.RecentReactionsCap = 20
	}
	if c.Engagement.ViewSessionWindow == 0 {
		c.Engagement.ViewSessionWindow = 30 * time.Minute
	}
	if c.Engagement.CoalesceWindow == 0 {
		c.Engagement.CoalesceWindow = 100 * time.Millisecond
	}
	if c.Presence.SweepInterval == 0 {
		c.Presence.SweepInterval = time.Second
	}
	if c.Presence.TypingTTL == 0 {
		c.Presence.TypingTTL = 8 * time.Second
	}
	if c.Presence.ViewingTTL == 0 {
		c.Presence.ViewingTTL = 60 * time.Second
	}
	if c.Presence.HeartbeatInterval == 0 {
		c.Presence.HeartbeatInterval = 20 * time.Second
	}
	if c.Feed.Capacity == 0 {
		c.Feed.Capacity = 200
	}
	if c.Feed.DedupWindow == 0 {
		c.Feed.DedupWindow = 5 * time.Second
	}
	if c.Notify.MaxPerUser == 0 {
		c.Notify.MaxPerUser = 500
	}
	if c.Notify.ArchiveTTL == 0 {
		c.Notify.ArchiveTTL = 90 * 24 * time.Hour
	}
	if c.Sync.RetryBudget == 0 {
		c.Sync.RetryBudget = 5
	}
	if c.Sync.BaseBackoff == 0 {
		c.Sync.BaseBackoff = 2 * time.Second
	}
	if c.Sync.SyncInterval == 0 {
		c.Sync.SyncInterval = 15 * time.Second
	}
}
