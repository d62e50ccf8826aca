package providers

import (
	"fmt"
	"path/filepath"
	"rsd/internal/structures"
	"strings"

	"github.com/spf13/viper"
)

func NewConfigProvider(flags *structures.CliFlags) (*structures.Config, error) {
	var conf structures.Config

	filename := filepath.Base(flags.ConfigPath)
	viper.AddConfigPath(filepath.Dir(flags.ConfigPath))
	viper.SetConfigName(strings.TrimSuffix(filename, filepath.Ext(filename)))
	viper.SetConfigType("yaml")

	viper.BindEnv("logger.level", "RSD_LOG_LEVEL")
	viper.BindEnv("persistence.saveInterval", "RSD_SAVE_INTERVAL")
	viper.BindEnv("cache.enabled", "RSD_CACHE_ENABLED")
	viper.BindEnv("cache.size", "RSD_CACHE_SIZE")
	viper.BindEnv("presence.sweepInterval", "RSD_PRESENCE_SWEEP_INTERVAL")
	viper.BindEnv("sync.syncInterval", "RSD_SYNC_INTERVAL")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	err = viper.Unmarshal(&conf)
	if err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	cnfValidator := NewCnfValidator(&conf)
	err = cnfValidator.Validate()
	if err != nil {
		return nil, err
	}

	conf.ApplyDefaults()

	conf.AppName = "RealtimeSyncDaemon"
	conf.Path = flags.ConfigPath
	conf.Debug = flags.DebugMode

	return &conf, nil
}
