package config

import (
	"log"

	"peopleflow/pkg/config"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DB     config.DBConfig     `yaml:"db"`
	MQ     config.MQConfig     `yaml:"mq"`
	Redis  config.RedisConfig  `yaml:"redis"`
	JWT    config.JWTConfig    `yaml:"jwt"`
	Server config.ServerConfig `yaml:"server"`
	Engine config.EngineConfig `yaml:"engine"`
}

func Load() *Config {
	env := config.GetConfigEnv()
	configDir := config.GetEnv("CONFIG_DIR", "config")

	cfgMap, err := config.LoadConfig(env, configDir)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cfg Config
	cfgData, err := yaml.Marshal(cfgMap)
	if err != nil {
		log.Fatalf("failed to marshal config: %v", err)
	}
	if err := yaml.Unmarshal(cfgData, &cfg); err != nil {
		log.Fatalf("failed to unmarshal config: %v", err)
	}

	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideServerFromEnv(&cfg.Server)

	if cfg.Engine.TickMinutes <= 0 {
		cfg.Engine.TickMinutes = 60
	}
	if cfg.Engine.StoreTimeoutSeconds <= 0 {
		cfg.Engine.StoreTimeoutSeconds = 5
	}
	if cfg.Engine.RunLockTTLMinutes <= 0 {
		cfg.Engine.RunLockTTLMinutes = 30
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8086"
	}

	return &cfg
}
