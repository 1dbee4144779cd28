package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	coreerrors "proxylink/internal/core/errors"
	corelog "proxylink/internal/core/log"
)

// EnvPrefix 环境变量前缀，层级以双下划线分隔：PROXYLINK_RECONNECT__MAX_ATTEMPTS
const EnvPrefix = "PROXYLINK_"

// DefaultFileName 当前目录下的默认配置文件名
const DefaultFileName = "proxylink.yaml"

// SearchPaths 未显式指定配置文件时依次查找的位置
func SearchPaths() []string {
	paths := []string{DefaultFileName}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".proxylink", "config.yaml"))
	}
	return append(paths, "/etc/proxylink/config.yaml")
}

// Default 仅含默认值的配置
func Default() *Config {
	cfg, err := load("", false)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load 加载配置：默认值 -> 配置文件 -> 环境变量，然后校验
//
// path 为空时按 SearchPaths 查找，都不存在则只使用默认值与环境变量。
// 返回实际使用的配置文件路径，未使用文件时为空。
func Load(path string) (*Config, string, error) {
	if path == "" {
		for _, p := range SearchPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	} else if _, err := os.Stat(path); err != nil {
		return nil, "", coreerrors.Wrapf(err, coreerrors.CodeConfigError, "config file %s", path)
	}

	cfg, err := load(path, true)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func load(path string, withEnv bool) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, coreerrors.Wrapf(err, coreerrors.CodeConfigError, "load config file %s", path)
		}
		corelog.Debugf("Config: loaded %s", path)
	}

	if withEnv {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "load environment")
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, coreerrors.Wrap(err, coreerrors.CodeConfigError, "decode config")
	}
	return &cfg, nil
}

// envKey PROXYLINK_PROXY__HANDSHAKE_TIMEOUT -> proxy.handshake_timeout
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}
