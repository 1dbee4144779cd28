package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	coreerrors "proxylink/internal/core/errors"
)

// Save 以 YAML 写出配置，文件可能包含代理密码，权限为 0600
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return coreerrors.New(coreerrors.CodeInvalidParam, "nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return coreerrors.Wrap(err, coreerrors.CodeConfigError, "encode config")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return coreerrors.Wrapf(err, coreerrors.CodeConfigError, "write %s", path)
	}
	return nil
}
