package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"workpool/internal/logger"
	"workpool/internal/worker"
	"workpool/internal/workload"

	"gopkg.in/yaml.v3"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Pool     PoolConfig     `yaml:"pool" json:"pool"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Workers     int    `yaml:"workers" json:"workers"`
	PanicPolicy string `yaml:"panic_policy" json:"panic_policy"`
}

// LogConfig はログ設定
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// WorkloadConfig はワークロード設定
type WorkloadConfig struct {
	Preset      string  `yaml:"preset" json:"preset"`
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	Jobs        int     `yaml:"jobs" json:"jobs"`
	Producers   int     `yaml:"producers" json:"producers"`
	JobDuration string  `yaml:"job_duration" json:"job_duration"`
	JobJitter   string  `yaml:"job_jitter" json:"job_jitter"`
	PanicRate   float64 `yaml:"panic_rate" json:"panic_rate"`
}

// ServerConfig はサーバーモードの設定
type ServerConfig struct {
	Addr   string `yaml:"addr" json:"addr"`
	Listen string `yaml:"listen" json:"listen"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}
	if _, err := worker.ParsePanicPolicy(f.Pool.PanicPolicy); err != nil {
		return fmt.Errorf("pool.panic_policy: %w", err)
	}
	if _, err := logger.ParseLevel(f.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	w := f.Workload
	if w.Preset != "" {
		if _, ok := workload.GetPreset(w.Preset); !ok {
			return fmt.Errorf("workload.preset: unknown preset %q (available: %v)", w.Preset, workload.ListPresets())
		}
	}
	if w.Jobs < 0 {
		return fmt.Errorf("workload.jobs must be non-negative")
	}
	if w.Producers < 0 {
		return fmt.Errorf("workload.producers must be non-negative")
	}
	if w.PanicRate < 0 || w.PanicRate > 1 {
		return fmt.Errorf("workload.panic_rate must be between 0 and 1")
	}

	return nil
}

// LogLevel は設定されたログレベルを返す
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Log.Level)
}

// Workers はワーカー数を返す（0ならCPU数）
func (f *FileConfig) Workers() int {
	if f.Pool.Workers <= 0 {
		return runtime.NumCPU()
	}
	return f.Pool.Workers
}

// ToPoolConfig はFileConfigをworker.Configに変換する
// ロガー・メトリクス・イベントバスは呼び出し側で設定する
func (f *FileConfig) ToPoolConfig() (worker.Config, error) {
	policy, err := worker.ParsePanicPolicy(f.Pool.PanicPolicy)
	if err != nil {
		return worker.Config{}, err
	}
	return worker.Config{
		Size:        f.Workers(),
		PanicPolicy: policy,
	}, nil
}

// ToWorkloadConfig はFileConfigをworkload.Configに変換する
func (f *FileConfig) ToWorkloadConfig() (workload.Config, error) {
	w := f.Workload

	// ベースはプリセットかデフォルト
	config := workload.DefaultConfig()
	if w.Preset != "" {
		preset, ok := workload.GetPreset(w.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", w.Preset)
		}
		config = preset
	}

	if w.Name != "" {
		config.Name = w.Name
	}
	if w.Description != "" {
		config.Description = w.Description
	}

	// プール設定
	if f.Pool.Workers > 0 {
		config.Workers = f.Pool.Workers
	}
	if f.Pool.PanicPolicy != "" {
		policy, err := worker.ParsePanicPolicy(f.Pool.PanicPolicy)
		if err != nil {
			return config, err
		}
		config.PanicPolicy = policy
	}

	// 投入設定
	if w.Jobs > 0 {
		config.Jobs = w.Jobs
	}
	if w.Producers > 0 {
		config.Producers = w.Producers
	}
	if w.JobDuration != "" {
		d, err := time.ParseDuration(w.JobDuration)
		if err != nil {
			return config, fmt.Errorf("invalid job duration: %w", err)
		}
		config.JobDuration = d
	}
	if w.JobJitter != "" {
		d, err := time.ParseDuration(w.JobJitter)
		if err != nil {
			return config, fmt.Errorf("invalid job jitter: %w", err)
		}
		config.JobJitter = d
	}
	if w.PanicRate > 0 {
		config.PanicRate = w.PanicRate
	}

	return config, nil
}
