package workload

import (
	"time"

	"workpool/internal/worker"
)

// QuickWorkload は短時間の動作確認用ワークロードを返す
func QuickWorkload() Config {
	return Config{
		Name:        "quick",
		Description: "Short smoke run on a small pool",
		Workers:     4,
		PanicPolicy: worker.PanicRecover,
		Jobs:        50,
		Producers:   2,
		JobDuration: 2 * time.Millisecond,
		JobJitter:   time.Millisecond,
	}
}

// SerialWorkload は1ワーカーで投入順に実行するワークロードを返す
func SerialWorkload() Config {
	return Config{
		Name:        "serial",
		Description: "Single worker, jobs run strictly in submission order",
		Workers:     1,
		PanicPolicy: worker.PanicRecover,
		Jobs:        20,
		Producers:   1,
		JobDuration: time.Millisecond,
	}
}

// BurstWorkload は多数のプロデューサーから一斉に投入するワークロードを返す
func BurstWorkload() Config {
	return Config{
		Name:        "burst",
		Description: "Many concurrent producers flooding the queue with short jobs",
		Workers:     8,
		PanicPolicy: worker.PanicRecover,
		Jobs:        5000,
		Producers:   16,
		JobDuration: 100 * time.Microsecond,
		JobJitter:   50 * time.Microsecond,
	}
}

// FaultyWorkload はパニックするジョブを混ぜ、ワーカーが回復することを確認する
func FaultyWorkload() Config {
	return Config{
		Name:        "faulty",
		Description: "Injects panicking jobs; workers recover and keep serving",
		Workers:     4,
		PanicPolicy: worker.PanicRecover,
		Jobs:        200,
		Producers:   4,
		JobDuration: time.Millisecond,
		JobJitter:   500 * time.Microsecond,
		PanicRate:   0.1,
	}
}

// DegradeWorkload はパニックしたワーカーが退役し、容量が減っていく様子を確認する
func DegradeWorkload() Config {
	return Config{
		Name:        "degrade",
		Description: "Injects panicking jobs; each one retires its worker for good",
		Workers:     8,
		PanicPolicy: worker.PanicRetire,
		Jobs:        200,
		Producers:   2,
		JobDuration: time.Millisecond,
		PanicRate:   0.02,
	}
}

// Preset はプリセットの名前と説明
type Preset struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

var presets = []struct {
	name string
	fn   func() Config
}{
	{"quick", QuickWorkload},
	{"serial", SerialWorkload},
	{"burst", BurstWorkload},
	{"faulty", FaultyWorkload},
	{"degrade", DegradeWorkload},
}

// GetPreset は名前からプリセットワークロードを取得する
func GetPreset(name string) (Config, bool) {
	for _, p := range presets {
		if p.name == name {
			return p.fn(), true
		}
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for _, p := range presets {
		names = append(names, p.name)
	}
	return names
}

// Presets は全プリセットの名前と説明を返す
func Presets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, Preset{Name: p.name, Description: p.fn().Description})
	}
	return out
}
