// Package config は YAML / JSON 設定ファイルの読み込みを提供する。
//
// 拡張子（.yaml, .yml, .json）で形式を判定し、FileConfig に読み込む。
// FileConfig は worker.Config と workload.Config に変換できる。
//
// # 設定例
//
//	pool:
//	  workers: 4            # 0 で CPU 数
//	  panic_policy: recover # recover | retire
//	log:
//	  level: info
//	workload:
//	  preset: faulty
//	  jobs: 500
//	  job_duration: 2ms
//	server:
//	  addr: ":8080"
//	  listen: ":5000"
//
// # 使用例
//
//	cfg, err := config.LoadFile("workpool.yaml")
//	if err != nil {
//	    return err
//	}
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	wl, err := cfg.ToWorkloadConfig()
package config
