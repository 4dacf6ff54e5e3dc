// Package main is the entry point for workpool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"workpool/internal/acceptor"
	"workpool/internal/api"
	"workpool/internal/config"
	"workpool/internal/events"
	"workpool/internal/logger"
	"workpool/internal/metrics"
	"workpool/internal/worker"
	"workpool/internal/workload"

	"github.com/pkg/profile"
)

var (
	version = "dev"
)

// options はコマンドラインフラグの値
type options struct {
	configFile  string
	presetName  string
	workers     int
	jobs        int
	producers   int
	panicPolicy string
	logLevel    string
	serverAddr  string
	listenAddr  string
}

func main() {
	var opts options

	// フラグ定義
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.presetName, "preset", "", "プリセットワークロード名 (quick, serial, burst, faulty, degrade)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	flag.IntVar(&opts.jobs, "jobs", 0, "投入するジョブ数")
	flag.IntVar(&opts.producers, "producers", 0, "投入側のゴルーチン数")
	flag.StringVar(&opts.panicPolicy, "panic-policy", "", "ジョブがパニックした時の扱い (recover, retire)")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.StringVar(&opts.serverAddr, "addr", ":8080", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	flag.StringVar(&opts.listenAddr, "listen", "", "サーバーモードで接続を受け付ける TCP アドレス (例: :5000)")
	var (
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
		serverMode  = flag.Bool("server", false, "API サーバーモードで起動")
		profileMode = flag.String("profile", "", "プロファイルを取得 (cpu, mem, block, mutex)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `workpool - Fixed-Size Worker Pool

Usage:
  workpool [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットワークロードを実行
  workpool --preset quick

  # 設定ファイルから実行
  workpool --config workload.yaml

  # フラグでカスタマイズ
  workpool --preset faulty --workers 8 --panic-policy retire

  # プリセット一覧を表示
  workpool --list-presets

  # API サーバーモードで起動し、TCP 接続をプールで処理
  workpool --server --addr :8080 --listen :5000

  # CPU プロファイルを取得
  workpool --preset burst --profile cpu
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("workpool version %s\n", version)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	if *profileMode != "" {
		mode, err := profileOption(*profileMode)
		if err != nil {
			logger.Error("", "設定エラー: %v", err)
			os.Exit(1)
		}
		defer profile.Start(mode, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	fileConfig, err := loadConfig(opts.configFile)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}
	if err := applyLogLevel(fileConfig, opts.logLevel); err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// API サーバーモード
	if *serverMode {
		if err := runServer(fileConfig, opts); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	// ワークロード設定の決定
	workloadConfig, err := buildWorkloadConfig(fileConfig, opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// ワークロード実行
	if err := runWorkload(workloadConfig); err != nil {
		logger.Error("", "ワークロード実行エラー: %v", err)
		os.Exit(1)
	}
}

// profileOption はプロファイル種別を pkg/profile のオプションに変換する
func profileOption(name string) (func(*profile.Profile), error) {
	switch name {
	case "cpu":
		return profile.CPUProfile, nil
	case "mem":
		return profile.MemProfile, nil
	case "block":
		return profile.BlockProfile, nil
	case "mutex":
		return profile.MutexProfile, nil
	default:
		return nil, fmt.Errorf("不明なプロファイル: %s (利用可能: cpu, mem, block, mutex)", name)
	}
}

// loadConfig は設定ファイルを読み込んで検証する。パスが空なら nil を返す
func loadConfig(path string) (*config.FileConfig, error) {
	if path == "" {
		return nil, nil
	}
	fileConfig, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}
	if err := fileConfig.Validate(); err != nil {
		return nil, fmt.Errorf("設定検証エラー: %w", err)
	}
	return fileConfig, nil
}

// applyLogLevel はログレベルを設定する。フラグが設定ファイルより優先
func applyLogLevel(fileConfig *config.FileConfig, flagLevel string) error {
	name := flagLevel
	if name == "" && fileConfig != nil {
		name = fileConfig.Log.Level
	}
	level, err := logger.ParseLevel(name)
	if err != nil {
		return err
	}
	logger.Default.SetLevel(level)
	return nil
}

// buildWorkloadConfig はワークロード設定を構築する
func buildWorkloadConfig(fileConfig *config.FileConfig, opts options) (workload.Config, error) {
	var cfg workload.Config

	if fileConfig != nil {
		// 1. 設定ファイルから読み込み
		var err error
		cfg, err = fileConfig.ToWorkloadConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	} else if opts.presetName != "" {
		// 2. プリセットから読み込み
		preset, ok := workload.GetPreset(opts.presetName)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, workload.ListPresets())
		}
		cfg = preset
	} else {
		// 3. デフォルト（quickワークロード）
		cfg = workload.QuickWorkload()
	}

	// フラグでオーバーライド
	if opts.workers > 0 {
		cfg.Workers = opts.workers
	}
	if opts.jobs > 0 {
		cfg.Jobs = opts.jobs
	}
	if opts.producers > 0 {
		cfg.Producers = opts.producers
	}
	if opts.panicPolicy != "" {
		policy, err := worker.ParsePanicPolicy(opts.panicPolicy)
		if err != nil {
			return cfg, err
		}
		cfg.PanicPolicy = policy
	}

	return cfg, cfg.Validate()
}

// buildPoolConfig はサーバーモードのプール設定を構築する
func buildPoolConfig(fileConfig *config.FileConfig, opts options) (worker.Config, error) {
	cfg := worker.Config{Size: runtime.NumCPU()}
	if fileConfig != nil {
		var err error
		cfg, err = fileConfig.ToPoolConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	}

	if opts.workers > 0 {
		cfg.Size = opts.workers
	}
	if opts.panicPolicy != "" {
		policy, err := worker.ParsePanicPolicy(opts.panicPolicy)
		if err != nil {
			return cfg, err
		}
		cfg.PanicPolicy = policy
	}
	return cfg, nil
}

// signalContext は SIGINT/SIGTERM でキャンセルされる context を返す
func signalContext(what string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Printf("\n中断シグナルを受信、%sを終了中...\n", what)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// runWorkload はワークロードを実行する
func runWorkload(cfg workload.Config) error {
	fmt.Println("workpool - Fixed-Size Worker Pool")
	fmt.Println("=================================")
	fmt.Printf("Workload: %s\n", cfg.Name)
	fmt.Printf("Workers: %d, Producers: %d, Jobs: %d\n", cfg.Workers, cfg.Producers, cfg.Jobs)
	fmt.Printf("Panic policy: %s, Panic rate: %.2f\n", cfg.PanicPolicy, cfg.PanicRate)
	fmt.Println("=================================")
	fmt.Println()

	ctx, cancel := signalContext("ワークロード")
	defer cancel()

	engine := workload.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	// レポート出力
	fmt.Println(result.Report())

	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットワークロード:")
	fmt.Println()

	for _, p := range workload.Presets() {
		fmt.Printf("  %-10s %s\n", p.Name, p.Description)
	}

	fmt.Println()
	fmt.Println("使用例: workpool --preset quick")
}

// runServer はプールを作成し、API サーバー（と任意で TCP アクセプター）を起動する
func runServer(fileConfig *config.FileConfig, opts options) error {
	poolConfig, err := buildPoolConfig(fileConfig, opts)
	if err != nil {
		return err
	}

	addr, listen := opts.serverAddr, opts.listenAddr
	if fileConfig != nil {
		if fileConfig.Server.Addr != "" && addr == ":8080" {
			addr = fileConfig.Server.Addr
		}
		if listen == "" {
			listen = fileConfig.Server.Listen
		}
	}

	fmt.Println("workpool - API Server")
	fmt.Println("=====================")
	fmt.Printf("Workers: %d, Panic policy: %s\n", poolConfig.Size, poolConfig.PanicPolicy)
	fmt.Printf("Starting server on http://%s\n", addr)
	if listen != "" {
		fmt.Printf("Accepting TCP connections on %s\n", listen)
	}
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	m := metrics.New()
	bus := events.NewBus()
	defer bus.Close()

	poolConfig.Metrics = m
	poolConfig.Events = bus
	pool := worker.NewWithConfig(poolConfig)
	// 投入済みの接続を全て処理してから終了する
	defer pool.Close()

	ctx, cancel := signalContext("サーバー")
	defer cancel()

	errc := make(chan error, 2)
	acceptDone := make(chan struct{})
	if listen != "" {
		acc, err := acceptor.Listen(listen, pool, nil)
		if err != nil {
			return err
		}
		go func() {
			defer close(acceptDone)
			if err := acc.Serve(ctx); err != nil {
				errc <- err
			}
		}()
	} else {
		close(acceptDone)
	}

	server := api.NewServer(addr, pool, m, bus)
	go func() {
		errc <- server.Start(ctx)
	}()

	select {
	case <-ctx.Done():
	case err = <-errc:
	}

	// アクセプターが投入を止めてからプールを閉じる
	cancel()
	<-acceptDone
	return err
}
