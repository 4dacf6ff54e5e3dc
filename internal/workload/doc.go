// Package workload は worker プールに負荷をかける実行エンジンを提供する。
//
// エンジンは設定に従ってプールを作成し、複数のプロデューサーから
// ジョブを投入し、プールを閉じて全ジョブの完了を待ってから結果をまとめる。
//
// # 機能
//
// - 並行プロデューサーによるジョブ投入
// - パニックするジョブの注入（障害注入）
// - 定義済みプリセット
// - 実行結果のレポート生成
//
// # プリセット
//
// - quick: 短時間の動作確認
// - serial: 1ワーカーでの順序確認
// - burst: 多数プロデューサーからの一斉投入
// - faulty: パニック注入とワーカーの回復
// - degrade: パニックによるワーカー退役と容量低下
//
// # 使用例
//
//	config := workload.FaultyWorkload()
//	engine := workload.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package workload
