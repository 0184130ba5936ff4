// Package capture は1台のカメラからフレームを取得してMJPEGチャンクとして配信する
//
// # 責務
// - デバイスを1回だけ開き、停止シグナルまで一定間隔でフレームを読み取る
// - フレームへのタイムスタンプ描画、縮小、JPEGエンコード
// - multipart/x-mixed-replace のパート形式へのラップ
// - 1つのプロデューサーから複数の購読者へのファンアウト
//
// # 仕様
// - デバイスのオープン失敗と読み取り失敗はどちらも致命的で、再試行しない
// - 1周につき処理中のフレームは最大1枚で、過去のフレームは保持しない
// - 待機中の停止シグナルは即座に待機を中断する
// - 遅い購読者のチャンクは古いものから破棄し、プロデューサーを止めない
package capture
