// Package camera カメラデバイスからのフレーム取得を担う
//
// # 責務
// - キャプチャデバイスのオープンとクローズ
// - 1フレーム単位のブロッキング読み取り
// - V4L2デバイスの検出と実名取得
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - 設定のバックエンド名からDeviceを開きたい
// - /dev/video* を走査して利用可能なカメラを選びたい
// - ハードウェアなしでテスト用のフレームを生成したい
//
// # 仕様
// - v4l2: github.com/blackjack/webcam による直接キャプチャ（Linuxのみ）
// - ffmpeg: ffmpeg の image2pipe 出力からJPEGを切り出す
// - test: 合成パターンを生成するソフトウェアソース
// - Device はキャプチャループ以外から操作しない（スレッドセーフではない）
//
// # 前提要件
//   - v4l-utils: カメラ名の取得に使用
//     Ubuntu/Debian: sudo apt install v4l-utils
//   - ffmpeg: ffmpeg バックエンド使用時のみ
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera
