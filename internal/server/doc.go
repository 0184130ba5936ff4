// Package server は、カメラ映像を配信するHTTPサーバーを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// MJPEGストリームの配信、状態確認APIを担当します。
//
// 責務:
//   - キャプチャループとHTTPリスナーの起動と停止
//   - 閲覧ページ（/）とMJPEGストリーム（/video_feed）の配信
//   - ヘルスチェックと状態取得API（huma）
//   - Prometheusメトリクスの公開
//
// 仕様:
//   - ルーティングはgin、APIの定義とOpenAPIはhumaを使用
//   - 1台のカメラを1つのキャプチャループが所有し、全クライアントに同じフレームを配信
//   - 停止シグナル、SIGINT/SIGTERMでグレースフルシャットダウン
//   - systemd配下ではREADY/STOPPINGを通知
package server
