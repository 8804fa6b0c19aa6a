// Package tlsutil 提供集中式 TLS 配置，
// 为嵌入、重排与向量库的远程 HTTP 客户端以及 HTTP 服务端
// 提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
