// Package tlsutil 提供集中式 TLS 配置，
// 为监听器和健康检查客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），
// 以及证书凭据包（证书链 + 私钥 + ALPN 优先级）的加载与自签名生成。
package tlsutil
