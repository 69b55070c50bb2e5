// Package transport 负责连接首字节分类（明文 / TLS）与 TLS 握手升级。
//
// 分类只窥视前 3 个字节而不消费它们：TLS 记录头为
// 0x16（handshake）、0x03、次版本号 0x01..0x03。
package transport
