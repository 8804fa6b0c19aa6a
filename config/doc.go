// Package config 提供检索服务的配置管理功能。
//
// 包含配置加载与文件变更监听。
// 支持从 YAML 文件和环境变量加载配置，
// 环境变量以 FORTRESS_ 前缀覆盖文件中的同名项。
package config
