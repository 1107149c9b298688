package service

import "errors"

// ErrUpstreamUnavailable 上游数据源不可用。
// 缓存网关在库里还有可降级数据时会吞掉它并返回过期数据；
// 只有冷缓存（库里一行都没有）时才会把它抛给调用方。
var ErrUpstreamUnavailable = errors.New("上游数据源不可用")

// ErrSourceDisabled 数据源未配置或缺少 API Key，拉取类操作不可用
var ErrSourceDisabled = errors.New("数据源未启用")
