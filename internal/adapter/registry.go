package adapter

import (
	"fmt"

	"PickSync/internal/config"
	"PickSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

type SourceRegistry struct {
	cfg    *config.Config
	logger *logrus.Logger
	// 存储数据源名→适配器实例的映射
	sources map[string]interfaces.DataSourceAdapter
}

func NewSourceRegistry(cfg *config.Config, logger *logrus.Logger) *SourceRegistry {
	r := &SourceRegistry{
		cfg:     cfg,
		logger:  logger,
		sources: make(map[string]interfaces.DataSourceAdapter),
	}

	r.initFromFactories()

	return r
}

// initFromFactories 从工厂函数注册表初始化适配器实例
func (r *SourceRegistry) initFromFactories() {
	// 1. 遍历配置中的数据源，匹配工厂函数创建实例
	for name, srcCfg := range r.cfg.Sources {
		factory, ok := GetFactory(name)
		if !ok {
			r.logger.WithField("source", name).Error("未找到对应的工厂函数（启动时未注册？）")
			continue
		}

		ins := factory(&srcCfg, r.logger)
		if ins == nil {
			// 工厂返回nil表示该数据源配置不完整（如缺API key），跳过
			r.logger.WithField("source", name).Warn("数据源配置不完整，跳过初始化")
			continue
		}

		// 验证实例的数据源名是否与配置键匹配
		if ins.GetName() != name {
			r.logger.WithFields(logrus.Fields{
				"config_source":  name,
				"adapter_source": ins.GetName(),
			}).Error("适配器数据源名与配置不匹配")
			continue
		}

		r.sources[name] = ins
		r.logger.WithField("source", name).Info("数据源适配器初始化成功并加入注册表")
	}

	// 2. 打印最终实例数量
	r.logger.WithField("instance_sources", len(r.sources)).Info("最终初始化的数据源适配器数量")
}

// ListRegisteredSources 获取所有已初始化的数据源名列表
func (r *SourceRegistry) ListRegisteredSources() []string {
	var sources []string
	for s := range r.sources {
		sources = append(sources, s)
	}
	return sources
}

// Get 获取指定数据源的适配器实例
func (r *SourceRegistry) Get(name string) (interfaces.DataSourceAdapter, bool) {
	ins, ok := r.sources[name]
	return ins, ok
}

// Primary 获取配置指定的主数据源实例，未初始化时返回错误
func (r *SourceRegistry) Primary() (interfaces.DataSourceAdapter, error) {
	name := r.cfg.Cache.PrimarySource
	ins, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("主数据源%s未初始化适配器实例（已初始化：%v）", name, r.ListRegisteredSources())
	}
	return ins, nil
}

// SourceCount 获取已初始化实例的数据源数量
func (r *SourceRegistry) SourceCount() int {
	return len(r.sources)
}
