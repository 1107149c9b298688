package adapter

import (
	"fmt"

	"PickSync/internal/interfaces"

	"github.com/sirupsen/logrus"
)

// ========== 全局工厂函数注册表（依赖interfaces包） ==========
var factoryRegistry = make(map[string]interfaces.Factory)

// Register 注册数据源工厂函数，启动时为每个接入的数据源调用一次
func Register(source string, factory interfaces.Factory) {
	if factory == nil {
		panic(fmt.Sprintf("数据源%s的工厂函数不能为nil", source))
	}
	if _, exists := factoryRegistry[source]; exists {
		logrus.Warnf("数据源%s的适配器已注册，将覆盖原有实现", source)
	}
	factoryRegistry[source] = factory
	logrus.Infof("数据源%s工厂函数注册成功", source)
}

// GetFactory 获取指定数据源的工厂函数
func GetFactory(source string) (interfaces.Factory, bool) {
	factory, ok := factoryRegistry[source]
	return factory, ok
}

// ListFactories 列出所有已注册工厂函数的数据源名
func ListFactories() []string {
	var sources []string
	for s := range factoryRegistry {
		sources = append(sources, s)
	}
	return sources
}
