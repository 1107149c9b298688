package repository

import (
	"errors"

	"gorm.io/gorm"
)

// 仓储层哨兵错误
var (
	// ErrNotFound 按主键/唯一键查询无匹配
	ErrNotFound = errors.New("记录不存在")
)

// translateNotFound 将 gorm 的未找到错误统一映射为 ErrNotFound，其余原样返回
func translateNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
