package dispose

import (
	"context"
)

// ResourceBase 通用资源基类
type ResourceBase struct {
	Dispose
}

// ManagerBase 管理器基类，持有一组子资源
type ManagerBase struct {
	*ResourceBase
}

// ServiceBase 长生命周期服务基类
type ServiceBase struct {
	*ResourceBase
}

// NewResourceBase 创建资源基类并绑定父 context
func NewResourceBase(name string, parent context.Context) *ResourceBase {
	r := &ResourceBase{}
	r.SetCtx(parent, name)
	return r
}

// NewManager 创建管理器
func NewManager(name string, parent context.Context) *ManagerBase {
	return &ManagerBase{ResourceBase: NewResourceBase(name, parent)}
}

// NewService 创建服务
func NewService(name string, parent context.Context) *ServiceBase {
	return &ServiceBase{ResourceBase: NewResourceBase(name, parent)}
}
