// Package host 会话的宿主服务：绑定、前台状态与在服务上下文中发起连接
package host

import "context"

// ClientAction 服务回调会话的动作接口
type ClientAction interface {
	// ActionConnect 在服务上下文中执行一次阻塞连接
	ActionConnect(host string, port int)
	ActionCheckConnect(tag string) bool
}

// Service 已绑定的宿主服务
type Service interface {
	StartForeground(status string)
	StopForeground()
	SetActionListener(a ClientAction)
	RemoveActionListener()
	// Connect 请求服务在自己的执行上下文中调用 ActionConnect，立即返回
	Connect(host string, port int)
}

// Connection 绑定结果回调
type Connection interface {
	OnServiceConnected(svc Service)
	OnServiceDisconnected()
}

// Binder 宿主绑定器
//
// Bind 只发起绑定，确认通过 Connection.OnServiceConnected 异步送达。
type Binder interface {
	Bind(ctx context.Context, conn Connection) error
	Unbind(conn Connection)
}
