package core

import "errors"

var (
	// ErrContextClosed 容器已关闭
	ErrContextClosed = errors.New("core: application context is closed")
	// ErrAlreadyRefreshed 容器只能 refresh 一次
	ErrAlreadyRefreshed = errors.New("core: application context already refreshed")
	// ErrNotActive 需要先 refresh
	ErrNotActive = errors.New("core: application context is not active")
)

// State 容器状态：Unrefreshed → Refreshing → Active → Closed
// 任意状态都可以直接进入 Closed
type State int

const (
	StateUnrefreshed State = iota
	StateRefreshing
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnrefreshed:
		return "Unrefreshed"
	case StateRefreshing:
		return "Refreshing"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
