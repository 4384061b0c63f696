package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/gocrud/spring/logging"
)

// Lifecycle 可启动/停止的 Bean
// Start 不应阻塞，需要后台运行的工作自己开 goroutine
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

// lifecycleBean 带名称的 Lifecycle，用于日志
type lifecycleBean struct {
	name string
	bean Lifecycle
}

// startAll 按顺序启动，失败时逆序停止已启动的部分
func startAll(ctx context.Context, logger logging.Logger, beans []lifecycleBean) ([]lifecycleBean, error) {
	logger.Info(fmt.Sprintf("Starting %d lifecycle beans", len(beans)))

	started := make([]lifecycleBean, 0, len(beans))
	for _, lb := range beans {
		if lb.bean.IsRunning() {
			continue
		}
		logger.Debug("Starting lifecycle bean", logging.Field{Key: "bean", Value: lb.name})
		if err := lb.bean.Start(ctx); err != nil {
			logger.Error("Failed to start lifecycle bean",
				logging.Field{Key: "bean", Value: lb.name},
				logging.Field{Key: "error", Value: err.Error()})
			if stopErr := stopAll(ctx, logger, started); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			return nil, fmt.Errorf("core: failed to start %s: %w", lb.name, err)
		}
		started = append(started, lb)
	}
	return started, nil
}

// stopAll 逆序停止，收集全部错误
func stopAll(ctx context.Context, logger logging.Logger, beans []lifecycleBean) error {
	logger.Info(fmt.Sprintf("Stopping %d lifecycle beans", len(beans)))

	var errs []error
	for i := len(beans) - 1; i >= 0; i-- {
		lb := beans[i]
		if !lb.bean.IsRunning() {
			continue
		}
		if err := lb.bean.Stop(ctx); err != nil {
			logger.Error("Failed to stop lifecycle bean",
				logging.Field{Key: "bean", Value: lb.name},
				logging.Field{Key: "error", Value: err.Error()})
			errs = append(errs, fmt.Errorf("core: failed to stop %s: %w", lb.name, err))
			continue
		}
		logger.Debug("Lifecycle bean stopped", logging.Field{Key: "bean", Value: lb.name})
	}
	return errors.Join(errs...)
}
