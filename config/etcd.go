package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdOptions etcd 属性源选项
type EtcdOptions struct {
	Endpoints   []string      // etcd 服务器地址列表
	Username    string        // 用户名（可选）
	Password    string        // 密码（可选）
	Prefix      string        // 键前缀（可选）
	Timeout     time.Duration // 读取超时（默认 5 秒）
	DialTimeout time.Duration // 拨号超时（默认 5 秒）
}

func (o *EtcdOptions) applyDefaults() {
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.DialTimeout == 0 {
		o.DialTimeout = 5 * time.Second
	}
}

// Validate 验证配置
func (o *EtcdOptions) Validate() error {
	if len(o.Endpoints) == 0 {
		return fmt.Errorf("config: etcd endpoints are required")
	}
	if o.Timeout < 0 || o.DialTimeout < 0 {
		return fmt.Errorf("config: etcd timeouts must not be negative")
	}
	return nil
}

// EtcdSource etcd 属性源
// "/app/server/port" 在 Prefix 为 "/app" 时映射为 "server.port"
type EtcdSource struct {
	Options EtcdOptions
}

func (s *EtcdSource) Name() string {
	return fmt.Sprintf("Etcd(%v)", s.Options.Endpoints)
}

func (s *EtcdSource) Load() (map[string]string, error) {
	opts := s.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		Username:    opts.Username,
		Password:    opts.Password,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("config: failed to create etcd client: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "/"
	}
	resp, err := cli.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("config: failed to get properties from etcd: %w", err)
	}
	return etcdEntries(opts.Prefix, resp.Kvs), nil
}

// etcdEntries 把 etcd 键值转换成属性
func etcdEntries(prefix string, kvs []*mvccpb.KeyValue) map[string]string {
	result := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		key := strings.TrimPrefix(string(kv.Key), prefix)
		key = strings.Trim(key, "/")
		if key == "" {
			continue
		}
		result[strings.ReplaceAll(key, "/", ".")] = string(kv.Value)
	}
	return result
}
