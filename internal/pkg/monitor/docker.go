package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultDockerHost = "unix:///var/run/docker.sock"

// DockerClient Docker Engine API 的最小只读客户端，只用到容器列表和单次统计
type DockerClient struct {
	baseURL string
	http    *http.Client
}

// NewDockerClient 支持 unix:// tcp:// http:// https:// 地址
func NewDockerClient(host string) (*DockerClient, error) {
	if host == "" {
		host = defaultDockerHost
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid docker host %q: %w", host, err)
	}

	transport := &http.Transport{
		MaxIdleConns:    4,
		IdleConnTimeout: 30 * time.Second,
	}
	var baseURL string
	switch u.Scheme {
	case "unix":
		socket := u.Path
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socket)
		}
		baseURL = "http://docker"
	case "tcp":
		baseURL = "http://" + u.Host
	case "http", "https":
		baseURL = strings.TrimSuffix(host, "/")
	default:
		return nil, fmt.Errorf("unsupported docker host scheme %q", u.Scheme)
	}

	return &DockerClient{baseURL: baseURL, http: &http.Client{Transport: transport}}, nil
}

// newDockerClientWithHTTP 测试中对接 httptest 服务
func newDockerClientWithHTTP(baseURL string, client *http.Client) *DockerClient {
	return &DockerClient{baseURL: strings.TrimSuffix(baseURL, "/"), http: client}
}

type dockerContainer struct {
	ID     string   `json:"Id"`
	Names  []string `json:"Names"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

type dockerCPUStats struct {
	CPUUsage struct {
		TotalUsage uint64 `json:"total_usage"`
	} `json:"cpu_usage"`
	SystemCPUUsage uint64 `json:"system_cpu_usage"`
	OnlineCPUs     uint32 `json:"online_cpus"`
}

type dockerStats struct {
	CPUStats    dockerCPUStats `json:"cpu_stats"`
	PreCPUStats dockerCPUStats `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
	Networks map[string]struct {
		RxBytes uint64 `json:"rx_bytes"`
		TxBytes uint64 `json:"tx_bytes"`
	} `json:"networks"`
}

// ListRunning 列出运行中的容器
func (c *DockerClient) ListRunning(ctx context.Context) ([]dockerContainer, error) {
	q := url.Values{}
	q.Set("filters", `{"status":["running"]}`)
	var out []dockerContainer
	if err := c.get(ctx, "/containers/json?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats 单次统计，stream=false
func (c *DockerClient) Stats(ctx context.Context, id string) (*dockerStats, error) {
	var out dockerStats
	if err := c.get(ctx, "/containers/"+url.PathEscape(id)+"/stats?stream=false", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DockerClient) get(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("docker api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("docker api %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode docker api response: %w", err)
	}
	return nil
}

// Close 释放空闲连接
func (c *DockerClient) Close() {
	c.http.CloseIdleConnections()
}
