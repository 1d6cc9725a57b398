package protocol

import "encoding/json"

// TelemetrySnapshot 一次遥测采集结果，不加信封直接发送
type TelemetrySnapshot struct {
	AgentID    string        `json:"server_id"`
	CapturedAt int64         `json:"timestamp"`
	System     SystemMetrics `json:"system"`
	Units      []UnitMetrics `json:"containers"`
}

// SystemMetrics 主机指标
type SystemMetrics struct {
	HostName          string  `json:"host_name"`
	CPUModel          string  `json:"cpu_model"`
	CPUUsage          float32 `json:"cpu_usage"`
	CPUCores          int     `json:"cpu_cores"`
	MemoryTotal       uint64  `json:"memory_total"`
	MemoryUsed        uint64  `json:"memory_used"`
	MemoryUsedPercent float32 `json:"memory_used_percent"`
	SwapTotal         uint64  `json:"swap_total"`
	SwapUsed          uint64  `json:"swap_used"`
	Uptime            uint64  `json:"uptime"`
	DiskTotal         uint64  `json:"disk_total"`
	DiskUsed          uint64  `json:"disk_used"`
}

// UnitMetrics 单个被管理节点（容器）的指标
type UnitMetrics struct {
	Name          string  `json:"name"`
	ID            string  `json:"id"`
	Status        string  `json:"status"`
	CPUUsage      float64 `json:"cpu_usage"`
	MemoryUsage   uint64  `json:"memory_usage"`
	MemoryLimit   uint64  `json:"memory_limit"`
	MemoryPercent float64 `json:"memory_percent"`
	NetworkRx     uint64  `json:"network_rx"`
	NetworkTx     uint64  `json:"network_tx"`
	Nickname      *string `json:"nickname"`
}

// MarshalJSON containers 为空时编码为 []
func (s TelemetrySnapshot) MarshalJSON() ([]byte, error) {
	type plain TelemetrySnapshot
	out := plain(s)
	if out.Units == nil {
		out.Units = []UnitMetrics{}
	}
	return json.Marshal(out)
}
