package version

type GetVersionResponse struct {
	NodeID            string `json:"node_id"`
	BootID            string `json:"boot_id"`
	AgentVersion      string `json:"agent_version"`
	StreamMode        string `json:"stream_mode"`
	PlatformSupported bool   `json:"platform_supported"`
	OS                string `json:"os,omitempty"`
	Platform          string `json:"platform,omitempty"`
	KernelVersion     string `json:"kernel_version,omitempty"`
	CheckedAtUnix     int64  `json:"checked_at_unix"`
}
