package domain

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AnalyticsOverview struct {
	ActiveUsers    int     `json:"active_users"`
	Revenue        float64 `json:"revenue"`
	ConversionRate float64 `json:"conversion_rate"`
	Sessions       int     `json:"sessions"`
	GrowthPercent  float64 `json:"growth_percent"`
}

type RevenuePoint struct {
	Label  string  `json:"label"`
	Amount float64 `json:"amount"`
}

type Revenue struct {
	Period string         `json:"period"`
	Total  float64        `json:"total"`
	Points []RevenuePoint `json:"points"`
}

type File struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Folder     string    `json:"folder"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	ModifiedAt time.Time `json:"modified_at"`
}

type FileContent struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type TeamMember struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

type Invitation struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	InvitedAt time.Time `json:"invited_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type UnreadCount struct {
	Count int `json:"count"`
}

type AuditLog struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	Target    string    `json:"target"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLogPage struct {
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	Items      []AuditLog `json:"items"`
}

type MonitoringStats struct {
	TotalRequests int64   `json:"total_requests"`
	ErrorRate     float64 `json:"error_rate"`
	AvgLatencyMs  float64 `json:"avg_latency_ms"`
	UptimePercent float64 `json:"uptime_percent"`
}

type Endpoint struct {
	Path         string  `json:"path"`
	Method       string  `json:"method"`
	Requests     int64   `json:"requests"`
	ErrorRate    float64 `json:"error_rate"`
	P95LatencyMs float64 `json:"p95_latency_ms"`
	Status       string  `json:"status"`
}
