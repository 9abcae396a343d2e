package keys

// Resource family roots. Every finer key nests under one of these so that
// invalidating the root reaches all of them.
const (
	ClassUsers         = "users"
	ClassAnalytics     = "analytics"
	ClassFiles         = "files"
	ClassTeam          = "team"
	ClassNotifications = "notifications"
	ClassAuditLogs     = "audit-logs"
	ClassMonitoring    = "api-monitoring"
)

// AuditFilter narrows an audit log listing.
type AuditFilter struct {
	Actor  string `json:"actor,omitempty"`
	Action string `json:"action,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
}

func Users() Key { return Must(ClassUsers) }
func UsersList() Key { return Must(ClassUsers, "list") }
func User(id string) Key { return Must(ClassUsers, "detail", id) }
func Analytics() Key { return Must(ClassAnalytics) }
func AnalyticsOverview() Key { return Must(ClassAnalytics, "overview") }

// AnalyticsRevenue is keyed by reporting period, e.g. "7d", "30d", "12m".
func AnalyticsRevenue(period string) Key {
	return Must(ClassAnalytics, "revenue", period)
}

func Files() Key { return Must(ClassFiles) }
func FilesInFolder(folder string) Key { return Must(ClassFiles, "folder", folder) }
func FileContent(id string) Key { return Must(ClassFiles, "content", id) }

func Team() Key { return Must(ClassTeam) }
func TeamMembers() Key { return Must(ClassTeam, "members") }
func TeamInvitations() Key { return Must(ClassTeam, "invitations") }

func Notifications() Key { return Must(ClassNotifications) }
func NotificationsList() Key { return Must(ClassNotifications, "list") }
func NotificationsUnread() Key { return Must(ClassNotifications, "unread") }

func AuditLogs() Key { return Must(ClassAuditLogs) }

// AuditLogsPage keys one page of audit logs under a filter set.
func AuditLogsPage(page int, filter AuditFilter) Key {
	return Must(ClassAuditLogs, page, filter)
}

func Monitoring() Key { return Must(ClassMonitoring) }
func MonitoringStats() Key { return Must(ClassMonitoring, "stats") }
func MonitoringEndpoints() Key { return Must(ClassMonitoring, "endpoints") }
