package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/vietddude/queryplane/internal/core/domain"
	"github.com/vietddude/queryplane/internal/forms"
	"github.com/vietddude/queryplane/internal/query"
	"github.com/vietddude/queryplane/internal/query/keys"
)

// Doer sends one API request. *Transport implements it.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Service exposes one method per resource family. Reads go through the query
// client cache; writes validate their input, run as mutations and invalidate
// the families they change.
type Service struct {
	api Doer
	qc  *query.Client
}

// NewService creates a Service.
func NewService(api Doer, qc *query.Client) *Service {
	return &Service{api: api, qc: qc}
}

func get[T any](ctx context.Context, s *Service, key keys.Key, path string, q url.Values) (T, error) {
	return query.Fetch(ctx, s.qc, key, func(ctx context.Context) (T, error) {
		var out T
		err := s.api.Do(ctx, http.MethodGet, path, q, nil, &out)
		return out, err
	})
}

func (s *Service) Users(ctx context.Context) ([]domain.User, error) {
	return get[[]domain.User](ctx, s, keys.UsersList(), "/users", nil)
}

func (s *Service) User(ctx context.Context, id string) (domain.User, error) {
	return get[domain.User](ctx, s, keys.User(id), "/users/"+url.PathEscape(id), nil)
}

func (s *Service) AnalyticsOverview(ctx context.Context) (domain.AnalyticsOverview, error) {
	return get[domain.AnalyticsOverview](ctx, s, keys.AnalyticsOverview(), "/analytics/overview", nil)
}

func (s *Service) Revenue(ctx context.Context, period string) (domain.Revenue, error) {
	return get[domain.Revenue](ctx, s, keys.AnalyticsRevenue(period), "/analytics/revenue",
		url.Values{"period": {period}})
}

// Files lists a folder. An empty folder lists the root.
func (s *Service) Files(ctx context.Context, folder string) ([]domain.File, error) {
	var q url.Values
	if folder != "" {
		q = url.Values{"folder": {folder}}
	}
	return get[[]domain.File](ctx, s, keys.FilesInFolder(folder), "/files", q)
}

func (s *Service) FileContent(ctx context.Context, id string) (domain.FileContent, error) {
	return get[domain.FileContent](ctx, s, keys.FileContent(id), "/files/"+url.PathEscape(id)+"/content", nil)
}

func (s *Service) TeamMembers(ctx context.Context) ([]domain.TeamMember, error) {
	return get[[]domain.TeamMember](ctx, s, keys.TeamMembers(), "/team/members", nil)
}

func (s *Service) Invitations(ctx context.Context) ([]domain.Invitation, error) {
	return get[[]domain.Invitation](ctx, s, keys.TeamInvitations(), "/team/invitations", nil)
}

func (s *Service) Notifications(ctx context.Context) ([]domain.Notification, error) {
	return get[[]domain.Notification](ctx, s, keys.NotificationsList(), "/notifications", nil)
}

func (s *Service) UnreadCount(ctx context.Context) (domain.UnreadCount, error) {
	return get[domain.UnreadCount](ctx, s, keys.NotificationsUnread(), "/notifications/unread-count", nil)
}

// AuditLogs fetches one page. Pages start at 1.
func (s *Service) AuditLogs(ctx context.Context, page int, filter keys.AuditFilter) (domain.AuditLogPage, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{"page": {strconv.Itoa(page)}}
	for name, v := range map[string]string{
		"actor":  filter.Actor,
		"action": filter.Action,
		"from":   filter.From,
		"to":     filter.To,
	} {
		if v != "" {
			q.Set(name, v)
		}
	}
	return get[domain.AuditLogPage](ctx, s, keys.AuditLogsPage(page, filter), "/audit-logs", q)
}

func (s *Service) MonitoringStats(ctx context.Context) (domain.MonitoringStats, error) {
	return get[domain.MonitoringStats](ctx, s, keys.MonitoringStats(), "/monitoring/stats", nil)
}

func (s *Service) MonitoringEndpoints(ctx context.Context) ([]domain.Endpoint, error) {
	return get[[]domain.Endpoint](ctx, s, keys.MonitoringEndpoints(), "/monitoring/endpoints", nil)
}

// InviteMember sends a team invitation.
func (s *Service) InviteMember(ctx context.Context, form forms.InviteForm) (domain.Invitation, error) {
	if err := forms.Validate(form); err != nil {
		return domain.Invitation{}, err
	}
	return query.Mutate(ctx, s.qc, "invite-member", func(ctx context.Context) (domain.Invitation, error) {
		var out domain.Invitation
		err := s.api.Do(ctx, http.MethodPost, "/team/invitations", nil, form, &out)
		return out, err
	}, keys.Team())
}

func (s *Service) RevokeInvitation(ctx context.Context, id string) error {
	return s.send(ctx, "revoke-invitation", http.MethodDelete, "/team/invitations/"+url.PathEscape(id), nil,
		keys.TeamInvitations())
}

func (s *Service) MarkNotificationRead(ctx context.Context, id string) error {
	return s.send(ctx, "mark-notification-read", http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil,
		keys.Notifications())
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context) error {
	return s.send(ctx, "mark-all-notifications-read", http.MethodPost, "/notifications/read-all", nil,
		keys.Notifications())
}

func (s *Service) DeleteFile(ctx context.Context, id string) error {
	if err := s.send(ctx, "delete-file", http.MethodDelete, "/files/"+url.PathEscape(id), nil, keys.Files()); err != nil {
		return err
	}
	// The content key of a deleted file can never become valid again.
	s.qc.Remove(keys.FileContent(id))
	return nil
}

func (s *Service) SubmitContact(ctx context.Context, form forms.ContactForm) error {
	if err := forms.Validate(form); err != nil {
		return err
	}
	return s.send(ctx, "submit-contact", http.MethodPost, "/contact", form)
}

func (s *Service) SubscribeNewsletter(ctx context.Context, form forms.NewsletterForm) error {
	if err := forms.Validate(form); err != nil {
		return err
	}
	return s.send(ctx, "subscribe-newsletter", http.MethodPost, "/newsletter", form)
}

// Signup creates an account and returns the new user.
func (s *Service) Signup(ctx context.Context, form forms.SignupForm) (domain.User, error) {
	if err := forms.Validate(form); err != nil {
		return domain.User{}, err
	}
	body := struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{form.Name, form.Email, form.Password}

	return query.Mutate(ctx, s.qc, "signup", func(ctx context.Context) (domain.User, error) {
		var out domain.User
		err := s.api.Do(ctx, http.MethodPost, "/auth/signup", nil, body, &out)
		return out, err
	}, keys.Users())
}

func (s *Service) send(ctx context.Context, name, method, path string, body any, invalidate ...keys.Key) error {
	_, err := s.qc.Mutate(ctx, name, func(ctx context.Context) (any, error) {
		return nil, s.api.Do(ctx, method, path, nil, body, nil)
	}, invalidate...)
	return err
}
