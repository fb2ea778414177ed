package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/service"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(db *sql.DB, jwtSecret string, svc *service.Service) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	usersHandler := &UsersHandler{DB: db}
	itemsHandler := &ItemsHandler{Svc: svc}
	claimsHandler := &ClaimsHandler{Svc: svc}
	inboxHandler := &InboxHandler{Svc: svc}
	streamHandler := &StreamHandler{Svc: svc}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: account creation, login, photos and community stats.
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/photos/{id}", itemsHandler.GetPhoto)
	mux.HandleFunc("GET /api/stats", itemsHandler.Stats)

	// Authenticated routes.
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Feed and items.
	mux.Handle("GET /api/items", authMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Create)))
	mux.Handle("GET /api/items/mine", authMW(http.HandlerFunc(itemsHandler.Mine)))
	mux.Handle("GET /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Get)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))
	mux.Handle("GET /api/items/{id}/history", authMW(http.HandlerFunc(itemsHandler.GetHistory)))
	mux.Handle("GET /api/feed/stream", authMW(http.HandlerFunc(streamHandler.Stream)))

	// Claims and handoff.
	mux.Handle("POST /api/items/{id}/claim", authMW(http.HandlerFunc(claimsHandler.Claim)))
	mux.Handle("POST /api/items/{id}/approve", authMW(http.HandlerFunc(claimsHandler.Approve)))
	mux.Handle("POST /api/items/{id}/reject", authMW(http.HandlerFunc(claimsHandler.Reject)))
	mux.Handle("POST /api/items/{id}/verify", authMW(http.HandlerFunc(claimsHandler.Verify)))
	mux.Handle("POST /api/items/{id}/handoff", authMW(http.HandlerFunc(claimsHandler.Handoff)))
	mux.Handle("POST /api/handoff/redeem", authMW(http.HandlerFunc(claimsHandler.Redeem)))

	// Community reports.
	mux.Handle("POST /api/items/{id}/report", authMW(http.HandlerFunc(claimsHandler.Report)))
	mux.Handle("GET /api/reports/reasons", authMW(http.HandlerFunc(claimsHandler.ReportReasons)))
	mux.Handle("GET /api/reports", authMW(requireAdmin(http.HandlerFunc(claimsHandler.ListReports))))

	// Chat.
	mux.Handle("GET /api/items/{id}/messages", authMW(http.HandlerFunc(inboxHandler.ListMessages)))
	mux.Handle("POST /api/items/{id}/messages", authMW(http.HandlerFunc(inboxHandler.SendMessage)))

	// Notifications and saved alerts.
	mux.Handle("GET /api/notifications", authMW(http.HandlerFunc(inboxHandler.ListNotifications)))
	mux.Handle("GET /api/notifications/unread", authMW(http.HandlerFunc(inboxHandler.Unread)))
	mux.Handle("POST /api/notifications/read", authMW(http.HandlerFunc(inboxHandler.MarkAllRead)))
	mux.Handle("POST /api/notifications/{id}/read", authMW(http.HandlerFunc(inboxHandler.MarkRead)))
	mux.Handle("GET /api/alerts", authMW(http.HandlerFunc(inboxHandler.ListAlerts)))
	mux.Handle("POST /api/alerts", authMW(http.HandlerFunc(inboxHandler.CreateAlert)))
	mux.Handle("DELETE /api/alerts/{id}", authMW(http.HandlerFunc(inboxHandler.DeleteAlert)))

	return mux
}
