package httpserver

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"maternacare/internal/config"
	"maternacare/internal/notify"
	"maternacare/internal/presence"
	"maternacare/internal/security"
	"maternacare/internal/service"
	"maternacare/internal/store/sqlite"
	"maternacare/internal/ws"
)

// NewRouter constructs the HTTP router and wires stores, services, and the
// websocket gateway. Health-metric CRUD and auth endpoints live in their own
// services; this router only fronts the messaging subsystem.
func NewRouter(
	cfg *config.Config,
	log *zap.Logger,
	db *sql.DB,
	hub *ws.Hub,
	reg presence.Registry,
	tokenSvc *security.TokenService,
	notifier notify.Dispatcher,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Repositories
	userRepo := sqlite.NewUserRepo(db)
	convRepo := sqlite.NewConversationRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)

	// Services
	convSvc := service.NewConversationService(convRepo)
	msgSvc := service.NewMessageService(convSvc, msgRepo)
	chatSvc := service.NewChatListService(convRepo, msgRepo)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message":"MaternaCare Chat API","version":"1.0.0"}`))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// WebSocket endpoint
	r.Get("/ws", ws.MakeHandler(log, hub, reg, tokenSvc, userRepo, convSvc, msgSvc, chatSvc, notifier, cfg.CORSOrigins))

	return r
}
