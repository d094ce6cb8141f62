package server

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/dukerupert/hearth/internal/auth"
	"github.com/dukerupert/hearth/internal/config"
	"github.com/dukerupert/hearth/internal/handler"
	"github.com/dukerupert/hearth/internal/kiosk"
	"github.com/dukerupert/hearth/internal/metrics"
	"github.com/dukerupert/hearth/internal/middleware"
	"github.com/dukerupert/hearth/internal/push"
	"github.com/dukerupert/hearth/internal/ratelimit"
	"github.com/dukerupert/hearth/internal/session"
	"github.com/dukerupert/hearth/internal/store"
	"github.com/dukerupert/hearth/internal/vault"
	ws "github.com/dukerupert/hearth/internal/websocket"
)

// Deps are the collaborators built in main. Provider, Push and Metrics may
// be nil.
type Deps struct {
	DB       *sql.DB
	Config   *config.Config
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Limiter  *ratelimit.Limiter
	Provider session.IdentityProvider
	Weather  handler.WeatherSource
	Mailer   handler.InvitationMailer
	Push     *push.Service
	Cipher   *vault.Cipher
	Blobs    vault.BlobStore
}

type Server struct {
	hub         *ws.Hub
	metrics     *metrics.Metrics
	limiter     *ratelimit.Limiter
	authn       *session.Authenticator
	kiosk       *kiosk.Service
	invitations *store.InvitationStore

	authH      *handler.AuthHandler
	householdH *handler.HouseholdHandler
	kioskH     *handler.KioskHandler
	dashboardH *handler.DashboardHandler
	calendarH  *handler.CalendarEventHandler
	choreH     *handler.ChoreHandler
	mealH      *handler.MealHandler
	groceryH   *handler.GroceryHandler
	messageH   *handler.MessageHandler
	budgetH    *handler.BudgetHandler
	vaultH     *handler.VaultHandler
	petH       *handler.PetHandler
	weatherH   *handler.WeatherHandler
	pushH      *handler.PushHandler

	logger *slog.Logger
}

func New(d Deps) *Server {
	logger := d.Logger
	cfg := d.Config
	hub := ws.NewHub(d.Metrics, logger)

	householdStore := store.NewHouseholdStore(d.DB)
	memberStore := store.NewMemberStore(d.DB)
	invitationStore := store.NewInvitationStore(d.DB)
	eventStore := store.NewEventStore(d.DB)
	choreStore := store.NewChoreStore(d.DB)
	mealStore := store.NewMealStore(d.DB)
	groceryStore := store.NewGroceryStore(d.DB)
	messageStore := store.NewMessageStore(d.DB)
	budgetStore := store.NewBudgetStore(d.DB)
	vaultStore := store.NewVaultStore(d.DB)
	petStore := store.NewPetStore(d.DB)
	pushStore := store.NewPushStore(d.DB)

	issuer := session.NewIssuer(cfg.Session.Secret, cfg.SessionTTL())
	authn := session.NewAuthenticator(cfg.Session.Secret, memberStore, logger)
	kioskSvc := kiosk.NewService(householdStore, memberStore, logger)

	// A nil *push.Notifier must not reach the handler as a non-nil interface.
	var announcer handler.Announcer
	if d.Push != nil && d.Push.Configured() {
		announcer = push.NewNotifier(d.Push, pushStore, d.Metrics, logger)
	}

	snapshots := handler.NewSnapshotter(householdStore, eventStore, choreStore, mealStore, messageStore, petStore, d.Weather, logger)
	choreH := handler.NewChoreHandler(choreStore, memberStore, householdStore, hub, logger)

	return &Server{
		hub:         hub,
		metrics:     d.Metrics,
		limiter:     d.Limiter,
		authn:       authn,
		kiosk:       kioskSvc,
		invitations: invitationStore,

		authH:      handler.NewAuthHandler(d.Provider, issuer, authn, cfg.Session.SecureCookies, logger),
		householdH: handler.NewHouseholdHandler(householdStore, memberStore, invitationStore, d.Mailer, hub, logger),
		kioskH:     handler.NewKioskHandler(kioskSvc, snapshots, choreH, petStore, hub, logger),
		dashboardH: handler.NewDashboardHandler(snapshots, logger),
		calendarH:  handler.NewCalendarEventHandler(eventStore, householdStore, hub, logger),
		choreH:     choreH,
		mealH:      handler.NewMealHandler(mealStore, householdStore, hub, logger),
		groceryH:   handler.NewGroceryHandler(groceryStore, hub, logger),
		messageH:   handler.NewMessageHandler(messageStore, announcer, hub, logger),
		budgetH:    handler.NewBudgetHandler(budgetStore, memberStore, householdStore, hub, logger),
		vaultH:     handler.NewVaultHandler(vaultStore, d.Cipher, d.Blobs, int64(cfg.Vault.MaxUploadMB)<<20, hub, logger),
		petH:       handler.NewPetHandler(petStore, householdStore, hub, logger),
		weatherH:   handler.NewWeatherHandler(householdStore, d.Weather, logger),
		pushH:      handler.NewPushHandler(pushStore, d.Push, logger),

		logger: logger,
	}
}

// Invitations returns the invitation store for the expiry job.
func (s *Server) Invitations() *store.InvitationStore {
	return s.invitations
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Router returns the full handler chain: request logging, metrics, security
// headers, rate limiting and the edge gate in front of the route table.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var h http.Handler = middleware.EdgeGate(mux)
	if s.limiter != nil {
		h = middleware.RateLimit(s.limiter, middleware.RealIP, s.metrics)(h)
	}
	h = middleware.SecurityHeaders(h)
	if s.metrics != nil {
		h = middleware.Metrics(s.metrics)(h)
	}
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

// session requires a valid session; the caller may not have a household yet.
func (s *Server) session(h http.HandlerFunc) http.Handler {
	return middleware.RequireSession(s.authn, s.logger, s.metrics)(h)
}

// member requires a session bound to a household.
func (s *Server) member(h http.HandlerFunc) http.Handler {
	return s.session(middleware.RequireHousehold(h).ServeHTTP)
}

// can requires a household member whose role grants c.
func (s *Server) can(c auth.Capability, h http.HandlerFunc) http.Handler {
	return s.member(middleware.RequireCapability(c)(h).ServeHTTP)
}

func (s *Server) kioskOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireKiosk(s.kiosk, s.logger, s.metrics)(h)
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	// Public
	mux.HandleFunc("GET /health", handler.Health)
	mux.HandleFunc("GET /sign-in", s.authH.SignIn)
	mux.HandleFunc("GET /auth/callback", s.authH.Callback)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	// Session, household optional
	mux.Handle("POST /auth/sign-out", s.session(s.authH.SignOut))
	mux.Handle("GET /api/me", s.session(s.authH.Me))
	mux.Handle("POST /api/household", s.session(s.householdH.Create))

	// Household
	mux.Handle("GET /api/household", s.member(s.householdH.Get))
	mux.Handle("PUT /api/household", s.can(auth.CapSettings, s.householdH.Update))
	mux.Handle("PUT /api/household/members/{id}", s.can(auth.CapManageMembers, s.householdH.UpdateMember))
	mux.Handle("DELETE /api/household/members/{id}", s.can(auth.CapManageMembers, s.householdH.DeleteMember))
	mux.Handle("GET /api/household/invitations", s.can(auth.CapInvite, s.householdH.ListInvitations))
	mux.Handle("POST /api/household/invitations", s.can(auth.CapInvite, s.householdH.CreateInvitation))
	mux.Handle("DELETE /api/household/invitations/{id}", s.can(auth.CapInvite, s.householdH.DeleteInvitation))

	// Kiosk
	mux.Handle("POST /api/kiosk/token", s.can(auth.CapKioskAdmin, s.kioskH.IssueToken))
	mux.Handle("DELETE /api/kiosk/token", s.can(auth.CapKioskAdmin, s.kioskH.RevokeToken))
	mux.Handle("GET /api/kiosk/dashboard", s.kioskOnly(s.kioskH.Dashboard))
	mux.Handle("POST /api/kiosk/action", s.kioskOnly(s.kioskH.Action))
	mux.Handle("GET /api/kiosk/ws", s.kioskOnly(ws.Handler(s.hub)))

	// Dashboard and live updates
	mux.Handle("GET /api/dashboard", s.member(s.dashboardH.Get))
	mux.Handle("GET /ws", s.member(ws.Handler(s.hub)))

	// Calendar
	mux.Handle("GET /api/calendar", s.member(s.calendarH.List))
	mux.Handle("POST /api/calendar", s.member(s.calendarH.Create))
	mux.Handle("GET /api/calendar/{id}", s.member(s.calendarH.Get))
	mux.Handle("PUT /api/calendar/{id}", s.member(s.calendarH.Update))
	mux.Handle("DELETE /api/calendar/{id}", s.member(s.calendarH.Delete))

	// Chores
	mux.Handle("GET /api/chores", s.member(s.choreH.List))
	mux.Handle("POST /api/chores", s.member(s.choreH.Create))
	mux.Handle("GET /api/chores/{id}", s.member(s.choreH.Get))
	mux.Handle("PUT /api/chores/{id}", s.member(s.choreH.Update))
	mux.Handle("DELETE /api/chores/{id}", s.member(s.choreH.Delete))
	mux.Handle("GET /api/chores/assignments", s.member(s.choreH.ListAssignments))
	mux.Handle("POST /api/chores/assignments", s.member(s.choreH.CreateAssignment))
	mux.Handle("POST /api/chores/assignments/{id}/complete", s.member(s.choreH.Complete))

	// Meals and recipes
	mux.Handle("GET /api/meals", s.member(s.mealH.ListPlans))
	mux.Handle("POST /api/meals", s.member(s.mealH.UpsertPlan))
	mux.Handle("PUT /api/meals/{id}", s.member(s.mealH.UpdatePlan))
	mux.Handle("DELETE /api/meals/{id}", s.member(s.mealH.DeletePlan))
	mux.Handle("GET /api/recipes", s.member(s.mealH.ListRecipes))
	mux.Handle("POST /api/recipes", s.member(s.mealH.CreateRecipe))
	mux.Handle("GET /api/recipes/{id}", s.member(s.mealH.GetRecipe))
	mux.Handle("PUT /api/recipes/{id}", s.member(s.mealH.UpdateRecipe))
	mux.Handle("DELETE /api/recipes/{id}", s.member(s.mealH.DeleteRecipe))

	// Grocery
	mux.Handle("GET /api/grocery", s.member(s.groceryH.List))
	mux.Handle("POST /api/grocery", s.member(s.groceryH.Create))
	mux.Handle("DELETE /api/grocery", s.member(s.groceryH.ClearChecked))
	mux.Handle("PUT /api/grocery/{id}", s.member(s.groceryH.Update))
	mux.Handle("DELETE /api/grocery/{id}", s.member(s.groceryH.Delete))

	// Messages
	mux.Handle("GET /api/messages", s.member(s.messageH.List))
	mux.Handle("POST /api/messages", s.member(s.messageH.Create))
	mux.Handle("PUT /api/messages/{id}", s.member(s.messageH.Update))
	mux.Handle("DELETE /api/messages/{id}", s.member(s.messageH.Delete))

	// Budget
	mux.Handle("GET /api/budget/categories", s.can(auth.CapBudget, s.budgetH.ListCategories))
	mux.Handle("POST /api/budget/categories", s.can(auth.CapBudget, s.budgetH.CreateCategory))
	mux.Handle("PUT /api/budget/categories/{id}", s.can(auth.CapBudget, s.budgetH.UpdateCategory))
	mux.Handle("DELETE /api/budget/categories/{id}", s.can(auth.CapBudget, s.budgetH.DeleteCategory))
	mux.Handle("GET /api/budget/expenses", s.can(auth.CapBudget, s.budgetH.ListExpenses))
	mux.Handle("POST /api/budget/expenses", s.can(auth.CapBudget, s.budgetH.CreateExpense))
	mux.Handle("PUT /api/budget/expenses/{id}", s.can(auth.CapBudget, s.budgetH.UpdateExpense))
	mux.Handle("DELETE /api/budget/expenses/{id}", s.can(auth.CapBudget, s.budgetH.DeleteExpense))
	mux.Handle("GET /api/budget/allowances", s.can(auth.CapBudget, s.budgetH.ListAllowances))
	mux.Handle("POST /api/budget/allowances", s.can(auth.CapBudget, s.budgetH.UpsertAllowance))

	// Vault
	mux.Handle("GET /api/vault", s.member(s.vaultH.List))
	mux.Handle("POST /api/vault", s.can(auth.CapVaultWrite, s.vaultH.Create))
	mux.Handle("GET /api/vault/{id}", s.member(s.vaultH.Get))
	mux.Handle("PUT /api/vault/{id}", s.can(auth.CapVaultWrite, s.vaultH.Update))
	mux.Handle("DELETE /api/vault/{id}", s.can(auth.CapVaultWrite, s.vaultH.Delete))
	mux.Handle("POST /api/vault/{id}/documents", s.can(auth.CapVaultWrite, s.vaultH.Upload))
	mux.Handle("GET /api/vault/documents/{id}", s.member(s.vaultH.Download))

	// Pets
	mux.Handle("GET /api/pets", s.member(s.petH.List))
	mux.Handle("POST /api/pets", s.member(s.petH.Create))
	mux.Handle("GET /api/pets/{id}", s.member(s.petH.Get))
	mux.Handle("PUT /api/pets/{id}", s.member(s.petH.Update))
	mux.Handle("DELETE /api/pets/{id}", s.member(s.petH.Delete))
	mux.Handle("GET /api/pets/{id}/tasks", s.member(s.petH.ListTasks))
	mux.Handle("POST /api/pets/{id}/tasks", s.member(s.petH.CreateTask))
	mux.Handle("PUT /api/pets/{id}/tasks/{taskId}", s.member(s.petH.UpdateTask))
	mux.Handle("DELETE /api/pets/{id}/tasks/{taskId}", s.member(s.petH.DeleteTask))
	mux.Handle("GET /api/pets/{id}/health", s.member(s.petH.ListHealth))
	mux.Handle("POST /api/pets/{id}/health", s.member(s.petH.CreateHealth))
	mux.Handle("GET /api/pets/tasks/pending", s.member(s.petH.PendingTasks))
	mux.Handle("POST /api/pets/tasks/{taskId}/log", s.member(s.petH.LogCare))

	// Weather
	mux.Handle("GET /api/weather", s.member(s.weatherH.Get))

	// Push
	mux.Handle("GET /api/push/vapid-key", s.member(s.pushH.VAPIDKey))
	mux.Handle("GET /api/push/subscriptions", s.member(s.pushH.ListSubscriptions))
	mux.Handle("POST /api/push/subscriptions", s.member(s.pushH.Subscribe))
	mux.Handle("DELETE /api/push/subscriptions/{id}", s.member(s.pushH.Unsubscribe))
}
