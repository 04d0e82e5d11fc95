package router

import (
	"github.com/gin-gonic/gin"
	"github.com/opencrm/backend/internal/infrastructure/logger"
	"github.com/opencrm/backend/internal/interfaces/http/handler"
	"github.com/opencrm/backend/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers holds every HTTP handler the API serves
type Handlers struct {
	Customers     *handler.CustomerHandler
	Contacts      *handler.ContactHandler
	Opportunities *handler.OpportunityHandler
	Quotes        *handler.QuoteHandler
	Tasks         *handler.TaskHandler
	Notes         *handler.NoteHandler
	Activities    *handler.ActivityHandler
	Campaigns     *handler.CampaignHandler
	Tracking      *handler.TrackingHandler
	Workflows     *handler.WorkflowHandler
	Deployments   *handler.DeploymentHandler
	Settings      *handler.SettingHandler
	Health        *handler.HealthHandler
}

// Options configures the engine middleware
type Options struct {
	ServiceName  string
	APIVersion   string
	Production   bool
	CORS         middleware.CORSConfig
	MaxBodyBytes int64
	// RateLimiter is optional
	RateLimiter *middleware.RateLimiter
	Auth        middleware.AuthConfig
	// PlatformRoles may use /platform. Empty allows every authenticated caller.
	PlatformRoles  []string
	Meter          metric.Meter
	Logger         *zap.Logger
	TrustedProxies []string
}

// NewEngine builds the gin engine with the global middleware chain and
// every route.
//
// Global order: recovery, tracing, span status, request id, access log,
// secure headers, CORS, metrics, body limit. Authenticated groups then run
// auth and the per-tenant rate limit. The public tracking group is rate
// limited per client IP.
func NewEngine(opts Options, h Handlers) (*gin.Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, err
	}

	metrics, err := middleware.HTTPMetrics(opts.Meter)
	if err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(opts.ServiceName),
		middleware.SpanStatus(),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.SecureHeaders(opts.Production),
		middleware.CORS(opts.CORS),
		metrics,
		middleware.BodyLimit(opts.MaxBodyBytes),
	)

	engine.GET("/health", h.Health.Health)

	authenticated := []gin.HandlerFunc{middleware.Auth(opts.Auth)}
	public := []gin.HandlerFunc{}
	if opts.RateLimiter != nil {
		authenticated = append(authenticated, middleware.RateLimit(opts.RateLimiter))
		public = append(public, middleware.RateLimit(opts.RateLimiter))
	}

	var routerOpts []RouterOption
	if opts.APIVersion != "" {
		routerOpts = append(routerOpts, WithAPIVersion(opts.APIVersion))
	}
	r := NewRouter(engine, routerOpts...)
	r.Register(trackingRoutes(h).Use(public...))
	r.Register(systemRoutes(h).Use(authenticated...))
	r.Register(crmRoutes(h).Use(authenticated...))
	r.Register(marketingRoutes(h).Use(authenticated...))
	r.Register(automationRoutes(h).Use(authenticated...))
	r.Register(platformRoutes(h).Use(authenticated...).Use(middleware.RequireAnyRole(opts.PlatformRoles...)))
	r.Setup()

	return engine, nil
}

func trackingRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("tracking", "/track")
	g.GET("/open/:recipient_id", h.Tracking.Open)
	g.GET("/click/:recipient_id", h.Tracking.Click)
	return g
}

func systemRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("system", "/system")
	g.GET("/info", h.Health.SystemInfo)
	return g
}

func crmRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("crm", "/crm")

	customers := g.Group("customers", "/customers")
	customers.POST("", h.Customers.Create)
	customers.GET("", h.Customers.List)
	customers.GET("/stats", h.Customers.Stats)
	customers.GET("/:id", h.Customers.GetByID)
	customers.PUT("/:id", h.Customers.Update)
	customers.DELETE("/:id", h.Customers.Delete)
	customers.POST("/:id/status", h.Customers.ChangeStatus)
	customers.GET("/:id/contacts", h.Customers.Contacts)
	customers.GET("/:id/opportunities", h.Customers.Opportunities)
	customers.GET("/:id/timeline", h.Customers.Timeline)

	contacts := g.Group("contacts", "/contacts")
	contacts.POST("", h.Contacts.Create)
	contacts.GET("", h.Contacts.List)
	contacts.GET("/:id", h.Contacts.GetByID)
	contacts.PUT("/:id", h.Contacts.Update)
	contacts.DELETE("/:id", h.Contacts.Delete)
	contacts.POST("/:id/primary", h.Contacts.SetPrimary)
	contacts.POST("/:id/activate", h.Contacts.Activate)
	contacts.POST("/:id/deactivate", h.Contacts.Deactivate)

	opportunities := g.Group("opportunities", "/opportunities")
	opportunities.POST("", h.Opportunities.Create)
	opportunities.GET("", h.Opportunities.List)
	opportunities.GET("/pipeline", h.Opportunities.Pipeline)
	opportunities.GET("/:id", h.Opportunities.GetByID)
	opportunities.PUT("/:id", h.Opportunities.Update)
	opportunities.DELETE("/:id", h.Opportunities.Delete)
	opportunities.POST("/:id/stage", h.Opportunities.MoveStage)
	opportunities.POST("/:id/win", h.Opportunities.Win)
	opportunities.POST("/:id/lose", h.Opportunities.Lose)
	opportunities.POST("/:id/reopen", h.Opportunities.Reopen)

	quotes := g.Group("quotes", "/quotes")
	quotes.POST("", h.Quotes.Create)
	quotes.GET("", h.Quotes.List)
	quotes.GET("/:id", h.Quotes.GetByID)
	quotes.PUT("/:id", h.Quotes.Update)
	quotes.DELETE("/:id", h.Quotes.Delete)
	quotes.POST("/:id/send", h.Quotes.Send)
	quotes.POST("/:id/accept", h.Quotes.Accept)
	quotes.POST("/:id/reject", h.Quotes.Reject)
	quotes.POST("/:id/expire", h.Quotes.Expire)

	tasks := g.Group("tasks", "/tasks")
	tasks.POST("", h.Tasks.Create)
	tasks.GET("", h.Tasks.List)
	tasks.GET("/:id", h.Tasks.GetByID)
	tasks.PUT("/:id", h.Tasks.Update)
	tasks.DELETE("/:id", h.Tasks.Delete)
	tasks.POST("/:id/start", h.Tasks.Start)
	tasks.POST("/:id/complete", h.Tasks.Complete)
	tasks.POST("/:id/cancel", h.Tasks.Cancel)
	tasks.POST("/:id/reopen", h.Tasks.Reopen)

	notes := g.Group("notes", "/notes")
	notes.POST("", h.Notes.Create)
	notes.GET("", h.Notes.List)
	notes.GET("/:id", h.Notes.GetByID)
	notes.PUT("/:id", h.Notes.Update)
	notes.DELETE("/:id", h.Notes.Delete)
	notes.POST("/:id/pin", h.Notes.Pin)
	notes.POST("/:id/unpin", h.Notes.Unpin)

	activities := g.Group("activities", "/activities")
	activities.POST("", h.Activities.Create)
	activities.GET("", h.Activities.List)
	activities.GET("/:id", h.Activities.GetByID)
	activities.PUT("/:id", h.Activities.Update)
	activities.DELETE("/:id", h.Activities.Delete)

	return g
}

func marketingRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("marketing", "/marketing")

	campaigns := g.Group("campaigns", "/campaigns")
	campaigns.POST("", h.Campaigns.Create)
	campaigns.GET("", h.Campaigns.List)
	campaigns.GET("/:id", h.Campaigns.GetByID)
	campaigns.PUT("/:id", h.Campaigns.Update)
	campaigns.DELETE("/:id", h.Campaigns.Delete)
	campaigns.POST("/:id/schedule", h.Campaigns.Schedule)
	campaigns.POST("/:id/execute", h.Campaigns.Execute)
	campaigns.POST("/:id/pause", h.Campaigns.Pause)
	campaigns.POST("/:id/resume", h.Campaigns.Resume)
	campaigns.POST("/:id/complete", h.Campaigns.Complete)
	campaigns.POST("/:id/cancel", h.Campaigns.Cancel)
	campaigns.GET("/:id/recipients", h.Campaigns.Recipients)
	campaigns.GET("/:id/interactions", h.Campaigns.Interactions)
	campaigns.GET("/:id/analytics", h.Campaigns.Analytics)
	campaigns.POST("/:id/track", h.Campaigns.Track)

	return g
}

func automationRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("automation", "/automation")

	workflows := g.Group("workflows", "/workflows")
	workflows.POST("", h.Workflows.Create)
	workflows.GET("", h.Workflows.List)
	workflows.GET("/:id", h.Workflows.GetByID)
	workflows.PUT("/:id", h.Workflows.Update)
	workflows.DELETE("/:id", h.Workflows.Delete)
	workflows.POST("/:id/activate", h.Workflows.Activate)
	workflows.POST("/:id/deactivate", h.Workflows.Deactivate)
	workflows.POST("/:id/rules", h.Workflows.AddRule)
	workflows.PUT("/:id/rules/:rule_id", h.Workflows.UpdateRule)
	workflows.DELETE("/:id/rules/:rule_id", h.Workflows.DeleteRule)
	workflows.POST("/:id/test", h.Workflows.Test)
	workflows.POST("/:id/execute", h.Workflows.Execute)
	workflows.GET("/:id/executions", h.Workflows.WorkflowExecutions)

	executions := g.Group("executions", "/executions")
	executions.GET("", h.Workflows.Executions)
	executions.GET("/:id", h.Workflows.GetExecution)

	return g
}

func platformRoutes(h Handlers) *DomainGroup {
	g := NewDomainGroup("platform", "/platform")

	deployments := g.Group("deployments", "/deployments")
	deployments.POST("", h.Deployments.Create)
	deployments.GET("", h.Deployments.List)
	deployments.GET("/:id", h.Deployments.GetByID)
	deployments.PUT("/:id", h.Deployments.Update)
	deployments.DELETE("/:id", h.Deployments.Delete)
	deployments.POST("/:id/deploy", h.Deployments.Deploy)
	deployments.POST("/:id/running", h.Deployments.MarkRunning)
	deployments.POST("/:id/failed", h.Deployments.MarkFailed)
	deployments.POST("/:id/stop", h.Deployments.Stop)
	deployments.POST("/:id/start", h.Deployments.Start)
	deployments.POST("/:id/terminate", h.Deployments.Terminate)
	deployments.POST("/:id/health-check", h.Deployments.HealthCheck)

	settings := g.Group("settings", "/settings")
	settings.GET("", h.Settings.List)
	settings.POST("", h.Settings.Create)
	settings.PUT("", h.Settings.BulkUpdate)
	settings.GET("/:key", h.Settings.Get)
	settings.PUT("/:key", h.Settings.Update)
	settings.DELETE("/:key", h.Settings.Delete)
	settings.POST("/:key/reset", h.Settings.Reset)

	return g
}
