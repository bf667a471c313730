package server

import (
	"context"
	"net/http"

	"lancepay/internal/auth"
	"lancepay/internal/config"
	"lancepay/internal/currency"
	"lancepay/internal/events"
	"lancepay/internal/payment"
	"lancepay/internal/reconcile"
	"lancepay/internal/transfer"
	"lancepay/internal/user"
	"lancepay/internal/wallet"
	"lancepay/internal/withdrawal"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

type Server struct {
	router *gin.Engine
	db     *sqlx.DB
	config *config.Config
	http   *http.Server
}

func New(db *sqlx.DB, cfg *config.Config, rates *currency.Service, bus events.Publisher) *Server {
	router := gin.Default()
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(20, 40))

	userHandler := user.NewHandler(db, cfg.JWTSecret)
	userRepo := user.NewRepository(db)

	walletRepo := wallet.NewRepository(db)
	walletHandler := wallet.NewHandler(walletRepo)

	transferRepo := transfer.NewRepository(db, bus)
	transferService := transfer.NewService(transferRepo, userRepo)
	transferHandler := transfer.NewHandler(transferService)

	ecpayClient := &payment.ECPayClient{
		MerchantID: cfg.ECPayMerchantID,
		HashKey:    cfg.ECPayHashKey,
		HashIV:     cfg.ECPayHashIV,
		GatewayURL: cfg.ECPayGatewayURL,
		ReturnURL:  cfg.PublicBaseURL + "/webhooks/ecpay",
	}
	paypalClient := payment.NewPayPalClient(cfg.PayPalClientID, cfg.PayPalSecret, cfg.PayPalBaseURL)
	paypalClient.ReturnURL = cfg.PublicBaseURL + "/deposit/return"
	paypalClient.CancelURL = cfg.PublicBaseURL + "/deposit/cancel"

	paymentRepo := payment.NewRepository(db, bus)
	paymentService := payment.NewService(paymentRepo, rates, ecpayClient, paypalClient)
	paymentHandler := payment.NewHandler(paymentService)

	reconciler := reconcile.New(paymentRepo, walletRepo, reconcile.DefaultPolicy)
	reconcileHandler := reconcile.NewHandler(reconciler)

	withdrawalRepo := withdrawal.NewRepository(db, bus)
	withdrawalHandler := withdrawal.NewHandler(withdrawalRepo)

	public := router.Group("/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	// Provider server-to-server notifications carry no bearer token. The
	// regional rail's form is CheckMacValue-verified; PayPal events are
	// resolved against the provider API before any order transition.
	webhooks := router.Group("/webhooks")
	{
		webhooks.POST("/ecpay", paymentHandler.ECPayWebhook)
		webhooks.POST("/paypal", paymentHandler.PayPalWebhook)
	}

	authMiddleware := auth.AuthMiddleware(auth.NewValidator(cfg.AuthMode, cfg.JWTSecret))
	protected := router.Group("/")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", userHandler.GetMe)

		protected.GET("/wallet", walletHandler.GetWallet)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.POST("/transfer", transferHandler.Send)
		protected.POST("/transfer/pin", transferHandler.SetPin)
		protected.GET("/transfer/pin", transferHandler.HasPin)
		protected.GET("/transfer/limits", transferHandler.Limits)
		protected.GET("/transfer/history", transferHandler.History)

		protected.POST("/deposits", paymentHandler.CreateOrder)
		protected.GET("/deposits/orders/:externalID", paymentHandler.GetOrder)
		protected.POST("/deposits/orders/:externalID/reconcile", reconcileHandler.Reconcile)

		protected.POST("/withdraw", withdrawalHandler.Request)
	}

	adminMiddleware := auth.RequireRole("admin")
	admin := router.Group("/admin")
	admin.Use(authMiddleware, adminMiddleware)
	{
		admin.GET("/withdrawals", withdrawalHandler.ListPending)
		admin.POST("/withdrawals/:id/resolve", withdrawalHandler.Resolve)
	}

	router.GET("/health", Health)
	router.GET("/metrics", Metrics())
	SetupSwagger(router)

	return &Server{
		router: router,
		db:     db,
		config: cfg,
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
