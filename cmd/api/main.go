package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-piano-orders/internal/catalog"
	"github.com/ariefcatur/go-piano-orders/internal/commission"
	"github.com/ariefcatur/go-piano-orders/internal/config"
	"github.com/ariefcatur/go-piano-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-piano-orders/internal/kafka"
	"github.com/ariefcatur/go-piano-orders/internal/logx"
	"github.com/ariefcatur/go-piano-orders/internal/notify"
	"github.com/ariefcatur/go-piano-orders/internal/orders"
	"github.com/ariefcatur/go-piano-orders/internal/payment"
	"github.com/ariefcatur/go-piano-orders/internal/payout"
	"github.com/ariefcatur/go-piano-orders/internal/postgres"
	"github.com/ariefcatur/go-piano-orders/internal/profiles"
	"github.com/ariefcatur/go-piano-orders/internal/redisx"
	"github.com/ariefcatur/go-piano-orders/internal/sweeper"
	"github.com/ariefcatur/go-piano-orders/internal/tasks"
	"github.com/ariefcatur/go-piano-orders/internal/wallet"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger, syncLog := logx.Init(cfg.ServiceName, cfg.LogLevel, cfg.LogDev)
	defer syncLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (semua topic lewat satu writer). Ditutup manual setelah
	// task runner drain, bukan saat sinyal masuk.
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024)
	prod.Start(context.Background())

	runner := tasks.NewRunner(cfg.TaskWorkers, cfg.TaskBuffer, cfg.TaskTimeout)
	events := &orders.Events{Publisher: prod, Service: cfg.ServiceName}
	mailer := &notify.KafkaMailer{Publisher: prod, Service: cfg.ServiceName}

	// Repos
	orderRepo := &orders.Repo{DB: db}
	catalogRepo := &catalog.Repo{DB: db}
	profileRepo := &profiles.Repo{DB: db}
	ledger := wallet.NewLedger(&wallet.Repo{DB: db})

	platformID, err := platformUser(ctx, cfg.PlatformUserID, profileRepo)
	if err != nil {
		logger.Fatal("platform wallet owner", zap.Error(err))
	}

	effects := &payout.Service{
		Wallet:         ledger,
		Courses:        catalogRepo,
		Enrollments:    &payout.EnrollmentRepo{DB: db},
		PlatformUserID: platformID,
		TeacherShare:   cfg.TeacherShare,
	}

	manager := &orders.Manager{
		Store:         orderRepo,
		Catalog:       catalogRepo,
		Commissions:   &commission.Engine{Store: &commission.Repo{DB: db}},
		Effects:       effects,
		Tasks:         runner,
		Events:        events,
		Redis:         rdb,
		PaymentWindow: cfg.PaymentWindow,
		Bank: orders.BankAccount{
			BankName:      cfg.BankName,
			AccountNumber: cfg.BankAccount,
			AccountHolder: cfg.BankAccountName,
			QRBaseURL:     cfg.QRBaseURL,
		},
	}

	reconciler := &payment.Reconciler{
		Orders:           orderRepo,
		Effects:          effects,
		Tasks:            runner,
		Mailer:           mailer,
		Directory:        profileRepo,
		Events:           events,
		Log:              &payment.EventRepo{DB: db},
		Redis:            rdb,
		ReceivingAccount: cfg.ReceivingAccount,
	}

	sw := sweeper.New(orderRepo, events, rdb, cfg.SweepInterval)
	sw.Start(ctx)

	// HTTP
	auth := &httpx.Auth{Admins: profileRepo}
	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Orders: manager, Bank: manager.Bank, Auth: auth}).Register(router)
	(&httpx.WebhookHandler{Reconciler: reconciler, APIKey: cfg.WebhookAPIKey}).Register(router)
	(&httpx.WalletHandler{Wallet: ledger, Auth: auth}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exit", zap.Error(err))
	}

	// urutan: stop sumber kerja dulu, lalu drain task, terakhir flush kafka
	sw.Stop()
	runner.Close()
	prod.Close()
	prod.WaitClosed()
}

// platformUser picks the wallet that receives platform revenue. Without an
// explicit id the oldest admin account is used.
func platformUser(ctx context.Context, configured string, dir *profiles.Repo) (string, error) {
	if configured != "" {
		return configured, nil
	}
	admins, err := dir.Admins(ctx)
	if err != nil {
		return "", err
	}
	if len(admins) == 0 {
		return "", errors.New("PLATFORM_USER_ID not set and no admin profile exists")
	}
	zap.L().Warn("PLATFORM_USER_ID not set, crediting first admin", zap.String("user_id", admins[0].ID))
	return admins[0].ID, nil
}
